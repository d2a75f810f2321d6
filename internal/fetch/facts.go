package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"triviacast/internal/content"
	logx "triviacast/pkg/logx"
)

const (
	DefaultFactsURL     = "https://uselessfacts.jsph.pl/api/v2/facts/random"
	defaultFactsTimeout = 10 * time.Second
)

const (
	factHeader = "🧠 *Daily Knowledge Boost*"
	factFooter = "━━━━━━━━━━━━━━━━━━━\nStay Curious!"

	fallbackFactHeader = "💡 *Did You Know?*"
	fallbackFactText   = "Honey never spoils and can last for thousands of years!"
)

// FactsClient fetches random facts from the uselessfacts API.
type FactsClient struct {
	url  string
	http *http.Client
	log  logx.Logger
}

type factResponse struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

func NewFactsClient(apiURL string, timeout time.Duration, log logx.Logger) *FactsClient {
	if strings.TrimSpace(apiURL) == "" {
		apiURL = DefaultFactsURL
	}
	if timeout <= 0 {
		timeout = defaultFactsTimeout
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &FactsClient{
		url:  apiURL,
		http: &http.Client{Timeout: timeout},
		log:  log,
	}
}

func (c *FactsClient) Fetch(ctx context.Context, count int) []content.Item {
	if count <= 0 {
		count = 1
	}
	items := make([]content.Item, 0, count)
	for i := 0; i < count; i++ {
		item, err := c.fetchOne(ctx)
		if err != nil {
			c.log.Warn("fact fetch failed; using placeholder", logx.Err(err))
			item = fallbackFact()
		}
		items = append(items, item)
	}
	return items
}

func (c *FactsClient) fetchOne(ctx context.Context) (content.Item, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return content.Item{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return content.Item{}, fmt.Errorf("facts api: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return content.Item{}, fmt.Errorf("facts api: unexpected status %d", resp.StatusCode)
	}

	var fr factResponse
	if err := json.NewDecoder(resp.Body).Decode(&fr); err != nil {
		return content.Item{}, fmt.Errorf("facts api: decode: %w", err)
	}
	text := strings.TrimSpace(fr.Text)
	if text == "" {
		return content.Item{}, fmt.Errorf("facts api: empty fact text")
	}

	// Prefer the source-provided natural id; hash the text otherwise.
	id := strings.TrimSpace(fr.ID)
	if id == "" {
		id = content.DeriveID(text)
	}

	return content.Item{
		Category:   content.Fact,
		Text:       formatFact(factHeader, text, factFooter),
		NaturalKey: text,
		ID:         id,
	}, nil
}

func formatFact(header, text, footer string) string {
	return fmt.Sprintf("%s\n\n✦ %s\n\n%s", header, text, footer)
}

func fallbackFact() content.Item {
	return content.Item{
		Category:   content.Fact,
		Text:       formatFact(fallbackFactHeader, fallbackFactText, factFooter),
		NaturalKey: fallbackFactText,
		ID:         content.FallbackID(content.Fact),
		Fallback:   true,
	}
}
