package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"triviacast/internal/content"
	logx "triviacast/pkg/logx"
)

const (
	DefaultTriviaURL     = "https://opentdb.com/api.php"
	defaultTriviaTimeout = 15 * time.Second

	// opentdb category 9 = General Knowledge.
	triviaSubjectCode = 9

	// Telegram poll field limits.
	maxPollQuestionLen    = 255
	maxPollOptionLen      = 100
	maxPollExplanationLen = 200
)

// TriviaClient fetches multiple-choice questions from the opentdb API.
//
// Single mode (content.TriviaSingle) folds the subject and difficulty into
// the question text; batch mode (content.TriviaBatch) keeps the question
// bare and leaves the metadata for the poll explanation.
type TriviaClient struct {
	category content.Category
	url      string
	http     *http.Client
	log      logx.Logger

	rngMu sync.Mutex
	rng   *rand.Rand
}

type triviaResponse struct {
	ResponseCode int            `json:"response_code"`
	Results      []triviaResult `json:"results"`
}

type triviaResult struct {
	Category         string   `json:"category"`
	Difficulty       string   `json:"difficulty"`
	Question         string   `json:"question"`
	CorrectAnswer    string   `json:"correct_answer"`
	IncorrectAnswers []string `json:"incorrect_answers"`
}

func NewTriviaClient(category content.Category, apiURL string, timeout time.Duration, log logx.Logger) *TriviaClient {
	if strings.TrimSpace(apiURL) == "" {
		apiURL = DefaultTriviaURL
	}
	if timeout <= 0 {
		timeout = defaultTriviaTimeout
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &TriviaClient{
		category: category,
		url:      apiURL,
		http:     &http.Client{Timeout: timeout},
		log:      log,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *TriviaClient) Fetch(ctx context.Context, count int) []content.Item {
	if count <= 0 {
		count = 1
	}
	items, err := c.fetchBatch(ctx, count)
	if err != nil {
		c.log.Warn("trivia fetch failed; using placeholders", logx.Int("count", count), logx.Err(err))
		return c.fallbackBatch(count)
	}
	return items
}

func (c *TriviaClient) fetchBatch(ctx context.Context, count int) ([]content.Item, error) {
	q := url.Values{}
	q.Set("amount", strconv.Itoa(count))
	q.Set("category", strconv.Itoa(triviaSubjectCode))
	q.Set("type", "multiple")
	q.Set("encode", "url3986")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("trivia api: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("trivia api: unexpected status %d", resp.StatusCode)
	}

	var tr triviaResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("trivia api: decode: %w", err)
	}
	if tr.ResponseCode != 0 {
		return nil, fmt.Errorf("trivia api: response code %d", tr.ResponseCode)
	}
	if len(tr.Results) != count {
		return nil, fmt.Errorf("trivia api: expected %d results, got %d", count, len(tr.Results))
	}

	items := make([]content.Item, 0, count)
	for _, r := range tr.Results {
		item, err := c.buildItem(r)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (c *TriviaClient) buildItem(r triviaResult) (content.Item, error) {
	question := decodeField(r.Question)
	correct := decodeField(r.CorrectAnswer)
	subject := decodeField(r.Category)
	difficulty := decodeField(r.Difficulty)

	if strings.TrimSpace(question) == "" || strings.TrimSpace(correct) == "" || len(r.IncorrectAnswers) == 0 {
		return content.Item{}, fmt.Errorf("trivia api: incomplete question")
	}

	options := make([]string, 0, len(r.IncorrectAnswers)+1)
	for _, a := range r.IncorrectAnswers {
		options = append(options, truncate(decodeField(a), maxPollOptionLen))
	}
	correct = truncate(correct, maxPollOptionLen)
	options = append(options, correct)

	c.rngMu.Lock()
	c.rng.Shuffle(len(options), func(i, j int) {
		options[i], options[j] = options[j], options[i]
	})
	c.rngMu.Unlock()

	correctIdx := -1
	for i, o := range options {
		if o == correct {
			correctIdx = i
			break
		}
	}
	if correctIdx < 0 {
		return content.Item{}, fmt.Errorf("trivia api: correct answer missing after shuffle")
	}

	clean := content.Normalize(question)
	text := clean
	if c.category == content.TriviaSingle {
		text = fmt.Sprintf("%s\n\nCategory: %s\nDifficulty: %s", clean, subject, titleCase(difficulty))
	}

	return content.Item{
		Category: c.category,
		Quiz: &content.Quiz{
			Question:     truncate(text, maxPollQuestionLen),
			Options:      options,
			CorrectIndex: correctIdx,
			Subject:      subject,
			Difficulty:   titleCase(difficulty),
		},
		// Identity comes from the pre-shuffle question text, so option
		// order never affects dedup.
		NaturalKey: question,
		ID:         content.DeriveID(question),
	}, nil
}

// Static placeholders, cycled when more than four are needed.
var fallbackQuizzes = []content.Quiz{
	{
		Question:     "Which country is known as the Land of Rising Sun?",
		Options:      []string{"China", "Thailand", "Japan", "India"},
		CorrectIndex: 2,
		Subject:      "General Knowledge",
		Difficulty:   "Easy",
	},
	{
		Question:     "What is the capital of France?",
		Options:      []string{"London", "Berlin", "Paris", "Madrid"},
		CorrectIndex: 2,
		Subject:      "Geography",
		Difficulty:   "Medium",
	},
	{
		Question:     "Who painted the Mona Lisa?",
		Options:      []string{"Van Gogh", "Picasso", "Da Vinci", "Rembrandt"},
		CorrectIndex: 2,
		Subject:      "Art",
		Difficulty:   "Hard",
	},
	{
		Question:     "What is H2O?",
		Options:      []string{"Gold", "Water", "Salt", "Oxygen"},
		CorrectIndex: 1,
		Subject:      "Science",
		Difficulty:   "Easy",
	},
}

func (c *TriviaClient) fallbackBatch(count int) []content.Item {
	items := make([]content.Item, 0, count)
	for i := 0; i < count; i++ {
		q := fallbackQuizzes[i%len(fallbackQuizzes)]
		quiz := q // copy; items are immutable once constructed
		items = append(items, content.Item{
			Category:   c.category,
			Quiz:       &quiz,
			NaturalKey: q.Question,
			ID:         content.FallbackID(c.category),
			Fallback:   true,
		})
	}
	return items
}
