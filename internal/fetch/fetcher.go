// Package fetch retrieves content from the public third-party sources and
// normalizes it into content items ready for dispatch.
//
// Fetchers never fail: any upstream problem (network error, timeout,
// malformed response, missing fields, empty result set) degrades to static
// placeholder items so the broadcast cadence never stalls on an outage.
// Placeholder items carry fallback identifiers, which never match history.
package fetch

import (
	"context"
	"html"
	"net/url"
	"unicode/utf8"

	"triviacast/internal/content"
)

// Fetcher produces exactly count normalized items per call.
type Fetcher interface {
	Fetch(ctx context.Context, count int) []content.Item
}

// decodeField reverses the url3986 percent-encoding used by the trivia API
// and unescapes any residual HTML entities.
func decodeField(s string) string {
	if d, err := url.QueryUnescape(s); err == nil {
		s = d
	}
	return html.UnescapeString(s)
}

// truncate caps s at maxN runes. Cutting at a byte offset could land in
// the middle of a multi-byte sequence, and Telegram rejects payloads
// containing broken UTF-8.
func truncate(s string, maxN int) string {
	if utf8.RuneCountInString(s) <= maxN {
		return s
	}
	return string([]rune(s)[:maxN])
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	if r[0] >= 'a' && r[0] <= 'z' {
		r[0] = r[0] - 'a' + 'A'
	}
	return string(r)
}
