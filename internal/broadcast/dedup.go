package broadcast

import (
	"context"

	"triviacast/internal/content"
	"triviacast/internal/fetch"
)

// retrieveUnique fetches count items whose identifiers are not in the loaded
// history, re-fetching a colliding candidate up to budget times. Budget
// exhaustion is a degraded success: the last candidate is accepted and a
// duplicate may be delivered.
//
// Identifiers resolved within this call are reserved immediately, so one
// batch never yields two items with the same identifier even when history
// missed it. If the budget runs out while a candidate still collides with
// the reserved set, its identifier is replaced with a fallback one: content
// duplication is acceptable, identifier duplication inside a batch is not.
//
// No dispatch and no persistence happen here; both belong to the caller.
func retrieveUnique(ctx context.Context, f fetch.Fetcher, history []string, count, budget int) []content.Item {
	seen := make(map[string]struct{}, len(history)+count)
	for _, id := range history {
		seen[id] = struct{}{}
	}
	collides := func(id string) bool {
		_, ok := seen[id]
		return ok
	}

	reserved := make(map[string]struct{}, count)

	items := f.Fetch(ctx, count)
	out := make([]content.Item, 0, count)
	for _, cand := range items {
		for retry := 0; collides(cand.ID) && retry < budget; retry++ {
			repl := f.Fetch(ctx, 1)
			if len(repl) == 0 {
				break
			}
			cand = repl[0]
		}
		if _, dup := reserved[cand.ID]; dup {
			cand.ID = content.FallbackID(cand.Category)
		}
		reserved[cand.ID] = struct{}{}
		seen[cand.ID] = struct{}{}
		out = append(out, cand)
	}
	return out
}
