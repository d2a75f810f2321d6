package broadcast

import (
	"context"
	"sync"

	kit "triviacast/internal/transport"
	logx "triviacast/pkg/logx"
)

// Reporter sends fire-and-forget notifications to the operations channel.
// Delivery is purely observational: a failed report is logged and otherwise
// ignored, and nothing ever depends on it succeeding.
type Reporter struct {
	adapter kit.Adapter
	log     logx.Logger

	mu     sync.Mutex
	target kit.ChatTarget
}

func NewReporter(adapter kit.Adapter, target kit.ChatTarget, log logx.Logger) *Reporter {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Reporter{adapter: adapter, target: target, log: log}
}

// SetTarget updates the operations channel (config hot reload).
func (r *Reporter) SetTarget(t kit.ChatTarget) {
	r.mu.Lock()
	r.target = t
	r.mu.Unlock()
}

func (r *Reporter) Report(ctx context.Context, text string) {
	r.mu.Lock()
	target := r.target
	r.mu.Unlock()

	if r.adapter == nil || target.ChatID == 0 {
		return
	}
	_, err := r.adapter.SendText(ctx, target, text, &kit.SendOptions{DisablePreview: true})
	if err != nil {
		r.log.Warn("ops report send failed", logx.Int64("chat_id", target.ChatID), logx.Err(err))
		return
	}
	r.log.Debug("ops report sent", logx.Int64("chat_id", target.ChatID))
}
