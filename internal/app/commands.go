package app

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"triviacast/internal/content"
	"triviacast/internal/router"
	kit "triviacast/internal/transport"
	logx "triviacast/pkg/logx"
)

func (a *App) registerCommands() {
	a.router.Register(
		router.Command{
			Name:        "fact",
			Description: "send a fact to the facts channel now",
			Access:      router.AccessAdminOnly,
			Timeout:     3 * time.Minute,
			Handle:      a.triggerHandler(content.Fact, "fact"),
		},
		router.Command{
			Name:        "trivia",
			Description: "send a trivia poll to the trivia channel now",
			Access:      router.AccessAdminOnly,
			Timeout:     3 * time.Minute,
			Handle:      a.triggerHandler(content.TriviaSingle, "trivia poll"),
		},
		router.Command{
			Name:        "quiz",
			Description: "send a quiz batch to the quiz channel now",
			Access:      router.AccessAdminOnly,
			Timeout:     5 * time.Minute,
			Handle:      a.triggerHandler(content.TriviaBatch, "quiz batch"),
		},
		router.Command{
			Name:        "status",
			Description: "show next scheduled broadcasts",
			Handle:      a.handleStatus,
		},
		router.Command{
			Name:        "help",
			Aliases:     []string{"start"},
			Description: "show available commands",
			Handle:      a.handleHelp,
		},
	)
}

// triggerHandler runs one on-demand broadcast cycle with the usual
// acknowledge-then-edit flow: a pending message goes out immediately, then
// gets edited to the outcome.
func (a *App) triggerHandler(cat content.Category, label string) router.HandlerFunc {
	return func(ctx context.Context, req *router.Request) error {
		ref, err := req.Adapter.SendText(ctx, req.Chat, fmt.Sprintf("⏳ Sending %s...", label), nil)
		if err != nil {
			return fmt.Errorf("acknowledge: %w", err)
		}

		if err := a.engine.RunCycle(ctx, cat); err != nil {
			req.Log.Warn("on-demand cycle failed", logx.String("category", string(cat)), logx.Err(err))
			editErr := req.Adapter.EditText(ctx, ref, fmt.Sprintf("❌ Failed to send %s: %s", label, truncateErr(err)), nil)
			if editErr != nil {
				req.Log.Warn("result edit failed", logx.Err(editErr))
			}
			return nil // reported to the operator already; don't double-log
		}

		if err := req.Adapter.EditText(ctx, ref, fmt.Sprintf("✅ %s sent.", capitalize(label)), nil); err != nil {
			req.Log.Warn("result edit failed", logx.Err(err))
		}
		return nil
	}
}

func (a *App) handleStatus(ctx context.Context, req *router.Request) error {
	var b strings.Builder
	b.WriteString("📅 Next scheduled broadcasts:\n")
	for _, name := range a.engine.Categories() {
		next := a.engine.NextRun(name)
		if next.IsZero() {
			fmt.Fprintf(&b, "• %s: on-demand only\n", name)
			continue
		}
		fmt.Fprintf(&b, "• %s: %s\n", name, next.Format("Mon 15:04 MST"))
	}
	_, err := req.Adapter.SendText(ctx, req.Chat, b.String(), &kit.SendOptions{DisablePreview: true})
	return err
}

func (a *App) handleHelp(ctx context.Context, req *router.Request) error {
	text := strings.Join([]string{
		"Commands:",
		"/fact - send a fact now (admin)",
		"/trivia - send a trivia poll now (admin)",
		"/quiz - send a quiz batch now (admin)",
		"/status - next scheduled broadcasts",
		"/help - this message",
	}, "\n")
	_, err := req.Adapter.SendText(ctx, req.Chat, text, &kit.SendOptions{DisablePreview: true})
	return err
}

// truncateErr caps the error text at 200 runes, never mid-sequence, so the
// edited message stays valid UTF-8.
func truncateErr(err error) string {
	s := err.Error()
	if utf8.RuneCountInString(s) > 200 {
		s = string([]rune(s)[:200])
	}
	return s
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
