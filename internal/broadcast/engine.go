// Package broadcast drives the duplicate-avoidance broadcast cycles: it
// computes daily trigger times per category, retrieves not-yet-sent content,
// dispatches it, and records used identifiers in the history store.
package broadcast

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"triviacast/internal/content"
	"triviacast/internal/fetch"
	"triviacast/internal/history"
	rtsup "triviacast/internal/runtime/supervisor"
	kit "triviacast/internal/transport"
	logx "triviacast/pkg/logx"
)

// Category is the runtime configuration of one broadcast category.
type Category struct {
	Name         content.Category
	Channel      kit.ChatTarget
	Times        []TimeOfDay
	Count        int // items per cycle
	HistoryLimit int
	RetryBudget  int
	Fetcher      fetch.Fetcher
}

// Engine runs one scheduler loop per category and serves on-demand triggers.
//
// Concurrency note: a scheduled cycle and an on-demand trigger for the same
// category may overlap. Both load history before either saves, so the later
// save can drop the earlier cycle's identifier from durable history. This is
// a known, accepted window; both items were still dispatched.
type Engine struct {
	loc      *time.Location
	store    history.Store
	adapter  kit.Adapter
	reporter *Reporter
	log      logx.Logger

	// limiter paces polls within one batch so a burst of sends doesn't trip
	// platform flood control.
	limiter *rate.Limiter

	cats  map[content.Category]Category
	order []content.Category

	// now and sleep are swapped out in tests to drive the scheduler loop
	// without real clock waits.
	now   func() time.Time
	sleep func(ctx context.Context, until time.Time) error

	mu  sync.Mutex
	sup *rtsup.Supervisor
}

func New(loc *time.Location, store history.Store, adapter kit.Adapter, reporter *Reporter, log logx.Logger, cats []Category) *Engine {
	if loc == nil {
		loc = time.Local
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	e := &Engine{
		loc:      loc,
		store:    store,
		adapter:  adapter,
		reporter: reporter,
		log:      log,
		limiter:  rate.NewLimiter(rate.Every(time.Second), 1),
		cats:     make(map[content.Category]Category, len(cats)),
		now:      time.Now,
		sleep:    sleepUntil,
	}
	for _, c := range cats {
		if c.Count <= 0 {
			c.Count = 1
		}
		e.cats[c.Name] = c
		e.order = append(e.order, c.Name)
	}
	return e
}

// Categories returns the configured category names in registration order.
func (e *Engine) Categories() []content.Category {
	return append([]content.Category(nil), e.order...)
}

// NextRun returns the next scheduled trigger for a category (zero time if
// the category is unknown or has no schedule).
func (e *Engine) NextRun(name content.Category) time.Time {
	cat, ok := e.cats[name]
	if !ok || len(cat.Times) == 0 {
		return time.Time{}
	}
	return NextTrigger(e.now().In(e.loc), cat.Times)
}

// Start launches one scheduler loop per category with a non-empty time set.
// Idempotent; loops run until the context is canceled.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sup != nil {
		return
	}
	e.sup = rtsup.New(ctx, rtsup.WithLogger(e.log))

	for _, name := range e.order {
		cat := e.cats[name]
		if len(cat.Times) == 0 {
			e.log.Info("category has no schedule; on-demand only", logx.String("category", string(name)))
			continue
		}
		// GoRestart keeps the loop alive across panics; ordinary cycle
		// failures are contained inside the loop itself.
		e.sup.GoRestart("broadcast."+string(name), time.Second, time.Minute, func(ctx context.Context) error {
			return e.loop(ctx, cat)
		})
	}
	e.log.Info("broadcast engine started", logx.Int("categories", len(e.order)), logx.String("tz", e.loc.String()))
}

func (e *Engine) Stop(ctx context.Context) {
	e.mu.Lock()
	sup := e.sup
	e.sup = nil
	e.mu.Unlock()
	if sup == nil {
		return
	}
	sup.Cancel()
	_ = sup.Wait(ctx)
	e.log.Info("broadcast engine stopped")
}

func (e *Engine) loop(ctx context.Context, cat Category) error {
	for {
		next := NextTrigger(e.now().In(e.loc), cat.Times)
		e.log.Info("next broadcast scheduled",
			logx.String("category", string(cat.Name)),
			logx.Time("at", next))

		if err := e.sleep(ctx, next); err != nil {
			return err
		}

		// A failed cycle is logged and reported; the loop always comes back
		// to compute the following trigger.
		if err := e.RunCycle(ctx, cat.Name); err != nil {
			e.log.Error("scheduled broadcast cycle failed",
				logx.String("category", string(cat.Name)), logx.Err(err))
		}
	}
}

func sleepUntil(ctx context.Context, until time.Time) error {
	timer := time.NewTimer(time.Until(until))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RunCycle executes one full retrieve → dispatch → persist cycle for a
// category. Used by both the scheduler loops and on-demand triggers.
func (e *Engine) RunCycle(ctx context.Context, name content.Category) error {
	cat, ok := e.cats[name]
	if !ok {
		return fmt.Errorf("unknown category %q", name)
	}

	hist := e.store.Load(ctx, name)
	items := retrieveUnique(ctx, cat.Fetcher, hist, cat.Count, cat.RetryBudget)

	var sentIDs []string
	var firstErr error
	for i, item := range items {
		if i > 0 {
			if err := e.limiter.Wait(ctx); err != nil {
				if firstErr == nil {
					firstErr = err
				}
				break
			}
		}
		if err := e.dispatch(ctx, cat.Channel, item); err != nil {
			e.log.Warn("dispatch failed",
				logx.String("category", string(name)),
				logx.String("id", shortID(item.ID)),
				logx.Err(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		sentIDs = append(sentIDs, item.ID)
	}

	if len(sentIDs) > 0 {
		hist = append(hist, sentIDs...)
		if err := e.store.Save(ctx, name, hist, cat.HistoryLimit); err != nil {
			// Dispatched content is not rolled back; a duplicate may resend
			// next cycle if this save never lands.
			e.log.Error("history persist failed",
				logx.String("category", string(name)), logx.Err(err))
			if firstErr == nil {
				firstErr = fmt.Errorf("persist history: %w", err)
			}
		}
	}

	e.report(ctx, cat, sentIDs, firstErr)
	return firstErr
}

func (e *Engine) dispatch(ctx context.Context, to kit.ChatTarget, item content.Item) error {
	if item.Quiz != nil {
		_, err := e.adapter.SendPoll(ctx, to, pollFor(item))
		return err
	}
	_, err := e.adapter.SendText(ctx, to, item.Text, &kit.SendOptions{
		ParseMode:      "Markdown",
		DisablePreview: true,
	})
	return err
}

func pollFor(item content.Item) kit.Poll {
	q := item.Quiz
	p := kit.Poll{
		Question:     q.Question,
		Options:      q.Options,
		Quiz:         true,
		CorrectIndex: q.CorrectIndex,
	}
	switch item.Category {
	case content.TriviaBatch:
		p.Anonymous = true
		p.Explanation = truncate(fmt.Sprintf("Category: %s\nDifficulty: %s", q.Subject, q.Difficulty), 200)
	default:
		p.Anonymous = false
		p.Explanation = "Check pinned message for answers!"
	}
	return p
}

func (e *Engine) report(ctx context.Context, cat Category, sentIDs []string, err error) {
	if e.reporter == nil {
		return
	}
	stamp := e.now().In(e.loc).Format("15:04 MST")

	if err != nil {
		e.reporter.Report(ctx, fmt.Sprintf("❌ Broadcast failed (%s)\nError: %s", cat.Name, truncate(err.Error(), 500)))
		return
	}

	switch {
	case cat.Name == content.Fact:
		e.reporter.Report(ctx, fmt.Sprintf("📖 Fact sent at %s\nID: %s", stamp, shortID(last(sentIDs))))
	case len(sentIDs) > 1:
		e.reporter.Report(ctx, fmt.Sprintf("✅ %d Trivia Polls Sent\n🕒 %s\n🆔 IDs: %s",
			len(sentIDs), stamp, idSample(sentIDs, 3)))
	default:
		e.reporter.Report(ctx, fmt.Sprintf("📊 Poll sent at %s\nID: %s", stamp, shortID(last(sentIDs))))
	}
}

func last(ids []string) string {
	if len(ids) == 0 {
		return ""
	}
	return ids[len(ids)-1]
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

func idSample(ids []string, n int) string {
	if len(ids) < n {
		n = len(ids)
	}
	short := make([]string, 0, n)
	for _, id := range ids[:n] {
		if len(id) > 6 {
			id = id[:6]
		}
		short = append(short, id)
	}
	s := strings.Join(short, ", ")
	if len(ids) > n {
		s += "..."
	}
	return s
}

// truncate caps s at maxN runes so a cut never splits a multi-byte
// sequence. Telegram rejects text containing invalid UTF-8.
func truncate(s string, maxN int) string {
	if utf8.RuneCountInString(s) <= maxN {
		return s
	}
	return string([]rune(s)[:maxN])
}
