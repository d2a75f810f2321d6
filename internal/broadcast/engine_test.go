package broadcast

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"triviacast/internal/content"
	kit "triviacast/internal/transport"
	logx "triviacast/pkg/logx"
)

type memStore struct {
	data map[content.Category][]string
	fail bool
}

func newMemStore() *memStore {
	return &memStore{data: map[content.Category][]string{}}
}

func (m *memStore) Load(_ context.Context, cat content.Category) []string {
	return append([]string(nil), m.data[cat]...)
}

func (m *memStore) Save(_ context.Context, cat content.Category, ids []string, limit int) error {
	if m.fail {
		return errors.New("disk full")
	}
	if limit > 0 && len(ids) > limit {
		ids = ids[len(ids)-limit:]
	}
	m.data[cat] = append([]string(nil), ids...)
	return nil
}

func (m *memStore) Close() error { return nil }

type sentText struct {
	to   kit.ChatTarget
	text string
}

type fakeAdapter struct {
	texts    []sentText
	polls    []kit.Poll
	failText map[int]bool // index of SendText call -> fail
	textN    int
}

func (f *fakeAdapter) Start(context.Context, chan<- kit.Update) error { return nil }
func (f *fakeAdapter) Stop(context.Context) error                     { return nil }

func (f *fakeAdapter) SendText(_ context.Context, to kit.ChatTarget, text string, _ *kit.SendOptions) (kit.MessageRef, error) {
	idx := f.textN
	f.textN++
	if f.failText[idx] {
		return kit.MessageRef{}, errors.New("send failed")
	}
	f.texts = append(f.texts, sentText{to: to, text: text})
	return kit.MessageRef{ChatID: to.ChatID, MessageID: len(f.texts)}, nil
}

func (f *fakeAdapter) EditText(context.Context, kit.MessageRef, string, *kit.SendOptions) error {
	return nil
}

func (f *fakeAdapter) SendPoll(_ context.Context, to kit.ChatTarget, p kit.Poll) (kit.MessageRef, error) {
	f.polls = append(f.polls, p)
	return kit.MessageRef{ChatID: to.ChatID, MessageID: len(f.polls)}, nil
}

func testEngine(t *testing.T, store *memStore, ad kit.Adapter, cats []Category) *Engine {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	// nil reporter: ops channel not configured in tests that don't assert on it
	return New(loc, store, ad, nil, logx.Nop(), cats)
}

func TestRunCycleSendsAndPersists(t *testing.T) {
	store := newMemStore()
	store.data[content.Fact] = []string{"old1", "old2"}
	ad := &fakeAdapter{}
	f := &scriptedFetcher{items: []content.Item{item("new1")}}

	e := testEngine(t, store, ad, []Category{{
		Name:         content.Fact,
		Channel:      kit.ChatTarget{ChatID: 42},
		Count:        1,
		HistoryLimit: 200,
		RetryBudget:  5,
		Fetcher:      f,
	}})

	if err := e.RunCycle(context.Background(), content.Fact); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if len(ad.texts) != 1 {
		t.Fatalf("expected 1 send, got %d", len(ad.texts))
	}
	if ad.texts[0].to.ChatID != 42 {
		t.Fatalf("sent to wrong chat: %d", ad.texts[0].to.ChatID)
	}

	got := store.data[content.Fact]
	want := []string{"old1", "old2", "new1"}
	if len(got) != len(want) {
		t.Fatalf("expected history %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected history %v, got %v", want, got)
		}
	}
}

func TestRunCycleTruncatesHistoryToLimit(t *testing.T) {
	store := newMemStore()
	var hist []string
	for i := 0; i < 5; i++ {
		hist = append(hist, string(rune('a'+i)))
	}
	store.data[content.Fact] = hist
	ad := &fakeAdapter{}
	f := &scriptedFetcher{items: []content.Item{item("fresh")}}

	e := testEngine(t, store, ad, []Category{{
		Name:         content.Fact,
		Channel:      kit.ChatTarget{ChatID: 1},
		Count:        1,
		HistoryLimit: 3,
		RetryBudget:  5,
		Fetcher:      f,
	}})

	if err := e.RunCycle(context.Background(), content.Fact); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	got := store.data[content.Fact]
	if len(got) != 3 {
		t.Fatalf("expected 3 retained ids, got %d: %v", len(got), got)
	}
	if got[2] != "fresh" {
		t.Fatalf("newest id missing from retained history: %v", got)
	}
}

func TestRunCycleFailedSendNotRecorded(t *testing.T) {
	store := newMemStore()
	ad := &fakeAdapter{failText: map[int]bool{0: true}}
	f := &scriptedFetcher{items: []content.Item{item("fails")}}

	e := testEngine(t, store, ad, []Category{{
		Name:         content.Fact,
		Channel:      kit.ChatTarget{ChatID: 1},
		Count:        1,
		HistoryLimit: 200,
		RetryBudget:  5,
		Fetcher:      f,
	}})

	err := e.RunCycle(context.Background(), content.Fact)
	if err == nil {
		t.Fatalf("expected error from failed dispatch")
	}
	if len(store.data[content.Fact]) != 0 {
		t.Fatalf("failed send must not be recorded: %v", store.data[content.Fact])
	}
}

func TestRunCycleBatchContinuesPastFailure(t *testing.T) {
	store := newMemStore()
	ad := &fakeAdapter{failText: map[int]bool{1: true}}
	f := &scriptedFetcher{items: []content.Item{item("a"), item("b"), item("c")}}

	e := testEngine(t, store, ad, []Category{{
		Name:         content.Fact,
		Channel:      kit.ChatTarget{ChatID: 1},
		Count:        3,
		HistoryLimit: 200,
		RetryBudget:  5,
		Fetcher:      f,
	}})

	err := e.RunCycle(context.Background(), content.Fact)
	if err == nil {
		t.Fatalf("expected cycle error for partial failure")
	}
	got := store.data[content.Fact]
	if len(got) != 2 {
		t.Fatalf("expected 2 recorded ids, got %v", got)
	}
	if got[0] != "a" || got[1] != "c" {
		t.Fatalf("expected [a c], got %v", got)
	}
}

func TestRunCycleQuizItemsSentAsPolls(t *testing.T) {
	store := newMemStore()
	ad := &fakeAdapter{}
	quizItem := content.Item{
		Category: content.TriviaBatch,
		ID:       "q1",
		Quiz: &content.Quiz{
			Question:     "Q?",
			Options:      []string{"1", "2", "3", "4"},
			CorrectIndex: 2,
			Subject:      "General Knowledge",
			Difficulty:   "easy",
		},
	}
	f := &scriptedFetcher{items: []content.Item{quizItem}}

	e := testEngine(t, store, ad, []Category{{
		Name:         content.TriviaBatch,
		Channel:      kit.ChatTarget{ChatID: 7},
		Count:        1,
		HistoryLimit: 300,
		RetryBudget:  3,
		Fetcher:      f,
	}})

	if err := e.RunCycle(context.Background(), content.TriviaBatch); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if len(ad.polls) != 1 {
		t.Fatalf("expected 1 poll, got %d", len(ad.polls))
	}
	p := ad.polls[0]
	if !p.Quiz || p.CorrectIndex != 2 {
		t.Fatalf("unexpected poll: %+v", p)
	}
	if !p.Anonymous {
		t.Fatalf("batch polls must be anonymous")
	}
	if !strings.Contains(p.Explanation, "General Knowledge") {
		t.Fatalf("explanation missing category: %q", p.Explanation)
	}
}

func TestRunCyclePersistFailureSurfaces(t *testing.T) {
	store := newMemStore()
	store.fail = true
	ad := &fakeAdapter{}
	f := &scriptedFetcher{items: []content.Item{item("x")}}

	e := testEngine(t, store, ad, []Category{{
		Name:         content.Fact,
		Channel:      kit.ChatTarget{ChatID: 1},
		Count:        1,
		HistoryLimit: 200,
		RetryBudget:  5,
		Fetcher:      f,
	}})

	err := e.RunCycle(context.Background(), content.Fact)
	if err == nil || !strings.Contains(err.Error(), "persist history") {
		t.Fatalf("expected persist error, got %v", err)
	}
	// The item itself was still delivered.
	if len(ad.texts) != 1 {
		t.Fatalf("expected delivery despite persist failure, got %d sends", len(ad.texts))
	}
}

func TestRunCycleUnknownCategory(t *testing.T) {
	e := testEngine(t, newMemStore(), &fakeAdapter{}, nil)
	if err := e.RunCycle(context.Background(), content.Fact); err == nil {
		t.Fatalf("expected error for unknown category")
	}
}

func TestLoopSurvivesFailedCycle(t *testing.T) {
	store := newMemStore()
	ad := &fakeAdapter{failText: map[int]bool{0: true}}
	f := &scriptedFetcher{items: []content.Item{item("a"), item("b")}}

	cat := Category{
		Name:         content.Fact,
		Channel:      kit.ChatTarget{ChatID: 1},
		Times:        []TimeOfDay{{Hour: 8}, {Hour: 20}},
		Count:        1,
		HistoryLimit: 200,
		RetryBudget:  5,
		Fetcher:      f,
	}
	e := testEngine(t, store, ad, []Category{cat})

	loc := e.loc
	morning := time.Date(2026, 3, 15, 7, 0, 0, 0, loc)
	afterFirst := time.Date(2026, 3, 15, 8, 0, 1, 0, loc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wakes []time.Time
	e.now = func() time.Time {
		if len(wakes) == 0 {
			return morning
		}
		return afterFirst
	}
	e.sleep = func(c context.Context, until time.Time) error {
		wakes = append(wakes, until)
		if len(wakes) == 2 {
			cancel()
			return c.Err()
		}
		return nil
	}

	err := e.loop(ctx, cat)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected loop to stop on cancellation, got %v", err)
	}
	if len(wakes) != 2 {
		t.Fatalf("expected 2 scheduled wakes, got %d", len(wakes))
	}
	// The 08:00 cycle fails to send; the loop must still line up the next
	// trigger of the day.
	want0 := time.Date(2026, 3, 15, 8, 0, 0, 0, loc)
	want1 := time.Date(2026, 3, 15, 20, 0, 0, 0, loc)
	if !wakes[0].Equal(want0) {
		t.Fatalf("first trigger: expected %v, got %v", want0, wakes[0])
	}
	if !wakes[1].Equal(want1) {
		t.Fatalf("trigger after failed cycle: expected %v, got %v", want1, wakes[1])
	}
	if len(store.data[content.Fact]) != 0 {
		t.Fatalf("failed cycle must not persist ids: %v", store.data[content.Fact])
	}
}

func TestTruncateKeepsValidUTF8(t *testing.T) {
	got := truncate(strings.Repeat("ど", 300), 200)
	if !utf8.ValidString(got) {
		t.Fatalf("truncated string is not valid UTF-8: %q", got)
	}
	if n := utf8.RuneCountInString(got); n != 200 {
		t.Fatalf("expected 200 runes, got %d", n)
	}
	if truncate("short", 200) != "short" {
		t.Fatalf("string under the limit changed")
	}
}
