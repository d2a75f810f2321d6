package maintenance

import (
	"context"
	"fmt"
	"testing"
	"time"

	"triviacast/internal/content"
	logx "triviacast/pkg/logx"
)

type fakeStore struct {
	data  map[content.Category][]string
	saves int
}

func (f *fakeStore) Load(_ context.Context, cat content.Category) []string {
	return append([]string(nil), f.data[cat]...)
}

func (f *fakeStore) Save(_ context.Context, cat content.Category, ids []string, limit int) error {
	f.saves++
	if limit > 0 && len(ids) > limit {
		ids = ids[len(ids)-limit:]
	}
	f.data[cat] = append([]string(nil), ids...)
	return nil
}

func (f *fakeStore) Close() error { return nil }

func TestCompactTruncatesOversizedHistories(t *testing.T) {
	st := &fakeStore{data: map[content.Category][]string{}}
	for i := 0; i < 10; i++ {
		st.data[content.Fact] = append(st.data[content.Fact], fmt.Sprintf("f%02d", i))
	}
	st.data[content.TriviaSingle] = []string{"t1", "t2"}

	s := New(st, []Target{
		{Category: content.Fact, Limit: 4},
		{Category: content.TriviaSingle, Limit: 300},
	}, time.UTC, "04:30", logx.Nop())

	s.compact()

	got := st.data[content.Fact]
	if len(got) != 4 {
		t.Fatalf("expected 4 retained facts ids, got %v", got)
	}
	if got[0] != "f06" || got[3] != "f09" {
		t.Fatalf("expected newest ids retained, got %v", got)
	}
	// Within-limit category must be left alone.
	if st.saves != 1 {
		t.Fatalf("expected exactly one save, got %d", st.saves)
	}
}

func TestStartRejectsBadCompactionTime(t *testing.T) {
	st := &fakeStore{data: map[content.Category][]string{}}
	for _, bad := range []string{"nope", "25:00", "12:75"} {
		s := New(st, nil, time.UTC, bad, logx.Nop())
		if err := s.Start(); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestStartSchedulesAndStops(t *testing.T) {
	st := &fakeStore{data: map[content.Category][]string{}}
	s := New(st, nil, time.UTC, "04:30", logx.Nop())
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}
