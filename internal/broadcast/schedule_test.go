package broadcast

import (
	"testing"
	"time"
)

func mustLoc(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Fatalf("load location %s: %v", name, err)
	}
	return loc
}

func TestNextTriggerPicksNextTimeToday(t *testing.T) {
	loc := mustLoc(t, "Asia/Kolkata")
	times, err := ParseTimes([]string{"08:00", "12:00", "16:00", "20:00"})
	if err != nil {
		t.Fatalf("parse times: %v", err)
	}

	now := time.Date(2024, 3, 15, 8, 30, 0, 0, loc)
	next := NextTrigger(now, times)
	want := time.Date(2024, 3, 15, 12, 0, 0, 0, loc)
	if !next.Equal(want) {
		t.Fatalf("expected %v, got %v", want, next)
	}
}

func TestNextTriggerWrapsToTomorrow(t *testing.T) {
	loc := mustLoc(t, "Asia/Kolkata")
	times, err := ParseTimes([]string{"08:00", "12:00", "16:00", "20:00"})
	if err != nil {
		t.Fatalf("parse times: %v", err)
	}

	now := time.Date(2024, 3, 15, 20, 30, 0, 0, loc)
	next := NextTrigger(now, times)
	want := time.Date(2024, 3, 16, 8, 0, 0, 0, loc)
	if !next.Equal(want) {
		t.Fatalf("expected %v, got %v", want, next)
	}
}

func TestNextTriggerExactBoundaryIsTomorrowSlot(t *testing.T) {
	loc := mustLoc(t, "Asia/Kolkata")
	times := []TimeOfDay{{Hour: 20, Minute: 0}}

	// Exactly at the trigger time: not strictly after, so the next trigger
	// is tomorrow's slot.
	now := time.Date(2024, 3, 15, 20, 0, 0, 0, loc)
	next := NextTrigger(now, times)
	want := time.Date(2024, 3, 16, 20, 0, 0, 0, loc)
	if !next.Equal(want) {
		t.Fatalf("expected %v, got %v", want, next)
	}
}

func TestNextTriggerUnsortedInput(t *testing.T) {
	loc := mustLoc(t, "UTC")
	times, err := ParseTimes([]string{"20:00", "08:00", "16:00", "12:00"})
	if err != nil {
		t.Fatalf("parse times: %v", err)
	}

	now := time.Date(2024, 3, 15, 13, 45, 0, 0, loc)
	next := NextTrigger(now, times)
	want := time.Date(2024, 3, 15, 16, 0, 0, 0, loc)
	if !next.Equal(want) {
		t.Fatalf("expected %v, got %v", want, next)
	}
	// Input must not be reordered.
	if times[0].Hour != 20 {
		t.Fatalf("input slice was mutated: %+v", times)
	}
}

func TestParseTimeOfDayRejectsBadInput(t *testing.T) {
	for _, bad := range []string{"", "25:00", "12:60", "noon", "12", "12:3x"} {
		if _, err := ParseTimeOfDay(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
	got, err := ParseTimeOfDay(" 09:05 ")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.Hour != 9 || got.Minute != 5 {
		t.Fatalf("unexpected result: %+v", got)
	}
}
