package broadcast

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// TimeOfDay is a fixed daily wall-clock trigger time.
type TimeOfDay struct {
	Hour   int
	Minute int
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// ParseTimeOfDay parses "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return TimeOfDay{}, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return TimeOfDay{}, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return TimeOfDay{}, fmt.Errorf("invalid minute in %q", s)
	}
	return TimeOfDay{Hour: h, Minute: m}, nil
}

// ParseTimes parses a set of "HH:MM" strings.
func ParseTimes(specs []string) ([]TimeOfDay, error) {
	times := make([]TimeOfDay, 0, len(specs))
	for _, s := range specs {
		t, err := ParseTimeOfDay(s)
		if err != nil {
			return nil, err
		}
		times = append(times, t)
	}
	return times, nil
}

// NextTrigger returns the earliest of the fixed daily times strictly after
// now (in now's location); if none remain today, the earliest fixed time
// tomorrow. Pure function of its inputs: every loop iteration recomputes
// from wall-clock "now", so there is no accumulated timer drift.
func NextTrigger(now time.Time, times []TimeOfDay) time.Time {
	if len(times) == 0 {
		return now.AddDate(0, 0, 1)
	}
	at := func(day time.Time, t TimeOfDay) time.Time {
		return time.Date(day.Year(), day.Month(), day.Day(), t.Hour, t.Minute, 0, 0, day.Location())
	}

	sorted := append([]TimeOfDay(nil), times...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Hour != sorted[j].Hour {
			return sorted[i].Hour < sorted[j].Hour
		}
		return sorted[i].Minute < sorted[j].Minute
	})

	for _, t := range sorted {
		if trig := at(now, t); trig.After(now) {
			return trig
		}
	}
	return at(now.AddDate(0, 0, 1), sorted[0])
}
