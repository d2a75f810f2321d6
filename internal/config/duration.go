package config

import (
	"fmt"
	"strings"
	"time"
)

// ParseDurationField parses an optional duration field. An empty or
// whitespace-only value means "not set" and yields (0, nil) rather than an
// error, so validators can accept absent fields and let callers pick a
// default. Negative durations are rejected; path names the field in errors.
func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

// ParseDurationOrDefault resolves an optional duration field to def when it
// is unset or zero. Invalid values still fail.
func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return def, nil
	}
	return d, nil
}
