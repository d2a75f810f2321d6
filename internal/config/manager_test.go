package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const validYAML = `
telegram:
  token: "123:abc"
  admin_user_ids: [1001, 1002]
  group_log: "-100200300"
  poll_timeout: "10s"
logging:
  level: "info"
  console: true
broadcast:
  timezone: "Asia/Kolkata"
  facts:
    enabled: true
    channel: "-100111222"
    times: ["08:00", "12:00"]
  trivia:
    enabled: false
    channel: ""
  quiz:
    enabled: true
    channel: "-100333444"
    count: 4
    retry_budget: 3
`

func TestManagerLoadYAML(t *testing.T) {
	m := NewManager(writeConfig(t, validYAML))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" {
		t.Fatalf("token not parsed: %q", cfg.Telegram.Token)
	}
	if len(cfg.Telegram.AdminUserIDs) != 2 || cfg.Telegram.AdminUserIDs[0] != 1001 {
		t.Fatalf("admin ids not parsed: %v", cfg.Telegram.AdminUserIDs)
	}
	if !cfg.Broadcast.Facts.Enabled || cfg.Broadcast.Facts.Channel != "-100111222" {
		t.Fatalf("facts section not parsed: %+v", cfg.Broadcast.Facts)
	}
	if cfg.Broadcast.Quiz.Count != 4 || cfg.Broadcast.Quiz.RetryBudget != 3 {
		t.Fatalf("quiz section not parsed: %+v", cfg.Broadcast.Quiz)
	}
	if cfg.Broadcast.Trivia.Enabled {
		t.Fatalf("trivia should be disabled")
	}
}

func TestManagerLoadJSON(t *testing.T) {
	body := `{"telegram":{"token":"t"},"logging":{"level":"debug"},"broadcast":{"facts":{"enabled":true,"channel":"-1"}}}`
	m := NewManager(writeConfig(t, body))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("load json: %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("level not parsed: %q", cfg.Logging.Level)
	}
}

func TestManagerRejectsUnknownFields(t *testing.T) {
	body := validYAML + "\nbanana: true\n"
	m := NewManager(writeConfig(t, body))
	if _, err := m.Load(); err == nil {
		t.Fatalf("expected error for unknown top-level field")
	}
}

func TestManagerGetAfterLoad(t *testing.T) {
	m := NewManager(writeConfig(t, validYAML))
	if m.Get() != nil {
		t.Fatalf("expected nil config before load")
	}
	if _, err := m.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	if m.Get() == nil {
		t.Fatalf("expected cached config after load")
	}
}

func TestParseDurationFieldUnsetIsNotAnError(t *testing.T) {
	d, err := ParseDurationField("x", "   ")
	if err != nil || d != 0 {
		t.Fatalf("unset field should yield zero: %v %v", d, err)
	}
	if _, err := ParseDurationField("x", "-3s"); err == nil {
		t.Fatalf("expected error for negative duration")
	}
}

func TestParseDurationOrDefault(t *testing.T) {
	d, err := ParseDurationOrDefault("x", "", 5)
	if err != nil || d != 5 {
		t.Fatalf("empty should default: %v %v", d, err)
	}
	if _, err := ParseDurationOrDefault("x", "nonsense", 5); err == nil {
		t.Fatalf("expected error for invalid duration")
	}
	d, err = ParseDurationOrDefault("x", "30s", 5)
	if err != nil || d.Seconds() != 30 {
		t.Fatalf("expected 30s, got %v %v", d, err)
	}
}
