package config

type Config struct {
	Telegram    TelegramConfig    `json:"telegram"`
	Logging     LoggingConfig     `json:"logging"`
	History     HistoryConfig     `json:"history,omitempty"`
	Broadcast   BroadcastConfig   `json:"broadcast"`
	Maintenance MaintenanceConfig `json:"maintenance,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// AdminUserIDs may trigger on-demand broadcasts.
	AdminUserIDs []int64 `json:"admin_user_ids"`
	// GroupLog is the operations channel chat id (cycle reports, warnings).
	GroupLog string `json:"group_log"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ThreadID   int    `json:"thread_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// HistoryConfig controls the sent-identifier persistence layer.
//
// Driver values:
//   - "file" (default): one JSON record per category under Path (a directory)
//   - "sqlite": single database file at Path
type HistoryConfig struct {
	Driver string `json:"driver,omitempty"`
	Path   string `json:"path,omitempty"`
}

// BroadcastConfig controls the three broadcast categories.
//
// All times are "HH:MM" wall-clock values in Timezone.
type BroadcastConfig struct {
	Timezone string `json:"timezone,omitempty"` // IANA TZ, default "Asia/Kolkata"

	Facts  CategoryConfig `json:"facts"`
	Trivia CategoryConfig `json:"trivia"`
	Quiz   CategoryConfig `json:"quiz"`
}

// CategoryConfig configures one category. Zero values fall back to the
// category defaults (see internal/app).
type CategoryConfig struct {
	Enabled bool `json:"enabled"`
	// Channel is the target chat id for this category's content.
	Channel string `json:"channel"`
	// Times is the fixed daily trigger set; empty means on-demand only.
	Times []string `json:"times,omitempty"`
	// Count is the number of items per cycle (quiz batches send several).
	Count int `json:"count,omitempty"`
	// HistoryLimit bounds the retained sent-identifier list.
	HistoryLimit int `json:"history_limit,omitempty"`
	// RetryBudget bounds re-fetch attempts when an identifier collides.
	RetryBudget int `json:"retry_budget,omitempty"`
	// FetchTimeout is a Go duration string for the upstream HTTP call.
	FetchTimeout string `json:"fetch_timeout,omitempty"`
	// APIURL overrides the upstream endpoint (tests, mirrors).
	APIURL string `json:"api_url,omitempty"`
}

// MaintenanceConfig controls daily housekeeping (history compaction).
type MaintenanceConfig struct {
	Enabled bool `json:"enabled"`
	// CompactAt is "HH:MM" in the broadcast timezone; default "04:30".
	CompactAt string `json:"compact_at,omitempty"`
}
