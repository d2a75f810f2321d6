// Package history persists the bounded, ordered list of previously-sent
// content identifiers, one record per category.
//
// Drivers:
//   - "file": one JSON array per category, whole-file replace
//   - "sqlite": single database file (modernc.org/sqlite)
package history

import (
	"context"
	"errors"
	"strings"

	"triviacast/internal/content"
	logx "triviacast/pkg/logx"
)

// Store is the per-category history API.
//
// Load never fails: a missing or unreadable record means "no history yet".
// Save truncates to the newest limit entries and replaces the prior record
// atomically from the caller's point of view.
type Store interface {
	Load(ctx context.Context, cat content.Category) []string
	Save(ctx context.Context, cat content.Category, ids []string, limit int) error
	Close() error
}

// Config selects and configures a driver.
type Config struct {
	Driver string // "file" (default) or "sqlite"
	Path   string // file: directory; sqlite: database file
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown history driver: " + driver)
	}
}

// bound keeps the newest limit entries, preserving relative order.
func bound(ids []string, limit int) []string {
	if limit > 0 && len(ids) > limit {
		return ids[len(ids)-limit:]
	}
	return ids
}
