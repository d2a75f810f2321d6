package history

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"triviacast/internal/content"
	logx "triviacast/pkg/logx"
)

// fileStore keeps one JSON array of identifiers per category, e.g.
// <dir>/sent_fact.json. Writes go through a temp file + rename so a crashed
// save never leaves a truncated record behind.
type fileStore struct {
	dir string
	log logx.Logger

	mu sync.Mutex
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	dir := cfg.Path
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	return &fileStore{dir: dir, log: log}, nil
}

func (s *fileStore) path(cat content.Category) string {
	return filepath.Join(s.dir, "sent_"+string(cat)+".json")
}

func (s *fileStore) Load(ctx context.Context, cat content.Category) []string {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(cat))
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("history read failed; starting empty", logx.String("category", string(cat)), logx.Err(err))
		}
		return nil
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		s.log.Warn("history record corrupt; starting empty", logx.String("category", string(cat)), logx.Err(err))
		return nil
	}
	return ids
}

func (s *fileStore) Save(ctx context.Context, cat content.Category, ids []string, limit int) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	ids = bound(ids, limit)
	data, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}

	path := s.path(cat)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write history file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace history file: %w", err)
	}
	return nil
}

func (s *fileStore) Close() error { return nil }
