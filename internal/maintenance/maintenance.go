// Package maintenance runs periodic housekeeping jobs. Currently that is a
// daily compaction of the sent-identifier history: each category is loaded
// and rewritten so on-disk state never grows past its retention limit.
package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"triviacast/internal/content"
	"triviacast/internal/history"
	logx "triviacast/pkg/logx"
)

// Target names one history category and the number of newest identifiers to
// keep for it.
type Target struct {
	Category content.Category
	Limit    int
}

type Service struct {
	store   history.Store
	targets []Target
	loc     *time.Location
	atHHMM  string
	log     logx.Logger

	c *cron.Cron
}

func New(store history.Store, targets []Target, loc *time.Location, atHHMM string, log logx.Logger) *Service {
	if loc == nil {
		loc = time.Local
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		store:   store,
		targets: append([]Target(nil), targets...),
		loc:     loc,
		atHHMM:  atHHMM,
		log:     log,
	}
}

func (s *Service) Start() error {
	var hh, mm int
	if _, err := fmt.Sscanf(s.atHHMM, "%d:%d", &hh, &mm); err != nil {
		return fmt.Errorf("parse compaction time %q: %w", s.atHHMM, err)
	}
	if hh < 0 || hh > 23 || mm < 0 || mm > 59 {
		return fmt.Errorf("compaction time %q out of range", s.atHHMM)
	}

	s.c = cron.New(cron.WithLocation(s.loc))
	spec := fmt.Sprintf("%d %d * * *", mm, hh)
	if _, err := s.c.AddFunc(spec, s.compact); err != nil {
		return fmt.Errorf("register compaction job: %w", err)
	}
	s.c.Start()
	s.log.Info("history compaction scheduled", logx.String("at", s.atHHMM), logx.String("tz", s.loc.String()))
	return nil
}

func (s *Service) Stop(ctx context.Context) {
	if s.c == nil {
		return
	}
	done := s.c.Stop().Done()
	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn("compaction job still running at shutdown")
	}
}

func (s *Service) compact() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, t := range s.targets {
		ids := s.store.Load(ctx, t.Category)
		if len(ids) <= t.Limit {
			continue
		}
		if err := s.store.Save(ctx, t.Category, ids, t.Limit); err != nil {
			s.log.Error("compaction save failed", logx.String("category", string(t.Category)), logx.Err(err))
			continue
		}
		s.log.Info("history compacted",
			logx.String("category", string(t.Category)),
			logx.Int("before", len(ids)),
			logx.Int("after", t.Limit))
	}
}
