// Package app wires the bot together: config, logging, transport adapter,
// history store, fetchers, broadcast engine, command router, maintenance.
package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"triviacast/internal/broadcast"
	"triviacast/internal/config"
	"triviacast/internal/content"
	"triviacast/internal/fetch"
	"triviacast/internal/history"
	"triviacast/internal/maintenance"
	"triviacast/internal/router"
	rtsup "triviacast/internal/runtime/supervisor"
	kit "triviacast/internal/transport"
	telegram "triviacast/internal/transport/telegram/adapter"
	logx "triviacast/pkg/logx"
)

const (
	defaultTimezone  = "Asia/Kolkata"
	defaultCompactAt = "04:30"
)

// Per-category defaults, applied when the config leaves a field zero.
var categoryDefaults = map[content.Category]broadcast.Category{
	content.Fact: {
		Times:        mustTimes("08:00", "12:00", "16:00", "20:00"),
		Count:        1,
		HistoryLimit: 200,
		RetryBudget:  5,
	},
	content.TriviaSingle: {
		Times:        mustTimes("09:00", "13:00", "17:00", "21:00"),
		Count:        1,
		HistoryLimit: 300,
		RetryBudget:  5,
	},
	content.TriviaBatch: {
		Times:        mustTimes("09:00", "13:00", "17:00", "21:00"),
		Count:        4,
		HistoryLimit: 300,
		RetryBudget:  3,
	},
}

func mustTimes(specs ...string) []broadcast.TimeOfDay {
	ts, err := broadcast.ParseTimes(specs)
	if err != nil {
		panic(err)
	}
	return ts
}

type App struct {
	cfgPath string
	cfgm    *config.Manager

	log  logx.Logger
	logs *logx.Service

	adapter  kit.Adapter
	store    history.Store
	engine   *broadcast.Engine
	reporter *broadcast.Reporter
	router   *router.Router
	maint    *maintenance.Service

	loc *time.Location
	sup *rtsup.Supervisor

	updates chan kit.Update
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	bootLog := logx.NewConsole("INFO").With(logx.String("comp", "telegram"))

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	ad, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, bootLog)
	if err != nil {
		return nil, err
	}

	// Bootstrap with Telegram logging disabled so Apply doesn't warn before
	// the target chat is set.
	baseLogCfg := mapLogConfig(cfg)
	baseLogCfg.Telegram.Enabled = false
	logSvc, log := logx.New(baseLogCfg, ad)
	log = log.With(logx.String("comp", "app"))

	if chatID, ok := parseChatID(cfg.Telegram.GroupLog); ok {
		logSvc.SetTelegramTarget(chatID, cfg.Logging.Telegram.ThreadID)
	}
	logSvc.Apply(mapLogConfig(cfg))

	loc, err := loadTimezone(cfg.Broadcast.Timezone)
	if err != nil {
		return nil, err
	}

	store, err := history.Open(history.Config{
		Driver: cfg.History.Driver,
		Path:   cfg.History.Path,
	}, log.With(logx.String("comp", "history")))
	if err != nil {
		return nil, err
	}

	reporter := broadcast.NewReporter(ad, opsTarget(cfg), log.With(logx.String("comp", "reporter")))

	cats, err := mapCategories(cfg, log)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	eng := broadcast.New(loc, store, ad, reporter, log.With(logx.String("comp", "broadcast")), cats)

	rt := router.New(ad, log.With(logx.String("comp", "commands")), cfg.Telegram.AdminUserIDs)

	var maint *maintenance.Service
	if cfg.Maintenance.Enabled {
		at := cfg.Maintenance.CompactAt
		if strings.TrimSpace(at) == "" {
			at = defaultCompactAt
		}
		var targets []maintenance.Target
		for _, c := range cats {
			targets = append(targets, maintenance.Target{Category: c.Name, Limit: c.HistoryLimit})
		}
		maint = maintenance.New(store, targets, loc, at, log.With(logx.String("comp", "maintenance")))
	}

	a := &App{
		cfgPath:  cfgPath,
		cfgm:     cfgm,
		log:      log,
		logs:     logSvc,
		adapter:  ad,
		store:    store,
		engine:   eng,
		reporter: reporter,
		router:   rt,
		maint:    maint,
		loc:      loc,
		updates:  make(chan kit.Update, 256),
	}
	a.registerCommands()
	return a, nil
}

// Done is closed when the app run context ends (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(c context.Context, cfg *config.Config) error {
		return validate(cfg)
	})

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}

	a.engine.Start(a.sup.Context())

	if a.maint != nil {
		if err := a.maint.Start(); err != nil {
			return err
		}
	}

	a.sup.Go("commands.dispatch", func(c context.Context) error {
		return a.router.DispatchLoop(c, a.updates)
	})

	// Config hot reload: logging, admin list, ops-channel target apply live.
	// Broadcast schedules, history driver, and maintenance need a restart.
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		last := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				a.applyReload(last, newCfg)
				last = newCfg
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("app started")
	return nil
}

func (a *App) applyReload(prev, cfg *config.Config) {
	if chatID, ok := parseChatID(cfg.Telegram.GroupLog); ok {
		a.logs.SetTelegramTarget(chatID, cfg.Logging.Telegram.ThreadID)
		a.reporter.SetTarget(kit.ChatTarget{ChatID: chatID})
	} else {
		a.logs.SetTelegramTarget(0, 0)
		a.reporter.SetTarget(kit.ChatTarget{})
	}
	a.logs.Apply(mapLogConfig(cfg))
	a.router.SetAdmins(cfg.Telegram.AdminUserIDs)

	if prev != nil && adminsChanged(prev.Telegram.AdminUserIDs, cfg.Telegram.AdminUserIDs) {
		a.log.Warn("admin list changed",
			logx.Int("before", len(prev.Telegram.AdminUserIDs)),
			logx.Int("after", len(cfg.Telegram.AdminUserIDs)))
	}
	a.log.Info("config reloaded",
		logx.Int("admins", len(cfg.Telegram.AdminUserIDs)))
	a.log.Debug("broadcast/history/maintenance changes take effect on restart")
}

func adminsChanged(prev, next []int64) bool {
	if len(prev) != len(next) {
		return true
	}
	for i := range prev {
		if prev[i] != next[i] {
			return true
		}
	}
	return false
}

func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping")
	a.sup.Cancel()

	step := func(name string, max time.Duration, fn func(context.Context) error) {
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()
		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()
		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached", logx.String("name", name))
		}
	}

	step("maintenance", time.Second, func(c context.Context) error {
		if a.maint != nil {
			a.maint.Stop(c)
		}
		return nil
	})
	step("broadcast", 3*time.Second, func(c context.Context) error { a.engine.Stop(c); return nil })
	step("adapter", 2*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	step("history", time.Second, func(c context.Context) error { return a.store.Close() })
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })

	_ = a.logs.Close()
	return nil
}

// ---- config mapping ----

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			ThreadID:   cfg.Logging.Telegram.ThreadID,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}

func loadTimezone(tz string) (*time.Location, error) {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("broadcast.timezone: invalid %q: %w", tz, err)
	}
	return loc, nil
}

func parseChatID(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

func opsTarget(cfg *config.Config) kit.ChatTarget {
	if id, ok := parseChatID(cfg.Telegram.GroupLog); ok {
		return kit.ChatTarget{ChatID: id}
	}
	return kit.ChatTarget{}
}

// mapCategories turns the config's category sections into engine categories,
// filling zero fields from categoryDefaults. Disabled categories are skipped.
func mapCategories(cfg *config.Config, log logx.Logger) ([]broadcast.Category, error) {
	type section struct {
		name content.Category
		cc   config.CategoryConfig
	}
	sections := []section{
		{content.Fact, cfg.Broadcast.Facts},
		{content.TriviaSingle, cfg.Broadcast.Trivia},
		{content.TriviaBatch, cfg.Broadcast.Quiz},
	}

	var out []broadcast.Category
	for _, s := range sections {
		if !s.cc.Enabled {
			continue
		}
		def := categoryDefaults[s.name]

		chatID, ok := parseChatID(s.cc.Channel)
		if !ok {
			return nil, fmt.Errorf("broadcast.%s.channel: missing or invalid chat id %q", s.name, s.cc.Channel)
		}

		cat := broadcast.Category{
			Name:         s.name,
			Channel:      kit.ChatTarget{ChatID: chatID},
			Times:        def.Times,
			Count:        def.Count,
			HistoryLimit: def.HistoryLimit,
			RetryBudget:  def.RetryBudget,
		}
		if len(s.cc.Times) > 0 {
			ts, err := broadcast.ParseTimes(s.cc.Times)
			if err != nil {
				return nil, fmt.Errorf("broadcast.%s.times: %w", s.name, err)
			}
			cat.Times = ts
		}
		if s.cc.Count > 0 {
			cat.Count = s.cc.Count
		}
		if s.cc.HistoryLimit > 0 {
			cat.HistoryLimit = s.cc.HistoryLimit
		}
		if s.cc.RetryBudget > 0 {
			cat.RetryBudget = s.cc.RetryBudget
		}

		flog := log.With(logx.String("comp", "fetch."+string(s.name)))
		switch s.name {
		case content.Fact:
			timeout, err := config.ParseDurationOrDefault(
				fmt.Sprintf("broadcast.%s.fetch_timeout", s.name), s.cc.FetchTimeout, 10*time.Second)
			if err != nil {
				return nil, err
			}
			cat.Fetcher = fetch.NewFactsClient(s.cc.APIURL, timeout, flog)
		default:
			timeout, err := config.ParseDurationOrDefault(
				fmt.Sprintf("broadcast.%s.fetch_timeout", s.name), s.cc.FetchTimeout, 15*time.Second)
			if err != nil {
				return nil, err
			}
			cat.Fetcher = fetch.NewTriviaClient(s.name, s.cc.APIURL, timeout, flog)
		}

		out = append(out, cat)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no broadcast categories enabled")
	}
	return out, nil
}

// validate rejects bad configs during hot reload before they are published.
func validate(cfg *config.Config) error {
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		return fmt.Errorf("telegram.token is required")
	}
	if _, err := config.ParseDurationField("telegram.poll_timeout", cfg.Telegram.PollTimeout); err != nil {
		return err
	}
	if _, err := loadTimezone(cfg.Broadcast.Timezone); err != nil {
		return err
	}
	for name, cc := range map[string]config.CategoryConfig{
		"facts": cfg.Broadcast.Facts, "trivia": cfg.Broadcast.Trivia, "quiz": cfg.Broadcast.Quiz,
	} {
		if !cc.Enabled {
			continue
		}
		if _, ok := parseChatID(cc.Channel); !ok {
			return fmt.Errorf("broadcast.%s.channel: missing or invalid chat id", name)
		}
		if _, err := broadcast.ParseTimes(cc.Times); err != nil {
			return fmt.Errorf("broadcast.%s.times: %w", name, err)
		}
		if cc.FetchTimeout != "" {
			if _, err := config.ParseDurationField("broadcast."+name+".fetch_timeout", cc.FetchTimeout); err != nil {
				return err
			}
		}
	}
	if cfg.Maintenance.Enabled && strings.TrimSpace(cfg.Maintenance.CompactAt) != "" {
		if _, err := broadcast.ParseTimeOfDay(cfg.Maintenance.CompactAt); err != nil {
			return fmt.Errorf("maintenance.compact_at: %w", err)
		}
	}
	return nil
}
