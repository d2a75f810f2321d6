// Package router dispatches slash commands from incoming chat updates to
// registered handlers. Admin-only commands are gated against the configured
// admin user list, which can be swapped at runtime on config reload.
package router

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	kit "triviacast/internal/transport"
	logx "triviacast/pkg/logx"
)

type Access int

const (
	AccessEveryone Access = iota
	AccessAdminOnly
)

const defaultHandlerTimeout = 2 * time.Minute

type HandlerFunc func(ctx context.Context, req *Request) error

type Command struct {
	Name        string // without the leading slash
	Aliases     []string
	Description string
	Access      Access
	Timeout     time.Duration // optional override of the default
	Handle      HandlerFunc
}

// Request is everything a handler needs to act on one command invocation.
type Request struct {
	Chat         kit.ChatTarget
	FromID       int64
	FromUsername string
	Command      string
	Args         []string

	Adapter kit.Adapter
	Log     logx.Logger
}

type Router struct {
	mu       sync.RWMutex
	commands map[string]*Command
	admins   []int64

	adapter kit.Adapter
	log     logx.Logger

	jobs chan func()
}

func New(adapter kit.Adapter, log logx.Logger, admins []int64) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Router{
		commands: map[string]*Command{},
		admins:   append([]int64(nil), admins...),
		adapter:  adapter,
		log:      log,
		jobs:     make(chan func(), 64),
	}
}

func (r *Router) Register(cmds ...Command) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range cmds {
		c := cmds[i]
		name := strings.TrimSpace(strings.TrimPrefix(c.Name, "/"))
		if name == "" || c.Handle == nil {
			continue
		}
		c.Name = name
		r.commands[name] = &c
		for _, a := range c.Aliases {
			a = strings.TrimSpace(strings.TrimPrefix(a, "/"))
			if a != "" {
				r.commands[a] = &c
			}
		}
	}
}

// SetAdmins replaces the admin list. Safe during hot-reload.
func (r *Router) SetAdmins(admins []int64) {
	cp := append([]int64(nil), admins...)
	r.mu.Lock()
	r.admins = cp
	r.mu.Unlock()
}

func (r *Router) isAdmin(id int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.admins {
		if a == id {
			return true
		}
	}
	return false
}

// DispatchLoop consumes updates until ctx is cancelled or the channel
// closes. Handlers run on a small worker pool so a slow command cannot
// stall update intake.
func (r *Router) DispatchLoop(ctx context.Context, updates <-chan kit.Update) error {
	const workers = 3

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case job := <-r.jobs:
					job()
				}
			}
		}()
	}
	// Workers exit on ctx; queued-but-unstarted jobs are dropped at shutdown.
	defer func() {
		wg.Wait()
		r.log.Info("command dispatcher stopped")
	}()

	r.log.Info("command dispatcher started", logx.Int("workers", workers))
	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			r.routeUpdate(ctx, up)
		}
	}
}

func (r *Router) routeUpdate(ctx context.Context, up kit.Update) {
	msg := up.Message
	if msg == nil {
		return
	}
	text := strings.TrimSpace(msg.Text)
	if !strings.HasPrefix(text, "/") {
		return
	}
	parts := strings.Fields(text)
	word := strings.TrimPrefix(parts[0], "/")
	if i := strings.IndexByte(word, '@'); i >= 0 {
		word = word[:i]
	}
	word = strings.ToLower(word)

	r.mu.RLock()
	cmd := r.commands[word]
	r.mu.RUnlock()

	chat := kit.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID}
	if cmd == nil {
		// Stay quiet in groups: unknown slash words are often meant for
		// other bots.
		if !msg.IsGroup {
			_, _ = r.adapter.SendText(ctx, chat, "Unknown command. Try /help", nil)
		}
		return
	}
	if cmd.Access == AccessAdminOnly && !r.isAdmin(msg.FromID) {
		r.log.Warn("unauthorized command",
			logx.String("cmd", cmd.Name),
			logx.Int64("from_id", msg.FromID),
			logx.String("from_user", msg.FromUsername),
			logx.Int64("chat_id", msg.ChatID))
		_, _ = r.adapter.SendText(ctx, chat, "You are not allowed to use this command.", nil)
		return
	}

	req := &Request{
		Chat:         chat,
		FromID:       msg.FromID,
		FromUsername: msg.FromUsername,
		Command:      cmd.Name,
		Args:         parts[1:],
		Adapter:      r.adapter,
		Log: r.log.With(
			logx.String("cmd", cmd.Name),
			logx.Int64("from_id", msg.FromID),
			logx.String("from_user", msg.FromUsername),
			logx.Int64("chat_id", msg.ChatID)),
	}

	job := func() { r.run(ctx, cmd, req) }
	select {
	case r.jobs <- job:
	default:
		r.log.Warn("command queue full, dropping", logx.String("cmd", cmd.Name))
		_, _ = r.adapter.SendText(ctx, chat, "Busy right now, try again in a moment.", nil)
	}
}

func (r *Router) run(ctx context.Context, cmd *Command, req *Request) {
	timeout := cmd.Timeout
	if timeout <= 0 {
		timeout = defaultHandlerTimeout
	}
	hctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	defer func() {
		if rec := recover(); rec != nil {
			req.Log.Error("panic in command handler",
				logx.Any("panic", rec),
				logx.String("stack", string(debug.Stack())))
			_, _ = r.adapter.SendText(ctx, req.Chat, fmt.Sprintf("Internal error running /%s", cmd.Name), nil)
		}
	}()

	start := time.Now()
	err := cmd.Handle(hctx, req)
	if err != nil {
		req.Log.Error("command failed", logx.Err(err), logx.Duration("took", time.Since(start)))
		return
	}
	req.Log.Info("command handled", logx.Duration("took", time.Since(start)))
}
