package router

import (
	"context"
	"sync"
	"testing"
	"time"

	kit "triviacast/internal/transport"
	logx "triviacast/pkg/logx"
)

type recordingAdapter struct {
	mu    sync.Mutex
	texts []string
}

func (a *recordingAdapter) Start(context.Context, chan<- kit.Update) error { return nil }
func (a *recordingAdapter) Stop(context.Context) error                     { return nil }

func (a *recordingAdapter) SendText(_ context.Context, _ kit.ChatTarget, text string, _ *kit.SendOptions) (kit.MessageRef, error) {
	a.mu.Lock()
	a.texts = append(a.texts, text)
	a.mu.Unlock()
	return kit.MessageRef{}, nil
}

func (a *recordingAdapter) EditText(context.Context, kit.MessageRef, string, *kit.SendOptions) error {
	return nil
}

func (a *recordingAdapter) SendPoll(context.Context, kit.ChatTarget, kit.Poll) (kit.MessageRef, error) {
	return kit.MessageRef{}, nil
}

func (a *recordingAdapter) sent() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.texts...)
}

func update(fromID int64, text string) kit.Update {
	return kit.Update{Message: &kit.Message{
		ID:     1,
		ChatID: 100,
		FromID: fromID,
		Text:   text,
	}}
}

// runOne pushes a single update through a dispatch loop and waits for the
// handler side effects to land.
func runOne(t *testing.T, r *Router, up kit.Update) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates := make(chan kit.Update, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = r.DispatchLoop(ctx, updates)
	}()

	updates <- up
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("dispatch loop did not stop")
	}
}

func TestRouterRunsRegisteredCommand(t *testing.T) {
	ad := &recordingAdapter{}
	r := New(ad, logx.Nop(), nil)

	ran := make(chan string, 1)
	r.Register(Command{
		Name: "status",
		Handle: func(ctx context.Context, req *Request) error {
			ran <- req.Command
			return nil
		},
	})

	runOne(t, r, update(1, "/status"))
	select {
	case cmd := <-ran:
		if cmd != "status" {
			t.Fatalf("expected status, got %s", cmd)
		}
	default:
		t.Fatalf("handler did not run")
	}
}

func TestRouterStripsBotMention(t *testing.T) {
	ad := &recordingAdapter{}
	r := New(ad, logx.Nop(), nil)

	ran := make(chan struct{}, 1)
	r.Register(Command{
		Name:   "fact",
		Handle: func(ctx context.Context, req *Request) error { ran <- struct{}{}; return nil },
	})

	runOne(t, r, update(1, "/fact@SomeBot now"))
	select {
	case <-ran:
	default:
		t.Fatalf("mention-suffixed command not routed")
	}
}

func TestRouterAdminGate(t *testing.T) {
	ad := &recordingAdapter{}
	r := New(ad, logx.Nop(), []int64{42})

	ran := make(chan int64, 2)
	r.Register(Command{
		Name:   "fact",
		Access: AccessAdminOnly,
		Handle: func(ctx context.Context, req *Request) error { ran <- req.FromID; return nil },
	})

	runOne(t, r, update(7, "/fact"))
	select {
	case id := <-ran:
		t.Fatalf("non-admin %d ran an admin command", id)
	default:
	}
	texts := ad.sent()
	if len(texts) != 1 || texts[0] != "You are not allowed to use this command." {
		t.Fatalf("expected rejection message, got %v", texts)
	}

	runOne(t, r, update(42, "/fact"))
	select {
	case id := <-ran:
		if id != 42 {
			t.Fatalf("unexpected from id %d", id)
		}
	default:
		t.Fatalf("admin command did not run for admin")
	}
}

func TestRouterSetAdminsAppliesLive(t *testing.T) {
	ad := &recordingAdapter{}
	r := New(ad, logx.Nop(), nil)

	ran := make(chan struct{}, 1)
	r.Register(Command{
		Name:   "quiz",
		Access: AccessAdminOnly,
		Handle: func(ctx context.Context, req *Request) error { ran <- struct{}{}; return nil },
	})

	r.SetAdmins([]int64{9})
	runOne(t, r, update(9, "/quiz"))
	select {
	case <-ran:
	default:
		t.Fatalf("newly added admin rejected")
	}
}

func TestRouterIgnoresPlainTextAndGroupUnknowns(t *testing.T) {
	ad := &recordingAdapter{}
	r := New(ad, logx.Nop(), nil)

	runOne(t, r, update(1, "hello there"))
	up := update(1, "/bogus")
	up.Message.IsGroup = true
	runOne(t, r, up)

	if got := ad.sent(); len(got) != 0 {
		t.Fatalf("expected silence, got %v", got)
	}
}

func TestRouterRequestCarriesSenderIdentity(t *testing.T) {
	ad := &recordingAdapter{}
	r := New(ad, logx.Nop(), nil)

	got := make(chan *Request, 1)
	r.Register(Command{
		Name:   "status",
		Handle: func(ctx context.Context, req *Request) error { got <- req; return nil },
	})

	up := update(7, "/status")
	up.Message.FromUsername = "pewadmin"
	runOne(t, r, up)
	select {
	case req := <-got:
		if req.FromID != 7 || req.FromUsername != "pewadmin" {
			t.Fatalf("sender identity lost: id=%d user=%q", req.FromID, req.FromUsername)
		}
	default:
		t.Fatalf("handler did not run")
	}
}

func TestRouterUnknownCommandInPrivateChatReplies(t *testing.T) {
	ad := &recordingAdapter{}
	r := New(ad, logx.Nop(), nil)

	runOne(t, r, update(1, "/bogus"))
	got := ad.sent()
	if len(got) != 1 || got[0] != "Unknown command. Try /help" {
		t.Fatalf("expected unknown-command reply, got %v", got)
	}
}
