package transport

import (
	"context"
	"errors"
)

// Typed dispatch failures. Callers that care (broadcast cycles, admin
// commands) can branch with errors.Is; everything else treats a send error
// as generic.
var (
	// ErrRateLimited means the platform asked us to slow down (flood wait).
	ErrRateLimited = errors.New("rate limited")
	// ErrRecipientUnavailable means the target chat cannot receive messages
	// (bot blocked/kicked, chat deleted, bad chat id).
	ErrRecipientUnavailable = errors.New("recipient unavailable")
)

type Update struct {
	Message *Message
}

type Message struct {
	ID           int
	ChatID       int64
	ThreadID     int // telegram forum topic thread id (0 if none)
	FromID       int64
	FromUsername string
	Text         string
	IsGroup      bool
}

type ChatTarget struct {
	ChatID   int64
	ThreadID int
}

type MessageRef struct {
	ChatID    int64
	ThreadID  int
	MessageID int
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
}

// Poll describes a poll to be dispatched. Quiz polls carry the index of the
// correct option (post-shuffle) and an optional explanation shown after
// answering.
type Poll struct {
	Question     string
	Options      []string
	Quiz         bool
	CorrectIndex int
	Anonymous    bool
	Explanation  string
}

type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
	EditText(ctx context.Context, ref MessageRef, text string, opt *SendOptions) error
	SendPoll(ctx context.Context, to ChatTarget, poll Poll) (MessageRef, error)
}
