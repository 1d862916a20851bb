package chat

import (
	"context"
	"fmt"
	"sync"

	"github.com/sandevgo/companion/internal/core"
	"github.com/sandevgo/companion/pkg/log"
)

// Outbox routes replies to the transport a message came from.
type Outbox struct {
	mu       sync.RWMutex
	repliers map[string]core.Replier
	fallback core.Replier
}

var _ core.Replier = (*Outbox)(nil)

// NewOutbox returns an outbox that hands unknown transports to fallback.
// fallback may be nil.
func NewOutbox(fallback core.Replier) *Outbox {
	return &Outbox{
		repliers: make(map[string]core.Replier),
		fallback: fallback,
	}
}

func (o *Outbox) Register(transport string, r core.Replier) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.repliers[transport] = r
}

func (o *Outbox) Reply(ctx context.Context, meta core.SenderMeta, text string) error {
	o.mu.RLock()
	r, ok := o.repliers[meta.Transport]
	o.mu.RUnlock()

	if !ok {
		r = o.fallback
	}
	if r == nil {
		return fmt.Errorf("no replier for transport %q", meta.Transport)
	}
	return r.Reply(ctx, meta, text)
}

// LogReplier writes replies to the context logger. It backs transports
// without a return channel, such as the HTTP intake.
type LogReplier struct{}

func (LogReplier) Reply(ctx context.Context, meta core.SenderMeta, text string) error {
	log.FromCtx(ctx).Info().
		Str("transport", meta.Transport).
		Str("chat", meta.ChatID).
		Str("reply", text).
		Msg("reply")
	return nil
}
