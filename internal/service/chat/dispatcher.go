package chat

import (
	"context"
	"strings"

	"github.com/sandevgo/companion/internal/core"
	"github.com/sandevgo/companion/pkg/log"
)

type Enqueuer interface {
	Enqueue(key, content string, meta core.SenderMeta)
}

// ActivityObserver hears about every inbound message from a person.
type ActivityObserver interface {
	Touch(meta core.SenderMeta)
}

// Dispatcher answers slash commands immediately and queues everything else.
// Command exchanges never reach memory.
type Dispatcher struct {
	persona  string
	queue    Enqueuer
	commands core.CmdRouter
	replier  core.Replier

	observers []ActivityObserver
}

var _ core.Dispatcher = (*Dispatcher)(nil)

func NewDispatcher(persona string, queue Enqueuer, commands core.CmdRouter, replier core.Replier) *Dispatcher {
	return &Dispatcher{
		persona:  persona,
		queue:    queue,
		commands: commands,
		replier:  replier,
	}
}

// Observe registers o. It must be called before the first Dispatch.
func (d *Dispatcher) Observe(o ActivityObserver) {
	d.observers = append(d.observers, o)
}

func (d *Dispatcher) Dispatch(ctx context.Context, content string, meta core.SenderMeta) {
	logger := log.FromCtx(ctx)

	if strings.TrimSpace(content) == "" {
		return
	}
	if !meta.IsSystem() {
		for _, o := range d.observers {
			o.Touch(meta)
		}
	}

	if d.commands != nil {
		scope := core.Scope{Persona: d.persona, UserID: meta.ChatID, ChatID: meta.ChatID}
		if resp, ok := d.commands.Execute(ctx, scope, strings.TrimSpace(content)); ok {
			logger.Info().Str("chat", meta.ChatID).Msg("command handled")
			if meta.IsGroup {
				resp = AddMention(resp, meta.SenderName)
			}
			if err := d.replier.Reply(ctx, meta, resp); err != nil {
				logger.Error().Err(err).Msg("failed to deliver command response")
			}
			return
		}
	}

	d.queue.Enqueue(meta.QueueKey(), content, meta)
}
