// Package gateway is the error boundary around the language model: every
// call returns a reply or a string carrying core.ErrorPrefix.
package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sandevgo/companion/internal/core"
	"github.com/sandevgo/companion/internal/observability"
	"github.com/sandevgo/companion/internal/service/prompt"
	"github.com/sandevgo/companion/pkg/log"
	"github.com/sandevgo/companion/pkg/retry"
)

const emptyMessageReply = core.ErrorPrefix + " Empty message received"

type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeTransport
	OutcomeContent
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeTransport:
		return "transport"
	case OutcomeContent:
		return "content"
	default:
		return "unknown"
	}
}

// Result is the tagged outcome of one attempt.
type Result struct {
	Outcome Outcome
	Reply   string
	Err     error
}

// BaseSource supplies the base prompt placed before core memory.
type BaseSource interface {
	Base(ctx context.Context) string
}

type Options struct {
	MaxGroups int
	Retrier   *retry.Retrier
	Base      BaseSource
	Metrics   *observability.Metrics
}

type Gateway struct {
	strategy  core.Strategy
	sessions  *Sessions
	retrier   *retry.Retrier
	maxGroups int
	base      BaseSource
	metrics   *observability.Metrics
}

var _ core.Responder = (*Gateway)(nil)

func New(strategy core.Strategy, opts Options) *Gateway {
	if opts.MaxGroups <= 0 {
		opts.MaxGroups = 10
	}
	if opts.Retrier == nil {
		opts.Retrier = retry.NewRetrier(&retry.Config{Attempts: 3})
	}
	return &Gateway{
		strategy:  strategy,
		sessions:  NewSessions(opts.MaxGroups),
		retrier:   opts.Retrier,
		maxGroups: opts.MaxGroups,
		base:      opts.Base,
		metrics:   opts.Metrics,
	}
}

func (g *Gateway) GetResponse(ctx context.Context, message, conversationID, systemPrompt string, prior []core.Message, coreMemory string) string {
	if strings.TrimSpace(message) == "" {
		return emptyMessageReply
	}

	unlock := g.sessions.Lock(conversationID)
	defer unlock()

	logger := log.FromCtx(ctx).With().Str("conversation", conversationID).Logger()

	before, seen := g.sessions.Snapshot(conversationID)

	if g.sessions.Hydrate(conversationID, prior) {
		logger.Info().Int("messages", len(prior)).Msg("chat context hydrated from memory")
	}
	g.sessions.Append(conversationID, core.Message{Role: core.RoleUser, Content: message})

	history, _ := g.sessions.Snapshot(conversationID)
	req := core.Request{
		System:  g.systemPrompt(ctx, systemPrompt, coreMemory),
		History: prompt.TrimHistory(history, g.maxGroups),
		Message: message,
	}
	if e := logger.Debug(); e.Enabled() {
		e.Str("strategy", g.strategy.Name()).
			Int("history", len(req.History)).
			Int("prompt_tokens", prompt.CountTokens(req.System)).
			Msg("dispatching llm request")
	}

	var last Result
	attempts := g.retrier.Attempts()
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := g.retrier.Wait(ctx, attempt-1); err != nil {
				last = Result{Outcome: OutcomeTransport, Err: err}
				break
			}
		}

		last = g.attempt(ctx, req)
		if last.Outcome == OutcomeSuccess {
			g.sessions.Append(conversationID, core.Message{Role: core.RoleAssistant, Content: last.Reply})
			return last.Reply
		}

		logger.Warn().
			Err(last.Err).
			Str("outcome", last.Outcome.String()).
			Int("attempt", attempt+1).
			Int("of", attempts).
			Msg("llm attempt failed")
	}

	g.sessions.Restore(conversationID, before, seen)
	return errorReply(last)
}

func (g *Gateway) attempt(ctx context.Context, req core.Request) Result {
	start := time.Now()
	raw, err := g.strategy.Complete(ctx, req)

	var res Result
	switch {
	case err != nil:
		res = Result{Outcome: OutcomeTransport, Err: err}
	default:
		reply := FilterThinking(Sanitize(raw))
		if isContentError(reply) {
			res = Result{Outcome: OutcomeContent, Reply: reply, Err: fmt.Errorf("upstream error reply: %s", reply)}
		} else {
			res = Result{Outcome: OutcomeSuccess, Reply: reply}
		}
	}

	g.metrics.ObserveAttempt(res.Outcome.String(), time.Since(start))
	return res
}

func (g *Gateway) systemPrompt(ctx context.Context, systemPrompt, coreMemory string) string {
	base := ""
	if g.base != nil {
		base = g.base.Base(ctx)
	}
	return prompt.BuildPrompt(base, coreMemory, systemPrompt, false, "")
}

// ClearContext drops the chat context of a conversation.
func (g *Gateway) ClearContext(conversationID string) bool {
	unlock := g.sessions.Lock(conversationID)
	defer unlock()
	return g.sessions.Clear(conversationID)
}

// HasContext reports whether the conversation already has a chat context in
// this process. A cleared context still counts.
func (g *Gateway) HasContext(conversationID string) bool {
	return g.sessions.Seen(conversationID)
}

func (g *Gateway) ContextLen(conversationID string) int {
	return g.sessions.Len(conversationID)
}

func errorReply(r Result) string {
	switch {
	case r.Outcome == OutcomeContent && core.IsErrorReply(r.Reply):
		return r.Reply
	case r.Outcome == OutcomeContent:
		return core.ErrorPrefix + " " + r.Reply
	case r.Err != nil:
		return core.ErrorPrefix + " " + r.Err.Error()
	default:
		return core.ErrorPrefix + " no reply from model"
	}
}
