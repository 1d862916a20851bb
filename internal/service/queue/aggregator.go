// Package queue debounces inbound messages per conversation key and hands
// the coalesced text to the chat pipeline.
package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/sandevgo/companion/internal/core"
	"github.com/sandevgo/companion/internal/observability"
	"github.com/sandevgo/companion/pkg/log"
)

// flushGuard absorbs timer jitter when checking for a newer update.
const flushGuard = 100 * time.Millisecond

// Batch is the coalesced input of one debounce window.
type Batch struct {
	ID    string
	Key   string
	Text  string
	Count int
	Meta  core.SenderMeta
}

type Handler interface {
	HandleBatch(ctx context.Context, b Batch) error
}

type HandlerFunc func(ctx context.Context, b Batch) error

func (f HandlerFunc) HandleBatch(ctx context.Context, b Batch) error {
	return f(ctx, b)
}

// Chain runs handlers in order on every batch. A failing handler does not
// stop the ones after it.
func Chain(handlers ...Handler) Handler {
	return HandlerFunc(func(ctx context.Context, b Batch) error {
		var errs []error
		for _, h := range handlers {
			if err := h.HandleBatch(ctx, b); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}

type Options struct {
	Timeout time.Duration
	Workers int
	Clock   clockwork.Clock
	Metrics *observability.Metrics
}

type pending struct {
	messages   []string
	lastUpdate time.Time
	meta       core.SenderMeta
	timer      clockwork.Timer
}

type Aggregator struct {
	ctx     context.Context
	handler Handler
	timeout time.Duration
	clock   clockwork.Clock
	pool    *Pool
	metrics *observability.Metrics

	mu      sync.Mutex
	pending map[string]*pending
	closed  bool
}

// NewAggregator builds an aggregator whose handlers run with the values of
// ctx. Cancelling ctx does not cancel a dispatched batch; Shutdown bounds
// how long those are waited for.
func NewAggregator(ctx context.Context, handler Handler, opts Options) *Aggregator {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &Aggregator{
		ctx:     context.WithoutCancel(ctx),
		handler: handler,
		timeout: opts.Timeout,
		clock:   opts.Clock,
		pool:    NewPool(opts.Workers),
		metrics: opts.Metrics,
		pending: make(map[string]*pending),
	}
}

// Enqueue buffers content under key and restarts the key's quiet period.
func (a *Aggregator) Enqueue(key, content string, meta core.SenderMeta) {
	logger := log.FromCtx(a.ctx)

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		logger.Warn().Str("key", key).Msg("aggregator closed, message dropped")
		a.metrics.BatchDropped("closed")
		return
	}

	now := a.clock.Now()
	p, ok := a.pending[key]
	if !ok {
		p = &pending{
			messages: []string{fmt.Sprintf("[%s]\n%s", now.Format(core.TimestampLayout), content)},
			meta:     meta,
		}
		a.pending[key] = p
		a.metrics.SetPending(len(a.pending))
	} else {
		p.messages = append(p.messages, content)
		p.meta = meta
		p.timer.Stop()
	}
	p.lastUpdate = now
	p.timer = a.clock.AfterFunc(a.timeout, func() { a.fire(key, p) })
	a.metrics.MessageQueued()

	logger.Debug().
		Str("key", key).
		Int("buffered", len(p.messages)).
		Dur("timeout", a.timeout).
		Msg("message buffered")
}

func (a *Aggregator) fire(key string, p *pending) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed || a.pending[key] != p {
		return
	}
	// A newer message re-armed the timer after this one was already due.
	if a.clock.Now().Sub(p.lastUpdate) < a.timeout-flushGuard {
		return
	}

	delete(a.pending, key)
	a.metrics.SetPending(len(a.pending))
	batch := Batch{
		ID:    uuid.NewString(),
		Key:   key,
		Text:  strings.Join(p.messages, "\n"),
		Count: len(p.messages),
		Meta:  p.meta,
	}

	// Submitted under a.mu so Shutdown cannot close the pool in between.
	if !a.pool.Submit(key, func() { a.handle(batch) }) {
		a.metrics.BatchDropped("closed")
		return
	}
	a.metrics.BatchFlushed()
}

// handle delivers at most once: failures are logged and the batch dropped.
func (a *Aggregator) handle(b Batch) {
	ctx := log.WithFields(a.ctx, "key", b.Key, "batch", b.ID)
	logger := log.FromCtx(ctx)

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("batch handler panicked, batch dropped")
			a.metrics.BatchDropped("panic")
		}
	}()

	logger.Debug().Int("messages", b.Count).Msg("flushing batch")
	if err := a.handler.HandleBatch(ctx, b); err != nil {
		logger.Error().Err(err).Msg("batch handler failed, batch dropped")
		a.metrics.BatchDropped("handler_error")
	}
}

// PendingKeys returns the number of keys with buffered messages.
func (a *Aggregator) PendingKeys() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}

func (a *Aggregator) Start(context.Context) error {
	return nil
}

// Shutdown cancels every timer, drops buffered messages and waits for
// in-flight batches until ctx is done.
func (a *Aggregator) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	a.closed = true
	dropped := 0
	for key, p := range a.pending {
		p.timer.Stop()
		dropped += len(p.messages)
		delete(a.pending, key)
	}
	a.metrics.SetPending(0)
	a.pool.Close()
	a.mu.Unlock()

	if dropped > 0 {
		log.FromCtx(ctx).Warn().Int("messages", dropped).Msg("pending messages dropped on shutdown")
	}
	return a.pool.Wait(ctx)
}
