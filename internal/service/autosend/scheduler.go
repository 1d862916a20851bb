// Package autosend lets the persona reach out first after a random stretch
// of silence.
package autosend

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sandevgo/companion/internal/core"
	"github.com/sandevgo/companion/pkg/log"
)

const DefaultContent = "You have not heard from the user for a while. Start the conversation yourself with a short message, in character."

type Options struct {
	Targets  []core.SenderMeta
	MinDelay time.Duration
	MaxDelay time.Duration
	Content  string
	Quiet    QuietHours
	Clock    clockwork.Clock
	// Rand returns a value in [0, 1). It picks delays and targets.
	Rand func() float64
}

// Scheduler runs a single countdown. When it expires outside quiet hours a
// system message goes to one of the targets; any inbound message from a
// person restarts it.
type Scheduler struct {
	dispatcher core.Dispatcher
	targets    []core.SenderMeta
	minDelay   time.Duration
	maxDelay   time.Duration
	content    string
	quiet      QuietHours
	clock      clockwork.Clock
	rand       func() float64

	mu         sync.Mutex
	ctx        context.Context
	timer      clockwork.Timer
	generation int
	running    bool
	unanswered map[string]int
}

func New(dispatcher core.Dispatcher, opts Options) (*Scheduler, error) {
	if len(opts.Targets) == 0 {
		return nil, errors.New("autosend needs at least one target")
	}
	if opts.MinDelay <= 0 || opts.MaxDelay < opts.MinDelay {
		return nil, fmt.Errorf("invalid autosend delay range %s..%s", opts.MinDelay, opts.MaxDelay)
	}
	if opts.Content == "" {
		opts.Content = DefaultContent
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Rand == nil {
		opts.Rand = rand.Float64
	}
	return &Scheduler{
		dispatcher: dispatcher,
		targets:    opts.Targets,
		minDelay:   opts.MinDelay,
		maxDelay:   opts.MaxDelay,
		content:    opts.Content,
		quiet:      opts.Quiet,
		clock:      opts.Clock,
		rand:       opts.Rand,
		ctx:        context.Background(),
		unanswered: make(map[string]int),
	}, nil
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ctx = context.WithoutCancel(ctx)
	s.running = true
	delay := s.armLocked()

	log.FromCtx(ctx).Info().
		Int("targets", len(s.targets)).
		Dur("next_in", delay.Round(time.Second)).
		Msg("autosend countdown started")
	return nil
}

func (s *Scheduler) Shutdown(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.running = false
	s.generation++
	if s.timer != nil {
		s.timer.Stop()
	}
	return nil
}

// Touch restarts the countdown and clears the unanswered count of the
// sender's chat. System messages are ignored.
func (s *Scheduler) Touch(meta core.SenderMeta) {
	if meta.IsSystem() {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	delete(s.unanswered, meta.ChatID)
	s.armLocked()
}

// Unanswered returns how many messages went to chatID since its last reply.
func (s *Scheduler) Unanswered(chatID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unanswered[chatID]
}

// armLocked replaces the countdown. Callbacks of replaced timers see a stale
// generation and do nothing.
func (s *Scheduler) armLocked() time.Duration {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.generation++
	gen := s.generation

	delay := s.minDelay + time.Duration(s.rand()*float64(s.maxDelay-s.minDelay))
	s.timer = s.clock.AfterFunc(delay, func() { s.fire(gen) })
	return delay
}

func (s *Scheduler) fire(gen int) {
	s.mu.Lock()
	if !s.running || gen != s.generation {
		s.mu.Unlock()
		return
	}
	ctx := s.ctx
	logger := log.FromCtx(ctx)

	if s.quiet.Contains(s.clock.Now()) {
		s.armLocked()
		s.mu.Unlock()
		logger.Info().Msg("quiet hours, autosend skipped")
		return
	}

	target := s.targets[min(int(s.rand()*float64(len(s.targets))), len(s.targets)-1)]
	s.unanswered[target.ChatID]++
	count := s.unanswered[target.ChatID]
	s.armLocked()
	s.mu.Unlock()

	logger.Info().
		Str("transport", target.Transport).
		Str("chat", target.ChatID).
		Int("unanswered", count).
		Msg("autosend message queued")
	s.dispatcher.Dispatch(ctx, s.message(count), target)
}

func (s *Scheduler) message(unanswered int) string {
	return fmt.Sprintf(
		"%s This is message number %d they have not answered; you may let a little hurt about being ignored show.",
		s.content, unanswered,
	)
}
