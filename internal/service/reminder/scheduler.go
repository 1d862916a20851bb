package reminder

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/sandevgo/companion/internal/core"
	"github.com/sandevgo/companion/internal/service/queue"
	"github.com/sandevgo/companion/pkg/log"
)

// misfireGrace is how late a reminder may still be delivered.
const misfireGrace = time.Minute

type Reminder struct {
	ID      string
	At      time.Time
	Content string
	Meta    core.SenderMeta
}

type Options struct {
	Clock clockwork.Clock
}

type entry struct {
	reminder Reminder
	timer    clockwork.Timer
}

// Scheduler scans every batch for reminder requests and, when one falls
// due, hands a system batch to the chat pipeline.
type Scheduler struct {
	ctx        context.Context
	recognizer *Recognizer
	handler    queue.Handler
	clock      clockwork.Clock

	mu      sync.Mutex
	pending map[string]*entry
	closed  bool
	wg      sync.WaitGroup
}

var _ queue.Handler = (*Scheduler)(nil)

// NewScheduler delivers due reminders to handler with the values of ctx.
func NewScheduler(ctx context.Context, recognizer *Recognizer, handler queue.Handler, opts Options) *Scheduler {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &Scheduler{
		ctx:        context.WithoutCancel(ctx),
		recognizer: recognizer,
		handler:    handler,
		clock:      opts.Clock,
		pending:    make(map[string]*entry),
	}
}

// HandleBatch schedules the reminders requested in b. System batches are
// never scanned.
func (s *Scheduler) HandleBatch(ctx context.Context, b queue.Batch) error {
	if b.Meta.IsSystem() {
		return nil
	}
	for _, req := range s.recognizer.Recognize(ctx, b.Meta.ChatID, b.Text) {
		s.Add(ctx, req.At, req.Content, b.Meta)
	}
	return nil
}

// Add schedules content for meta's chat at at. It returns false when at is
// already past the grace period or the scheduler is closed.
func (s *Scheduler) Add(ctx context.Context, at time.Time, content string, meta core.SenderMeta) bool {
	logger := log.FromCtx(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	delay := at.Sub(s.clock.Now())
	if delay < -misfireGrace {
		logger.Info().Time("at", at).Msg("reminder time already passed, ignored")
		return false
	}

	r := Reminder{ID: uuid.NewString(), At: at, Content: content, Meta: meta}
	e := &entry{reminder: r}
	e.timer = s.clock.AfterFunc(max(delay, 0), func() { s.fire(r.ID) })
	s.pending[r.ID] = e

	logger.Info().
		Str("reminder", r.ID).
		Str("chat", meta.ChatID).
		Time("at", at).
		Dur("in", delay.Round(time.Second)).
		Msg("reminder scheduled")
	return true
}

// Pending lists the reminders waiting for chatID, earliest first.
func (s *Scheduler) Pending(chatID string) []Reminder {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res []Reminder
	for _, e := range s.pending {
		if e.reminder.Meta.ChatID == chatID {
			res = append(res, e.reminder)
		}
	}
	slices.SortFunc(res, func(a, b Reminder) int { return a.At.Compare(b.At) })
	return res
}

func (s *Scheduler) fire(id string) {
	s.mu.Lock()
	e, ok := s.pending[id]
	if !ok || s.closed {
		s.mu.Unlock()
		return
	}
	delete(s.pending, id)
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	r := e.reminder
	ctx := log.WithFields(s.ctx, "reminder", r.ID, "chat", r.Meta.ChatID)
	batch := queue.Batch{
		ID:    r.ID,
		Key:   r.Meta.ChatID,
		Text:  reminderPrompt(r.Content),
		Count: 1,
		Meta: core.SenderMeta{
			Transport:  r.Meta.Transport,
			ChatID:     r.Meta.ChatID,
			SenderName: core.SystemSender,
			Username:   core.SystemSender,
		},
	}
	if err := s.handler.HandleBatch(ctx, batch); err != nil {
		log.FromCtx(ctx).Error().Err(err).Msg("failed to deliver reminder")
		return
	}
	log.FromCtx(ctx).Info().Msg("reminder delivered")
}

func reminderPrompt(content string) string {
	return fmt.Sprintf(
		"It is time now: the user asked you earlier to remind them about %s. "+
			"Reach out to them on your own, in character, keeping the conversation consistent.",
		content,
	)
}

func (s *Scheduler) Start(context.Context) error {
	return nil
}

// Shutdown drops reminders that have not fired and waits for deliveries in
// progress until ctx is done.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	for id, e := range s.pending {
		e.timer.Stop()
		delete(s.pending, id)
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
