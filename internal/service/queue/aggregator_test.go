package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sandevgo/companion/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var epoch = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

const stamp = "[2024-05-01 09:00:00]\n"

type collector struct {
	mu      sync.Mutex
	batches []Batch
	ch      chan Batch
}

func newCollector() *collector {
	return &collector{ch: make(chan Batch, 16)}
}

func (c *collector) HandleBatch(_ context.Context, b Batch) error {
	c.mu.Lock()
	c.batches = append(c.batches, b)
	c.mu.Unlock()
	c.ch <- b
	return nil
}

func (c *collector) next(t *testing.T) Batch {
	t.Helper()
	select {
	case b := <-c.ch:
		return b
	case <-time.After(2 * time.Second):
		t.Fatal("no batch delivered")
		return Batch{}
	}
}

func (c *collector) none(t *testing.T) {
	t.Helper()
	select {
	case b := <-c.ch:
		t.Fatalf("unexpected batch: %+v", b)
	case <-time.After(50 * time.Millisecond):
	}
}

// fakeClock is the part of the clockwork fake the tests drive. Timer
// callbacks run on their own goroutines once Advance passes their deadline.
type fakeClock interface {
	clockwork.Clock
	Advance(d time.Duration)
}

func newTestAggregator(h Handler) (*Aggregator, fakeClock) {
	clk := clockwork.NewFakeClockAt(epoch)
	a := NewAggregator(context.Background(), h, Options{Timeout: 8 * time.Second, Workers: 2, Clock: clk})
	return a, clk
}

func shutdown(t *testing.T, a *Aggregator) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, a.Shutdown(ctx))
}

func TestAggregator_DebounceExample(t *testing.T) {
	h := newCollector()
	a, clk := newTestAggregator(h)
	defer shutdown(t, a)

	meta := core.SenderMeta{ChatID: "42", SenderName: "Ann"}

	a.Enqueue("42", "A", meta)
	clk.Advance(3 * time.Second)
	a.Enqueue("42", "B", meta)

	clk.Advance(7 * time.Second) // t=10
	h.none(t)

	clk.Advance(time.Second) // t=11
	b := h.next(t)
	assert.Equal(t, stamp+"A\nB", b.Text)
	assert.Equal(t, 2, b.Count)
	assert.Equal(t, "42", b.Key)
	assert.Equal(t, meta, b.Meta)
	assert.NotEmpty(t, b.ID)
	assert.Zero(t, a.PendingKeys())
}

func TestAggregator_LateMessageResetsTimer(t *testing.T) {
	h := newCollector()
	a, clk := newTestAggregator(h)
	defer shutdown(t, a)

	a.Enqueue("42", "A", core.SenderMeta{})
	clk.Advance(3 * time.Second)
	a.Enqueue("42", "B", core.SenderMeta{})
	clk.Advance(7 * time.Second) // t=10
	a.Enqueue("42", "C", core.SenderMeta{})

	clk.Advance(7*time.Second + 900*time.Millisecond) // t=17.9
	h.none(t)

	clk.Advance(100 * time.Millisecond) // t=18
	b := h.next(t)
	assert.Equal(t, stamp+"A\nB\nC", b.Text)
	h.none(t)
}

func TestAggregator_KeysAreIndependent(t *testing.T) {
	h := newCollector()
	a, clk := newTestAggregator(h)
	defer shutdown(t, a)

	group := core.SenderMeta{ChatID: "g1", IsGroup: true}
	annMeta, bobMeta := group, group
	annMeta.SenderName, bobMeta.SenderName = "Ann", "Bob"

	a.Enqueue(annMeta.QueueKey(), "from ann", annMeta)
	clk.Advance(5 * time.Second)
	a.Enqueue(bobMeta.QueueKey(), "from bob", bobMeta)
	assert.Equal(t, 2, a.PendingKeys())

	clk.Advance(3 * time.Second) // t=8, ann flushes
	b := h.next(t)
	assert.Equal(t, "g1_Ann", b.Key)
	h.none(t)

	clk.Advance(5 * time.Second) // t=13, bob flushes
	b = h.next(t)
	assert.Equal(t, "g1_Bob", b.Key)
	assert.Equal(t, "[2024-05-01 09:00:05]\nfrom bob", b.Text)
}

func TestAggregator_StaleFireIsIgnored(t *testing.T) {
	h := newCollector()
	a, clk := newTestAggregator(h)
	defer shutdown(t, a)

	a.Enqueue("42", "A", core.SenderMeta{})
	clk.Advance(2 * time.Second)

	a.mu.Lock()
	p := a.pending["42"]
	a.mu.Unlock()

	// Simulates a timer that fired while a newer message was being buffered.
	a.fire("42", p)
	h.none(t)
	assert.Equal(t, 1, a.PendingKeys())

	clk.Advance(6 * time.Second)
	assert.Equal(t, stamp+"A", h.next(t).Text)
}

func TestAggregator_HandlerFailureDropsBatch(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	done := make(chan struct{}, 4)
	h := HandlerFunc(func(_ context.Context, b Batch) error {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		done <- struct{}{}
		if n == 1 {
			return errors.New("llm down")
		}
		panic("boom")
	})

	a, clk := newTestAggregator(h)
	defer shutdown(t, a)

	a.Enqueue("42", "A", core.SenderMeta{})
	clk.Advance(8 * time.Second)
	<-done

	a.Enqueue("42", "B", core.SenderMeta{})
	clk.Advance(8 * time.Second)
	<-done

	clk.Advance(time.Minute)
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	assert.Equal(t, 2, calls, "batches are never redelivered")
	mu.Unlock()
}

func TestAggregator_ShutdownDropsPending(t *testing.T) {
	h := newCollector()
	a, clk := newTestAggregator(h)

	a.Enqueue("42", "A", core.SenderMeta{})
	shutdown(t, a)

	clk.Advance(time.Minute)
	h.none(t)

	a.Enqueue("42", "late", core.SenderMeta{})
	assert.Zero(t, a.PendingKeys())
}

func TestAggregator_DueTimerAfterShutdownIsDropped(t *testing.T) {
	h := newCollector()
	a, clk := newTestAggregator(h)

	a.Enqueue("42", "A", core.SenderMeta{})
	clk.Advance(8 * time.Second)
	h.next(t)

	a.Enqueue("42", "B", core.SenderMeta{})
	a.mu.Lock()
	p := a.pending["42"]
	a.mu.Unlock()

	shutdown(t, a)

	// A timer callback that was already running when Shutdown took the lock.
	a.fire("42", p)
	h.none(t)
	assert.False(t, a.pool.Submit("42", func() { t.Error("pool accepted a job after shutdown") }))
}

func TestAggregator_InFlightBatchOutlivesParentContext(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{})
	release := make(chan struct{})
	handlerErr := make(chan error, 1)
	h := HandlerFunc(func(ctx context.Context, _ Batch) error {
		close(started)
		<-release
		// Stands in for the model round trip finishing after the signal.
		handlerErr <- ctx.Err()
		return nil
	})

	clk := clockwork.NewFakeClockAt(epoch)
	a := NewAggregator(parent, h, Options{Timeout: 8 * time.Second, Workers: 1, Clock: clk})

	a.Enqueue("42", "A", core.SenderMeta{})
	clk.Advance(8 * time.Second)
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("batch was not dispatched")
	}

	cancel()

	shutdownErr := make(chan error, 1)
	go func() {
		ctx, stop := context.WithTimeout(context.Background(), 2*time.Second)
		defer stop()
		shutdownErr <- a.Shutdown(ctx)
	}()

	select {
	case err := <-shutdownErr:
		t.Fatalf("shutdown returned before the in-flight batch finished: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-shutdownErr)
	assert.NoError(t, <-handlerErr)
}

func TestChain(t *testing.T) {
	var order []string
	step := func(name string, err error) Handler {
		return HandlerFunc(func(context.Context, Batch) error {
			order = append(order, name)
			return err
		})
	}

	err := Chain(step("reply", errors.New("llm down")), step("scan", nil)).HandleBatch(context.Background(), Batch{})
	assert.EqualError(t, err, "llm down")
	assert.Equal(t, []string{"reply", "scan"}, order)

	assert.NoError(t, Chain().HandleBatch(context.Background(), Batch{}))
}
