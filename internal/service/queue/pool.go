package queue

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Pool runs jobs on at most n goroutines at a time. Jobs submitted under
// the same key run one after another in submission order.
type Pool struct {
	sem *semaphore.Weighted

	mu     sync.Mutex
	queues map[string][]func()
	closed bool
	wg     sync.WaitGroup
}

func NewPool(n int) *Pool {
	if n <= 0 {
		n = 1
	}
	return &Pool{
		sem:    semaphore.NewWeighted(int64(n)),
		queues: make(map[string][]func()),
	}
}

// Submit queues job under key. It returns false, without running job,
// once the pool is closed.
func (p *Pool) Submit(key string, job func()) bool {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return false
	}
	q := p.queues[key]
	p.queues[key] = append(q, job)
	p.wg.Add(1)
	busy := len(q) > 0
	p.mu.Unlock()

	if !busy {
		go p.drain(key)
	}
	return true
}

// Close stops accepting jobs. Jobs already submitted still run.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}

// drain runs the queue of key until it is empty. The head job stays in the
// queue while it runs so that Submit knows a drainer is active.
func (p *Pool) drain(key string) {
	for {
		p.mu.Lock()
		q := p.queues[key]
		if len(q) == 0 {
			delete(p.queues, key)
			p.mu.Unlock()
			return
		}
		job := q[0]
		p.mu.Unlock()

		// Background context: once accepted a job always runs.
		_ = p.sem.Acquire(context.Background(), 1)
		job()
		p.sem.Release(1)

		p.mu.Lock()
		p.queues[key] = p.queues[key][1:]
		p.mu.Unlock()
		p.wg.Done()
	}
}

// Wait blocks until every submitted job has finished or ctx is done.
func (p *Pool) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
