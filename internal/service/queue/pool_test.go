package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_PerKeyOrder(t *testing.T) {
	p := NewPool(4)

	var mu sync.Mutex
	order := map[string][]int{}
	for i := 0; i < 20; i++ {
		key := []string{"a", "b"}[i%2]
		i := i
		p.Submit(key, func() {
			time.Sleep(time.Millisecond)
			mu.Lock()
			order[key] = append(order[key], i)
			mu.Unlock()
		})
	}

	require.NoError(t, p.Wait(context.Background()))
	assert.Equal(t, []int{0, 2, 4, 6, 8, 10, 12, 14, 16, 18}, order["a"])
	assert.Equal(t, []int{1, 3, 5, 7, 9, 11, 13, 15, 17, 19}, order["b"])
}

func TestPool_BoundsConcurrency(t *testing.T) {
	p := NewPool(2)

	var running, peak int32
	for i := 0; i < 8; i++ {
		key := string(rune('a' + i))
		p.Submit(key, func() {
			n := atomic.AddInt32(&running, 1)
			for {
				old := atomic.LoadInt32(&peak)
				if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt32(&running, -1)
		})
	}

	require.NoError(t, p.Wait(context.Background()))
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestPool_WaitHonoursContext(t *testing.T) {
	p := NewPool(1)
	release := make(chan struct{})
	p.Submit("a", func() { <-release })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.Wait(ctx), context.DeadlineExceeded)

	close(release)
	require.NoError(t, p.Wait(context.Background()))
}

func TestPool_ClosedRejectsJobs(t *testing.T) {
	p := NewPool(1)

	var ran int32
	require.True(t, p.Submit("a", func() { atomic.AddInt32(&ran, 1) }))
	p.Close()
	assert.False(t, p.Submit("a", func() { atomic.AddInt32(&ran, 1) }))

	require.NoError(t, p.Wait(context.Background()))
	assert.Equal(t, int32(1), atomic.LoadInt32(&ran))
}
