package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPool(q Queue, retries int) *Pool {
	return NewPool(q, PoolConfig{
		Workers:       2,
		RetryMax:      retries,
		RetryBase:     time.Millisecond,
		RetryMaxDelay: 5 * time.Millisecond,
		Timeout:       time.Second,
	})
}

func TestPool_RetriesThenSucceeds(t *testing.T) {
	q := NewMemoryQueue(8)
	p := fastPool(q, 3)
	ctx := context.Background()

	var calls atomic.Int32
	p.Handle("flaky", func(ctx context.Context, t *Task) error {
		if calls.Add(1) < 3 {
			return errors.New("transient")
		}
		return nil
	})
	var results []error
	p.OnResult(func(_ context.Context, _ *Task, err error) { results = append(results, err) })

	require.NoError(t, q.Enqueue(ctx, mustTask(t, "flaky", "", nil)))
	require.NoError(t, p.RunOnce(ctx))

	assert.EqualValues(t, 3, calls.Load())
	require.Len(t, results, 1)
	assert.NoError(t, results[0])
	st := p.Stats()
	assert.EqualValues(t, 1, st.Succeeded)
	assert.EqualValues(t, 2, st.Retried)
}

func TestPool_NoRetryStopsImmediately(t *testing.T) {
	q := NewMemoryQueue(8)
	p := fastPool(q, 5)
	ctx := context.Background()

	var calls atomic.Int32
	p.Handle("bad", func(ctx context.Context, t *Task) error {
		calls.Add(1)
		return NoRetry(errors.New("permanent"))
	})
	var final error
	p.OnResult(func(_ context.Context, _ *Task, err error) { final = err })

	require.NoError(t, q.Enqueue(ctx, mustTask(t, "bad", "", nil)))
	require.NoError(t, p.RunOnce(ctx))

	assert.EqualValues(t, 1, calls.Load())
	assert.True(t, IsNoRetry(final))
	assert.EqualValues(t, 1, p.Stats().Failed)
}

func TestPool_UnknownKindAndPanic(t *testing.T) {
	q := NewMemoryQueue(8)
	p := fastPool(q, 1)
	ctx := context.Background()

	p.Handle("boom", func(ctx context.Context, t *Task) error { panic("kaboom") })
	var errs []error
	p.OnResult(func(_ context.Context, _ *Task, err error) { errs = append(errs, err) })

	require.NoError(t, q.Enqueue(ctx, mustTask(t, "missing", "", nil), mustTask(t, "boom", "", nil)))
	require.NoError(t, p.RunOnce(ctx))
	require.NoError(t, p.RunOnce(ctx))

	require.Len(t, errs, 2)
	assert.ErrorIs(t, errs[0], ErrNoHandler)
	assert.ErrorContains(t, errs[1], "panicked")
	assert.EqualValues(t, 2, p.Stats().Failed)
}

func TestPool_StartProcessesAllAndStops(t *testing.T) {
	q := NewMemoryQueue(128)
	p := fastPool(q, 0)
	ctx := context.Background()

	var mu sync.Mutex
	seen := map[string]bool{}
	var wg sync.WaitGroup
	p.Handle("ok", func(ctx context.Context, t *Task) error { return nil })
	p.OnResult(func(_ context.Context, t *Task, err error) {
		mu.Lock()
		seen[t.ID] = true
		mu.Unlock()
		wg.Done()
	})

	const n = 50
	wg.Add(n)
	for i := 0; i < n; i++ {
		require.NoError(t, q.Enqueue(ctx, mustTask(t, "ok", "", i)))
	}
	stop := p.Start(ctx)
	wg.Wait()

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, stop(stopCtx))
	assert.Len(t, seen, n)
	assert.EqualValues(t, n, p.Stats().Processed)
}

func TestPool_Backoff(t *testing.T) {
	p := NewPool(NewMemoryQueue(1), PoolConfig{RetryBase: 100 * time.Millisecond, RetryMaxDelay: time.Second, RetryJitter: 0.2})
	for attempt, want := range map[int]time.Duration{1: 100 * time.Millisecond, 2: 200 * time.Millisecond, 3: 400 * time.Millisecond, 10: time.Second} {
		d := p.backoff(attempt)
		assert.InDelta(t, float64(want), float64(d), float64(want)*0.21, "attempt %d", attempt)
	}
}
