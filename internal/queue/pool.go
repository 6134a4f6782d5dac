package queue

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/d60-Lab/favorite-notify/pkg/errtrack"
	"github.com/d60-Lab/favorite-notify/pkg/logger"
)

// HandlerFunc executes one task. Return NoRetry to fail without retrying.
type HandlerFunc func(ctx context.Context, t *Task) error

// ResultHook observes the final outcome of every task (err is nil on success).
type ResultHook func(ctx context.Context, t *Task, err error)

type PoolConfig struct {
	Workers       int
	RetryMax      int
	RetryBase     time.Duration
	RetryMaxDelay time.Duration
	RetryJitter   float64
	Timeout       time.Duration
	// RatePerSec 0 表示不限速
	RatePerSec float64
}

func (c PoolConfig) withDefaults() PoolConfig {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.RetryMax < 0 {
		c.RetryMax = 0
	}
	if c.RetryBase <= 0 {
		c.RetryBase = 500 * time.Millisecond
	}
	if c.RetryMaxDelay <= 0 {
		c.RetryMaxDelay = 15 * time.Second
	}
	if c.RetryJitter <= 0 {
		c.RetryJitter = 0.2
	}
	if c.Timeout <= 0 {
		c.Timeout = time.Minute
	}
	return c
}

// PoolStats 计数快照
type PoolStats struct {
	Processed int64
	Succeeded int64
	Failed    int64
	Retried   int64
}

// Pool pulls tasks from a Queue and dispatches them to handlers by Kind with
// bounded concurrency, inline retries and an optional global rate limit.
type Pool struct {
	q        Queue
	cfg      PoolConfig
	limiter  *rate.Limiter
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	hooks    []ResultHook

	metricsCh chan time.Duration

	processed atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
	retried   atomic.Int64
}

func NewPool(q Queue, cfg PoolConfig) *Pool {
	cfg = cfg.withDefaults()
	p := &Pool{
		q:         q,
		cfg:       cfg,
		handlers:  make(map[string]HandlerFunc),
		metricsCh: make(chan time.Duration, 65536),
	}
	if cfg.RatePerSec > 0 {
		burst := int(cfg.RatePerSec)
		if burst < 1 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), burst)
	}
	return p
}

func (p *Pool) Handle(kind string, h HandlerFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[kind] = h
}

func (p *Pool) OnResult(h ResultHook) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hooks = append(p.hooks, h)
}

// Start launches the workers and returns a stop func that waits for in-flight
// tasks until ctx expires.
func (p *Pool) Start(ctx context.Context) func(context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	for i := 0; i < p.cfg.Workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.loop(runCtx, id)
		}(i)
	}
	return func(stopCtx context.Context) error {
		cancel()
		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()
		select {
		case <-done:
			return nil
		case <-stopCtx.Done():
			return stopCtx.Err()
		}
	}
}

func (p *Pool) loop(ctx context.Context, id int) {
	for {
		t, err := p.q.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, ErrClosed) || ctx.Err() != nil {
				return
			}
			logger.Warn("dequeue failed", zap.Int("worker", id), zap.Error(err))
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}
		p.process(ctx, t)
	}
}

// RunOnce dequeues and processes a single task; used by tests and benchmarks
// that drive the pool synchronously.
func (p *Pool) RunOnce(ctx context.Context) error {
	t, err := p.q.Dequeue(ctx)
	if err != nil {
		return err
	}
	p.process(ctx, t)
	return nil
}

func (p *Pool) process(ctx context.Context, t *Task) {
	err := p.execute(ctx, t)
	if ctx.Err() != nil && err != nil {
		// 关停中断：不回调也不 ack，交给队列重新投递
		logger.Info("task interrupted by shutdown", zap.String("task", t.ID), zap.String("kind", t.Kind))
		return
	}

	p.processed.Add(1)
	if err != nil {
		p.failed.Add(1)
		logger.Error("task failed",
			zap.String("task", t.ID),
			zap.String("kind", t.Kind),
			zap.String("batch", t.BatchID),
			zap.Int("attempts", t.Attempts),
			zap.Error(err),
		)
		errtrack.Capture(err, map[string]string{"task_kind": t.Kind, "batch_id": t.BatchID})
	} else {
		p.succeeded.Add(1)
	}

	// 回调与 ack 不受调用方取消影响
	hookCtx := context.WithoutCancel(ctx)
	p.mu.RLock()
	hooks := p.hooks
	p.mu.RUnlock()
	for _, h := range hooks {
		h(hookCtx, t, err)
	}
	if ackErr := p.q.Ack(hookCtx, t); ackErr != nil {
		logger.Warn("ack failed", zap.String("task", t.ID), zap.Error(ackErr))
	}
	if !t.EnqueuedAt.IsZero() {
		select {
		case p.metricsCh <- time.Since(t.EnqueuedAt):
		default:
		}
	}
}

func (p *Pool) execute(ctx context.Context, t *Task) error {
	p.mu.RLock()
	h, ok := p.handlers[t.Kind]
	p.mu.RUnlock()
	if !ok {
		return NoRetry(fmt.Errorf("%w: %s", ErrNoHandler, t.Kind))
	}

	var err error
	for attempt := 0; attempt <= p.cfg.RetryMax; attempt++ {
		if attempt > 0 {
			p.retried.Add(1)
			select {
			case <-time.After(p.backoff(attempt)):
			case <-ctx.Done():
				return err
			}
		}
		if p.limiter != nil {
			if werr := p.limiter.Wait(ctx); werr != nil {
				return werr
			}
		}
		t.Attempts++
		err = p.call(ctx, h, t)
		if err == nil || IsNoRetry(err) || ctx.Err() != nil {
			return err
		}
	}
	return err
}

func (p *Pool) call(ctx context.Context, h HandlerFunc, t *Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			errtrack.Recover(r, map[string]string{"task_kind": t.Kind})
			err = fmt.Errorf("task %s panicked: %v", t.ID, r)
		}
	}()
	callCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()
	return h(callCtx, t)
}

// backoff 指数退避加抖动，attempt 从 1 开始
func (p *Pool) backoff(attempt int) time.Duration {
	d := p.cfg.RetryBase << (attempt - 1)
	if d <= 0 || d > p.cfg.RetryMaxDelay {
		d = p.cfg.RetryMaxDelay
	}
	jitter := 1 + p.cfg.RetryJitter*(2*rand.Float64()-1)
	return time.Duration(float64(d) * jitter)
}

// Metrics 返回任务从入队到完成的耗时通道
func (p *Pool) Metrics() <-chan time.Duration { return p.metricsCh }

func (p *Pool) Stats() PoolStats {
	return PoolStats{
		Processed: p.processed.Load(),
		Succeeded: p.succeeded.Load(),
		Failed:    p.failed.Load(),
		Retried:   p.retried.Load(),
	}
}
