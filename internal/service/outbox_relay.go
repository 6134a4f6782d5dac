package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/d60-Lab/favorite-notify/internal/fanout"
	"github.com/d60-Lab/favorite-notify/internal/model"
	"github.com/d60-Lab/favorite-notify/internal/repository"
	"github.com/d60-Lab/favorite-notify/pkg/errtrack"
	"github.com/d60-Lab/favorite-notify/pkg/logger"
)

// PublishedHandler 由 fanout.Listener 实现
type PublishedHandler interface {
	HandlePostPublished(ctx context.Context, ev fanout.PostPublished) (*fanout.Batch, error)
}

type RelayConfig struct {
	Interval    time.Duration
	ClaimLimit  int
	MaxAttempts int
	Lease       time.Duration
}

// OutboxRelay polls pending outbox rows and hands each published post to the
// fan-out listener. A failed dispatch is retried on the next poll until
// MaxAttempts, then the row is marked failed.
type OutboxRelay struct {
	outbox    repository.OutboxRepository
	handler   PublishedHandler
	cfg       RelayConfig
	metricsCh chan time.Duration // outbox->dispatched latency
}

func NewOutboxRelay(outbox repository.OutboxRepository, handler PublishedHandler, cfg RelayConfig) *OutboxRelay {
	if cfg.Interval <= 0 {
		cfg.Interval = 200 * time.Millisecond
	}
	if cfg.ClaimLimit <= 0 {
		cfg.ClaimLimit = 64
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.Lease <= 0 {
		cfg.Lease = 5 * time.Minute
	}
	return &OutboxRelay{outbox: outbox, handler: handler, cfg: cfg, metricsCh: make(chan time.Duration, 65536)}
}

func (r *OutboxRelay) Metrics() <-chan time.Duration { return r.metricsCh }

// Start 启动轮询循环；返回的停止函数等待当前一轮处理结束
func (r *OutboxRelay) Start(ctx context.Context) func(context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(r.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				if _, err := r.ProcessOnce(runCtx); err != nil && runCtx.Err() == nil {
					logger.Warn("outbox relay poll failed", zap.Error(err))
				}
			}
		}
	}()
	return func(stopCtx context.Context) error {
		cancel()
		select {
		case <-done:
			return nil
		case <-stopCtx.Done():
			return stopCtx.Err()
		}
	}
}

// ProcessOnce claims one batch of rows and dispatches them; it returns the
// number of rows claimed.
func (r *OutboxRelay) ProcessOnce(ctx context.Context) (int, error) {
	rows, err := r.outbox.Claim(ctx, r.cfg.ClaimLimit, r.cfg.Lease)
	if err != nil {
		return 0, fmt.Errorf("claim outbox: %w", err)
	}
	for _, ob := range rows {
		r.relay(ctx, ob)
	}
	return len(rows), nil
}

func (r *OutboxRelay) relay(ctx context.Context, ob *model.Outbox) {
	batch, err := r.handler.HandlePostPublished(ctx, fanout.PostPublished{PostID: ob.PostID, AuthorID: ob.AuthorID})
	// 状态回写不受关停影响
	ctx = context.WithoutCancel(ctx)
	if err != nil {
		if ob.Attempts >= r.cfg.MaxAttempts {
			logger.Error("outbox dispatch gave up",
				zap.Uint64("outbox_id", ob.ID),
				zap.Uint64("post_id", ob.PostID),
				zap.Int("attempts", ob.Attempts),
				zap.Error(err),
			)
			errtrack.Capture(err, map[string]string{"component": "outbox_relay"})
			if mErr := r.outbox.MarkFailed(ctx, ob.ID, err.Error()); mErr != nil {
				logger.Warn("mark outbox failed", zap.Uint64("outbox_id", ob.ID), zap.Error(mErr))
			}
			return
		}
		logger.Warn("outbox dispatch failed, will retry",
			zap.Uint64("outbox_id", ob.ID),
			zap.Int("attempts", ob.Attempts),
			zap.Error(err),
		)
		if mErr := r.outbox.MarkRetry(ctx, ob.ID, err.Error()); mErr != nil {
			logger.Warn("mark outbox retry", zap.Uint64("outbox_id", ob.ID), zap.Error(mErr))
		}
		return
	}

	var batchID string
	var units int64
	if batch != nil {
		batchID, units = batch.ID, batch.TotalJobs
	}
	if mErr := r.outbox.MarkDone(ctx, ob.ID, batchID, units); mErr != nil {
		logger.Warn("mark outbox done", zap.Uint64("outbox_id", ob.ID), zap.Error(mErr))
	}
	if !ob.CreatedAt.IsZero() {
		select {
		case r.metricsCh <- time.Since(ob.CreatedAt):
		default:
		}
	}
}
