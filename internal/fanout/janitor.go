package fanout

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/d60-Lab/favorite-notify/internal/repository"
	"github.com/d60-Lab/favorite-notify/pkg/logger"
)

type JanitorConfig struct {
	Schedule        string
	BatchRetention  time.Duration
	OutboxRetention time.Duration
}

// Janitor periodically prunes finished batches and processed outbox rows.
type Janitor struct {
	cfg     JanitorConfig
	batches BatchStore
	outbox  repository.OutboxRepository
	c       *cron.Cron
}

func NewJanitor(cfg JanitorConfig, batches BatchStore, outbox repository.OutboxRepository) *Janitor {
	if cfg.Schedule == "" {
		cfg.Schedule = "@every 10m"
	}
	if cfg.BatchRetention <= 0 {
		cfg.BatchRetention = 24 * time.Hour
	}
	if cfg.OutboxRetention <= 0 {
		cfg.OutboxRetention = 72 * time.Hour
	}
	return &Janitor{cfg: cfg, batches: batches, outbox: outbox}
}

// Start schedules the sweep and returns a stop func that waits for a running
// sweep to complete.
func (j *Janitor) Start() (func(context.Context) error, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	j.c = cron.New(cron.WithParser(parser), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := j.c.AddFunc(j.cfg.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := j.Sweep(ctx, time.Now()); err != nil {
			logger.Warn("janitor sweep failed", zap.Error(err))
		}
	}); err != nil {
		return nil, fmt.Errorf("janitor schedule %q: %w", j.cfg.Schedule, err)
	}
	j.c.Start()
	return func(ctx context.Context) error {
		stopped := j.c.Stop()
		select {
		case <-stopped.Done():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}, nil
}

// Sweep 清理一次；now 便于测试注入
func (j *Janitor) Sweep(ctx context.Context, now time.Time) error {
	batches, err := j.batches.Prune(ctx, now.Add(-j.cfg.BatchRetention))
	if err != nil {
		return fmt.Errorf("prune batches: %w", err)
	}
	rows, err := j.outbox.PurgeDone(ctx, now.Add(-j.cfg.OutboxRetention))
	if err != nil {
		return fmt.Errorf("purge outbox: %w", err)
	}
	if batches > 0 || rows > 0 {
		logger.Info("janitor sweep", zap.Int("batches_pruned", batches), zap.Int64("outbox_purged", rows))
	}
	return nil
}
