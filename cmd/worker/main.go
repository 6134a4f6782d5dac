// Command worker consumes notification tasks from the shared queue and
// delivers them to followers.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/d60-Lab/favorite-notify/config"
	"github.com/d60-Lab/favorite-notify/internal/app"
	"github.com/d60-Lab/favorite-notify/internal/queue"
	"github.com/d60-Lab/favorite-notify/pkg/logger"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	flush, err := app.Observe(ctx, cfg, version)
	if err != nil {
		return err
	}
	defer flush(context.Background())

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	switch q := a.Queue.(type) {
	case *queue.MemoryQueue:
		logger.Warn("memory queue is process-local; this worker will never see tasks enqueued by the server")
	case *queue.RedisQueue:
		if cfg.Queue.RequeueOnStart {
			n, err := q.Requeue(ctx)
			if err != nil {
				return fmt.Errorf("requeue in-flight tasks: %w", err)
			}
			logger.Info("requeued in-flight tasks", zap.Int("count", n))
		}
	}

	pool := a.NewPool(cfg.Queue.Workers)
	stop := pool.Start(ctx)
	logger.Info("worker started",
		zap.String("driver", cfg.Queue.Driver),
		zap.Int("workers", cfg.Queue.Workers),
		zap.String("version", version),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info("shutting down", zap.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := stop(shutdownCtx); err != nil {
		logger.Warn("worker pool shutdown", zap.Error(err))
	}
	st := pool.Stats()
	logger.Info("worker stopped",
		zap.Int64("processed", st.Processed),
		zap.Int64("succeeded", st.Succeeded),
		zap.Int64("failed", st.Failed),
		zap.Int64("retried", st.Retried),
	)
	return nil
}
