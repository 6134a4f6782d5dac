// Command server runs the HTTP API together with the outbox relay and the
// batch janitor. Delivery workers can be embedded with server.embedded_workers.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/d60-Lab/favorite-notify/config"
	"github.com/d60-Lab/favorite-notify/internal/api"
	"github.com/d60-Lab/favorite-notify/internal/api/handler"
	"github.com/d60-Lab/favorite-notify/internal/app"
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

	if err := api.RegisterValidators(); err != nil {
		return fmt.Errorf("register validators: %w", err)
	}

	h := handler.New(a.UserService, a.PostService, a.FavoriteService, a.Notifications, a.Coordinator)
	router := api.NewRouter(api.RouterConfig{
		Mode:          cfg.Server.Mode,
		ServiceName:   cfg.Tracing.ServiceName,
		OperatorToken: cfg.Server.OperatorToken,
		Tracing:       cfg.Tracing.Enabled,
	}, h, a.Issuer)

	stopRelay := a.NewRelay().Start(ctx)
	stopJanitor, err := a.NewJanitor().Start()
	if err != nil {
		return err
	}
	var stopPool func(context.Context) error
	if n := cfg.Server.EmbeddedWorkers; n > 0 {
		stopPool = a.NewPool(n).Start(ctx)
		logger.Info("embedded workers started", zap.Int("workers", n))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr), zap.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	// 1. 停止接收请求 2. 停止 relay，不再产生新批次 3. 等待 worker 处理完当前任务
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if err := stopRelay(shutdownCtx); err != nil {
		logger.Warn("relay shutdown", zap.Error(err))
	}
	if stopPool != nil {
		if err := stopPool(shutdownCtx); err != nil {
			logger.Warn("worker pool shutdown", zap.Error(err))
		}
	}
	if err := stopJanitor(shutdownCtx); err != nil {
		logger.Warn("janitor shutdown", zap.Error(err))
	}
	cancel()
	logger.Info("server stopped")
	return nil
}
