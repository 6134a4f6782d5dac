// Package app assembles the process-wide dependency graph shared by the
// server, the worker and the benchmark binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/d60-Lab/favorite-notify/config"
	"github.com/d60-Lab/favorite-notify/internal/cache"
	"github.com/d60-Lab/favorite-notify/internal/fanout"
	"github.com/d60-Lab/favorite-notify/internal/model"
	"github.com/d60-Lab/favorite-notify/internal/notify"
	"github.com/d60-Lab/favorite-notify/internal/queue"
	"github.com/d60-Lab/favorite-notify/internal/repository"
	"github.com/d60-Lab/favorite-notify/internal/service"
	"github.com/d60-Lab/favorite-notify/pkg/database"
	"github.com/d60-Lab/favorite-notify/pkg/errtrack"
	"github.com/d60-Lab/favorite-notify/pkg/logger"
	"github.com/d60-Lab/favorite-notify/pkg/mail"
	"github.com/d60-Lab/favorite-notify/pkg/middleware"
	"github.com/d60-Lab/favorite-notify/pkg/tracing"
)

// App 进程内共享的依赖
type App struct {
	Config *config.Config
	DB     *gorm.DB
	Redis  *redis.Client
	Queue  queue.Queue

	Users         repository.UserRepository
	Posts         repository.PostRepository
	Favorites     repository.FavoriteRepository
	Outbox        repository.OutboxRepository
	Notifications repository.NotificationRepository

	Batches     *fanout.RedisBatchStore
	Coordinator *fanout.Coordinator
	Listener    *fanout.Listener
	Worker      *fanout.Worker
	Directory   *cache.UserDirectory

	Issuer          *middleware.TokenIssuer
	UserService     *service.UserService
	PostService     *service.PostService
	FavoriteService service.FavoriteService
}

// Observe 初始化 logger、sentry 与 tracing，返回的函数在退出前调用
func Observe(ctx context.Context, cfg *config.Config, release string) (func(context.Context), error) {
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	if err := errtrack.Init(cfg.Sentry, cfg.App.Env, release); err != nil {
		return nil, fmt.Errorf("init sentry: %w", err)
	}
	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	return func(ctx context.Context) {
		if err := shutdownTracing(ctx); err != nil {
			logger.Warn("tracing shutdown", zap.Error(err))
		}
		errtrack.Flush(2 * time.Second)
		_ = logger.Sync()
	}, nil
}

// New connects the database and redis, migrates the schema and builds every
// repository, service and fan-out component.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	db, err := database.InitDB(cfg)
	if err != nil {
		return nil, err
	}
	if err := db.WithContext(ctx).AutoMigrate(model.All()...); err != nil {
		closeDB(db)
		return nil, fmt.Errorf("migrate: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		closeDB(db)
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	q, err := newQueue(cfg.Queue, rdb)
	if err != nil {
		_ = rdb.Close()
		closeDB(db)
		return nil, err
	}

	a := &App{
		Config:        cfg,
		DB:            db,
		Redis:         rdb,
		Queue:         q,
		Users:         repository.NewUserRepository(db),
		Posts:         repository.NewPostRepository(db),
		Favorites:     repository.NewFavoriteRepository(db),
		Outbox:        repository.NewOutboxRepository(db),
		Notifications: repository.NewNotificationRepository(db),
	}

	a.Batches = fanout.NewRedisBatchStore(rdb, cfg.Fanout.BatchTTL)
	a.Coordinator = fanout.NewCoordinator(a.Batches, q)
	a.Listener = fanout.NewListener(a.Posts, fanout.NewResolver(a.Favorites, cfg.Fanout.PageSize), a.Coordinator, cfg.Fanout.UnitSize)
	a.Directory = cache.NewUserDirectory(a.Users, rdb, cfg.Fanout.UserCacheTTL)
	a.Worker = fanout.NewWorker(a.Batches, a.Posts, a.Directory, a.channels())

	a.Issuer = middleware.NewTokenIssuer(cfg.JWT.Secret, cfg.JWT.Expire)
	a.UserService = service.NewUserService(a.Users, a.Issuer)
	a.PostService = service.NewPostService(db, a.Posts)
	a.FavoriteService = service.NewFavoriteService(a.Favorites, a.Users, a.Posts)
	return a, nil
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func newQueue(cfg config.QueueConfig, rdb *redis.Client) (queue.Queue, error) {
	switch cfg.Driver {
	case "memory":
		return queue.NewMemoryQueue(cfg.Capacity), nil
	case "redis", "":
		return queue.NewRedisQueue(rdb, cfg.Name), nil
	case "kafka":
		return queue.NewKafkaQueue(queue.KafkaConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
			GroupID: cfg.Kafka.GroupID,
		})
	default:
		return nil, fmt.Errorf("unsupported queue driver: %s", cfg.Driver)
	}
}

func (a *App) channels() notify.Multi {
	chs := notify.Multi{notify.NewDatabaseChannel(a.Notifications)}
	if a.Config.Mail.Enabled {
		chs = append(chs, notify.NewMailChannel(mail.NewSender(a.Config.Mail), a.Config.App.BaseURL))
	}
	if a.Config.App.Env == "development" {
		chs = append(chs, notify.LogChannel{})
	}
	return chs
}

// NewPool 返回已注册投递 handler 与批次回写 hook 的 worker 池
func (a *App) NewPool(workers int) *queue.Pool {
	qc := a.Config.Queue
	if workers <= 0 {
		workers = qc.Workers
	}
	pool := queue.NewPool(a.Queue, queue.PoolConfig{
		Workers:       workers,
		RetryMax:      qc.RetryMax,
		RetryBase:     qc.RetryBase,
		RetryMaxDelay: qc.RetryMaxDelay,
		Timeout:       qc.Timeout,
		RatePerSec:    float64(qc.RatePerSec),
	})
	pool.Handle(fanout.TaskKind, a.Worker.HandleTask)
	pool.OnResult(a.Coordinator.RecordResult)
	return pool
}

// NewRelay 返回把 outbox 行交给 fan-out listener 的转发器
func (a *App) NewRelay() *service.OutboxRelay {
	rc := a.Config.Relay
	return service.NewOutboxRelay(a.Outbox, a.Listener, service.RelayConfig{
		Interval:    rc.Interval,
		ClaimLimit:  rc.ClaimLimit,
		MaxAttempts: rc.MaxAttempts,
		Lease:       rc.Lease,
	})
}

func (a *App) NewJanitor() *fanout.Janitor {
	jc := a.Config.Janitor
	return fanout.NewJanitor(fanout.JanitorConfig{
		Schedule:        jc.Schedule,
		BatchRetention:  jc.BatchRetention,
		OutboxRetention: jc.OutboxRetention,
	}, a.Batches, a.Outbox)
}

func (a *App) Close() error {
	var errs []error
	if err := a.Queue.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close queue: %w", err))
	}
	if err := a.Redis.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close redis: %w", err))
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	return errors.Join(errs...)
}
