// Package errtrack reports unexpected failures to Sentry when a DSN is configured.
package errtrack

import (
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/d60-Lab/favorite-notify/config"
)

var enabled atomic.Bool

// Init 初始化 sentry；DSN 为空时所有上报都是空操作
func Init(cfg config.SentryConfig, env, release string) error {
	if cfg.DSN == "" {
		return nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      env,
		Release:          release,
		TracesSampleRate: cfg.TracesSampleRate,
	})
	if err != nil {
		return err
	}
	enabled.Store(true)
	return nil
}

// Capture 上报错误，tags 会作为 sentry 标签附加
func Capture(err error, tags map[string]string) {
	if err == nil || !enabled.Load() {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		sentry.CaptureException(err)
	})
}

// Recover 上报 panic 值
func Recover(v interface{}, tags map[string]string) {
	if v == nil || !enabled.Load() {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		for k, val := range tags {
			scope.SetTag(k, val)
		}
		sentry.CurrentHub().Recover(v)
	})
}

// Flush 进程退出前等待事件发送
func Flush(timeout time.Duration) {
	if enabled.Load() {
		sentry.Flush(timeout)
	}
}
