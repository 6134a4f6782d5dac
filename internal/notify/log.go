package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/d60-Lab/favorite-notify/internal/fanout"
	"github.com/d60-Lab/favorite-notify/pkg/logger"
)

// LogChannel 仅记录日志，用于本地开发与压测
type LogChannel struct{}

func (LogChannel) Send(_ context.Context, p fanout.Payload) error {
	logger.Debug("notification",
		zap.Uint64("user_id", p.RecipientID),
		zap.Uint64("post_id", p.PostID),
		zap.String("subject", p.Subject),
	)
	return nil
}
