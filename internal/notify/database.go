package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/d60-Lab/favorite-notify/internal/fanout"
	"github.com/d60-Lab/favorite-notify/internal/model"
	"github.com/d60-Lab/favorite-notify/internal/repository"
)

// DatabaseChannel stores an in-app notification; a redelivered payload for the
// same (recipient, post, kind) is ignored.
type DatabaseChannel struct {
	repo repository.NotificationRepository
}

func NewDatabaseChannel(repo repository.NotificationRepository) *DatabaseChannel {
	return &DatabaseChannel{repo: repo}
}

func (c *DatabaseChannel) Send(ctx context.Context, p fanout.Payload) error {
	data, err := json.Marshal(p.Data())
	if err != nil {
		return err
	}
	n := &model.Notification{
		UserID:  p.RecipientID,
		PostID:  p.PostID,
		Kind:    p.Kind,
		Subject: p.Subject,
		Data:    string(data),
	}
	if _, err := c.repo.Insert(ctx, n); err != nil {
		return fmt.Errorf("store notification for user %d: %w", p.RecipientID, err)
	}
	return nil
}
