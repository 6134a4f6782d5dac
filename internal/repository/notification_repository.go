package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/favorite-notify/internal/model"
)

type NotificationRepository interface {
	// Insert 幂等写入：(user, post, kind) 已存在时忽略，返回是否新插入
	Insert(ctx context.Context, n *model.Notification) (bool, error)
	ListByUser(ctx context.Context, userID uint64, offset, limit int) ([]*model.Notification, error)
	CountByPost(ctx context.Context, postID uint64) (int64, error)
}

type notificationRepository struct{ db *gorm.DB }

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Insert(ctx context.Context, n *model.Notification) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(n)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *notificationRepository) ListByUser(ctx context.Context, userID uint64, offset, limit int) ([]*model.Notification, error) {
	var res []*model.Notification
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").Order("id DESC").
		Offset(offset).Limit(limit).
		Find(&res).Error
	return res, err
}

func (r *notificationRepository) CountByPost(ctx context.Context, postID uint64) (int64, error) {
	var cnt int64
	err := r.db.WithContext(ctx).Model(&model.Notification{}).Where("post_id = ?", postID).Count(&cnt).Error
	return cnt, err
}
