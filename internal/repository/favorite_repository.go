package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/d60-Lab/favorite-notify/internal/model"
)

type FavoriteRepository interface {
	Create(ctx context.Context, userID uint64, target model.Target) error
	Delete(ctx context.Context, userID uint64, target model.Target) error
	Exists(ctx context.Context, userID uint64, target model.Target) (bool, error)
	ListByUser(ctx context.Context, userID uint64, offset, limit int) ([]*model.Favorite, error)
	// ListFollowerIDs 按 user_id 升序返回收藏了作者（user 类型）的用户 ID，keyset 分页：只返回 > afterID 的部分
	ListFollowerIDs(ctx context.Context, authorID, afterID uint64, limit int) ([]uint64, error)
}

type favoriteRepository struct{ db *gorm.DB }

func NewFavoriteRepository(db *gorm.DB) FavoriteRepository { return &favoriteRepository{db: db} }

func (r *favoriteRepository) Create(ctx context.Context, userID uint64, target model.Target) error {
	return r.db.WithContext(ctx).Create(model.NewFavorite(userID, target)).Error
}

func (r *favoriteRepository) Delete(ctx context.Context, userID uint64, target model.Target) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND favoritable_type = ? AND favoritable_id = ?", userID, target.Kind, target.ID).
		Delete(&model.Favorite{}).Error
}

func (r *favoriteRepository) Exists(ctx context.Context, userID uint64, target model.Target) (bool, error) {
	var cnt int64
	if err := r.db.WithContext(ctx).
		Model(&model.Favorite{}).
		Where("user_id = ? AND favoritable_type = ? AND favoritable_id = ?", userID, target.Kind, target.ID).
		Count(&cnt).Error; err != nil {
		return false, err
	}
	return cnt > 0, nil
}

func (r *favoriteRepository) ListByUser(ctx context.Context, userID uint64, offset, limit int) ([]*model.Favorite, error) {
	var res []*model.Favorite
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("id").Offset(offset).Limit(limit).Find(&res).Error
	return res, err
}

func (r *favoriteRepository) ListFollowerIDs(ctx context.Context, authorID, afterID uint64, limit int) ([]uint64, error) {
	ids := make([]uint64, 0, limit)
	err := r.db.WithContext(ctx).
		Model(&model.Favorite{}).
		Distinct("user_id").
		Where("favoritable_type = ? AND favoritable_id = ? AND user_id > ?", model.TargetUser, authorID, afterID).
		Order("user_id").
		Limit(limit).
		Pluck("user_id", &ids).Error
	return ids, err
}
