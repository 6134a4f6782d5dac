package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/d60-Lab/favorite-notify/internal/model"
)

type PostRepository interface {
	Create(ctx context.Context, p *model.Post) error
	// UpdateContent 只更新标题与正文，作者不可变
	UpdateContent(ctx context.Context, id uint64, title, body string) error
	GetByID(ctx context.Context, id uint64) (*model.Post, error)
	// GetWithAuthor 连同作者一起加载
	GetWithAuthor(ctx context.Context, id uint64) (*model.Post, error)
	// List 新帖在前，带作者
	List(ctx context.Context, offset, limit int) ([]*model.Post, error)
	// FindByIDs 带作者批量加载，不存在的 ID 直接忽略
	FindByIDs(ctx context.Context, ids []uint64) ([]*model.Post, error)
	Delete(ctx context.Context, id uint64) error
}

type postRepository struct{ db *gorm.DB }

func NewPostRepository(db *gorm.DB) PostRepository { return &postRepository{db: db} }

func (r *postRepository) Create(ctx context.Context, p *model.Post) error {
	return r.db.WithContext(ctx).Omit("Author").Create(p).Error
}

func (r *postRepository) UpdateContent(ctx context.Context, id uint64, title, body string) error {
	res := r.db.WithContext(ctx).Model(&model.Post{}).Where("id = ?", id).
		Updates(map[string]any{"title": title, "body": body})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id uint64) (*model.Post, error) {
	var p model.Post
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (r *postRepository) GetWithAuthor(ctx context.Context, id uint64) (*model.Post, error) {
	var p model.Post
	if err := r.db.WithContext(ctx).Preload("Author").First(&p, id).Error; err != nil {
		return nil, notFound(err)
	}
	if p.Author == nil {
		// 作者已被删除，按帖子不存在处理
		return nil, ErrNotFound
	}
	return &p, nil
}

func (r *postRepository) List(ctx context.Context, offset, limit int) ([]*model.Post, error) {
	var res []*model.Post
	err := r.db.WithContext(ctx).Preload("Author").
		Order("created_at DESC").Order("id DESC").
		Offset(offset).Limit(limit).Find(&res).Error
	return res, err
}

func (r *postRepository) FindByIDs(ctx context.Context, ids []uint64) ([]*model.Post, error) {
	if len(ids) == 0 {
		return []*model.Post{}, nil
	}
	var res []*model.Post
	err := r.db.WithContext(ctx).Preload("Author").Where("id IN ?", ids).Order("id").Find(&res).Error
	return res, err
}

func (r *postRepository) Delete(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Delete(&model.Post{}, id).Error
}
