package service

import (
	"context"

	"gorm.io/gorm"

	"github.com/d60-Lab/favorite-notify/internal/model"
	"github.com/d60-Lab/favorite-notify/internal/repository"
)

// PostService 写 posts 时在同一事务内写 outbox，发布事件由 OutboxRelay 异步转发
type PostService struct {
	db    *gorm.DB
	posts repository.PostRepository
}

func NewPostService(db *gorm.DB, posts repository.PostRepository) *PostService {
	return &PostService{db: db, posts: posts}
}

func (s *PostService) Create(ctx context.Context, authorID uint64, title, body string) (*model.Post, error) {
	post := &model.Post{UserID: authorID, Title: title, Body: body}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repository.NewPostRepository(tx).Create(ctx, post); err != nil {
			return err
		}
		return repository.NewOutboxRepository(tx).Create(ctx, &model.Outbox{PostID: post.ID, AuthorID: authorID})
	})
	if err != nil {
		return nil, err
	}
	return post, nil
}

// Update 只有作者可以修改标题与正文；修改不会再次通知粉丝
func (s *PostService) Update(ctx context.Context, userID, postID uint64, title, body string) (*model.Post, error) {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.UserID != userID {
		return nil, ErrNotPostAuthor
	}
	if err := s.posts.UpdateContent(ctx, postID, title, body); err != nil {
		return nil, err
	}
	return s.posts.GetWithAuthor(ctx, postID)
}

func (s *PostService) Get(ctx context.Context, postID uint64) (*model.Post, error) {
	return s.posts.GetWithAuthor(ctx, postID)
}

func (s *PostService) List(ctx context.Context, page, pageSize int) ([]*model.Post, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	return s.posts.List(ctx, (page-1)*pageSize, pageSize)
}

// Delete 只有作者可以删除；尚未送达的通知单元在 worker 中发现帖子不存在后跳过
func (s *PostService) Delete(ctx context.Context, userID, postID uint64) error {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	if post.UserID != userID {
		return ErrNotPostAuthor
	}
	return s.posts.Delete(ctx, postID)
}
