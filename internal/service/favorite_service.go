package service

import (
	"context"

	"github.com/d60-Lab/favorite-notify/internal/model"
	"github.com/d60-Lab/favorite-notify/internal/repository"
)

// FavoriteService 收藏服务；收藏用户即订阅其新帖通知
type FavoriteService interface {
	// CanFavorite 返回不允许收藏的原因（ErrFavoriteSelf / ErrAlreadyFavorited），允许时为 nil
	CanFavorite(ctx context.Context, userID uint64, target model.Target) error
	Mark(ctx context.Context, userID uint64, target model.Target) error
	Unmark(ctx context.Context, userID uint64, target model.Target) error
	// List 按类型分组返回收藏目标，已删除的目标不出现
	List(ctx context.Context, userID uint64, page, pageSize int) (*FavoriteList, error)
}

// UserRef 收藏列表中的用户只暴露 id 与 name
type UserRef struct {
	ID   uint64 `json:"id"`
	Name string `json:"name"`
}

type FavoriteList struct {
	Posts []*model.Post `json:"posts"`
	Users []UserRef     `json:"users"`
}

type favoriteService struct {
	favorites repository.FavoriteRepository
	users     repository.UserRepository
	posts     repository.PostRepository
}

func NewFavoriteService(favorites repository.FavoriteRepository, users repository.UserRepository, posts repository.PostRepository) FavoriteService {
	return &favoriteService{favorites: favorites, users: users, posts: posts}
}

func (s *favoriteService) CanFavorite(ctx context.Context, userID uint64, target model.Target) error {
	if target.Kind == model.TargetUser && target.ID == userID {
		return ErrFavoriteSelf
	}
	exists, err := s.favorites.Exists(ctx, userID, target)
	if err != nil {
		return err
	}
	if exists {
		return ErrAlreadyFavorited
	}
	return nil
}

// Mark 目标不存在时返回 repository.ErrNotFound
func (s *favoriteService) Mark(ctx context.Context, userID uint64, target model.Target) error {
	if err := s.checkTarget(ctx, target); err != nil {
		return err
	}
	if err := s.CanFavorite(ctx, userID, target); err != nil {
		return err
	}
	return s.favorites.Create(ctx, userID, target)
}

func (s *favoriteService) Unmark(ctx context.Context, userID uint64, target model.Target) error {
	return s.favorites.Delete(ctx, userID, target)
}

func (s *favoriteService) List(ctx context.Context, userID uint64, page, pageSize int) (*FavoriteList, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	favs, err := s.favorites.ListByUser(ctx, userID, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, err
	}

	var postIDs, userIDs []uint64
	for _, f := range favs {
		switch f.FavoritableType {
		case model.TargetPost:
			postIDs = append(postIDs, f.FavoritableID)
		case model.TargetUser:
			userIDs = append(userIDs, f.FavoritableID)
		}
	}
	posts, err := s.posts.FindByIDs(ctx, postIDs)
	if err != nil {
		return nil, err
	}
	users, err := s.users.FindByIDs(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	postByID := make(map[uint64]*model.Post, len(posts))
	for _, p := range posts {
		if p.Author != nil {
			postByID[p.ID] = p
		}
	}
	userByID := make(map[uint64]*model.User, len(users))
	for _, u := range users {
		userByID[u.ID] = u
	}

	// 保持收藏顺序
	out := &FavoriteList{Posts: []*model.Post{}, Users: []UserRef{}}
	for _, id := range postIDs {
		if p, ok := postByID[id]; ok {
			out.Posts = append(out.Posts, p)
		}
	}
	for _, id := range userIDs {
		if u, ok := userByID[id]; ok {
			out.Users = append(out.Users, UserRef{ID: u.ID, Name: u.Name})
		}
	}
	return out, nil
}

func (s *favoriteService) checkTarget(ctx context.Context, target model.Target) error {
	var err error
	switch target.Kind {
	case model.TargetUser:
		_, err = s.users.GetByID(ctx, target.ID)
	case model.TargetPost:
		_, err = s.posts.GetByID(ctx, target.ID)
	default:
		err = repository.ErrNotFound
	}
	return err
}
