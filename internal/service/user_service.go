package service

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/d60-Lab/favorite-notify/internal/model"
	"github.com/d60-Lab/favorite-notify/internal/repository"
	"github.com/d60-Lab/favorite-notify/pkg/middleware"
)

type UserService struct {
	users  repository.UserRepository
	tokens *middleware.TokenIssuer
	cost   int
}

func NewUserService(users repository.UserRepository, tokens *middleware.TokenIssuer) *UserService {
	return &UserService{users: users, tokens: tokens, cost: bcrypt.DefaultCost}
}

func (s *UserService) Register(ctx context.Context, name, email, password string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, err
	}
	u := &model.User{Name: strings.TrimSpace(name), Email: email, Password: string(hash)}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Login 校验密码并签发 JWT
func (s *UserService) Login(ctx context.Context, email, password string) (string, *model.User, error) {
	u, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, repository.ErrNotFound) {
		return "", nil, ErrInvalidCredential
	}
	if err != nil {
		return "", nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) != nil {
		return "", nil, ErrInvalidCredential
	}
	token, err := s.tokens.Issue(u.ID)
	if err != nil {
		return "", nil, err
	}
	return token, u, nil
}

func (s *UserService) Get(ctx context.Context, id uint64) (*model.User, error) {
	return s.users.GetByID(ctx, id)
}
