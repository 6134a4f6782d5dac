package service

import "errors"

var (
	ErrFavoriteSelf      = errors.New("cannot favorite yourself")
	ErrAlreadyFavorited  = errors.New("already in favorites")
	ErrNotPostAuthor     = errors.New("not the author of this post")
	ErrEmailTaken        = errors.New("email already registered")
	ErrInvalidCredential = errors.New("invalid email or password")
)

// Reason 返回面向用户的拒绝原因
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrFavoriteSelf):
		return "You cannot favorite yourself."
	case errors.Is(err, ErrAlreadyFavorited):
		return "This item is already in your favorites."
	default:
		return err.Error()
	}
}
