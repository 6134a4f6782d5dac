package fanout

import (
	"context"
	"fmt"
	"iter"

	"github.com/d60-Lab/favorite-notify/internal/repository"
)

// Resolver pages the distinct ids of users who favorited an author, ascending.
type Resolver struct {
	favorites repository.FavoriteRepository
	pageSize  int
}

func NewResolver(favorites repository.FavoriteRepository, pageSize int) *Resolver {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Resolver{favorites: favorites, pageSize: pageSize}
}

func (r *Resolver) Pages(ctx context.Context, authorID uint64) iter.Seq2[[]uint64, error] {
	return r.PagesAfter(ctx, authorID, 0)
}

// PagesAfter resumes paging after cursor (the last follower id already seen).
// A query error is yielded once and ends the sequence.
func (r *Resolver) PagesAfter(ctx context.Context, authorID, cursor uint64) iter.Seq2[[]uint64, error] {
	return func(yield func([]uint64, error) bool) {
		for {
			ids, err := r.favorites.ListFollowerIDs(ctx, authorID, cursor, r.pageSize)
			if err != nil {
				yield(nil, fmt.Errorf("list followers of user %d after %d: %w", authorID, cursor, err))
				return
			}
			if len(ids) == 0 {
				return
			}
			if !yield(ids, nil) {
				return
			}
			if len(ids) < r.pageSize {
				return
			}
			cursor = ids[len(ids)-1]
		}
	}
}
