package fanout

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/d60-Lab/favorite-notify/internal/repository"
	"github.com/d60-Lab/favorite-notify/pkg/logger"
)

// Listener reacts to a published post: resolve, partition, dispatch. It only
// pages ids and enqueues; delivery happens in the worker pool.
type Listener struct {
	posts    repository.PostRepository
	resolver *Resolver
	coord    *Coordinator
	unitSize int
}

func NewListener(posts repository.PostRepository, resolver *Resolver, coord *Coordinator, unitSize int) *Listener {
	if unitSize <= 0 {
		unitSize = DefaultUnitSize
	}
	return &Listener{posts: posts, resolver: resolver, coord: coord, unitSize: unitSize}
}

// HandlePostPublished returns the dispatched batch, or nil when the author has
// no followers or the post no longer exists.
func (l *Listener) HandlePostPublished(ctx context.Context, ev PostPublished) (*Batch, error) {
	authorID := ev.AuthorID
	if authorID == 0 {
		post, err := l.posts.GetByID(ctx, ev.PostID)
		if errors.Is(err, repository.ErrNotFound) {
			logger.Info("published post not found, skip fanout", zap.Uint64("post_id", ev.PostID))
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("load post %d: %w", ev.PostID, err)
		}
		authorID = post.UserID
	}

	units := Partition(ev.PostID, l.resolver.Pages(ctx, authorID), l.unitSize)
	batch, err := l.coord.Dispatch(ctx, ev.PostID, units)
	if batch == nil && err == nil {
		logger.Debug("author has no followers", zap.Uint64("post_id", ev.PostID), zap.Uint64("author_id", authorID))
	}
	return batch, err
}
