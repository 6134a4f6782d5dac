package fanout

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/d60-Lab/favorite-notify/internal/model"
	"github.com/d60-Lab/favorite-notify/internal/queue"
	"github.com/d60-Lab/favorite-notify/internal/repository"
	"github.com/d60-Lab/favorite-notify/pkg/logger"
)

// Sender delivers one payload to its recipient.
type Sender interface {
	Send(ctx context.Context, p Payload) error
}

// Recipients loads users by id, skipping unknown ids.
type Recipients interface {
	Load(ctx context.Context, ids []uint64) ([]*model.User, error)
}

// Worker executes one dispatch unit.
type Worker struct {
	batches BatchStore
	posts   repository.PostRepository
	users   Recipients
	sender  Sender
}

func NewWorker(batches BatchStore, posts repository.PostRepository, users Recipients, sender Sender) *Worker {
	return &Worker{batches: batches, posts: posts, users: users, sender: sender}
}

// HandleTask is the queue.HandlerFunc for TaskKind.
func (w *Worker) HandleTask(ctx context.Context, t *queue.Task) error {
	var unit DispatchUnit
	if err := t.Decode(&unit); err != nil {
		return err
	}
	return w.Execute(ctx, t.BatchID, unit)
}

// Execute notifies every recipient of unit. A cancelled batch or a deleted post
// makes it a silent no-op. Per-recipient failures do not stop the loop; they
// are joined into the returned error.
func (w *Worker) Execute(ctx context.Context, batchID string, unit DispatchUnit) error {
	ctx, span := tracer.Start(ctx, "fanout.execute_unit")
	defer span.End()
	span.SetAttributes(
		attribute.String("batch.id", batchID),
		attribute.Int64("post.id", int64(unit.PostID)),
		attribute.Int("unit.size", len(unit.FollowerIDs)),
	)

	if batchID != "" {
		b, err := w.batches.Get(ctx, batchID)
		switch {
		case errors.Is(err, ErrBatchNotFound):
		case err != nil:
			return fmt.Errorf("load batch %s: %w", batchID, err)
		case b.Cancelled():
			logger.Debug("batch cancelled, skip unit", zap.String("batch_id", batchID))
			return nil
		}
	}

	post, err := w.posts.GetWithAuthor(ctx, unit.PostID)
	if errors.Is(err, repository.ErrNotFound) {
		logger.Debug("post gone, skip unit", zap.Uint64("post_id", unit.PostID), zap.String("batch_id", batchID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("load post %d: %w", unit.PostID, err)
	}

	recipients, err := w.users.Load(ctx, unit.FollowerIDs)
	if err != nil {
		return fmt.Errorf("load recipients: %w", err)
	}

	var errs []error
	sent := 0
	for _, r := range recipients {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.sender.Send(ctx, BuildPayload(post, post.Author, r)); err != nil {
			logger.Warn("notify recipient failed",
				zap.Uint64("user_id", r.ID),
				zap.Uint64("post_id", post.ID),
				zap.String("batch_id", batchID),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("recipient %d: %w", r.ID, err))
			continue
		}
		sent++
	}
	span.SetAttributes(attribute.Int("unit.sent", sent))
	if len(errs) > 0 {
		err := errors.Join(errs...)
		span.RecordError(err)
		span.SetStatus(codes.Error, "partial delivery")
		return err
	}
	return nil
}
