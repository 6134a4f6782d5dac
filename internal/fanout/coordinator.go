package fanout

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/d60-Lab/favorite-notify/internal/queue"
	"github.com/d60-Lab/favorite-notify/pkg/logger"
)

var tracer = otel.Tracer("github.com/d60-Lab/favorite-notify/internal/fanout")

// Coordinator turns a sequence of units into one tracked batch of queue tasks.
type Coordinator struct {
	store BatchStore
	queue queue.Queue
}

func NewCoordinator(store BatchStore, q queue.Queue) *Coordinator {
	return &Coordinator{store: store, queue: q}
}

// Dispatch creates the batch on the first unit, enqueues every unit as its own
// task and seals the batch. Zero units returns (nil, nil) without touching the
// store or the queue. When paging or enqueueing fails part way, the batch is
// still sealed and returned together with the error so the units already
// enqueued can finish it.
func (c *Coordinator) Dispatch(ctx context.Context, postID uint64, units iter.Seq2[DispatchUnit, error]) (*Batch, error) {
	ctx, span := tracer.Start(ctx, "fanout.dispatch")
	defer span.End()
	span.SetAttributes(attribute.Int64("post.id", int64(postID)))

	var (
		batch       *Batch
		dispatched  int
		recipients  int
		dispatchErr error
	)
	for unit, err := range units {
		if err != nil {
			dispatchErr = err
			break
		}
		if batch == nil {
			batch = NewBatch(postID)
			if err := c.store.Create(ctx, batch); err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "create batch")
				return nil, fmt.Errorf("create batch for post %d: %w", postID, err)
			}
		}
		if err := c.enqueue(ctx, batch.ID, unit); err != nil {
			dispatchErr = err
			break
		}
		dispatched++
		recipients += len(unit.FollowerIDs)
	}

	if batch == nil {
		if dispatchErr != nil {
			span.RecordError(dispatchErr)
			span.SetStatus(codes.Error, "resolve followers")
		}
		return nil, dispatchErr
	}

	sealed, err := c.store.Seal(context.WithoutCancel(ctx), batch.ID)
	if err != nil {
		dispatchErr = errors.Join(dispatchErr, fmt.Errorf("seal batch %s: %w", batch.ID, err))
		sealed = batch
	}
	span.SetAttributes(
		attribute.String("batch.id", batch.ID),
		attribute.Int("batch.units", dispatched),
		attribute.Int("batch.recipients", recipients),
	)
	if dispatchErr != nil {
		span.RecordError(dispatchErr)
		span.SetStatus(codes.Error, "dispatch incomplete")
		logger.Error("batch dispatch incomplete",
			zap.String("batch_id", batch.ID),
			zap.Uint64("post_id", postID),
			zap.Int("units", dispatched),
			zap.Error(dispatchErr),
		)
	} else {
		logger.Info("batch dispatched",
			zap.String("batch_id", batch.ID),
			zap.String("name", batch.Name),
			zap.Int("units", dispatched),
			zap.Int("recipients", recipients),
		)
	}
	return sealed, dispatchErr
}

// enqueue 先登记 pending 再投递；投递失败时把该单元记为失败，保证批次仍能结束
func (c *Coordinator) enqueue(ctx context.Context, batchID string, unit DispatchUnit) error {
	task, err := queue.NewTask(TaskKind, batchID, unit)
	if err != nil {
		return err
	}
	if _, err := c.store.AddJobs(ctx, batchID, 1); err != nil {
		return fmt.Errorf("register unit in batch %s: %w", batchID, err)
	}
	if err := c.queue.Enqueue(ctx, task); err != nil {
		if _, rerr := c.store.RecordJob(context.WithoutCancel(ctx), batchID, task.ID, true); rerr != nil {
			logger.Warn("compensate failed enqueue", zap.String("batch_id", batchID), zap.Error(rerr))
		}
		return fmt.Errorf("enqueue unit of batch %s: %w", batchID, err)
	}
	return nil
}

func (c *Coordinator) Cancel(ctx context.Context, batchID string) (*Batch, error) {
	b, err := c.store.Cancel(ctx, batchID)
	if err != nil {
		return nil, err
	}
	logger.Info("batch cancelled", zap.String("batch_id", batchID), zap.Int64("pending_jobs", b.PendingJobs))
	return b, nil
}

func (c *Coordinator) Status(ctx context.Context, batchID string) (*Batch, error) {
	return c.store.Get(ctx, batchID)
}

// RecordResult is a queue.ResultHook: every finished notify task decrements
// its batch's pending count and failures are counted, never propagated.
func (c *Coordinator) RecordResult(ctx context.Context, t *queue.Task, err error) {
	if t.Kind != TaskKind || t.BatchID == "" {
		return
	}
	b, rerr := c.store.RecordJob(ctx, t.BatchID, t.ID, err != nil)
	if rerr != nil {
		if !errors.Is(rerr, ErrBatchNotFound) {
			logger.Warn("record unit result", zap.String("batch_id", t.BatchID), zap.Error(rerr))
		}
		return
	}
	if b.Finished() && b.PendingJobs == 0 {
		logger.Info("batch finished",
			zap.String("batch_id", b.ID),
			zap.Int64("total_jobs", b.TotalJobs),
			zap.Int64("failed_jobs", b.FailedJobs),
			zap.Bool("cancelled", b.Cancelled()),
		)
	}
}
