package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/favorite-notify/internal/model"
)

type OutboxRepository interface {
	Create(ctx context.Context, ob *model.Outbox) error
	// Claim 认领一批待处理事件（pending，或租约超时的 processing），并标记为 processing
	Claim(ctx context.Context, limit int, lease time.Duration) ([]*model.Outbox, error)
	MarkDone(ctx context.Context, id uint64, batchID string, fanoutCount int64) error
	// MarkRetry 退回 pending 等待下一轮认领
	MarkRetry(ctx context.Context, id uint64, reason string) error
	MarkFailed(ctx context.Context, id uint64, reason string) error
	// PurgeDone 删除早于 before 的已完成事件，返回删除数
	PurgeDone(ctx context.Context, before time.Time) (int64, error)
}

type outboxRepository struct{ db *gorm.DB }

func NewOutboxRepository(db *gorm.DB) OutboxRepository { return &outboxRepository{db: db} }

func (r *outboxRepository) Create(ctx context.Context, ob *model.Outbox) error {
	if ob.Status == "" {
		ob.Status = model.OutboxPending
	}
	return r.db.WithContext(ctx).Create(ob).Error
}

func (r *outboxRepository) Claim(ctx context.Context, limit int, lease time.Duration) ([]*model.Outbox, error) {
	var batch []*model.Outbox
	now := time.Now()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// SELECT ... FOR UPDATE SKIP LOCKED（sqlite 方言会忽略锁子句）
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ? OR (status = ? AND claimed_at < ?)", model.OutboxPending, model.OutboxProcessing, now.Add(-lease)).
			Order("created_at").Order("id").
			Limit(limit).
			Find(&batch).Error; err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}
		ids := make([]uint64, len(batch))
		for i, b := range batch {
			ids[i] = b.ID
			b.Status = model.OutboxProcessing
			b.Attempts++
			b.ClaimedAt = &now
		}
		return tx.Model(&model.Outbox{}).Where("id IN ?", ids).Updates(map[string]any{
			"status":     model.OutboxProcessing,
			"claimed_at": now,
			"attempts":   gorm.Expr("attempts + 1"),
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return batch, nil
}

func (r *outboxRepository) MarkDone(ctx context.Context, id uint64, batchID string, fanoutCount int64) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&model.Outbox{}).Where("id = ?", id).Updates(map[string]any{
		"status":       model.OutboxDone,
		"batch_id":     batchID,
		"fanout_count": fanoutCount,
		"processed_at": now,
		"last_error":   "",
	}).Error
}

func (r *outboxRepository) MarkRetry(ctx context.Context, id uint64, reason string) error {
	return r.db.WithContext(ctx).Model(&model.Outbox{}).Where("id = ?", id).Updates(map[string]any{
		"status":     model.OutboxPending,
		"last_error": reason,
		"claimed_at": nil,
	}).Error
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id uint64, reason string) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&model.Outbox{}).Where("id = ?", id).Updates(map[string]any{
		"status":       model.OutboxFailed,
		"last_error":   reason,
		"processed_at": now,
	}).Error
}

func (r *outboxRepository) PurgeDone(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("status = ? AND processed_at < ?", model.OutboxDone, before).
		Delete(&model.Outbox{})
	return res.RowsAffected, res.Error
}
