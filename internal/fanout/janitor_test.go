package fanout

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/favorite-notify/internal/model"
	"github.com/d60-Lab/favorite-notify/internal/repository"
)

func TestJanitor_Sweep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	outbox := repository.NewOutboxRepository(f.db)

	b := NewBatch(1)
	b.CreatedAt = time.Now().Add(-2 * time.Hour)
	require.NoError(t, f.store.Create(ctx, b))
	_, err := f.store.Seal(ctx, b.ID)
	require.NoError(t, err)

	ob := &model.Outbox{PostID: 1, AuthorID: 1}
	require.NoError(t, outbox.Create(ctx, ob))
	require.NoError(t, outbox.MarkDone(ctx, ob.ID, b.ID, 0))

	j := NewJanitor(JanitorConfig{BatchRetention: time.Hour, OutboxRetention: time.Hour}, f.store, outbox)
	require.NoError(t, j.Sweep(ctx, time.Now().Add(2*time.Hour)))

	_, err = f.store.Get(ctx, b.ID)
	assert.ErrorIs(t, err, ErrBatchNotFound)
	var n int64
	require.NoError(t, f.db.Model(&model.Outbox{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestJanitor_StartRejectsBadSchedule(t *testing.T) {
	f := newFixture(t)
	j := NewJanitor(JanitorConfig{Schedule: "not a schedule"}, f.store, repository.NewOutboxRepository(f.db))
	_, err := j.Start()
	assert.Error(t, err)

	j = NewJanitor(JanitorConfig{Schedule: "@every 1h"}, f.store, repository.NewOutboxRepository(f.db))
	stop, err := j.Start()
	require.NoError(t, err)
	require.NoError(t, stop(context.Background()))
}
