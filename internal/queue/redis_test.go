package queue

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/favorite-notify/internal/testutil"
)

func TestRedisQueue_ReliableDelivery(t *testing.T) {
	mr, client := testutil.NewRedis(t)
	q := NewRedisQueue(client, "notifications")
	ctx := context.Background()

	a := mustTask(t, "notify", "b1", map[string]int{"n": 1})
	b := mustTask(t, "notify", "b1", map[string]int{"n": 2})
	require.NoError(t, q.Enqueue(ctx, a, b))

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	got, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
	assert.Equal(t, "b1", got.BatchID)
	assert.JSONEq(t, `{"n":1}`, string(got.Payload))

	// 未 ack 的任务停留在 processing 列表
	inflight, err := mr.List("queue:notifications:processing")
	require.NoError(t, err)
	assert.Len(t, inflight, 1)

	require.NoError(t, q.Ack(ctx, got))
	assert.False(t, mr.Exists("queue:notifications:processing"))
}

func TestRedisQueue_RequeueOrphans(t *testing.T) {
	_, client := testutil.NewRedis(t)
	q := NewRedisQueue(client, "jobs")
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, mustTask(t, "k", "", 1), mustTask(t, "k", "", 2)))
	_, err := q.Dequeue(ctx)
	require.NoError(t, err)
	_, err = q.Dequeue(ctx)
	require.NoError(t, err)

	moved, err := q.Requeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, moved)

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestRedisQueue_Closed(t *testing.T) {
	_, client := testutil.NewRedis(t)
	q := NewRedisQueue(client, "jobs")
	require.NoError(t, q.Close())
	_, err := q.Dequeue(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, q.Enqueue(context.Background(), mustTask(t, "k", "", 1)), ErrClosed)
}
