package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustTask(t *testing.T, kind, batch string, payload any) *Task {
	t.Helper()
	task, err := NewTask(kind, batch, payload)
	require.NoError(t, err)
	return task
}

func TestMemoryQueue_FIFOAndFull(t *testing.T) {
	q := NewMemoryQueue(2)
	ctx := context.Background()

	a, b, c := mustTask(t, "k", "", 1), mustTask(t, "k", "", 2), mustTask(t, "k", "", 3)
	require.NoError(t, q.Enqueue(ctx, a, b))
	assert.ErrorIs(t, q.Enqueue(ctx, c), ErrQueueFull)
	assert.Equal(t, 2, q.Len())

	got, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
	got, err = q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)
}

func TestMemoryQueue_DequeueHonoursContextAndClose(t *testing.T) {
	q := NewMemoryQueue(1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := q.Dequeue(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, q.Close())
	_, err = q.Dequeue(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, q.Enqueue(context.Background(), mustTask(t, "k", "", 1)), ErrClosed)
	require.NoError(t, q.Close())
}

func TestTask_DecodeBadPayloadIsPermanent(t *testing.T) {
	task := &Task{ID: "x", Kind: "k", Payload: []byte(`"not an object"`)}
	var dst struct{ A int }
	err := task.Decode(&dst)
	require.Error(t, err)
	assert.True(t, IsNoRetry(err))
}
