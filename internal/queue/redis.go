package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "queue:"

// RedisQueue is a reliable list queue: Dequeue atomically moves an entry to a
// processing list (BLMOVE) and Ack removes it from there.
type RedisQueue struct {
	client      *redis.Client
	pendingKey  string
	inflightKey string
	poll        time.Duration
	closed      atomic.Bool
}

func NewRedisQueue(client *redis.Client, name string) *RedisQueue {
	return &RedisQueue{
		client:      client,
		pendingKey:  redisKeyPrefix + name,
		inflightKey: redisKeyPrefix + name + ":processing",
		poll:        time.Second,
	}
}

func (q *RedisQueue) Enqueue(ctx context.Context, tasks ...*Task) error {
	if q.closed.Load() {
		return ErrClosed
	}
	if len(tasks) == 0 {
		return nil
	}
	values := make([]interface{}, len(tasks))
	for i, t := range tasks {
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("marshal task %s: %w", t.ID, err)
		}
		values[i] = data
	}
	if err := q.client.LPush(ctx, q.pendingKey, values...).Err(); err != nil {
		return fmt.Errorf("redis enqueue: %w", err)
	}
	return nil
}

func (q *RedisQueue) Dequeue(ctx context.Context) (*Task, error) {
	for {
		if q.closed.Load() {
			return nil, ErrClosed
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		raw, err := q.client.BLMove(ctx, q.pendingKey, q.inflightKey, "RIGHT", "LEFT", q.poll).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("redis dequeue: %w", err)
		}
		var t Task
		if err := json.Unmarshal([]byte(raw), &t); err != nil {
			// 无法解析的条目直接丢弃，避免毒消息反复回流
			_ = q.client.LRem(ctx, q.inflightKey, 1, raw).Err()
			return nil, fmt.Errorf("decode task: %w", err)
		}
		t.receipt = raw
		return &t, nil
	}
}

func (q *RedisQueue) Ack(ctx context.Context, t *Task) error {
	raw, ok := t.receipt.(string)
	if !ok {
		return nil
	}
	return q.client.LRem(ctx, q.inflightKey, 1, raw).Err()
}

// Requeue moves every in-flight entry back to pending. Call it on worker start
// to recover tasks orphaned by a crashed consumer; tasks still running on other
// live consumers will then execute twice.
func (q *RedisQueue) Requeue(ctx context.Context) (int, error) {
	n := 0
	for {
		err := q.client.LMove(ctx, q.inflightKey, q.pendingKey, "RIGHT", "RIGHT").Err()
		if errors.Is(err, redis.Nil) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		n++
	}
}

// Len 待处理长度
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.pendingKey).Result()
}

// Close stops Dequeue loops; the redis client is owned by the caller.
func (q *RedisQueue) Close() error {
	q.closed.Store(true)
	return nil
}
