package queue

import (
	"context"
	"sync"
)

// MemoryQueue is an in-process channel queue. Tasks are lost on restart.
type MemoryQueue struct {
	ch     chan *Task
	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func NewMemoryQueue(capacity int) *MemoryQueue {
	if capacity <= 0 {
		capacity = 10000
	}
	return &MemoryQueue{ch: make(chan *Task, capacity), done: make(chan struct{})}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, tasks ...*Task) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrClosed
	}
	for _, t := range tasks {
		select {
		case q.ch <- t:
		case <-ctx.Done():
			return ctx.Err()
		default:
			return ErrQueueFull
		}
	}
	return nil
}

func (q *MemoryQueue) Dequeue(ctx context.Context) (*Task, error) {
	select {
	case t := <-q.ch:
		return t, nil
	default:
	}
	select {
	case t := <-q.ch:
		return t, nil
	case <-q.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *MemoryQueue) Ack(context.Context, *Task) error { return nil }

// Len 当前排队长度（采样值）
func (q *MemoryQueue) Len() int { return len(q.ch) }

func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.done)
	}
	return nil
}
