// Package queue is the asynchronous execution substrate: producers enqueue
// serialized tasks, a Pool of workers dequeues and executes them with
// retry, timeout and rate limiting.
//
// Delivery is at-least-once for the redis and kafka backends. A task is only
// acknowledged after its handler finished (successfully or permanently
// failed); a worker that dies mid-task leaves it to be delivered again.
package queue

import "context"

// Queue is implemented by MemoryQueue, RedisQueue and KafkaQueue.
type Queue interface {
	// Enqueue publishes tasks; an error means none or only some of them were accepted.
	Enqueue(ctx context.Context, tasks ...*Task) error
	// Dequeue blocks until a task is available, ctx is done or the queue is closed.
	Dequeue(ctx context.Context) (*Task, error)
	// Ack removes a dequeued task permanently.
	Ack(ctx context.Context, t *Task) error
	Close() error
}
