package queue

import (
	"errors"
	"fmt"
)

var (
	ErrClosed    = errors.New("queue closed")
	ErrQueueFull = errors.New("queue full")
	ErrNoHandler = errors.New("no handler registered for task kind")
)

// NoRetry marks an error as permanent so the pool stops retrying the task.
//
//	return queue.NoRetry(fmt.Errorf("bad payload: %w", err))
func NoRetry(err error) error {
	if err == nil {
		return nil
	}
	return noRetryError{err: err}
}

// IsNoRetry reports whether err is wrapped with NoRetry.
func IsNoRetry(err error) bool {
	var e noRetryError
	return errors.As(err, &e)
}

type noRetryError struct{ err error }

func (e noRetryError) Error() string { return fmt.Sprintf("no-retry: %v", e.err) }
func (e noRetryError) Unwrap() error { return e.err }
