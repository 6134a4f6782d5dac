package fanout

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrBatchNotFound = errors.New("batch not found")

// Batch tracks the units dispatched for one post.
type Batch struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	PostID      uint64     `json:"post_id"`
	TotalJobs   int64      `json:"total_jobs"`
	PendingJobs int64      `json:"pending_jobs"`
	FailedJobs  int64      `json:"failed_jobs"`
	Sealed      bool       `json:"sealed"`
	CreatedAt   time.Time  `json:"created_at"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

func NewBatch(postID uint64) *Batch {
	return &Batch{
		ID:        uuid.NewString(),
		Name:      BatchName(postID),
		PostID:    postID,
		CreatedAt: time.Now(),
	}
}

func (b *Batch) Cancelled() bool { return b.CancelledAt != nil }

// Finished 已封口且所有单元都已执行（无论成败）
func (b *Batch) Finished() bool { return b.FinishedAt != nil }

func (b *Batch) ProcessedJobs() int64 { return b.TotalJobs - b.PendingJobs }

// BatchStore persists batch counters. Every mutation is atomic and returns the
// batch state after the update.
type BatchStore interface {
	Create(ctx context.Context, b *Batch) error
	// AddJobs registers n more units before they are enqueued.
	AddJobs(ctx context.Context, id string, n int) (*Batch, error)
	// Seal marks that no more units will be added; a sealed batch with no
	// pending units is finished.
	Seal(ctx context.Context, id string) (*Batch, error)
	// RecordJob marks the unit carried by taskID executed. Recording the same
	// task again leaves the counters untouched.
	RecordJob(ctx context.Context, id, taskID string, failed bool) (*Batch, error)
	Cancel(ctx context.Context, id string) (*Batch, error)
	Get(ctx context.Context, id string) (*Batch, error)
	// Prune drops finished batches created before the cutoff.
	Prune(ctx context.Context, before time.Time) (int, error)
}
