// Package fanout notifies the followers of an author when they publish a post.
//
// A post is fanned out in three steps: the Resolver pages follower ids with a
// keyset cursor, Partition regroups the pages into bounded DispatchUnits, and
// the Coordinator enqueues each unit as an independent task inside a named
// Batch. Workers execute units via Worker.HandleTask; a unit that fails only
// counts against its batch, and a cancelled batch turns remaining units into
// no-ops. Delivery is at-least-once.
package fanout

import "fmt"

const (
	// TaskKind 投递单元在队列中的任务类型
	TaskKind = "notify_followers"
	// QueueName 通知任务使用的队列名
	QueueName = "notifications"

	DefaultPageSize = 10000
	DefaultUnitSize = 100
)

// DispatchUnit is the payload of one delivery task.
type DispatchUnit struct {
	PostID      uint64   `json:"post_id"`
	FollowerIDs []uint64 `json:"follower_ids"`
}

// PostPublished is the trigger consumed by Listener. AuthorID may be zero, in
// which case it is looked up from the post.
type PostPublished struct {
	PostID   uint64 `json:"post_id"`
	AuthorID uint64 `json:"author_id"`
}

// BatchName 批次的可读名称
func BatchName(postID uint64) string {
	return fmt.Sprintf("Notify followers of post #%d", postID)
}
