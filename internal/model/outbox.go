package model

import "time"

const (
	OutboxPending    = "pending"
	OutboxProcessing = "processing"
	OutboxDone       = "done"
	OutboxFailed     = "failed"
)

// Outbox 帖子发布事件外发盒；与 posts 同事务写入，由 relay 异步触发粉丝通知
type Outbox struct {
	ID          uint64     `gorm:"primaryKey;autoIncrement"`
	PostID      uint64     `gorm:"uniqueIndex;not null"`
	AuthorID    uint64     `gorm:"index:idx_outbox_author;not null"`
	Status      string     `gorm:"type:varchar(16);index:idx_outbox_status_created,priority:1;not null"` // pending, processing, done, failed
	Attempts    int        `gorm:"not null;default:0"`
	LastError   string     `gorm:"type:text"`
	BatchID     string     `gorm:"type:varchar(36)"`
	FanoutCount int64      // 本次派发的 DispatchUnit 数
	CreatedAt   time.Time  `gorm:"index:idx_outbox_status_created,priority:2"`
	ClaimedAt   *time.Time // processing 租约起点，超时可被重新认领
	ProcessedAt *time.Time
}

func (Outbox) TableName() string { return "outbox" }
