package model

import "time"

// NotificationKindFavoriteUserNewPost 关注的作者发布了新帖
const NotificationKindFavoriteUserNewPost = "favorite_user_new_post"

// Notification 站内通知记录
// 复合唯一键 ux_notification_user_post = (user_id, post_id, kind)，重复投递落库即忽略
type Notification struct {
	ID        uint64     `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID    uint64     `json:"user_id" gorm:"index:idx_notification_user_created,priority:1;uniqueIndex:ux_notification_user_post,priority:1;not null"`
	PostID    uint64     `json:"post_id" gorm:"uniqueIndex:ux_notification_user_post,priority:2;not null"`
	Kind      string     `json:"kind" gorm:"type:varchar(64);uniqueIndex:ux_notification_user_post,priority:3;not null"`
	Subject   string     `json:"subject" gorm:"type:varchar(255)"`
	Data      string     `json:"data" gorm:"type:text"` // JSON
	ReadAt    *time.Time `json:"read_at"`
	CreatedAt time.Time  `json:"created_at" gorm:"index:idx_notification_user_created,priority:2"`
}

func (Notification) TableName() string { return "notifications" }
