package model

import "time"

// Post 帖子；UserID 为作者，创建后不可变
type Post struct {
	ID        uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID    uint64    `json:"user_id" gorm:"index:idx_post_author;not null"`
	Author    *User     `json:"author,omitempty" gorm:"foreignKey:UserID"`
	Title     string    `json:"title" gorm:"type:varchar(255);not null"`
	Body      string    `json:"body" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Post) TableName() string { return "posts" }
