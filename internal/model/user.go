package model

import "time"

// User 用户
type User struct {
	ID        uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	Name      string    `json:"name" gorm:"type:varchar(100);not null"`
	Email     string    `json:"email" gorm:"type:varchar(191);uniqueIndex;not null"`
	Password  string    `json:"-" gorm:"type:varchar(100);not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (User) TableName() string { return "users" }

// All 需要迁移的全部表
func All() []interface{} {
	return []interface{}{&User{}, &Post{}, &Favorite{}, &Outbox{}, &Notification{}}
}
