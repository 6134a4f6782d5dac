package model

import (
	"fmt"
	"time"
)

// TargetKind 收藏目标类型
type TargetKind string

const (
	TargetUser TargetKind = "user"
	TargetPost TargetKind = "post"
)

func (k TargetKind) Valid() bool { return k == TargetUser || k == TargetPost }

// Target 收藏目标：{类型, ID} 的判别联合
type Target struct {
	Kind TargetKind `json:"type"`
	ID   uint64     `json:"id"`
}

func UserTarget(id uint64) Target { return Target{Kind: TargetUser, ID: id} }
func PostTarget(id uint64) Target { return Target{Kind: TargetPost, ID: id} }

func (t Target) String() string { return fmt.Sprintf("%s#%d", t.Kind, t.ID) }

// Favorite 收藏边（UserID 收藏了 Target）
// 关注作者 = 收藏类型为 user 的边；idx_favorite_target 支撑按作者的 keyset 分页
// 唯一性由业务层保证，表上不做唯一约束
type Favorite struct {
	ID              uint64     `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID          uint64     `json:"user_id" gorm:"index:idx_favorite_owner;index:idx_favorite_target,priority:3;not null"`
	FavoritableType TargetKind `json:"favoritable_type" gorm:"type:varchar(16);index:idx_favorite_target,priority:1;not null"`
	FavoritableID   uint64     `json:"favoritable_id" gorm:"index:idx_favorite_target,priority:2;not null"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (Favorite) TableName() string { return "favorites" }

// Target 返回收藏目标
func (f Favorite) Target() Target { return Target{Kind: f.FavoritableType, ID: f.FavoritableID} }

// NewFavorite 构造一条收藏边
func NewFavorite(userID uint64, target Target) *Favorite {
	return &Favorite{UserID: userID, FavoritableType: target.Kind, FavoritableID: target.ID}
}
