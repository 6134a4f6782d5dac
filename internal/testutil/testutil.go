// Package testutil holds database/redis fixtures and model factories for tests.
package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/d60-Lab/favorite-notify/internal/model"
)

// NewDB 返回迁移完成的 sqlite 内存库；单连接保证所有 goroutine 看到同一个库
func NewDB(tb testing.TB) *gorm.DB {
	tb.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(tb, err)
	sqlDB, err := db.DB()
	require.NoError(tb, err)
	sqlDB.SetMaxOpenConns(1)
	tb.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(tb, db.AutoMigrate(model.All()...))
	return db
}

// NewRedis 启动 miniredis 并返回连接它的客户端
func NewRedis(tb testing.TB) (*miniredis.Miniredis, *redis.Client) {
	tb.Helper()
	mr := miniredis.RunT(tb)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	tb.Cleanup(func() { _ = client.Close() })
	return mr, client
}

var seq atomic.Int64

// CreateUser 用户工厂
func CreateUser(tb testing.TB, db *gorm.DB, name string) *model.User {
	tb.Helper()
	n := seq.Add(1)
	if name == "" {
		name = fmt.Sprintf("user%d", n)
	}
	u := &model.User{Name: name, Email: fmt.Sprintf("%s.%d@example.com", name, n), Password: "secret"}
	require.NoError(tb, db.Create(u).Error)
	return u
}

// CreateUsers 批量创建 n 个用户
func CreateUsers(tb testing.TB, db *gorm.DB, n int) []*model.User {
	tb.Helper()
	users := make([]*model.User, n)
	for i := range users {
		k := seq.Add(1)
		users[i] = &model.User{Name: fmt.Sprintf("user%d", k), Email: fmt.Sprintf("user%d@example.com", k), Password: "secret"}
	}
	require.NoError(tb, db.CreateInBatches(users, 500).Error)
	return users
}

// CreatePost 帖子工厂，返回的 Post 已带 Author
func CreatePost(tb testing.TB, db *gorm.DB, author *model.User, title, body string) *model.Post {
	tb.Helper()
	p := &model.Post{UserID: author.ID, Title: title, Body: body}
	require.NoError(tb, db.Omit("Author").Create(p).Error)
	p.Author = author
	return p
}

// Favorite 收藏边工厂
func Favorite(tb testing.TB, db *gorm.DB, user *model.User, target model.Target) *model.Favorite {
	tb.Helper()
	f := model.NewFavorite(user.ID, target)
	require.NoError(tb, db.Create(f).Error)
	return f
}

// Follow 让 followers 全部收藏 author
func Follow(tb testing.TB, db *gorm.DB, author *model.User, followers ...*model.User) {
	tb.Helper()
	edges := make([]*model.Favorite, len(followers))
	for i, f := range followers {
		edges[i] = model.NewFavorite(f.ID, model.UserTarget(author.ID))
	}
	if len(edges) == 0 {
		return
	}
	require.NoError(tb, db.CreateInBatches(edges, 500).Error)
}

// Env 同时需要数据库与 redis 的测试环境
type Env struct {
	DB    *gorm.DB
	Mini  *miniredis.Miniredis
	Redis *redis.Client
}

func NewEnv(tb testing.TB) *Env {
	tb.Helper()
	mr, client := NewRedis(tb)
	return &Env{DB: NewDB(tb), Mini: mr, Redis: client}
}
