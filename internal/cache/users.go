// Package cache holds read-through Redis caches in front of the repositories.
package cache

import (
	"context"
	"encoding/json"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/d60-Lab/favorite-notify/internal/model"
	"github.com/d60-Lab/favorite-notify/internal/repository"
	"github.com/d60-Lab/favorite-notify/pkg/logger"
)

const userKeyPrefix = "user:snapshot:"

// UserSnapshot 通知需要的最小用户信息，不含密码
type UserSnapshot struct {
	ID    uint64 `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (s UserSnapshot) User() *model.User {
	return &model.User{ID: s.ID, Name: s.Name, Email: s.Email}
}

// UserDirectory batch-loads users for a delivery unit: MGET from Redis first,
// the misses from the database, then back-fills the cache with a pipeline.
// Name and email are fixed at registration, so entries only leave by TTL.
type UserDirectory struct {
	users repository.UserRepository
	cache *redis.Client
	ttl   time.Duration

	hits    atomic.Int64
	misses  atomic.Int64
	dbLoads atomic.Int64
}

func NewUserDirectory(users repository.UserRepository, cache *redis.Client, ttl time.Duration) *UserDirectory {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &UserDirectory{users: users, cache: cache, ttl: ttl}
}

// Load returns the users for ids in input order; unknown ids are skipped.
// A Redis failure degrades to a database read.
func (d *UserDirectory) Load(ctx context.Context, ids []uint64) ([]*model.User, error) {
	if len(ids) == 0 {
		return []*model.User{}, nil
	}

	found := make(map[uint64]UserSnapshot, len(ids))
	if d.cache != nil {
		keys := make([]string, len(ids))
		for i, id := range ids {
			keys[i] = userKey(id)
		}
		vals, err := d.cache.MGet(ctx, keys...).Result()
		if err != nil {
			logger.Warn("user cache mget failed", zap.Error(err))
		}
		for i, v := range vals {
			str, ok := v.(string)
			if !ok {
				continue
			}
			var snap UserSnapshot
			if json.Unmarshal([]byte(str), &snap) == nil {
				found[ids[i]] = snap
			}
		}
	}
	d.hits.Add(int64(len(found)))

	missing := make([]uint64, 0, len(ids)-len(found))
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		d.misses.Add(int64(len(missing)))
		d.dbLoads.Add(1)
		rows, err := d.users.FindByIDs(ctx, missing)
		if err != nil {
			return nil, err
		}
		fresh := make([]UserSnapshot, 0, len(rows))
		for _, u := range rows {
			snap := UserSnapshot{ID: u.ID, Name: u.Name, Email: u.Email}
			found[u.ID] = snap
			fresh = append(fresh, snap)
		}
		d.store(ctx, fresh)
	}

	out := make([]*model.User, 0, len(ids))
	for _, id := range ids {
		if snap, ok := found[id]; ok {
			out = append(out, snap.User())
		}
	}
	return out, nil
}

func (d *UserDirectory) store(ctx context.Context, snaps []UserSnapshot) {
	if d.cache == nil || len(snaps) == 0 {
		return
	}
	pipe := d.cache.Pipeline()
	for _, s := range snaps {
		payload, err := json.Marshal(s)
		if err != nil {
			continue
		}
		pipe.Set(ctx, userKey(s.ID), payload, d.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		logger.Warn("user cache backfill failed", zap.Error(err))
	}
}

// Stats 命中/未命中/回源次数
func (d *UserDirectory) Stats() (hits, misses, dbLoads int64) {
	return d.hits.Load(), d.misses.Load(), d.dbLoads.Load()
}

func userKey(id uint64) string { return userKeyPrefix + strconv.FormatUint(id, 10) }
