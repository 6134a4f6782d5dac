package fanout

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	batchKeyPrefix = "fanout:batch:"
	batchIndexKey  = "fanout:batches"
)

// 所有脚本在批次不存在时返回 nil，否则返回更新后的 HGETALL
const finishIfDoneLua = `
local function finish(key, now)
  if redis.call('HGET', key, 'sealed') == '1'
    and tonumber(redis.call('HGET', key, 'pending')) <= 0
    and redis.call('HGET', key, 'finished_at') == '0' then
    redis.call('HSET', key, 'finished_at', now)
  end
end
`

var (
	addJobsScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then return false end
redis.call('HINCRBY', KEYS[1], 'total', ARGV[1])
redis.call('HINCRBY', KEYS[1], 'pending', ARGV[1])
return redis.call('HGETALL', KEYS[1])
`)

	sealScript = redis.NewScript(finishIfDoneLua + `
if redis.call('EXISTS', KEYS[1]) == 0 then return false end
redis.call('HSET', KEYS[1], 'sealed', '1')
finish(KEYS[1], ARGV[1])
return redis.call('HGETALL', KEYS[1])
`)

	// KEYS[2] 记录已回写的 task id，同一 task 只计一次
	recordJobScript = redis.NewScript(finishIfDoneLua + `
if redis.call('EXISTS', KEYS[1]) == 0 then return false end
if redis.call('SADD', KEYS[2], ARGV[1]) == 1 then
  local ttl = redis.call('PTTL', KEYS[1])
  if ttl > 0 then redis.call('PEXPIRE', KEYS[2], ttl) end
  if tonumber(redis.call('HGET', KEYS[1], 'pending')) > 0 then
    redis.call('HINCRBY', KEYS[1], 'pending', -1)
  end
  if ARGV[2] == '1' then
    redis.call('HINCRBY', KEYS[1], 'failed', 1)
  end
end
finish(KEYS[1], ARGV[3])
return redis.call('HGETALL', KEYS[1])
`)

	cancelScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then return false end
if redis.call('HGET', KEYS[1], 'cancelled_at') == '0' then
  redis.call('HSET', KEYS[1], 'cancelled_at', ARGV[1])
end
return redis.call('HGETALL', KEYS[1])
`)
)

// RedisBatchStore keeps each batch in a hash and indexes ids by creation time
// in a sorted set. Hashes carry a TTL so abandoned batches eventually vanish
// even without the janitor.
type RedisBatchStore struct {
	client *redis.Client
	ttl    time.Duration
}

var _ BatchStore = (*RedisBatchStore)(nil)

func NewRedisBatchStore(client *redis.Client, ttl time.Duration) *RedisBatchStore {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &RedisBatchStore{client: client, ttl: ttl}
}

func batchKey(id string) string { return batchKeyPrefix + id }

func doneKey(id string) string { return batchKeyPrefix + id + ":done" }

func (s *RedisBatchStore) Create(ctx context.Context, b *Batch) error {
	key := batchKey(b.ID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			"id", b.ID,
			"name", b.Name,
			"post_id", strconv.FormatUint(b.PostID, 10),
			"total", b.TotalJobs,
			"pending", b.PendingJobs,
			"failed", b.FailedJobs,
			"sealed", boolFlag(b.Sealed),
			"created_at", b.CreatedAt.UnixMilli(),
			"cancelled_at", millis(b.CancelledAt),
			"finished_at", millis(b.FinishedAt),
		)
		pipe.Expire(ctx, key, s.ttl)
		pipe.ZAdd(ctx, batchIndexKey, redis.Z{Score: float64(b.CreatedAt.UnixMilli()), Member: b.ID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis create batch %s: %w", b.ID, err)
	}
	return nil
}

func (s *RedisBatchStore) AddJobs(ctx context.Context, id string, n int) (*Batch, error) {
	return s.run(ctx, addJobsScript, id, n)
}

func (s *RedisBatchStore) Seal(ctx context.Context, id string) (*Batch, error) {
	return s.run(ctx, sealScript, id, time.Now().UnixMilli())
}

func (s *RedisBatchStore) RecordJob(ctx context.Context, id, taskID string, failed bool) (*Batch, error) {
	return s.runKeys(ctx, recordJobScript, id, []string{batchKey(id), doneKey(id)}, taskID, boolFlag(failed), time.Now().UnixMilli())
}

func (s *RedisBatchStore) Cancel(ctx context.Context, id string) (*Batch, error) {
	return s.run(ctx, cancelScript, id, time.Now().UnixMilli())
}

func (s *RedisBatchStore) Get(ctx context.Context, id string) (*Batch, error) {
	fields, err := s.client.HGetAll(ctx, batchKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis get batch %s: %w", id, err)
	}
	if len(fields) == 0 {
		return nil, ErrBatchNotFound
	}
	return decodeBatch(fields)
}

func (s *RedisBatchStore) Prune(ctx context.Context, before time.Time) (int, error) {
	ids, err := s.client.ZRangeByScore(ctx, batchIndexKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(before.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("redis list batches: %w", err)
	}
	pruned := 0
	for _, id := range ids {
		b, err := s.Get(ctx, id)
		switch {
		case errors.Is(err, ErrBatchNotFound):
			// hash 已过期，只清理索引
		case err != nil:
			return pruned, err
		case !b.Finished():
			continue
		}
		if _, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, batchKey(id), doneKey(id))
			pipe.ZRem(ctx, batchIndexKey, id)
			return nil
		}); err != nil {
			return pruned, fmt.Errorf("redis prune batch %s: %w", id, err)
		}
		pruned++
	}
	return pruned, nil
}

func (s *RedisBatchStore) run(ctx context.Context, script *redis.Script, id string, args ...interface{}) (*Batch, error) {
	return s.runKeys(ctx, script, id, []string{batchKey(id)}, args...)
}

func (s *RedisBatchStore) runKeys(ctx context.Context, script *redis.Script, id string, keys []string, args ...interface{}) (*Batch, error) {
	res, err := script.Run(ctx, s.client, keys, args...).Slice()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrBatchNotFound
		}
		return nil, fmt.Errorf("redis update batch %s: %w", id, err)
	}
	fields := make(map[string]string, len(res)/2)
	for i := 0; i+1 < len(res); i += 2 {
		k, _ := res[i].(string)
		v, _ := res[i+1].(string)
		fields[k] = v
	}
	return decodeBatch(fields)
}

func decodeBatch(f map[string]string) (*Batch, error) {
	b := &Batch{ID: f["id"], Name: f["name"], Sealed: f["sealed"] == "1"}
	var err error
	if b.PostID, err = strconv.ParseUint(f["post_id"], 10, 64); err != nil {
		return nil, fmt.Errorf("decode batch %s post_id: %w", b.ID, err)
	}
	ints := map[string]*int64{"total": &b.TotalJobs, "pending": &b.PendingJobs, "failed": &b.FailedJobs}
	for name, dst := range ints {
		if *dst, err = strconv.ParseInt(f[name], 10, 64); err != nil {
			return nil, fmt.Errorf("decode batch %s %s: %w", b.ID, name, err)
		}
	}
	created, err := strconv.ParseInt(f["created_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode batch %s created_at: %w", b.ID, err)
	}
	b.CreatedAt = time.UnixMilli(created)
	b.CancelledAt = parseMillis(f["cancelled_at"])
	b.FinishedAt = parseMillis(f["finished_at"])
	return b, nil
}

func boolFlag(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func millis(t *time.Time) int64 {
	if t == nil {
		return 0
	}
	return t.UnixMilli()
}

func parseMillis(s string) *time.Time {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil || ms == 0 {
		return nil
	}
	t := time.UnixMilli(ms)
	return &t
}
