package fanout

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/d60-Lab/favorite-notify/internal/cache"
	"github.com/d60-Lab/favorite-notify/internal/queue"
	"github.com/d60-Lab/favorite-notify/internal/repository"
	"github.com/d60-Lab/favorite-notify/internal/testutil"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []Payload
	fail map[uint64]error
}

func (s *recordingSender) Send(_ context.Context, p Payload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail[p.RecipientID]; err != nil {
		return err
	}
	s.sent = append(s.sent, p)
	return nil
}

func (s *recordingSender) recipients() []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]uint64, len(s.sent))
	for i, p := range s.sent {
		ids[i] = p.RecipientID
	}
	slices.Sort(ids)
	return ids
}

type fixture struct {
	db     *gorm.DB
	store  *RedisBatchStore
	queue  *queue.MemoryQueue
	sender *recordingSender
	worker *Worker
	coord  *Coordinator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	_, client := testutil.NewRedis(t)
	f := &fixture{
		db:     db,
		store:  NewRedisBatchStore(client, 0),
		queue:  queue.NewMemoryQueue(1024),
		sender: &recordingSender{},
	}
	posts := repository.NewPostRepository(db)
	users := cache.NewUserDirectory(repository.NewUserRepository(db), client, 0)
	f.worker = NewWorker(f.store, posts, users, f.sender)
	f.coord = NewCoordinator(f.store, f.queue)
	return f
}

// drain 同步执行队列中所有任务，并把结果回写批次
func (f *fixture) drain(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	for f.queue.Len() > 0 {
		task, err := f.queue.Dequeue(ctx)
		require.NoError(t, err)
		f.coord.RecordResult(ctx, task, f.worker.HandleTask(ctx, task))
	}
}

// sliceUnits 把固定单元包装成序列
func sliceUnits(units ...DispatchUnit) func(func(DispatchUnit, error) bool) {
	return func(yield func(DispatchUnit, error) bool) {
		for _, u := range units {
			if !yield(u, nil) {
				return
			}
		}
	}
}

var errBoom = errors.New("boom")

func repositoryFavorites(f *fixture) repository.FavoriteRepository {
	return repository.NewFavoriteRepository(f.db)
}
