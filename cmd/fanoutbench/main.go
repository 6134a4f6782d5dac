package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/d60-Lab/favorite-notify/config"
	"github.com/d60-Lab/favorite-notify/internal/app"
	"github.com/d60-Lab/favorite-notify/internal/model"
)

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func pct(vs []time.Duration, p float64) time.Duration {
	if len(vs) == 0 {
		return 0
	}
	xs := append([]time.Duration(nil), vs...)
	sort.Slice(xs, func(i, j int) bool { return xs[i] < xs[j] })
	k := int(math.Ceil(p*float64(len(xs)))) - 1
	k = max(0, min(k, len(xs)-1))
	return xs[k]
}

func avg(vs []time.Duration) time.Duration {
	if len(vs) == 0 {
		return 0
	}
	var sum time.Duration
	for _, d := range vs {
		sum += d
	}
	return sum / time.Duration(len(vs))
}

func envInt(name string, def int) int {
	if s := os.Getenv(name); s != "" {
		if v, e := strconv.Atoi(s); e == nil && v > 0 {
			return v
		}
	}
	return def
}

func main() {
	cfg := must(config.Load())

	// params
	N := envInt("N", 20000)         // followers of the author
	POSTS := envInt("POSTS", 20)    // posts to publish
	WORKERS := envInt("WORKERS", 8) // delivery workers
	UNIT := envInt("UNIT", 100)     // followers per dispatch unit
	cfg.Fanout.UnitSize = UNIT
	cfg.Queue.RatePerSec = 0
	cfg.App.Env = "bench"

	ctx := context.Background()
	a := must(app.New(ctx, cfg))
	defer a.Close()

	// clean tables for a reproducible run (ok for local bench)
	for _, m := range model.All() {
		_ = a.DB.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(m).Error
	}

	// seed one author and N followers
	author := &model.User{Name: "author0", Email: "author0." + uuid.NewString()[:8] + "@example.com", Password: "p"}
	must(0, a.DB.Create(author).Error)
	users := make([]*model.User, N)
	for i := range users {
		id := uuid.NewString()[:8]
		users[i] = &model.User{Name: "u" + id, Email: id + "@example.com", Password: "p"}
	}
	must(0, a.DB.CreateInBatches(users, 1000).Error)
	edges := make([]*model.Favorite, N)
	for i, u := range users {
		edges[i] = model.NewFavorite(u.ID, model.UserTarget(author.ID))
	}
	must(0, a.DB.CreateInBatches(edges, 1000).Error)

	relay := a.NewRelay()
	stopRelay := relay.Start(ctx)
	defer stopRelay(context.Background())
	pool := a.NewPool(WORKERS)
	stopPool := pool.Start(ctx)
	defer stopPool(context.Background())

	// publish POSTS
	pubDurations := make([]time.Duration, 0, POSTS)
	postIDs := make([]uint64, 0, POSTS)
	for i := 0; i < POSTS; i++ {
		st := time.Now()
		p := must(a.PostService.Create(ctx, author.ID, fmt.Sprintf("hello %d", i), "bench body"))
		pubDurations = append(pubDurations, time.Since(st))
		postIDs = append(postIDs, p.ID)
	}

	// outbox -> dispatched
	dispatch := make([]time.Duration, 0, POSTS)
	timeout := time.After(2 * time.Minute)
	for len(dispatch) < POSTS {
		select {
		case d := <-relay.Metrics():
			dispatch = append(dispatch, d)
		case <-timeout:
			fmt.Printf("timeout while waiting for dispatch metrics: got=%d want=%d\n", len(dispatch), POSTS)
			goto PRINT
		}
	}

	// enqueue -> unit delivered, until every notification landed
	{
		units := make([]time.Duration, 0)
		want := int64(N) * int64(POSTS)
		deadline := time.Now().Add(5 * time.Minute)
		var landed int64
		for time.Now().Before(deadline) {
			for drained := false; !drained; {
				select {
				case d := <-pool.Metrics():
					units = append(units, d)
				default:
					drained = true
				}
			}
			landed = 0
			for _, id := range postIDs {
				landed += must(a.Notifications.CountByPost(ctx, id))
			}
			if landed >= want {
				break
			}
			time.Sleep(200 * time.Millisecond)
		}
		fmt.Printf("Unit delivery (enqueue->done): samples=%d avg=%v p95=%v p99=%v\n", len(units), avg(units), pct(units, 0.95), pct(units, 0.99))
		fmt.Printf("Notifications landed: %d/%d\n", landed, want)
	}

PRINT:
	// output
	fmt.Printf("N=%d POSTS=%d WORKERS=%d UNIT=%d QUEUE=%s\n", N, POSTS, WORKERS, UNIT, cfg.Queue.Driver)
	fmt.Printf("Publish tx latency: avg=%v p95=%v p99=%v\n", avg(pubDurations), pct(pubDurations, 0.95), pct(pubDurations, 0.99))
	fmt.Printf("Dispatch (outbox->enqueued): samples=%d avg=%v p95=%v p99=%v\n", len(dispatch), avg(dispatch), pct(dispatch, 0.95), pct(dispatch, 0.99))
	st := pool.Stats()
	fmt.Printf("Pool: processed=%d succeeded=%d failed=%d retried=%d\n", st.Processed, st.Succeeded, st.Failed, st.Retried)
	hits, misses, loads := a.Directory.Stats()
	fmt.Printf("User directory: hits=%d misses=%d db_loads=%d\n", hits, misses, loads)
}
