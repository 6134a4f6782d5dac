package fanout

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/favorite-notify/internal/model"
	"github.com/d60-Lab/favorite-notify/internal/repository"
	"github.com/d60-Lab/favorite-notify/internal/testutil"
)

func allPages(t *testing.T, pages func(func([]uint64, error) bool)) [][]uint64 {
	t.Helper()
	var out [][]uint64
	for p, err := range pages {
		require.NoError(t, err)
		out = append(out, p)
	}
	return out
}

func TestResolver_PagesOnlyAuthorFollowers(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()

	author := testutil.CreateUser(t, db, "author")
	other := testutil.CreateUser(t, db, "other")
	followers := testutil.CreateUsers(t, db, 5)
	testutil.Follow(t, db, author, followers...)

	// 收藏作者的帖子、收藏其他作者都不算
	post := testutil.CreatePost(t, db, author, "p", "b")
	stranger := testutil.CreateUser(t, db, "stranger")
	testutil.Favorite(t, db, stranger, model.PostTarget(post.ID))
	testutil.Follow(t, db, other, stranger)
	// 重复的收藏边只出现一次
	testutil.Favorite(t, db, followers[0], model.UserTarget(author.ID))

	r := NewResolver(repository.NewFavoriteRepository(db), 2)
	pages := allPages(t, r.Pages(ctx, author.ID))

	require.Len(t, pages, 3)
	assert.Len(t, pages[0], 2)
	assert.Len(t, pages[2], 1)
	var got []uint64
	for _, p := range pages {
		got = append(got, p...)
	}
	want := make([]uint64, len(followers))
	for i, f := range followers {
		want[i] = f.ID
	}
	assert.Equal(t, want, got)
}

func TestResolver_PagesAfterCursor(t *testing.T) {
	db := testutil.NewDB(t)
	author := testutil.CreateUser(t, db, "author")
	followers := testutil.CreateUsers(t, db, 4)
	testutil.Follow(t, db, author, followers...)

	r := NewResolver(repository.NewFavoriteRepository(db), 10)
	pages := allPages(t, r.PagesAfter(context.Background(), author.ID, followers[1].ID))
	require.Len(t, pages, 1)
	assert.Equal(t, []uint64{followers[2].ID, followers[3].ID}, pages[0])
}

func TestResolver_UnknownAuthorIsEmpty(t *testing.T) {
	db := testutil.NewDB(t)
	r := NewResolver(repository.NewFavoriteRepository(db), 0)
	assert.Empty(t, allPages(t, r.Pages(context.Background(), 424242)))
}

type failingFavorites struct{ repository.FavoriteRepository }

func (failingFavorites) ListFollowerIDs(context.Context, uint64, uint64, int) ([]uint64, error) {
	return nil, errBoom
}

func TestResolver_QueryErrorYieldedOnce(t *testing.T) {
	r := NewResolver(failingFavorites{}, 10)
	n := 0
	for _, err := range r.Pages(context.Background(), 1) {
		n++
		assert.ErrorIs(t, err, errBoom)
	}
	assert.Equal(t, 1, n)
}
