package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/d60-Lab/favorite-notify/internal/model"
	"github.com/d60-Lab/favorite-notify/internal/repository"
	"github.com/d60-Lab/favorite-notify/internal/testutil"
)

func newFavoriteService(db *gorm.DB) FavoriteService {
	return NewFavoriteService(repository.NewFavoriteRepository(db), repository.NewUserRepository(db), repository.NewPostRepository(db))
}

func TestFavoriteService_Rules(t *testing.T) {
	db := testutil.NewDB(t)
	svc := newFavoriteService(db)
	ctx := context.Background()
	ann := testutil.CreateUser(t, db, "ann")
	bob := testutil.CreateUser(t, db, "bob")
	post := testutil.CreatePost(t, db, ann, "t", "b")

	err := svc.Mark(ctx, ann.ID, model.UserTarget(ann.ID))
	assert.ErrorIs(t, err, ErrFavoriteSelf)
	assert.Equal(t, "You cannot favorite yourself.", Reason(err))

	require.NoError(t, svc.Mark(ctx, bob.ID, model.UserTarget(ann.ID)))
	err = svc.Mark(ctx, bob.ID, model.UserTarget(ann.ID))
	assert.ErrorIs(t, err, ErrAlreadyFavorited)
	assert.Equal(t, "This item is already in your favorites.", Reason(err))

	// 自己的帖子可以收藏
	require.NoError(t, svc.Mark(ctx, ann.ID, model.PostTarget(post.ID)))

	assert.ErrorIs(t, svc.Mark(ctx, bob.ID, model.UserTarget(9999)), repository.ErrNotFound)
	assert.ErrorIs(t, svc.Mark(ctx, bob.ID, model.PostTarget(9999)), repository.ErrNotFound)
	assert.ErrorIs(t, svc.Mark(ctx, bob.ID, model.Target{Kind: "comment", ID: 1}), repository.ErrNotFound)
}

func TestFavoriteService_UnmarkAndList(t *testing.T) {
	db := testutil.NewDB(t)
	svc := newFavoriteService(db)
	ctx := context.Background()
	ann := testutil.CreateUser(t, db, "ann")
	bob := testutil.CreateUser(t, db, "bob")
	post := testutil.CreatePost(t, db, ann, "t", "b")

	require.NoError(t, svc.Mark(ctx, bob.ID, model.UserTarget(ann.ID)))
	require.NoError(t, svc.Mark(ctx, bob.ID, model.PostTarget(post.ID)))

	favs, err := svc.List(ctx, bob.ID, 0, 0)
	require.NoError(t, err)
	assert.Len(t, favs.Posts, 1)
	assert.Len(t, favs.Users, 1)

	require.NoError(t, svc.Unmark(ctx, bob.ID, model.UserTarget(ann.ID)))
	require.NoError(t, svc.Unmark(ctx, bob.ID, model.UserTarget(ann.ID)))
	assert.NoError(t, svc.CanFavorite(ctx, bob.ID, model.UserTarget(ann.ID)))

	favs, err = svc.List(ctx, bob.ID, 1, 10)
	require.NoError(t, err)
	require.Len(t, favs.Posts, 1)
	assert.Equal(t, post.ID, favs.Posts[0].ID)
	assert.Empty(t, favs.Users)
}

func TestFavoriteService_ListGroupsHydratedTargets(t *testing.T) {
	db := testutil.NewDB(t)
	svc := newFavoriteService(db)
	posts := repository.NewPostRepository(db)
	ctx := context.Background()
	ann := testutil.CreateUser(t, db, "ann")
	bob := testutil.CreateUser(t, db, "bob")
	carl := testutil.CreateUser(t, db, "carl")
	first := testutil.CreatePost(t, db, ann, "first", "b")
	second := testutil.CreatePost(t, db, carl, "second", "b")
	gone := testutil.CreatePost(t, db, ann, "gone", "b")

	require.NoError(t, svc.Mark(ctx, bob.ID, model.PostTarget(second.ID)))
	require.NoError(t, svc.Mark(ctx, bob.ID, model.UserTarget(carl.ID)))
	require.NoError(t, svc.Mark(ctx, bob.ID, model.PostTarget(first.ID)))
	require.NoError(t, svc.Mark(ctx, bob.ID, model.UserTarget(ann.ID)))
	require.NoError(t, svc.Mark(ctx, bob.ID, model.PostTarget(gone.ID)))
	require.NoError(t, posts.Delete(ctx, gone.ID))

	favs, err := svc.List(ctx, bob.ID, 1, 20)
	require.NoError(t, err)

	require.Len(t, favs.Posts, 2)
	assert.Equal(t, second.ID, favs.Posts[0].ID)
	assert.Equal(t, "carl", favs.Posts[0].Author.Name)
	assert.Equal(t, first.ID, favs.Posts[1].ID)
	assert.Equal(t, []UserRef{{ID: carl.ID, Name: "carl"}, {ID: ann.ID, Name: "ann"}}, favs.Users)

	empty, err := svc.List(ctx, ann.ID, 1, 20)
	require.NoError(t, err)
	assert.NotNil(t, empty.Posts)
	assert.NotNil(t, empty.Users)
}
