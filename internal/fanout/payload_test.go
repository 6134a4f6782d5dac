package fanout

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/d60-Lab/favorite-notify/internal/model"
)

func TestBuildPayload(t *testing.T) {
	post := &model.Post{ID: 12, UserID: 1, Title: "Go generics", Body: "Type   parameters\nare here."}
	author := &model.User{ID: 1, Name: "Ann"}
	reader := &model.User{ID: 2, Name: "Bob", Email: "bob@example.com"}

	p := BuildPayload(post, author, reader)

	assert.Equal(t, model.NotificationKindFavoriteUserNewPost, p.Kind)
	assert.Equal(t, "Ann has created a new post", p.Subject)
	assert.Equal(t, "Hello Bob!", p.Greeting)
	assert.Equal(t, "View Post", p.ActionText)
	assert.Equal(t, "/posts/12", p.ActionPath)
	assert.Equal(t, "Type parameters are here.", p.Excerpt)
	assert.Equal(t, []string{
		"Ann has just created a new post that you might be interested in.",
		"Go generics",
		"Type   parameters\nare here.",
	}, p.Lines)
	assert.Equal(t, map[string]any{
		"post_id":     uint64(12),
		"post_title":  "Go generics",
		"author_id":   uint64(1),
		"author_name": "Ann",
	}, p.Data())
}

func TestExcerptTruncatesOnRunes(t *testing.T) {
	body := strings.Repeat("收藏", 100)
	got := excerpt(body, 10)
	assert.Equal(t, strings.Repeat("收藏", 5)+"...", got)
	assert.Equal(t, "short", excerpt("short", 10))
}
