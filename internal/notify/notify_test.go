package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/favorite-notify/internal/fanout"
	"github.com/d60-Lab/favorite-notify/internal/model"
	"github.com/d60-Lab/favorite-notify/internal/repository"
	"github.com/d60-Lab/favorite-notify/internal/testutil"
	"github.com/d60-Lab/favorite-notify/pkg/mail"
)

func samplePayload() fanout.Payload {
	post := &model.Post{ID: 42, UserID: 1, Title: "Tom & Jerry <3", Body: "hello world"}
	author := &model.User{ID: 1, Name: "Ann"}
	reader := &model.User{ID: 2, Name: "Bob", Email: "bob@example.com"}
	return fanout.BuildPayload(post, author, reader)
}

func TestDatabaseChannel_Idempotent(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repository.NewNotificationRepository(db)
	ch := NewDatabaseChannel(repo)
	ctx := context.Background()

	p := samplePayload()
	require.NoError(t, ch.Send(ctx, p))
	require.NoError(t, ch.Send(ctx, p))

	n, err := repo.CountByPost(ctx, 42)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	rows, err := repo.ListByUser(ctx, 2, 0, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Ann has created a new post", rows[0].Subject)
	assert.JSONEq(t, `{"post_id":42,"post_title":"Tom & Jerry <3","author_id":1,"author_name":"Ann"}`, rows[0].Data)
}

type fakeMailer struct {
	sent []mail.Message
	err  error
}

func (f *fakeMailer) Send(_ context.Context, msg mail.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func TestMailChannel_RendersAndEscapes(t *testing.T) {
	m := &fakeMailer{}
	ch := NewMailChannel(m, "https://example.com/")

	require.NoError(t, ch.Send(context.Background(), samplePayload()))
	require.Len(t, m.sent, 1)
	msg := m.sent[0]
	assert.Equal(t, "bob@example.com", msg.To)
	assert.Equal(t, "Ann has created a new post", msg.Subject)
	assert.Contains(t, msg.HTMLBody, "<strong>Tom &amp; Jerry &lt;3</strong>")
	assert.Contains(t, msg.HTMLBody, `href="https://example.com/posts/42"`)
	assert.Contains(t, msg.TextBody, "Hello Bob!")
	assert.Contains(t, msg.TextBody, "View Post: https://example.com/posts/42")
}

func TestMailChannel_SkipsRecipientWithoutEmail(t *testing.T) {
	m := &fakeMailer{}
	p := samplePayload()
	p.RecipientEmail = ""
	require.NoError(t, NewMailChannel(m, "").Send(context.Background(), p))
	assert.Empty(t, m.sent)
}

func TestMulti_JoinsErrors(t *testing.T) {
	boom := errors.New("smtp down")
	ok := &fakeMailer{}
	multi := Multi{NewMailChannel(&fakeMailer{err: boom}, ""), LogChannel{}, NewMailChannel(ok, "")}

	err := multi.Send(context.Background(), samplePayload())
	assert.ErrorIs(t, err, boom)
	assert.Len(t, ok.sent, 1)
}
