package fanout

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/d60-Lab/favorite-notify/internal/model"
)

const excerptRunes = 140

// Payload is one rendered notification, shared by every delivery channel.
type Payload struct {
	Kind           string   `json:"kind"`
	PostID         uint64   `json:"post_id"`
	PostTitle      string   `json:"post_title"`
	PostBody       string   `json:"post_body"`
	Excerpt        string   `json:"excerpt"`
	AuthorID       uint64   `json:"author_id"`
	AuthorName     string   `json:"author_name"`
	RecipientID    uint64   `json:"recipient_id"`
	RecipientName  string   `json:"recipient_name"`
	RecipientEmail string   `json:"-"`
	Subject        string   `json:"subject"`
	Greeting       string   `json:"greeting"`
	Lines          []string `json:"lines"`
	ActionText     string   `json:"action_text"`
	ActionPath     string   `json:"action_path"`
	Outro          string   `json:"outro"`
}

// BuildPayload renders the notification recipient receives for post.
func BuildPayload(post *model.Post, author, recipient *model.User) Payload {
	return Payload{
		Kind:           model.NotificationKindFavoriteUserNewPost,
		PostID:         post.ID,
		PostTitle:      post.Title,
		PostBody:       post.Body,
		Excerpt:        excerpt(post.Body, excerptRunes),
		AuthorID:       author.ID,
		AuthorName:     author.Name,
		RecipientID:    recipient.ID,
		RecipientName:  recipient.Name,
		RecipientEmail: recipient.Email,
		Subject:        fmt.Sprintf("%s has created a new post", author.Name),
		Greeting:       fmt.Sprintf("Hello %s!", recipient.Name),
		Lines: []string{
			fmt.Sprintf("%s has just created a new post that you might be interested in.", author.Name),
			post.Title,
			post.Body,
		},
		ActionText: "View Post",
		ActionPath: fmt.Sprintf("/posts/%d", post.ID),
		Outro:      "Thank you for using our application!",
	}
}

// Data 站内通知存储的结构化字段
func (p Payload) Data() map[string]any {
	return map[string]any{
		"post_id":     p.PostID,
		"post_title":  p.PostTitle,
		"author_id":   p.AuthorID,
		"author_name": p.AuthorName,
	}
}

func excerpt(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:n])) + "..."
}
