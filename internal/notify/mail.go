package notify

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/d60-Lab/favorite-notify/internal/fanout"
	"github.com/d60-Lab/favorite-notify/pkg/mail"
)

// Mailer 发信接口，由 mail.Sender 实现
type Mailer interface {
	Send(ctx context.Context, msg mail.Message) error
}

// MailChannel renders the payload as a multipart e-mail.
type MailChannel struct {
	mailer  Mailer
	baseURL string
}

func NewMailChannel(mailer Mailer, baseURL string) *MailChannel {
	return &MailChannel{mailer: mailer, baseURL: strings.TrimRight(baseURL, "/")}
}

func (c *MailChannel) Send(ctx context.Context, p fanout.Payload) error {
	if p.RecipientEmail == "" {
		return nil
	}
	msg := Render(p, c.baseURL)
	msg.To = p.RecipientEmail
	if err := c.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("mail user %d: %w", p.RecipientID, err)
	}
	return nil
}

// Render builds the subject, plain-text and HTML bodies for p.
func Render(p fanout.Payload, baseURL string) mail.Message {
	link := baseURL + p.ActionPath

	var text strings.Builder
	text.WriteString(p.Greeting + "\n\n")
	for _, l := range p.Lines {
		text.WriteString(l + "\n\n")
	}
	fmt.Fprintf(&text, "%s: %s\n\n%s\n", p.ActionText, link, p.Outro)

	var body strings.Builder
	fmt.Fprintf(&body, "<h1>%s</h1>\n", html.EscapeString(p.Greeting))
	for i, l := range p.Lines {
		if i == 1 {
			// 第二行是标题
			fmt.Fprintf(&body, "<p><strong>%s</strong></p>\n", html.EscapeString(l))
			continue
		}
		fmt.Fprintf(&body, "<p>%s</p>\n", html.EscapeString(l))
	}
	fmt.Fprintf(&body, "<p><a href=\"%s\">%s</a></p>\n", html.EscapeString(link), html.EscapeString(p.ActionText))
	fmt.Fprintf(&body, "<p>%s</p>\n", html.EscapeString(p.Outro))

	return mail.Message{Subject: p.Subject, TextBody: text.String(), HTMLBody: body.String()}
}
