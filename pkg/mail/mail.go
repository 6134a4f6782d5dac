package mail

import (
	"context"
	"crypto/tls"

	"gopkg.in/gomail.v2"

	"github.com/d60-Lab/favorite-notify/config"
)

// Message 一封待发送邮件
type Message struct {
	To       string
	Subject  string
	HTMLBody string
	TextBody string
}

// Sender SMTP 发件器
type Sender struct {
	dialer *gomail.Dialer
	from   string
}

func NewSender(cfg config.MailConfig) *Sender {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.TLSConfig = &tls.Config{ServerName: cfg.Host}
	return &Sender{dialer: d, from: cfg.From}
}

// Send 同步发送；ctx 只用于在拨号前检查是否已取消
func (s *Sender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	if msg.TextBody != "" {
		m.SetBody("text/plain", msg.TextBody)
		if msg.HTMLBody != "" {
			m.AddAlternative("text/html", msg.HTMLBody)
		}
	} else {
		m.SetBody("text/html", msg.HTMLBody)
	}
	return s.dialer.DialAndSend(m)
}
