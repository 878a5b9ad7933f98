package client

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gopkg.in/gomail.v2"
)

type smtpDialer interface {
	DialAndSend(m ...*gomail.Message) error
}

type SMTPEmailClient struct {
	dialer smtpDialer
	from   string
}

func NewSMTPEmailClient(host string, port int, user, password, from string) *SMTPEmailClient {
	return &SMTPEmailClient{
		dialer: gomail.NewDialer(host, port, user, password),
		from:   from,
	}
}

// SendEmail returns the generated Message-ID header as the provider id.
// The gomail dialer has no context support, so ctx is only checked before
// dialing.
func (c *SMTPEmailClient) SendEmail(ctx context.Context, to, subject, html string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	messageID := fmt.Sprintf("<%s@%s>", uuid.NewString(), senderDomain(c.from))

	m := gomail.NewMessage()
	m.SetHeader("From", c.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetHeader("Message-ID", messageID)
	m.SetBody("text/html", html)

	if err := c.dialer.DialAndSend(m); err != nil {
		return "", errors.Wrap(err, "smtp send failed")
	}
	return messageID, nil
}

func senderDomain(from string) string {
	from = strings.TrimSuffix(strings.TrimSpace(from), ">")
	if i := strings.LastIndex(from, "@"); i >= 0 && i < len(from)-1 {
		return from[i+1:]
	}
	return "localhost"
}
