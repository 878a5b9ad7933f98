package client

import (
	"context"

	"github.com/mailgun/mailgun-go/v3"
	"github.com/pkg/errors"
)

type mailgunAPI interface {
	NewMessage(from, subject, text string, to ...string) *mailgun.Message
	Send(ctx context.Context, m *mailgun.Message) (string, string, error)
}

type MailgunEmailClient struct {
	mg   mailgunAPI
	from string
}

func NewMailgunEmailClient(domain, apiKey, from string) *MailgunEmailClient {
	return &MailgunEmailClient{
		mg:   mailgun.NewMailgun(domain, apiKey),
		from: from,
	}
}

func (c *MailgunEmailClient) SendEmail(ctx context.Context, to, subject, html string) (string, error) {
	msg := c.mg.NewMessage(c.from, subject, "", to)
	msg.SetHtml(html)

	_, id, err := c.mg.Send(ctx, msg)
	if err != nil {
		return "", errors.Wrap(err, "mailgun send failed")
	}
	if id == "" {
		return "", errors.New("mailgun returned empty message id")
	}
	return id, nil
}
