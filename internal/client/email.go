package client

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, html string) (remoteMessageID string, err error)
}

type LogEmailClient struct {
	from string
}

func NewLogEmailClient(from string) *LogEmailClient {
	return &LogEmailClient{from: from}
}

func (c *LogEmailClient) SendEmail(ctx context.Context, to, subject, html string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := "log-email-" + uuid.NewString()
	slog.Info("email (log provider)", "from", c.from, "to", to, "subject", subject, "html_bytes", len(html), "remote_id", id)
	return id, nil
}
