package client

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) (remoteMessageID string, err error)
}

// LogSMSClient writes messages to the log instead of a gateway. Used when
// no SMS provider is configured.
type LogSMSClient struct {
	from string
}

func NewLogSMSClient(from string) *LogSMSClient {
	return &LogSMSClient{from: from}
}

func (c *LogSMSClient) SendSMS(ctx context.Context, to, body string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := "log-sms-" + uuid.NewString()
	slog.Info("sms (log provider)", "from", c.from, "to", to, "body", body, "remote_id", id)
	return id, nil
}
