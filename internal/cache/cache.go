package cache

import (
	"context"
	"time"
)

// SentRecord is the delivery receipt kept for a sent scheduled message.
type SentRecord struct {
	MessageID       string    `json:"messageId"`
	Channel         string    `json:"channel"`
	RemoteMessageID string    `json:"remoteMessageId"`
	SentAt          time.Time `json:"sentAt"`
}

type MessageCache interface {
	StoreSent(ctx context.Context, rec SentRecord) error
	LookupSent(ctx context.Context, messageID string) (SentRecord, bool, error)
}

// Noop is used when no redis address is configured.
type Noop struct{}

func (Noop) StoreSent(context.Context, SentRecord) error { return nil }

func (Noop) LookupSent(context.Context, string) (SentRecord, bool, error) {
	return SentRecord{}, false, nil
}
