// Package notify publishes real-time dashboard events.
package notify

import (
	"context"
	"log/slog"
)

const (
	EventNewLead     = "new-lead"
	EventLeadUpdated = "lead-updated"
)

type Notifier interface {
	Publish(ctx context.Context, channelKey, eventName string, payload any) error
}

// EventChannel is the channel key dashboards for one open house listen on.
func EventChannel(eventID string) string {
	return "event-" + eventID
}

type Noop struct{}

func (Noop) Publish(ctx context.Context, channelKey, eventName string, payload any) error {
	slog.Debug("realtime event dropped (no notifier configured)", "channel", channelKey, "event", eventName)
	return nil
}
