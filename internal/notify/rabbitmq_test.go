package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	exchange, key string
	msg           amqp.Publishing
	err           error
}

func (f *fakePublisher) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	f.exchange, f.key, f.msg = exchange, key, msg
	return f.err
}

func TestRabbitNotifier_Publish(t *testing.T) {
	fixed := time.Date(2026, 5, 2, 14, 0, 0, 0, time.UTC)
	pub := &fakePublisher{}
	n := &RabbitNotifier{ch: pub, now: func() time.Time { return fixed }}

	err := n.Publish(context.Background(), EventChannel("e1"), EventNewLead, map[string]string{"id": "l1"})
	require.NoError(t, err)

	assert.Equal(t, ExchangeName, pub.exchange)
	assert.Equal(t, "event-e1.new-lead", pub.key)
	assert.Equal(t, "application/json", pub.msg.ContentType)
	assert.Equal(t, fixed, pub.msg.Timestamp)

	var env struct {
		Channel string            `json:"channel"`
		Event   string            `json:"event"`
		Data    map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(pub.msg.Body, &env))
	assert.Equal(t, "event-e1", env.Channel)
	assert.Equal(t, "new-lead", env.Event)
	assert.Equal(t, "l1", env.Data["id"])
}

func TestRabbitNotifier_PublishError(t *testing.T) {
	n := &RabbitNotifier{ch: &fakePublisher{err: errors.New("channel closed")}, now: time.Now}

	err := n.Publish(context.Background(), "event-e1", EventLeadUpdated, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "channel closed")
}

func TestNoop(t *testing.T) {
	assert.NoError(t, Noop{}.Publish(context.Background(), "event-e1", EventNewLead, nil))
}
