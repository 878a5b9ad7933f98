package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const ExchangeName = "openhouse.realtime"

type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// RabbitNotifier publishes to a topic exchange with routing key
// "<channelKey>.<eventName>".
type RabbitNotifier struct {
	conn *amqp.Connection

	mu sync.Mutex
	ch publisher

	now func() time.Time
}

func DialRabbitNotifier(url string) (*RabbitNotifier, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}

	if err := ch.ExchangeDeclare(ExchangeName, "topic", true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq declare exchange: %w", err)
	}

	return &RabbitNotifier{conn: conn, ch: ch, now: time.Now}, nil
}

type envelope struct {
	Channel string    `json:"channel"`
	Event   string    `json:"event"`
	Data    any       `json:"data"`
	SentAt  time.Time `json:"sentAt"`
}

func (n *RabbitNotifier) Publish(ctx context.Context, channelKey, eventName string, payload any) error {
	sentAt := n.now().UTC()
	body, err := json.Marshal(envelope{
		Channel: channelKey,
		Event:   eventName,
		Data:    payload,
		SentAt:  sentAt,
	})
	if err != nil {
		return fmt.Errorf("encode realtime payload: %w", err)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	err = n.ch.PublishWithContext(ctx,
		ExchangeName,
		channelKey+"."+eventName,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Timestamp:   sentAt,
			Type:        eventName,
			Body:        body,
		},
	)
	if err != nil {
		return fmt.Errorf("rabbitmq publish %s: %w", eventName, err)
	}
	return nil
}

func (n *RabbitNotifier) Close() error {
	if n.conn == nil {
		return nil
	}
	return n.conn.Close()
}
