package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/ignite/outreach-pipeline/internal/pkg/logger"
)

// Channel is the subset of *amqp.Channel the publisher uses.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQP publishes lifecycle events as persistent JSON messages on a durable
// topic exchange, routed by "campaign.<status>".
type AMQP struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       Channel
	exchange string
}

// DialAMQP connects to the broker and declares the exchange.
func DialAMQP(url, exchange string) (*AMQP, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	a, err := NewAMQP(ch, exchange)
	if err != nil {
		conn.Close()
		return nil, err
	}
	a.conn = conn
	logger.Info("amqp notifier connected", "exchange", exchange)
	return a, nil
}

// NewAMQP wraps an open channel and declares the exchange.
func NewAMQP(ch Channel, exchange string) (*AMQP, error) {
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &AMQP{ch: ch, exchange: exchange}, nil
}

// CampaignStatusChanged implements Notifier.
func (a *AMQP) CampaignStatusChanged(ctx context.Context, e StatusEvent) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal status event: %w", err)
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	err = a.ch.PublishWithContext(ctx, a.exchange, e.RoutingKey(), false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    e.OccurredAt,
		MessageId:    e.CampaignID + ":" + string(e.Status),
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", e.RoutingKey(), err)
	}
	return nil
}

// Close closes the channel and connection.
func (a *AMQP) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	err := a.ch.Close()
	if a.conn != nil {
		if cerr := a.conn.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
