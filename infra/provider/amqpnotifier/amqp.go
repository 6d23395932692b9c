// Package amqpnotifier publishes notifications to a RabbitMQ topic exchange.
package amqpnotifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/amirasaad/usdledger/pkg/config"
	"github.com/amirasaad/usdledger/pkg/provider/notification"
	"github.com/rabbitmq/amqp091-go"
)

// channel is the part of *amqp091.Channel the notifier uses.
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

// Notifier implements notification.Notifier over AMQP. Severity is appended
// to the routing key, so ops can bind "ops.high" for pages only.
type Notifier struct {
	mu         sync.Mutex
	conn       *amqp091.Connection
	ch         channel
	exchange   string
	routingKey string
	logger     *slog.Logger
}

// Dial connects and declares the exchange.
func Dial(cfg *config.Notification, logger *slog.Logger) (*Notifier, error) {
	conn, err := amqp091.DialConfig(cfg.AMQPURL, amqp091.Config{Dial: amqp091.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	n, err := newNotifier(ch, cfg, logger)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	n.conn = conn
	return n, nil
}

func newNotifier(ch channel, cfg *config.Notification, logger *slog.Logger) (*Notifier, error) {
	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare exchange %s: %w", cfg.Exchange, err)
	}
	return &Notifier{
		ch:         ch,
		exchange:   cfg.Exchange,
		routingKey: cfg.RoutingKey,
		logger:     logger.With("component", "amqp_notifier"),
	}, nil
}

func (n *Notifier) Notify(ctx context.Context, msg notification.Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	key := n.routingKey + "." + string(msg.Severity)

	n.mu.Lock()
	defer n.mu.Unlock()
	err = n.ch.PublishWithContext(ctx, n.exchange, key, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    msg.CreatedAt,
		Body:         body,
	})
	if err != nil {
		n.logger.Error("publish notification failed", "subject", msg.Subject, "error", err)
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

func (n *Notifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.ch != nil {
		_ = n.ch.Close()
	}
	if n.conn != nil {
		return n.conn.Close()
	}
	return nil
}

var _ notification.Notifier = (*Notifier)(nil)
