package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"babyshop/internal/domain"
	"babyshop/internal/observability"

	"github.com/cenkalti/backoff/v4"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	// ExchangeAccountEvents is a topic exchange keyed by event type
	ExchangeAccountEvents = "accounts.events"
	// QueueAccountAudit receives every account event for the audit consumer
	QueueAccountAudit = "accounts.audit"

	auditBindingKey = "account.#"
)

type RabbitMQ struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	mu      sync.Mutex // amqp channels are not safe for concurrent publishing
}

func NewRabbitMQ(url string) (*RabbitMQ, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	rmq := &RabbitMQ{
		conn:    conn,
		channel: ch,
	}

	if err := rmq.Setup(); err != nil {
		rmq.Close()
		return nil, err
	}

	return rmq, nil
}

// NewRabbitMQWithRetry keeps dialing with exponential backoff until the
// broker accepts the connection or ctx is done.
func NewRabbitMQWithRetry(ctx context.Context, url string) (*RabbitMQ, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = 0

	var rmq *RabbitMQ
	operation := func() error {
		var err error
		rmq, err = NewRabbitMQ(url)
		return err
	}
	notify := func(err error, next time.Duration) {
		slog.Warn("rabbitmq not reachable, retrying",
			slog.String("error", err.Error()),
			slog.Duration("retry_in", next))
	}

	if err := backoff.RetryNotify(operation, backoff.WithContext(b, ctx), notify); err != nil {
		return nil, fmt.Errorf("giving up connecting to RabbitMQ: %w", err)
	}
	return rmq, nil
}

func (r *RabbitMQ) Setup() error {
	if err := r.channel.ExchangeDeclare(
		ExchangeAccountEvents, // name
		"topic",               // type
		true,                  // durable
		false,                 // auto-deleted
		false,                 // internal
		false,                 // no-wait
		nil,                   // arguments
	); err != nil {
		return fmt.Errorf("failed to declare account events exchange: %w", err)
	}

	if _, err := r.channel.QueueDeclare(
		QueueAccountAudit, // name
		true,              // durable
		false,             // delete when unused
		false,             // exclusive
		false,             // no-wait
		nil,               // arguments
	); err != nil {
		return fmt.Errorf("failed to declare %s queue: %w", QueueAccountAudit, err)
	}

	if err := r.channel.QueueBind(
		QueueAccountAudit,
		auditBindingKey,
		ExchangeAccountEvents,
		false,
		nil,
	); err != nil {
		return fmt.Errorf("failed to bind %s queue: %w", QueueAccountAudit, err)
	}

	slog.Info("rabbitmq setup completed successfully")
	return nil
}

// Publish sends an account event routed by its type.
func (r *RabbitMQ) Publish(ctx context.Context, event *domain.AccountEvent) error {
	msg, err := encodeEvent(event)
	if err != nil {
		observability.EventsPublishedTotal.WithLabelValues(event.Type, "error").Inc()
		return err
	}

	r.mu.Lock()
	err = r.channel.PublishWithContext(ctx, ExchangeAccountEvents, event.Type, false, false, msg)
	r.mu.Unlock()

	if err != nil {
		observability.EventsPublishedTotal.WithLabelValues(event.Type, "error").Inc()
		return fmt.Errorf("failed to publish %s event: %w", event.Type, err)
	}

	observability.EventsPublishedTotal.WithLabelValues(event.Type, "ok").Inc()
	slog.Debug("published account event",
		slog.String("type", event.Type),
		slog.String("account_id", event.AccountID))
	return nil
}

// ConsumeAudit starts delivering the audit queue with manual acknowledgement.
func (r *RabbitMQ) ConsumeAudit() (<-chan amqp.Delivery, error) {
	if err := r.channel.Qos(16, 0, false); err != nil {
		return nil, fmt.Errorf("failed to set prefetch: %w", err)
	}

	msgs, err := r.channel.Consume(
		QueueAccountAudit,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register consumer: %w", err)
	}

	slog.Info("started consuming account events",
		slog.String("queue", QueueAccountAudit))
	return msgs, nil
}

func (r *RabbitMQ) IsClosed() bool {
	return r.conn == nil || r.conn.IsClosed()
}

func (r *RabbitMQ) Close() error {
	if r.channel != nil {
		r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

func encodeEvent(event *domain.AccountEvent) (amqp.Publishing, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("failed to marshal event: %w", err)
	}

	return amqp.Publishing{
		ContentType:  "application/json",
		MessageId:    event.ID,
		Type:         event.Type,
		Timestamp:    event.OccurredAt,
		Body:         body,
		DeliveryMode: amqp.Persistent,
	}, nil
}

// NopPublisher discards events. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, *domain.AccountEvent) error { return nil }
