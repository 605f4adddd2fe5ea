package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"babyshop/internal/domain"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AuditSink records one decoded account event.
type AuditSink func(ctx context.Context, event *domain.AccountEvent) error

// LogSink writes account events to the structured log.
func LogSink(logger *slog.Logger) AuditSink {
	return func(_ context.Context, event *domain.AccountEvent) error {
		logger.Info("account event",
			slog.String("event_id", event.ID),
			slog.String("type", event.Type),
			slog.String("account_id", event.AccountID),
			slog.String("username", event.Username),
			slog.Time("occurred_at", event.OccurredAt))
		return nil
	}
}

// AuditConsumer drains the audit queue into a sink.
type AuditConsumer struct {
	sink AuditSink
}

func NewAuditConsumer(sink AuditSink) *AuditConsumer {
	return &AuditConsumer{sink: sink}
}

// Run processes deliveries until ctx is cancelled or the channel closes.
func (c *AuditConsumer) Run(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			slog.Info("stopping audit consumer")
			return ctx.Err()
		case msg, ok := <-deliveries:
			if !ok {
				slog.Warn("audit delivery channel closed")
				return nil
			}
			c.handle(ctx, msg)
		}
	}
}

func (c *AuditConsumer) handle(ctx context.Context, msg amqp.Delivery) {
	event, err := decodeEvent(msg.Body)
	if err != nil {
		slog.Error("dropping malformed account event",
			slog.String("error", err.Error()),
			slog.Int("body_size", len(msg.Body)))
		if nackErr := msg.Nack(false, false); nackErr != nil {
			slog.Error("failed to nack message", slog.String("error", nackErr.Error()))
		}
		return
	}

	if err := c.sink(ctx, event); err != nil {
		slog.Error("audit sink failed, requeueing",
			slog.String("event_id", event.ID),
			slog.String("error", err.Error()))
		if nackErr := msg.Nack(false, true); nackErr != nil {
			slog.Error("failed to nack message", slog.String("error", nackErr.Error()))
		}
		return
	}

	if err := msg.Ack(false); err != nil {
		slog.Error("failed to ack message", slog.String("error", err.Error()))
	}
}

func decodeEvent(body []byte) (*domain.AccountEvent, error) {
	var event domain.AccountEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	if event.Type == "" || event.AccountID == "" {
		return nil, fmt.Errorf("event is missing type or account id")
	}
	return &event, nil
}
