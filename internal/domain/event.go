package domain

import (
	"context"
	"time"
)

// Account lifecycle event types published to the message broker
const (
	EventAccountRegistered = "account.registered"
	EventAccountLoggedIn   = "account.logged_in"
	EventAccountLoggedOut  = "account.logged_out"
)

// AccountEvent is a lifecycle notification about an account
type AccountEvent struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	AccountID  string    `json:"account_id"`
	Username   string    `json:"username,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// EventPublisher delivers account events to interested consumers
type EventPublisher interface {
	Publish(ctx context.Context, event *AccountEvent) error
}
