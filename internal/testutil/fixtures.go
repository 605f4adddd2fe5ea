package testutil

import (
	"fmt"
	"sync/atomic"
	"time"

	"babyshop/internal/domain"

	"golang.org/x/crypto/bcrypt"
)

// Counter for generating unique IDs
var idCounter atomic.Int64

// nextID generates a unique ID for test fixtures
func nextID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, idCounter.Add(1))
}

// HashPassword hashes with the minimum bcrypt cost to keep tests fast
func HashPassword(password string) string {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	return string(hash)
}

// AccountOptions allows customizing account fixture creation
type AccountOptions struct {
	ID           string
	FirstName    string
	LastName     string
	Username     string
	Email        string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
}

// NewTestAccount creates an active test account with sensible defaults
// Pass options to override specific fields
func NewTestAccount(opts ...func(*AccountOptions)) *domain.Account {
	o := &AccountOptions{
		ID:           nextID("account"),
		FirstName:    "Anna",
		LastName:     "Schmidt",
		Username:     fmt.Sprintf("kunde%d", idCounter.Load()),
		PasswordHash: "$2a$10$test.hash.for.testing.purposes.only", // bcrypt hash placeholder
		IsActive:     true,
	}

	for _, opt := range opts {
		opt(o)
	}

	// Set email based on username if not provided
	if o.Email == "" {
		o.Email = o.Username + "@example.com"
	}

	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now()
	}

	return &domain.Account{
		ID:           o.ID,
		FirstName:    o.FirstName,
		LastName:     o.LastName,
		Username:     o.Username,
		Email:        o.Email,
		PasswordHash: o.PasswordHash,
		IsActive:     o.IsActive,
		CreatedAt:    o.CreatedAt,
	}
}

// Account option functions

// WithAccountID sets the account ID
func WithAccountID(id string) func(*AccountOptions) {
	return func(o *AccountOptions) {
		o.ID = id
	}
}

// WithUsername sets the username
func WithUsername(username string) func(*AccountOptions) {
	return func(o *AccountOptions) {
		o.Username = username
	}
}

// WithEmail sets the email
func WithEmail(email string) func(*AccountOptions) {
	return func(o *AccountOptions) {
		o.Email = email
	}
}

// WithName sets first and last name
func WithName(first, last string) func(*AccountOptions) {
	return func(o *AccountOptions) {
		o.FirstName = first
		o.LastName = last
	}
}

// WithPassword stores a real bcrypt hash of password
func WithPassword(password string) func(*AccountOptions) {
	return func(o *AccountOptions) {
		o.PasswordHash = HashPassword(password)
	}
}

// WithInactive marks the account as deactivated
func WithInactive() func(*AccountOptions) {
	return func(o *AccountOptions) {
		o.IsActive = false
	}
}

// SessionOptions allows customizing session fixture creation
type SessionOptions struct {
	ID        string
	AccountID string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// NewTestSession creates a test session with sensible defaults
func NewTestSession(opts ...func(*SessionOptions)) *domain.Session {
	o := &SessionOptions{
		ID:        nextID("session"),
		AccountID: nextID("account"),
		Token:     nextID("token"),
		ExpiresAt: time.Now().Add(24 * time.Hour),
		CreatedAt: time.Now(),
	}

	for _, opt := range opts {
		opt(o)
	}

	return &domain.Session{
		ID:        o.ID,
		AccountID: o.AccountID,
		Token:     o.Token,
		ExpiresAt: o.ExpiresAt,
		CreatedAt: o.CreatedAt,
	}
}

// Session option functions

// WithSessionAccountID sets the account ID for the session
func WithSessionAccountID(accountID string) func(*SessionOptions) {
	return func(o *SessionOptions) {
		o.AccountID = accountID
	}
}

// WithToken sets the session token
func WithToken(token string) func(*SessionOptions) {
	return func(o *SessionOptions) {
		o.Token = token
	}
}

// WithExpired creates an expired session
func WithExpired() func(*SessionOptions) {
	return func(o *SessionOptions) {
		o.ExpiresAt = time.Now().Add(-1 * time.Hour)
	}
}
