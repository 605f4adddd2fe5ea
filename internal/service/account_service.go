package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"babyshop/internal/domain"
	"babyshop/internal/observability"
	"babyshop/internal/security"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultSessionTTL = 24 * time.Hour
	DefaultBcryptCost = 12
)

// Auth event labels for observability.AuthEventsTotal
const (
	eventRegister = "register"
	eventLogin    = "login"
	eventLogout   = "logout"
)

// AccountService registers accounts and manages their login sessions
type AccountService struct {
	accounts   domain.AccountRepository
	sessions   domain.SessionRepository
	publisher  domain.EventPublisher
	tokens     *security.TokenManager
	sessionTTL time.Duration
	bcryptCost int
	now        func() time.Time

	dummyOnce sync.Once
	dummyHash []byte
}

// Option configures an AccountService
type Option func(*AccountService)

// WithSessionTTL sets how long a session stays valid
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *AccountService) {
		s.sessionTTL = ttl
	}
}

// WithBcryptCost sets the bcrypt work factor for new password hashes
func WithBcryptCost(cost int) Option {
	return func(s *AccountService) {
		s.bcryptCost = cost
	}
}

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(s *AccountService) {
		s.now = now
	}
}

// NewAccountService creates a new account service
func NewAccountService(
	accounts domain.AccountRepository,
	sessions domain.SessionRepository,
	publisher domain.EventPublisher,
	tokens *security.TokenManager,
	opts ...Option,
) *AccountService {
	s := &AccountService{
		accounts:   accounts,
		sessions:   sessions,
		publisher:  publisher,
		tokens:     tokens,
		sessionTTL: DefaultSessionTTL,
		bcryptCost: DefaultBcryptCost,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register hashes the password and stores a new active account. Duplicate
// usernames or emails surface as domain.ErrUsernameExists / ErrEmailExists.
func (s *AccountService) Register(ctx context.Context, input domain.NewAccount) (*domain.Account, error) {
	// Unique constraints still decide races; this skips hashing for a taken address.
	switch _, err := s.accounts.GetByEmail(ctx, input.Email); {
	case err == nil:
		observability.RecordAuthEvent(eventRegister, "duplicate")
		return nil, domain.ErrEmailExists
	case !errors.Is(err, domain.ErrAccountNotFound):
		observability.RecordAuthEvent(eventRegister, "error")
		return nil, fmt.Errorf("failed to look up email: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.bcryptCost)
	if err != nil {
		observability.RecordAuthEvent(eventRegister, "error")
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	account := &domain.Account{
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: string(hash),
		IsActive:     true,
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		switch {
		case errors.Is(err, domain.ErrUsernameExists), errors.Is(err, domain.ErrEmailExists):
			observability.RecordAuthEvent(eventRegister, "duplicate")
			return nil, err
		default:
			observability.RecordAuthEvent(eventRegister, "error")
			return nil, fmt.Errorf("failed to create account: %w", err)
		}
	}

	observability.RecordAuthEvent(eventRegister, "ok")
	observability.FromContext(ctx).Info("account registered",
		slog.String("account_id", account.ID),
		slog.String("username", account.Username))
	s.publish(ctx, domain.EventAccountRegistered, account)

	return account, nil
}

// Authenticate checks credentials and returns the matching account, active or
// not. Unknown usernames still pay for a bcrypt comparison.
func (s *AccountService) Authenticate(ctx context.Context, username, password string) (*domain.Account, error) {
	logger := observability.FromContext(ctx)

	account, err := s.accounts.GetByUsername(ctx, username)
	if errors.Is(err, domain.ErrAccountNotFound) {
		_ = bcrypt.CompareHashAndPassword(s.dummy(), []byte(password))
		observability.RecordAuthEvent(eventLogin, "unknown_user")
		logger.Info("authentication failed",
			slog.String("username", username),
			slog.String("reason", "unknown_user"))
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		observability.RecordAuthEvent(eventLogin, "error")
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		observability.RecordAuthEvent(eventLogin, "wrong_password")
		logger.Info("authentication failed",
			slog.String("username", username),
			slog.String("account_id", account.ID),
			slog.String("reason", "wrong_password"))
		return nil, domain.ErrInvalidCredentials
	}

	return account, nil
}

// StartSession opens a session for an authenticated account and stamps its
// last login. Inactive accounts are refused with domain.ErrAccountInactive.
func (s *AccountService) StartSession(ctx context.Context, account *domain.Account) (*domain.Session, error) {
	if !account.IsActive {
		observability.RecordAuthEvent(eventLogin, "inactive")
		observability.FromContext(ctx).Info("authentication failed",
			slog.String("username", account.Username),
			slog.String("account_id", account.ID),
			slog.String("reason", "inactive"))
		return nil, domain.ErrAccountInactive
	}

	token, err := s.tokens.Generate()
	if err != nil {
		observability.RecordAuthEvent(eventLogin, "error")
		return nil, fmt.Errorf("failed to generate session token: %w", err)
	}

	session := &domain.Session{
		AccountID: account.ID,
		Token:     token,
		ExpiresAt: s.now().Add(s.sessionTTL),
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		observability.RecordAuthEvent(eventLogin, "error")
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	observability.RecordAuthEvent(eventLogin, "ok")
	observability.FromContext(ctx).Info("session started",
		slog.String("account_id", account.ID))
	s.publish(ctx, domain.EventAccountLoggedIn, account)

	return session, nil
}

// EndSession removes the session behind token. Empty or unknown tokens are
// not an error.
func (s *AccountService) EndSession(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	// Look the session up first so the logout event can name the account.
	session, err := s.sessions.GetByToken(ctx, token)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		observability.RecordAuthEvent(eventLogout, "error")
		return fmt.Errorf("failed to look up session: %w", err)
	}

	removed, err := s.sessions.Delete(ctx, token)
	if err != nil {
		observability.RecordAuthEvent(eventLogout, "error")
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if !removed {
		return nil
	}

	observability.RecordAuthEvent(eventLogout, "ok")
	s.publish(ctx, domain.EventAccountLoggedOut, &domain.Account{ID: session.AccountID})
	return nil
}

// ValidateSession resolves a session token to its live session and account.
func (s *AccountService) ValidateSession(ctx context.Context, token string) (*domain.Session, *domain.Account, error) {
	if !s.tokens.Valid(token) {
		return nil, nil, domain.ErrSessionNotFound
	}

	session, err := s.sessions.GetByToken(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	if session.Expired(s.now()) {
		return nil, nil, domain.ErrSessionExpired
	}

	account, err := s.accounts.GetByID(ctx, session.AccountID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load session account: %w", err)
	}
	if !account.IsActive {
		return nil, nil, domain.ErrAccountInactive
	}

	return session, account, nil
}

// CleanupExpiredSessions deletes sessions past their expiry.
func (s *AccountService) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	n, err := s.sessions.DeleteExpired(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return n, nil
}

// publish never fails the calling operation; the broker is best effort.
func (s *AccountService) publish(ctx context.Context, eventType string, account *domain.Account) {
	event := &domain.AccountEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		AccountID:  account.ID,
		Username:   account.Username,
		OccurredAt: s.now().UTC(),
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		observability.FromContext(ctx).Warn("failed to publish account event",
			slog.String("type", eventType),
			slog.String("account_id", account.ID),
			slog.String("error", err.Error()))
	}
}

func (s *AccountService) dummy() []byte {
	s.dummyOnce.Do(func() {
		hash, err := bcrypt.GenerateFromPassword([]byte("babyshop-timing-equaliser"), s.bcryptCost)
		if err != nil {
			hash = []byte{}
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}
