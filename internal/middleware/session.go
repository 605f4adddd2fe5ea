package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"babyshop/internal/domain"
	"babyshop/internal/observability"
)

type contextKey string

const (
	SessionKey contextKey = "session"
	AccountKey contextKey = "account"

	SessionCookieName = "session_id"
)

// SessionValidator resolves a session cookie to the signed-in account.
type SessionValidator interface {
	ValidateSession(ctx context.Context, token string) (*domain.Session, *domain.Account, error)
}

// Session attaches the current session and account to the request context
// when the session cookie is valid. Anonymous requests pass through
// unchanged; pages decide for themselves what a visitor may see.
func Session(validator SessionValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			session, account, err := validator.ValidateSession(r.Context(), cookie.Value)
			if err != nil {
				if !isStaleSession(err) {
					observability.FromContext(r.Context()).Warn("session lookup failed",
						slog.String("error", err.Error()))
				}
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), session, account)))
		})
	}
}

func isStaleSession(err error) bool {
	return errors.Is(err, domain.ErrSessionNotFound) ||
		errors.Is(err, domain.ErrSessionExpired) ||
		errors.Is(err, domain.ErrAccountInactive)
}

func GetSession(ctx context.Context) (*domain.Session, bool) {
	session, ok := ctx.Value(SessionKey).(*domain.Session)
	return session, ok
}

func GetAccount(ctx context.Context) (*domain.Account, bool) {
	account, ok := ctx.Value(AccountKey).(*domain.Account)
	return account, ok
}

// WithSession stores the session and its account, and tags the request
// logger with the account id.
func WithSession(ctx context.Context, session *domain.Session, account *domain.Account) context.Context {
	ctx = context.WithValue(ctx, SessionKey, session)
	ctx = context.WithValue(ctx, AccountKey, account)
	return observability.WithAccountID(ctx, account.ID)
}
