package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"babyshop/internal/observability"
	"babyshop/internal/security"
)

const (
	CSRFCookieName = "csrf_token"
	CSRFFieldName  = "csrf_token"
	CSRFHeaderName = "X-CSRF-Token"

	csrfTokenKey contextKey = "csrf_token"
)

// CSRF protects form posts with the double submit cookie pattern. The login
// and registration forms are posted by anonymous visitors, so the token lives
// in its own cookie instead of a server side session.
//
// Token Validation Flow:
// 1. Reuse the token from the csrf_token cookie, or issue a new one
// 2. Expose the token to templates through CSRFToken(ctx)
// 3. Skip validation for safe methods and exempt paths
// 4. Compare the submitted token to the cookie in constant time
// 5. Reject with 403 Forbidden on mismatch
//
// Token sources (checked in order):
// - Form field: csrf_token
// - Header: X-CSRF-Token
func CSRF(tokens *security.TokenManager, secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookieToken := ""
			if c, err := r.Cookie(CSRFCookieName); err == nil && tokens.Valid(c.Value) {
				cookieToken = c.Value
			}

			if !isSafeMethod(r.Method) && !isExemptPath(r.URL.Path) {
				submitted := extractCSRFToken(r)
				if submitted == "" {
					logCSRFFailure(r, "missing token")
					http.Error(w, "Ungültige Anfrage (CSRF-Prüfung fehlgeschlagen)", http.StatusForbidden)
					return
				}
				if !security.Equal(cookieToken, submitted) {
					logCSRFFailure(r, "invalid token")
					http.Error(w, "Ungültige Anfrage (CSRF-Prüfung fehlgeschlagen)", http.StatusForbidden)
					return
				}
			}

			token := cookieToken
			if token == "" {
				var err error
				token, err = tokens.Generate()
				if err != nil {
					observability.FromContext(r.Context()).Error("failed to issue csrf token",
						slog.String("error", err.Error()))
					http.Error(w, "Ein interner Fehler ist aufgetreten", http.StatusInternalServerError)
					return
				}
				http.SetCookie(w, &http.Cookie{
					Name:     CSRFCookieName,
					Value:    token,
					Path:     "/",
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			ctx := context.WithValue(r.Context(), csrfTokenKey, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CSRFToken returns the token forms must echo in the csrf_token field.
func CSRFToken(ctx context.Context) string {
	token, _ := ctx.Value(csrfTokenKey).(string)
	return token
}

// WithCSRFToken stores a token in ctx; handler tests use it to render forms.
func WithCSRFToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, csrfTokenKey, token)
}

// isSafeMethod returns true if the HTTP method is idempotent and cacheable.
// These methods should not modify state and don't require CSRF tokens.
func isSafeMethod(method string) bool {
	return method == http.MethodGet ||
		method == http.MethodHead ||
		method == http.MethodOptions
}

// isExemptPath returns true if the request path should skip CSRF validation.
func isExemptPath(path string) bool {
	exemptPaths := []string{
		"/health",
		"/metrics",
	}

	for _, exemptPath := range exemptPaths {
		if strings.HasPrefix(path, exemptPath) {
			return true
		}
	}
	return false
}

// extractCSRFToken extracts the CSRF token from the request.
// Checks sources in order: form data, X-CSRF-Token header.
func extractCSRFToken(r *http.Request) string {
	if token := r.PostFormValue(CSRFFieldName); token != "" {
		return token
	}
	return r.Header.Get(CSRFHeaderName)
}

// logCSRFFailure logs a security event when CSRF validation fails.
func logCSRFFailure(r *http.Request, reason string) {
	observability.FromContext(r.Context()).Warn("CSRF validation failed",
		slog.String("reason", reason),
		slog.String("method", r.Method),
		slog.String("path", r.RequestURI),
		slog.String("remote_addr", r.RemoteAddr),
	)
}
