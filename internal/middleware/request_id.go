package middleware

import (
	"net/http"

	"babyshop/internal/observability"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// RequestLogging copies chi's request id into the logging context. Mount it
// after chimw.RequestID.
func RequestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := chimw.GetReqID(r.Context()); id != "" {
			r = r.WithContext(observability.WithRequestID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}
