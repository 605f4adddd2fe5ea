package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"babyshop/internal/observability"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
)

// OpenAPIValidatorConfig holds configuration for OpenAPI validation middleware
type OpenAPIValidatorConfig struct {
	// Enabled controls whether validation is active
	Enabled bool
	// Spec is the raw OpenAPI document (YAML or JSON)
	Spec []byte
	// SkipPaths are path prefixes that bypass validation
	SkipPaths []string
}

// DefaultSkipPaths are operational endpoints and static assets.
var DefaultSkipPaths = []string{
	"/health",
	"/metrics",
	"/static/",
}

// LoadOpenAPIRouter parses and validates the document and builds a route
// matcher for it.
func LoadOpenAPIRouter(ctx context.Context, spec []byte) (routers.Router, error) {
	loader := openapi3.NewLoader()
	loader.Context = ctx

	doc, err := loader.LoadFromData(spec)
	if err != nil {
		return nil, fmt.Errorf("failed to load OpenAPI spec: %w", err)
	}

	if err := doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("OpenAPI spec validation failed: %w", err)
	}

	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenAPI router: %w", err)
	}
	return router, nil
}

// OpenAPIValidator rejects requests whose method, content type or form body
// do not match the documented operation. Requests for undocumented paths are
// passed on so the router can answer 404 or 405.
func OpenAPIValidator(config OpenAPIValidatorConfig) (func(next http.Handler) http.Handler, error) {
	if !config.Enabled {
		slog.Info("OpenAPI validation disabled")
		return func(next http.Handler) http.Handler {
			return next
		}, nil
	}

	router, err := LoadOpenAPIRouter(context.Background(), config.Spec)
	if err != nil {
		return nil, err
	}

	skip := config.SkipPaths
	if skip == nil {
		skip = DefaultSkipPaths
	}

	slog.Info("OpenAPI validation enabled")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if shouldSkipPath(r.URL.Path, skip) {
				next.ServeHTTP(w, r)
				return
			}

			route, pathParams, err := router.FindRoute(r)
			if err != nil {
				if !errors.Is(err, routers.ErrPathNotFound) && !errors.Is(err, routers.ErrMethodNotAllowed) {
					slog.Warn("OpenAPI route lookup failed", slog.String("error", err.Error()))
				}
				next.ServeHTTP(w, r)
				return
			}

			input := &openapi3filter.RequestValidationInput{
				Request:    r,
				PathParams: pathParams,
				Route:      route,
				Options: &openapi3filter.Options{
					AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
					MultiError:         true,
				},
			}

			if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
				observability.FromContext(r.Context()).Warn("request validation failed",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()))
				http.Error(w, "Ungültige Anfrage", http.StatusBadRequest)
				return
			}

			next.ServeHTTP(w, r)
		})
	}, nil
}

// shouldSkipPath checks if a path should skip validation
func shouldSkipPath(path string, skipPaths []string) bool {
	for _, skipPath := range skipPaths {
		if strings.HasPrefix(path, skipPath) {
			return true
		}
	}
	return false
}
