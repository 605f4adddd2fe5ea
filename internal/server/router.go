package server

import (
	"net/http"

	"babyshop/internal/flash"
	"babyshop/internal/handler"
	"babyshop/internal/middleware"
	"babyshop/internal/security"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps are the collaborators the HTTP surface is assembled from.
type Deps struct {
	Accounts      *handler.AccountHandler
	Sessions      middleware.SessionValidator
	Tokens        *security.TokenManager
	Flash         *flash.Store
	DB            handler.Pinger
	Broker        handler.BrokerStatus // nil when event publishing is disabled
	OpenAPI       middleware.OpenAPIValidatorConfig
	AuthLimiter   *middleware.RateLimiter // nil disables throttling
	SecureCookies bool
}

// NewRouter wires the storefront account pages and the operational endpoints.
//
// Page middleware order matters: the OpenAPI validator restores the form body
// after reading it, while the CSRF check parses it for good.
func NewRouter(d Deps) (http.Handler, error) {
	validator, err := middleware.OpenAPIValidator(d.OpenAPI)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogging)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Metrics())

	r.Get("/health", handler.Health)
	r.Get("/health/ready", handler.Ready(d.DB, d.Broker))
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(validator)
		r.Use(d.Flash.Middleware)
		r.Use(middleware.CSRF(d.Tokens, d.SecureCookies))
		r.Use(middleware.Session(d.Sessions))

		r.Get("/", d.Accounts.Home)
		r.Get("/register", d.Accounts.RegisterForm)
		r.Get("/login", d.Accounts.LoginForm)
		r.HandleFunc("/logout", d.Accounts.Logout)

		r.Group(func(r chi.Router) {
			if d.AuthLimiter != nil {
				r.Use(d.AuthLimiter.Middleware())
			}
			r.Post("/register", d.Accounts.Register)
			r.Post("/login", d.Accounts.Login)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Seite nicht gefunden", http.StatusNotFound)
	})

	return r, nil
}
