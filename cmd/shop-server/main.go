package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"babyshop/api"
	"babyshop/internal/config"
	"babyshop/internal/domain"
	"babyshop/internal/flash"
	"babyshop/internal/handler"
	"babyshop/internal/messaging"
	"babyshop/internal/middleware"
	"babyshop/internal/migrations"
	"babyshop/internal/observability"
	"babyshop/internal/repository/postgres"
	"babyshop/internal/security"
	"babyshop/internal/server"
	"babyshop/internal/service"
	"babyshop/internal/web"
)

func main() {
	cfg := config.Load()
	observability.InitLogger(cfg.LogLevel, cfg.LogFormat)

	slog.Info("starting shop server", slog.String("environment", cfg.Environment))

	connCtx, connCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer connCancel()

	db, err := config.NewPostgresConnection(connCtx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("connected to postgresql")

	if cfg.MigrateOnStart {
		if err := migrations.Up(connCtx, db); err != nil {
			slog.Error("failed to apply migrations", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	var (
		publisher domain.EventPublisher = messaging.NopPublisher{}
		broker    handler.BrokerStatus
	)
	if cfg.RabbitMQURL != "" {
		rmqCtx, rmqCancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer rmqCancel()

		rmq, err := messaging.NewRabbitMQWithRetry(rmqCtx, cfg.RabbitMQURL)
		if err != nil {
			slog.Error("failed to connect to rabbitmq", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer rmq.Close()

		publisher = rmq
		broker = rmq
	} else {
		slog.Info("RABBITMQ_URL not set, account events are not published")
	}

	accountRepo, err := postgres.NewAccountRepository(db)
	if err != nil {
		slog.Error("failed to prepare account repository", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer accountRepo.Close()

	sessionRepo, err := postgres.NewSessionRepository(db)
	if err != nil {
		slog.Error("failed to prepare session repository", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer sessionRepo.Close()

	tokens := security.NewTokenManager()
	accountService := service.NewAccountService(accountRepo, sessionRepo, publisher, tokens,
		service.WithSessionTTL(cfg.SessionTTL),
		service.WithBcryptCost(cfg.BcryptCost))

	renderer, err := web.NewRenderer()
	if err != nil {
		slog.Error("failed to parse templates", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go startSessionCleanup(ctx, accountService)
	slog.Info("session cleanup task started")

	secure := cfg.IsProduction()
	router, err := server.NewRouter(server.Deps{
		Accounts: handler.NewAccountHandler(accountService, accountService, renderer, secure),
		Sessions: accountService,
		Tokens:   tokens,
		Flash:    flash.NewStore(cfg.SessionSecret, secure),
		DB:       db,
		Broker:   broker,
		OpenAPI: middleware.OpenAPIValidatorConfig{
			Enabled: cfg.OpenAPIValidation,
			Spec:    api.OpenAPI,
		},
		AuthLimiter:   middleware.NewRateLimiter(ctx, cfg.AuthRateLimitRPS, cfg.AuthRateLimitBurst),
		SecureCookies: secure,
	})
	if err != nil {
		slog.Error("failed to build router", slog.String("error", err.Error()))
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("shop server listening", slog.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", slog.String("error", err.Error()))
	}

	cancel()

	slog.Info("server stopped gracefully")
}

// startSessionCleanup deletes expired sessions every hour
func startSessionCleanup(ctx context.Context, accounts *service.AccountService) {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("stopping session cleanup task")
			return
		case <-ticker.C:
			cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			count, err := accounts.CleanupExpiredSessions(cleanupCtx)
			if err != nil {
				slog.Error("session cleanup failed", slog.String("error", err.Error()))
			} else {
				slog.Info("session cleanup completed",
					slog.Int64("sessions_deleted", count))
			}
			cancel()
		}
	}
}
