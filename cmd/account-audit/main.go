package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"babyshop/internal/config"
	"babyshop/internal/messaging"
	"babyshop/internal/observability"
)

func main() {
	cfg := config.Load()
	observability.InitLogger(cfg.LogLevel, cfg.LogFormat)

	slog.Info("starting account audit consumer")

	if cfg.RabbitMQURL == "" {
		slog.Error("RABBITMQ_URL must be set for the audit consumer")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	connCtx, connCancel := context.WithTimeout(ctx, 60*time.Second)
	defer connCancel()

	rmq, err := messaging.NewRabbitMQWithRetry(connCtx, cfg.RabbitMQURL)
	if err != nil {
		slog.Error("failed to connect to rabbitmq", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer rmq.Close()

	slog.Info("connected to rabbitmq")

	deliveries, err := rmq.ConsumeAudit()
	if err != nil {
		slog.Error("failed to start consuming", slog.String("error", err.Error()))
		os.Exit(1)
	}

	consumer := messaging.NewAuditConsumer(messaging.LogSink(slog.Default().With(slog.String("component", "audit"))))

	slog.Info("account audit consumer is ready")

	if err := consumer.Run(ctx, deliveries); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("audit consumer stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("account audit consumer stopped")
}
