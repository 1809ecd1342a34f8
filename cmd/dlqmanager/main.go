package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/allerhed/rythm/internal/config"
	"github.com/allerhed/rythm/internal/logging"
	"github.com/allerhed/rythm/internal/observability"
	"github.com/allerhed/rythm/internal/outbox"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("ignoring .env: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.New(cfg.LogMode)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		logger.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	manager := outbox.NewDLQManager(pool, logger.Named("dlq"), cfg.DLQMaxRetries, cfg.DLQBaseDelay)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return observability.ServeMetrics(ctx, cfg.MetricsAddress, logger) })
	g.Go(func() error {
		logger.Info("dlq manager started",
			zap.Duration("interval", cfg.DLQPollInterval),
			zap.Int("max_retries", cfg.DLQMaxRetries),
		)
		return manager.Run(ctx, cfg.DLQPollInterval, cfg.DLQBatchSize)
	})

	if err := g.Wait(); err != nil {
		logger.Error("dlq manager stopped with error", zap.Error(err))
		return
	}
	logger.Info("dlq manager shutdown complete")
}
