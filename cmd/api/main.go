package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/allerhed/rythm/internal/api"
	"github.com/allerhed/rythm/internal/config"
	"github.com/allerhed/rythm/internal/domain"
	"github.com/allerhed/rythm/internal/logging"
	"github.com/allerhed/rythm/internal/observability"
	"github.com/allerhed/rythm/internal/outbox"
	"github.com/allerhed/rythm/internal/persistence/memory"
	"github.com/allerhed/rythm/internal/persistence/migrations"
	"github.com/allerhed/rythm/internal/persistence/postgres"
	httptransport "github.com/allerhed/rythm/internal/transport/http"
	"github.com/allerhed/rythm/pkg/auth"
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

	if err := run(cfg, logger); err != nil {
		logger.Fatal("session api stopped", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, logger, cfg.Tracing.Options())
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("tracer shutdown", zap.Error(err))
		}
	}()

	g, ctx := errgroup.WithContext(ctx)

	var store domain.Store
	switch cfg.StorageDriver {
	case config.StorageMemory:
		logger.Warn("using in-memory storage; data is lost on restart")
		store = memory.NewStore()
	default:
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			return err
		}
		defer pool.Close()

		if cfg.RunMigrations {
			if err := migrations.Up(ctx, pool); err != nil {
				return err
			}
			logger.Info("migrations applied")
		}
		store = postgres.NewStore(pool)

		if cfg.OutboxEnabled {
			producer := outbox.NewKafkaProducer(cfg.KafkaBrokers)
			defer func() {
				if err := producer.Close(); err != nil {
					logger.Warn("kafka producer close", zap.Error(err))
				}
			}()
			registry := outbox.NewSchemaRegistryClient(cfg.SchemaRegistryURL)
			dispatcher := outbox.NewDispatcher(pool, producer, registry, logger.Named("outbox"), cfg.OutboxPollInterval, cfg.OutboxBatchSize)
			g.Go(func() error {
				dispatcher.Start(ctx)
				return nil
			})
		}
	}

	service := domain.NewService(store, domain.WithLogger(logger.Named("sessions")))
	handler := api.NewHandler(service, api.WithLogger(logger.Named("api")), api.WithMaxBodyBytes(cfg.MaxBodyBytes))

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	public := func(r *http.Request) bool {
		return r.URL.Path == "/healthz" || r.URL.Path == "/metrics" || r.Method == http.MethodOptions
	}
	authMiddleware := auth.NewMiddleware(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer}, public, api.Unauthorized)

	server := httptransport.NewServer(httptransport.ServerConfig{
		Address:      cfg.HTTPAddress,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}, httptransport.Chain(mux,
		func(next http.Handler) http.Handler { return otelhttp.NewHandler(next, "rythm.http") },
		httptransport.RequestLogger(logger.Named("http")),
		httptransport.CORS(cfg.CORSAllowedOrigin),
		authMiddleware.Wrap,
	))

	g.Go(func() error {
		logger.Info("session api listening", zap.String("address", cfg.HTTPAddress), zap.String("storage", cfg.StorageDriver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
