// Command analytics starts the standalone query analytics service.
//
// It consumes recommender query events from Kafka, aggregates them in memory
// (query counts per kind, latency percentiles, cache hit rate, fallbacks,
// top queries and anchor movies), optionally persists periodic snapshots to
// PostgreSQL, and exposes them at GET /api/analytics.
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/development.yaml]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/Movie-Recommendation-Engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Movie-Recommendation-Engine/internal/analytics/store"
	"github.com/Adithya-Monish-Kumar-K/Movie-Recommendation-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Movie-Recommendation-Engine/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Movie-Recommendation-Engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Movie-Recommendation-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Movie-Recommendation-Engine/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/Movie-Recommendation-Engine/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting analytics service", "port", cfg.Analytics.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	aggregator := analytics.NewAggregator()
	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.QueryEvents, aggregator.HandleEvent())
	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		if err := consumer.Start(ctx); err != nil {
			slog.Error("consumer error", "error", err)
		}
	}()
	slog.Info("analytics consumer started", "topic", cfg.Kafka.Topics.QueryEvents, "group", cfg.Kafka.ConsumerGroup)

	checker := health.NewChecker()
	checker.Register("kafka", func(ctx context.Context) health.ComponentHealth {
		stats := consumer.Stats()
		if stats.Errors > 0 {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: fmt.Sprintf("%d fetch errors", stats.Errors)}
		}
		return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("%d messages consumed", stats.Messages)}
	})

	var snapshots analytics.SnapshotLister
	var saveDone <-chan struct{}
	if cfg.Analytics.PersistSnapshots {
		db, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		st := store.New(db)
		if err := st.EnsureSchema(ctx); err != nil {
			slog.Error("failed to create snapshot schema", "error", err)
			os.Exit(1)
		}
		if latest, err := st.LatestSnapshot(ctx); err == nil && latest != nil {
			slog.Info("previous snapshot found", "total_queries", latest.TotalQueries)
		}
		saveDone = st.StartPeriodicSave(ctx, aggregator, cfg.Analytics.SnapshotInterval)
		snapshots = st

		checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
			if err := db.Ping(ctx); err != nil {
				return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
			}
			return health.ComponentHealth{Status: health.StatusUp}
		})
	}

	analyticsHandler := analytics.NewHandler(aggregator, snapshots)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/analytics", analyticsHandler.Stats)
	mux.HandleFunc("GET /api/analytics/snapshots", analyticsHandler.Snapshots)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.CORS(middleware.DefaultCORSConfig())(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Analytics.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	checker.SetReady(true)
	slog.Info("analytics service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	<-consumerDone
	if saveDone != nil {
		<-saveDone
	}
	slog.Info("analytics service stopped")
}
