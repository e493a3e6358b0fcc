// Command recommender serves movie search and recommendations over HTTP.
//
// At startup it loads the movies, ratings and links tables from CSV files or
// PostgreSQL, builds the title index and similarity engine, and then serves
// the JSON API. Redis response caching and Kafka query analytics are optional.
//
// Usage:
//
//	go run ./cmd/recommender [-config configs/development.yaml]
//	go run ./cmd/recommender -import    # copy the CSV tables into PostgreSQL and exit
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
	"time"

	"github.com/Adithya-Monish-Kumar-K/Movie-Recommendation-Engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Movie-Recommendation-Engine/internal/dataset"
	"github.com/Adithya-Monish-Kumar-K/Movie-Recommendation-Engine/internal/ratelimit"
	"github.com/Adithya-Monish-Kumar-K/Movie-Recommendation-Engine/internal/recommender"
	"github.com/Adithya-Monish-Kumar-K/Movie-Recommendation-Engine/internal/recommender/cache"
	"github.com/Adithya-Monish-Kumar-K/Movie-Recommendation-Engine/internal/recommender/handler"
	"github.com/Adithya-Monish-Kumar-K/Movie-Recommendation-Engine/internal/recommender/router"
	"github.com/Adithya-Monish-Kumar-K/Movie-Recommendation-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Movie-Recommendation-Engine/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Movie-Recommendation-Engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Movie-Recommendation-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Movie-Recommendation-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Movie-Recommendation-Engine/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/Movie-Recommendation-Engine/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Movie-Recommendation-Engine/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	importOnly := flag.Bool("import", false, "import the CSV tables into PostgreSQL and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *importOnly {
		if err := importCSV(ctx, cfg); err != nil {
			slog.Error("import failed", "error", err)
			os.Exit(1)
		}
		return
	}

	slog.Info("starting recommender service", "port", cfg.Server.Port, "data_source", cfg.Data.Source)

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, nil)
		defer shutdownMetrics(context.Background())
	}

	checker := health.NewChecker()

	src, closeSource, err := dataset.Open(ctx, cfg)
	if err != nil {
		slog.Error("failed to open data source", "error", err)
		os.Exit(1)
	}
	defer closeSource()

	ds, err := dataset.Load(ctx, src, cfg.Data.LoadTimeout)
	if err != nil {
		slog.Error("failed to load dataset", "error", err)
		os.Exit(1)
	}
	engine := recommender.New(ds, cfg.Recommender, m)
	checker.Register("engine", func(ctx context.Context) health.ComponentHealth {
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("%d movies, dataset %s", engine.Catalog().Len(), engine.Fingerprint()),
		}
	})

	var responseCache *cache.ResponseCache
	var redisClient *pkgredis.Client
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, response caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			responseCache = cache.New(redisClient, cfg.Redis.CacheTTL, engine.Fingerprint(), m)
			slog.Info("response cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := redisClient.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp, Message: "circuit " + responseCache.BreakerState().String()}
	})

	var tracker handler.Tracker
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.QueryEvents)
		defer producer.Close()
		collector := analytics.NewCollector(producer, cfg.Analytics.BufferSize, cfg.Analytics.BatchSize, cfg.Analytics.FlushInterval)
		collector.Start(ctx)
		defer collector.Close()
		tracker = collector
		slog.Info("query analytics enabled", "topic", cfg.Kafka.Topics.QueryEvents)
	}

	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.New(cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.Window)
		limiter.StartCleanup(ctx, 5*time.Minute)
	}

	h := handler.New(engine, responseCache, tracker)
	chain := router.New(h, checker, router.Options{
		Metrics:           m,
		Limiter:           limiter,
		RequestTimeout:    cfg.Server.WriteTimeout,
		SlowRequest:       cfg.Server.SlowRequest,
		CORS:              middleware.DefaultCORSConfig(),
		TrustForwardedFor: cfg.RateLimit.TrustForwardedFor,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Handlers may still be tracking events after ListenAndServe returns, so
	// the collector is closed only once Shutdown has drained them.
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		slog.Info("shutdown signal received")
		checker.SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	checker.SetReady(true)
	slog.Info("recommender service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	<-shutdownDone

	slog.Info("recommender service stopped")
}

// importCSV copies the configured CSV tables into PostgreSQL.
func importCSV(ctx context.Context, cfg *config.Config) error {
	src := dataset.NewCSVSource(cfg.Data.MoviesPath, cfg.Data.RatingsPath, cfg.Data.LinksPath)
	tables, err := src.Read(ctx)
	if err != nil {
		return err
	}
	db, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := dataset.EnsureSchema(ctx, db); err != nil {
		return err
	}
	start := time.Now()
	if err := dataset.Import(ctx, db, tables); err != nil {
		return err
	}
	slog.Info("import complete",
		"movies", len(tables.Movies),
		"ratings", len(tables.Ratings),
		"links", len(tables.Links),
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return nil
}
