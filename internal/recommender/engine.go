// Package recommender composes the catalog, title index and similarity
// engine into the query surface served over HTTP: title search, item to
// item recommendations, movie detail, popularity and genre browsing, and
// taste recommendations from a viewing history.
package recommender

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/Adithya-Monish-Kumar-K/Movie-Recommendation-Engine/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/Movie-Recommendation-Engine/internal/dataset"
	"github.com/Adithya-Monish-Kumar-K/Movie-Recommendation-Engine/internal/ratings"
	"github.com/Adithya-Monish-Kumar-K/Movie-Recommendation-Engine/internal/similarity"
	"github.com/Adithya-Monish-Kumar-K/Movie-Recommendation-Engine/internal/titleindex"
	"github.com/Adithya-Monish-Kumar-K/Movie-Recommendation-Engine/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Movie-Recommendation-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Movie-Recommendation-Engine/pkg/metrics"
)

// Engine is built once and is read-only afterwards. CPU-heavy queries run
// under a weighted semaphore sized to cfg.Workers.
type Engine struct {
	catalog     *catalog.Catalog
	ratings     *ratings.Log
	index       *titleindex.Index
	similar     *similarity.Engine
	cfg         config.RecommenderConfig
	fingerprint string
	workers     *semaphore.Weighted
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// New builds the title index and similarity engine over ds. m may be nil.
func New(ds *dataset.Dataset, cfg config.RecommenderConfig, m *metrics.Metrics) *Engine {
	start := time.Now()
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	e := &Engine{
		catalog:     ds.Catalog,
		ratings:     ds.Ratings,
		index:       titleindex.Build(ds.Catalog.Titles()),
		cfg:         cfg,
		fingerprint: ds.Fingerprint,
		workers:     semaphore.NewWeighted(int64(cfg.Workers)),
		metrics:     m,
		logger:      slog.Default().With("component", "recommender"),
	}
	e.similar = similarity.New(ds.Catalog, ds.Ratings, similarity.Config{
		HighRatingThreshold: cfg.HighRatingThreshold,
		MinCandidateShare:   cfg.MinCandidateShare,
	})

	elapsed := time.Since(start)
	if m != nil {
		m.CatalogMovies.Set(float64(ds.Catalog.Len()))
		m.RatingObservations.Set(float64(ds.Ratings.Len()))
		m.VocabularySize.Set(float64(e.index.VocabularySize()))
		m.EngineBuildSeconds.Set(elapsed.Seconds())
	}
	e.logger.Info("engine built",
		"movies", ds.Catalog.Len(),
		"vocabulary", e.index.VocabularySize(),
		"workers", cfg.Workers,
		"duration", elapsed.Round(time.Millisecond),
	)
	return e
}

// Fingerprint identifies the dataset the engine was built from.
func (e *Engine) Fingerprint() string { return e.fingerprint }

// Catalog exposes the underlying catalog for readiness checks.
func (e *Engine) Catalog() *catalog.Catalog { return e.catalog }

// limit applies the default for non-positive n and clamps to MaxLimit.
func (e *Engine) limit(n, def int) int {
	if n <= 0 {
		n = def
	}
	if e.cfg.MaxLimit > 0 && n > e.cfg.MaxLimit {
		n = e.cfg.MaxLimit
	}
	return n
}

// acquire blocks for a worker slot until ctx is done.
func (e *Engine) acquire(ctx context.Context) (func(), error) {
	if err := e.workers.Acquire(ctx, 1); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("waiting for query worker: %w", apperrors.ErrTimeout)
		}
		return nil, fmt.Errorf("waiting for query worker: %w", err)
	}
	return func() { e.workers.Release(1) }, nil
}

// observe records one query. outcome is "ok", "empty", "not_found" or
// "invalid".
func (e *Engine) observe(kind, outcome string, start time.Time, results int) {
	if e.metrics == nil {
		return
	}
	e.metrics.QueriesTotal.WithLabelValues(kind, outcome).Inc()
	e.metrics.QueryLatency.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	e.metrics.QueryResultsCount.WithLabelValues(kind).Observe(float64(results))
}

func outcomeOf(n int) string {
	if n == 0 {
		return "empty"
	}
	return "ok"
}
