// Package router wires the recommender routes and applies the middleware
// chain (RequestID → Tracing → Metrics → CORS → RateLimit → Timeout).
package router

import (
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Movie-Recommendation-Engine/internal/ratelimit"
	"github.com/Adithya-Monish-Kumar-K/Movie-Recommendation-Engine/internal/recommender/handler"
	"github.com/Adithya-Monish-Kumar-K/Movie-Recommendation-Engine/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Movie-Recommendation-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Movie-Recommendation-Engine/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/Movie-Recommendation-Engine/pkg/tracing"
)

// Options carries the optional pieces of the chain. Nil Metrics or
// Limiter skip the corresponding middleware.
type Options struct {
	Metrics        *metrics.Metrics
	Limiter        *ratelimit.Limiter
	RequestTimeout time.Duration
	SlowRequest    time.Duration
	CORS           middleware.CORSConfig

	// TrustForwardedFor keys the limiter on X-Forwarded-For.
	TrustForwardedFor bool
}

// New builds the recommender HTTP handler.
//
// Route table:
//
//	GET    /api/search                 → title search
//	GET    /api/movie/{id}             → movie detail with similar movies
//	GET    /api/recommend              → similar movies, or top rated without movie_id
//	POST   /api/recommend/history      → recommendations for a viewing history
//	GET    /api/trending               → top rated
//	GET    /api/genres                 → distinct genre tags
//	GET    /api/movies/genre           → top rated within a genre
//	GET    /api/cache/stats            → response cache counters
//	POST   /api/cache/invalidate       → drop cached responses
//	GET    /api/health                 → liveness message
//	GET    /health/live                → liveness probe
//	GET    /health/ready               → readiness probe
//
// Middleware chain (outermost first):
//
//	RequestID → Tracing → Metrics → CORS → RateLimit → Timeout → handler
func New(h *handler.Handler, checker *health.Checker, opts Options) http.Handler {
	mux := http.NewServeMux()

	// Health
	mux.HandleFunc("GET /api/health", checker.StatusHandler())
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	// Query API
	mux.HandleFunc("GET /api/search", h.Search)
	mux.HandleFunc("GET /api/movie/{id}", h.Detail)
	mux.HandleFunc("GET /api/recommend", h.Recommend)
	mux.HandleFunc("POST /api/recommend/history", h.History)
	mux.HandleFunc("GET /api/trending", h.Trending)
	mux.HandleFunc("GET /api/genres", h.Genres)
	mux.HandleFunc("GET /api/movies/genre", h.ByGenre)

	// Cache API
	mux.HandleFunc("GET /api/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/cache/invalidate", h.CacheInvalidate)

	// request → RequestID → Tracing → Metrics → CORS → RateLimit → Timeout → mux
	var chain http.Handler = mux
	chain = middleware.Timeout(opts.RequestTimeout)(chain)
	if opts.Limiter != nil {
		chain = middleware.RateLimit(opts.Limiter, opts.Metrics, opts.TrustForwardedFor)(chain)
	}
	chain = middleware.CORS(opts.CORS)(chain)
	if opts.Metrics != nil {
		chain = middleware.Metrics(opts.Metrics)(chain)
	}
	chain = tracing.Middleware(opts.SlowRequest)(chain)
	chain = middleware.RequestID(chain)

	return chain
}
