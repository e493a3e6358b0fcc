// Package handler exposes the recommender over HTTP/JSON, with an optional
// response cache and query analytics.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Movie-Recommendation-Engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Movie-Recommendation-Engine/internal/recommender"
	"github.com/Adithya-Monish-Kumar-K/Movie-Recommendation-Engine/internal/recommender/cache"
	apperrors "github.com/Adithya-Monish-Kumar-K/Movie-Recommendation-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Movie-Recommendation-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Movie-Recommendation-Engine/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/Movie-Recommendation-Engine/pkg/tracing"
)

const maxBodyBytes = 1 << 20

// Engine is the query surface the handlers call.
type Engine interface {
	Search(ctx context.Context, query string, limit int) (*recommender.Result, error)
	Recommend(ctx context.Context, movieID, limit int) (*recommender.Result, error)
	Detail(ctx context.Context, movieID int) (*recommender.MovieDetail, error)
	Trending(ctx context.Context, limit int) (*recommender.Result, error)
	ByGenre(ctx context.Context, genre string, limit int) (*recommender.Result, error)
	ForHistory(ctx context.Context, movieIDs []int, limit int) (*recommender.Result, error)
	AllGenres() *recommender.GenreList
}

// Tracker receives one event per served query.
type Tracker interface {
	Track(event analytics.QueryEvent)
}

type Handler struct {
	engine  Engine
	cache   *cache.ResponseCache
	tracker Tracker
	logger  *slog.Logger
}

// New creates a Handler; responseCache and tracker may be nil.
func New(engine Engine, responseCache *cache.ResponseCache, tracker Tracker) *Handler {
	return &Handler{
		engine:  engine,
		cache:   responseCache,
		tracker: tracker,
		logger:  slog.Default().With("component", "recommender-handler"),
	}
}

// query describes one cacheable engine call.
type query struct {
	kind    analytics.QueryKind
	text    string
	movieID int
	key     cache.Key
	run     func(ctx context.Context) (any, error)
}

// Search handles GET /api/search?q=&limit=.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	limit, ok := h.limitParam(w, r)
	if !ok {
		return
	}
	h.serve(w, r, query{
		kind: analytics.KindSearch,
		text: q,
		key:  cache.Key{Op: "search", Args: map[string]string{"q": q, "limit": strconv.Itoa(limit)}},
		run: func(ctx context.Context) (any, error) {
			return h.engine.Search(ctx, q, limit)
		},
	})
}

// Recommend handles GET /api/recommend?movie_id=&limit=. Without movie_id
// it returns the top-rated movies.
func (h *Handler) Recommend(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.limitParam(w, r)
	if !ok {
		return
	}
	movieID := 0
	if raw := r.URL.Query().Get("movie_id"); raw != "" {
		id, err := recommender.ParseMovieID(raw)
		if err != nil {
			h.fail(w, r, query{kind: analytics.KindSimilar}, time.Now(), err)
			return
		}
		movieID = id
	}
	kind := analytics.KindSimilar
	if movieID == 0 {
		kind = analytics.KindTrending
	}
	h.serve(w, r, query{
		kind:    kind,
		movieID: movieID,
		key:     cache.Key{Op: "recommend", Args: map[string]string{"movie_id": strconv.Itoa(movieID), "limit": strconv.Itoa(limit)}},
		run: func(ctx context.Context) (any, error) {
			return h.engine.Recommend(ctx, movieID, limit)
		},
	})
}

// Detail handles GET /api/movie/{id}.
func (h *Handler) Detail(w http.ResponseWriter, r *http.Request) {
	id, err := recommender.ParseMovieID(r.PathValue("id"))
	if err != nil {
		h.fail(w, r, query{kind: analytics.KindDetail}, time.Now(), err)
		return
	}
	h.serve(w, r, query{
		kind:    analytics.KindDetail,
		movieID: id,
		key:     cache.Key{Op: "detail", Args: map[string]string{"id": strconv.Itoa(id)}},
		run: func(ctx context.Context) (any, error) {
			return h.engine.Detail(ctx, id)
		},
	})
}

// Trending handles GET /api/trending?limit=.
func (h *Handler) Trending(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.limitParam(w, r)
	if !ok {
		return
	}
	h.serve(w, r, query{
		kind: analytics.KindTrending,
		key:  cache.Key{Op: "trending", Args: map[string]string{"limit": strconv.Itoa(limit)}},
		run: func(ctx context.Context) (any, error) {
			return h.engine.Trending(ctx, limit)
		},
	})
}

// ByGenre handles GET /api/movies/genre?genre=&limit=.
func (h *Handler) ByGenre(w http.ResponseWriter, r *http.Request) {
	genre := r.URL.Query().Get("genre")
	limit, ok := h.limitParam(w, r)
	if !ok {
		return
	}
	h.serve(w, r, query{
		kind: analytics.KindGenre,
		text: genre,
		key:  cache.Key{Op: "genre", Args: map[string]string{"genre": genre, "limit": strconv.Itoa(limit)}},
		run: func(ctx context.Context) (any, error) {
			return h.engine.ByGenre(ctx, genre, limit)
		},
	})
}

// Genres handles GET /api/genres.
func (h *Handler) Genres(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.engine.AllGenres())
}

type historyRequest struct {
	MovieIDs []int `json:"movie_ids"`
	Limit    int   `json:"limit"`
}

// History handles POST /api/recommend/history with {"movie_ids": [...]}.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req historyRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		h.fail(w, r, query{kind: analytics.KindHistory}, start,
			apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "invalid request body: %v", err))
		return
	}
	if req.Limit < 0 {
		h.fail(w, r, query{kind: analytics.KindHistory}, start,
			apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "limit must be a positive integer"))
		return
	}
	ids := make([]string, len(req.MovieIDs))
	for i, id := range req.MovieIDs {
		ids[i] = strconv.Itoa(id)
	}
	h.serve(w, r, query{
		kind: analytics.KindHistory,
		key:  cache.Key{Op: "history", Args: map[string]string{"ids": strings.Join(ids, ","), "limit": strconv.Itoa(req.Limit)}},
		run: func(ctx context.Context) (any, error) {
			return h.engine.ForHistory(ctx, req.MovieIDs, req.Limit)
		},
	})
}

// CacheStats handles GET /api/cache/stats.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
		"circuit":  h.cache.BreakerState().String(),
	})
}

// CacheInvalidate handles POST /api/cache/invalidate.
func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		logger.FromContext(r.Context()).Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request, q query) {
	start := time.Now()
	ctx := r.Context()

	compute := func() ([]byte, error) {
		spanCtx, span := tracing.StartChildSpan(ctx, "engine."+string(q.kind))
		defer span.End()
		v, err := q.run(spanCtx)
		if err != nil {
			span.SetAttr("error", err.Error())
			return nil, err
		}
		return json.Marshal(v)
	}

	var (
		body []byte
		hit  bool
		err  error
	)
	if h.cache != nil {
		body, hit, err = h.cache.GetOrCompute(ctx, q.key, compute)
	} else {
		body, err = compute()
	}
	if err != nil {
		h.fail(w, r, q, start, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if hit {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
	w.WriteHeader(http.StatusOK)
	w.Write(body)
	w.Write([]byte("\n"))

	returned, source := summarize(body)
	latency := time.Since(start)
	logger.FromContext(ctx).Info("query served",
		"kind", q.kind,
		"query", q.text,
		"movie_id", q.movieID,
		"returned", returned,
		"source", source,
		"cache_hit", hit,
		"latency_ms", latency.Milliseconds(),
	)
	h.track(ctx, q, http.StatusOK, returned, source, hit, latency)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, q query, start time.Time, err error) {
	status := apperrors.HTTPStatusCode(err)
	log := logger.FromContext(r.Context())
	if status >= 500 {
		log.Error("query failed", "kind", q.kind, "error", err)
	} else {
		log.Debug("query rejected", "kind", q.kind, "status", status, "error", err)
	}
	message := apperrors.Message(err)
	if status == http.StatusInternalServerError {
		message = "internal error"
	}
	h.writeError(w, status, message)
	h.track(r.Context(), q, status, 0, "", false, time.Since(start))
}

func (h *Handler) track(ctx context.Context, q query, status, returned int, source string, hit bool, latency time.Duration) {
	if h.tracker == nil {
		return
	}
	h.tracker.Track(analytics.QueryEvent{
		Kind:      q.kind,
		Query:     q.text,
		MovieID:   q.movieID,
		Source:    source,
		Returned:  returned,
		Status:    status,
		CacheHit:  hit,
		LatencyMs: latency.Milliseconds(),
		Timestamp: time.Now().UTC(),
		RequestID: middleware.GetRequestID(ctx),
	})
}

// summarize reads the result size and source back from an encoded body,
// which also covers cached responses.
func summarize(body []byte) (int, string) {
	var s struct {
		Movies        []json.RawMessage `json:"movies"`
		SimilarMovies []json.RawMessage `json:"similar_movies"`
		Source        string            `json:"source"`
	}
	if err := json.Unmarshal(body, &s); err != nil {
		return 0, ""
	}
	if s.Movies == nil && s.SimilarMovies != nil {
		return len(s.SimilarMovies), ""
	}
	return len(s.Movies), s.Source
}

// limitParam parses ?limit=; absent means the engine default.
func (h *Handler) limitParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return 0, false
	}
	return n, true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
