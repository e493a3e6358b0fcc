package recommender

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Movie-Recommendation-Engine/internal/similarity"
	apperrors "github.com/Adithya-Monish-Kumar-K/Movie-Recommendation-Engine/pkg/errors"
)

// Search ranks titles against query by TF-IDF cosine similarity. A query of
// only unknown terms still returns limit movies, in catalog order.
func (e *Engine) Search(ctx context.Context, query string, limit int) (*Result, error) {
	start := time.Now()
	if strings.TrimSpace(query) == "" {
		e.observe("search", "invalid", start, 0)
		return nil, apperrors.New(apperrors.ErrInvalidQuery, http.StatusBadRequest, "query parameter 'q' is required")
	}
	limit = e.limit(limit, e.cfg.SearchDefaultLimit)

	release, err := e.acquire(ctx)
	if err != nil {
		return nil, err
	}
	hits := e.index.Search(query, limit)
	release()

	movies := make([]MovieView, len(hits))
	for i, h := range hits {
		movies[i] = toView(e.catalog.At(h.Doc))
	}
	e.observe("search", outcomeOf(len(movies)), start, len(movies))
	return &Result{Movies: movies, Source: SourceTitleSearch}, nil
}

// Recommend returns movies similar to movieID, or the top-rated movies when
// movieID is zero. Negative ids are rejected; unknown ids yield an empty
// list.
func (e *Engine) Recommend(ctx context.Context, movieID, limit int) (*Result, error) {
	if movieID < 0 {
		e.observe("similar", "invalid", time.Now(), 0)
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "movie_id must be a positive integer, got %d", movieID)
	}
	if movieID == 0 {
		return e.Trending(ctx, limit)
	}
	start := time.Now()
	limit = e.limit(limit, e.cfg.ListDefaultLimit)

	res, err := e.similarTo(ctx, movieID, limit)
	if err != nil {
		return nil, err
	}
	movies := make([]MovieView, len(res.Items))
	for i, s := range res.Items {
		movies[i] = toView(s.Movie)
	}
	outcome := outcomeOf(len(movies))
	if res.Outcome == similarity.OutcomeNotFound {
		outcome = "not_found"
	}
	e.observe("similar", outcome, start, len(movies))
	return &Result{Movies: movies, Source: res.Outcome.String()}, nil
}

// Detail returns a movie with up to DetailSimilar similar movies drawn from
// the top DetailFetch. Unknown ids are ErrMovieNotFound.
func (e *Engine) Detail(ctx context.Context, movieID int) (*MovieDetail, error) {
	start := time.Now()
	m, ok := e.catalog.Get(movieID)
	if !ok {
		e.observe("detail", "not_found", start, 0)
		return nil, apperrors.Newf(apperrors.ErrMovieNotFound, http.StatusNotFound, "movie %d not found", movieID)
	}

	res, err := e.similarTo(ctx, movieID, e.cfg.DetailFetch)
	if err != nil {
		return nil, err
	}
	similar := make([]MovieView, 0, e.cfg.DetailSimilar)
	for _, s := range res.Items {
		if len(similar) >= e.cfg.DetailSimilar {
			break
		}
		if s.Movie.ID == movieID {
			continue
		}
		similar = append(similar, toView(s.Movie))
	}
	e.observe("detail", "ok", start, len(similar))
	return &MovieDetail{MovieView: toView(m), SimilarMovies: similar}, nil
}

// Trending returns the highest-rated movies.
func (e *Engine) Trending(ctx context.Context, limit int) (*Result, error) {
	start := time.Now()
	limit = e.limit(limit, e.cfg.ListDefaultLimit)
	movies := toViews(e.catalog.TopByRating(limit))
	e.observe("trending", outcomeOf(len(movies)), start, len(movies))
	return &Result{Movies: movies, Source: SourcePopular}, nil
}

// ByGenre returns the highest-rated movies whose genre string contains
// genre as a substring.
func (e *Engine) ByGenre(ctx context.Context, genre string, limit int) (*Result, error) {
	start := time.Now()
	if strings.TrimSpace(genre) == "" {
		e.observe("genre", "invalid", start, 0)
		return nil, apperrors.New(apperrors.ErrInvalidQuery, http.StatusBadRequest, "genre parameter is required")
	}
	limit = e.limit(limit, e.cfg.ListDefaultLimit)
	movies := toViews(e.catalog.ByGenre(genre, limit))
	e.observe("genre", outcomeOf(len(movies)), start, len(movies))
	return &Result{Movies: movies, Source: SourceGenre}, nil
}

// AllGenres returns every genre tag, sorted.
func (e *Engine) AllGenres() *GenreList {
	return &GenreList{Genres: e.catalog.AllGenres()}
}

func (e *Engine) similarTo(ctx context.Context, movieID, limit int) (similarity.Result, error) {
	release, err := e.acquire(ctx)
	if err != nil {
		return similarity.Result{}, err
	}
	defer release()

	res := e.similar.Similar(movieID, limit)
	if res.Outcome == similarity.OutcomeFallback && e.metrics != nil {
		e.metrics.FallbacksTotal.Inc()
	}
	if res.Outcome == similarity.OutcomeFailed {
		e.logger.Warn("similarity degraded to empty result", "movie_id", movieID)
	}
	return res, nil
}

// ParseMovieID validates a caller-supplied anchor id.
func ParseMovieID(raw string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || id <= 0 {
		return 0, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "movie id must be a positive integer, got %q", raw)
	}
	return id, nil
}
