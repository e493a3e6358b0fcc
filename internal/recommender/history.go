package recommender

import (
	"context"
	"net/http"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/Movie-Recommendation-Engine/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/Movie-Recommendation-Engine/internal/similarity"
	apperrors "github.com/Adithya-Monish-Kumar-K/Movie-Recommendation-Engine/pkg/errors"
)

// ForHistory recommends movies for a viewer from the movies they watched or
// favorited. Each seed's lift-ranked neighbours are computed in parallel
// and their scores summed per candidate; seeds are never recommended back.
// When no seed has collaborative signal, the best-rated movies sharing a
// genre with any seed are returned, and an empty history yields Trending.
func (e *Engine) ForHistory(ctx context.Context, movieIDs []int, limit int) (*Result, error) {
	start := time.Now()
	limit = e.limit(limit, e.cfg.ListDefaultLimit)

	seeds, err := e.seeds(movieIDs)
	if err != nil {
		e.observe("history", "invalid", start, 0)
		return nil, err
	}
	if len(seeds) == 0 {
		return e.Trending(ctx, limit)
	}

	fetch := limit + len(seeds)
	results := make([]similarity.Result, len(seeds))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)
	for i, id := range seeds {
		g.Go(func() error {
			res, err := e.similarTo(gctx, id, fetch)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	exclude := make(map[int]struct{}, len(seeds))
	for _, id := range seeds {
		exclude[id] = struct{}{}
	}

	movies, source := aggregate(results, exclude, limit), SourceCollaborative
	if len(movies) == 0 {
		movies, source = e.historyGenres(seeds, exclude, limit), SourceGenreFallback
	}
	views := toViews(movies)
	e.observe("history", outcomeOf(len(views)), start, len(views))
	return &Result{Movies: views, Source: source}, nil
}

// seeds deduplicates ids, keeps catalog members in first-seen order and
// caps the history at MaxHistory.
func (e *Engine) seeds(ids []int) ([]int, error) {
	seen := make(map[int]struct{}, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			return nil, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "movie ids must be positive integers, got %d", id)
		}
		if _, dup := seen[id]; dup || !e.catalog.Has(id) {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
		if e.cfg.MaxHistory > 0 && len(out) == e.cfg.MaxHistory {
			break
		}
	}
	return out, nil
}

// aggregate sums collaborative scores per candidate and ranks by total,
// ties by ascending id. Fallback lists carry no score and are ignored.
func aggregate(results []similarity.Result, exclude map[int]struct{}, limit int) []catalog.Movie {
	type total struct {
		movie catalog.Movie
		score float64
	}
	totals := make(map[int]*total)
	for _, res := range results {
		if res.Outcome != similarity.OutcomeCollaborative {
			continue
		}
		for _, s := range res.Items {
			if _, skip := exclude[s.Movie.ID]; skip {
				continue
			}
			t, ok := totals[s.Movie.ID]
			if !ok {
				t = &total{movie: s.Movie}
				totals[s.Movie.ID] = t
			}
			t.score += s.Score
		}
	}

	ranked := make([]*total, 0, len(totals))
	for _, t := range totals {
		ranked = append(ranked, t)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].movie.ID < ranked[j].movie.ID
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	out := make([]catalog.Movie, len(ranked))
	for i, t := range ranked {
		out[i] = t.movie
	}
	return out
}

func (e *Engine) historyGenres(seeds []int, exclude map[int]struct{}, limit int) []catalog.Movie {
	seen := make(map[string]struct{})
	var tags []string
	for _, id := range seeds {
		m, _ := e.catalog.Get(id)
		for _, g := range m.Genres {
			if _, ok := seen[g]; !ok {
				seen[g] = struct{}{}
				tags = append(tags, g)
			}
		}
	}
	candidates := e.catalog.ByAnyGenre(tags, limit+len(seeds), -1)
	out := make([]catalog.Movie, 0, limit)
	for _, m := range candidates {
		if _, skip := exclude[m.ID]; skip {
			continue
		}
		out = append(out, m)
		if len(out) == limit {
			break
		}
	}
	return out
}
