// Package similarity ranks movies that the fans of an anchor movie like
// more than the general rating population does (a lift score), falling back
// to genre popularity when the anchor has no fans.
package similarity

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/Movie-Recommendation-Engine/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/Movie-Recommendation-Engine/internal/ratings"
)

// Outcome says which path produced a Result.
type Outcome int

const (
	// OutcomeCollaborative is a lift-ranked list from co-rating statistics.
	OutcomeCollaborative Outcome = iota
	// OutcomeFallback is the genre-popularity substitute used when the
	// anchor has no enthusiasts.
	OutcomeFallback
	// OutcomeNoSignal means enthusiasts exist but no candidate cleared the
	// noise floor.
	OutcomeNoSignal
	// OutcomeNotFound means the anchor is not in the catalog.
	OutcomeNotFound
	// OutcomeFailed means an internal fault was converted to an empty list.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCollaborative:
		return "collaborative"
	case OutcomeFallback:
		return "genre_fallback"
	case OutcomeNoSignal:
		return "no_signal"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Scored is a catalog movie with its lift score. Fallback results carry a
// zero score.
type Scored struct {
	Movie catalog.Movie
	Score float64
}

// Result is the ranked output of one similarity query.
type Result struct {
	Items   []Scored
	Outcome Outcome
}

// Config holds the scoring constants.
type Config struct {
	// HighRatingThreshold is the rating a user must exceed to count as an
	// enthusiast of a movie.
	HighRatingThreshold float64
	// MinCandidateShare drops candidates liked by no more than this share
	// of the anchor's enthusiasts.
	MinCandidateShare float64
}

// DefaultConfig returns the threshold 4.0 and noise floor 0.10.
func DefaultConfig() Config {
	return Config{
		HighRatingThreshold: 4.0,
		MinCandidateShare:   0.10,
	}
}

// Engine is immutable and safe for concurrent use.
type Engine struct {
	catalog *catalog.Catalog
	ratings *ratings.Log
	cfg     Config
	logger  *slog.Logger
}

// New creates an Engine over an already built catalog and rating log.
func New(cat *catalog.Catalog, log *ratings.Log, cfg Config) *Engine {
	return &Engine{
		catalog: cat,
		ratings: log,
		cfg:     cfg,
		logger:  slog.Default().With("component", "similarity-engine"),
	}
}

// SimilarTo returns up to limit movies similar to movieID. It never returns
// movieID itself and never fails; faults yield an empty list.
func (e *Engine) SimilarTo(movieID, limit int) []Scored {
	return e.Similar(movieID, limit).Items
}

// Similar is SimilarTo with the Outcome that produced the list.
func (e *Engine) Similar(movieID, limit int) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("similarity computation failed",
				"movie_id", movieID,
				"error", fmt.Sprint(r),
			)
			res = Result{Items: []Scored{}, Outcome: OutcomeFailed}
		}
	}()

	if limit <= 0 {
		return Result{Items: []Scored{}, Outcome: OutcomeCollaborative}
	}
	anchor, ok := e.catalog.Get(movieID)
	if !ok {
		return Result{Items: []Scored{}, Outcome: OutcomeNotFound}
	}

	enthusiasts := e.ratings.UsersAbove(movieID, e.cfg.HighRatingThreshold)
	if len(enthusiasts) == 0 {
		e.logger.Debug("no enthusiasts, using genre fallback", "movie_id", movieID, "genres", anchor.Genres)
		return Result{Items: e.genreFallback(anchor, limit), Outcome: OutcomeFallback}
	}

	candidates := e.candidateShares(movieID, enthusiasts)
	if len(candidates) == 0 {
		return Result{Items: []Scored{}, Outcome: OutcomeNoSignal}
	}
	baseline := e.populationShares(movieID, candidates)

	scored := make([]Scored, 0, len(candidates))
	for id, pSimilar := range candidates {
		pAll := baseline[id]
		if pAll <= 0 {
			continue
		}
		m, ok := e.catalog.Get(id)
		if !ok {
			continue
		}
		scored = append(scored, Scored{Movie: m, Score: pSimilar / pAll})
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Movie.ID < scored[j].Movie.ID
	})
	if len(scored) > limit {
		scored = scored[:limit]
	}

	e.logger.Debug("similarity computed",
		"movie_id", movieID,
		"enthusiasts", len(enthusiasts),
		"candidates", len(candidates),
		"returned", len(scored),
	)
	return Result{Items: scored, Outcome: OutcomeCollaborative}
}

// candidateShares computes, for every movie other than the anchor that an
// enthusiast rated highly, the share of enthusiasts who did so, keeping
// only shares above the noise floor.
func (e *Engine) candidateShares(anchorID int, enthusiasts []int) map[int]float64 {
	counts := make(map[int]int)
	for _, u := range enthusiasts {
		for m := range e.ratings.MoviesAbove(u, e.cfg.HighRatingThreshold) {
			if m != anchorID {
				counts[m]++
			}
		}
	}
	total := float64(len(enthusiasts))
	shares := make(map[int]float64, len(counts))
	for m, c := range counts {
		if share := float64(c) / total; share > e.cfg.MinCandidateShare {
			shares[m] = share
		}
	}
	return shares
}

// populationShares computes each candidate's share among all users who
// rated the anchor or any candidate highly.
func (e *Engine) populationShares(anchorID int, candidates map[int]float64) map[int]float64 {
	population := make(map[int]struct{})
	fans := make(map[int]int, len(candidates))
	for _, u := range e.ratings.UsersAbove(anchorID, e.cfg.HighRatingThreshold) {
		population[u] = struct{}{}
	}
	for m := range candidates {
		users := e.ratings.UsersAbove(m, e.cfg.HighRatingThreshold)
		fans[m] = len(users)
		for _, u := range users {
			population[u] = struct{}{}
		}
	}
	shares := make(map[int]float64, len(fans))
	if len(population) == 0 {
		return shares
	}
	total := float64(len(population))
	for m, n := range fans {
		shares[m] = float64(n) / total
	}
	return shares
}

// genreFallback returns the best-rated movies sharing any genre tag with the
// anchor, by substring match on the raw genre string.
func (e *Engine) genreFallback(anchor catalog.Movie, limit int) []Scored {
	movies := e.catalog.ByAnyGenre(anchor.Genres, limit, anchor.ID)
	out := make([]Scored, len(movies))
	for i, m := range movies {
		out[i] = Scored{Movie: m}
	}
	return out
}
