// Package dataset loads the movie, rating and links tables from CSV files or
// PostgreSQL and joins them into the immutable catalog and rating log.
package dataset

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Movie-Recommendation-Engine/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/Movie-Recommendation-Engine/internal/ratings"
	"github.com/Adithya-Monish-Kumar-K/Movie-Recommendation-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Movie-Recommendation-Engine/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/Movie-Recommendation-Engine/pkg/resilience"
)

// Link is one row of the links table.
type Link struct {
	MovieID int
	IMDbID  string
	TMDbID  int
}

// Tables is the raw, unjoined input feed.
type Tables struct {
	Movies  []catalog.Movie
	Ratings []ratings.Observation
	Links   []Link
}

// Source reads the input feed.
type Source interface {
	Name() string
	Read(ctx context.Context) (*Tables, error)
}

// Dataset is the joined, indexed result of a load.
type Dataset struct {
	Catalog *catalog.Catalog
	Ratings *ratings.Log
	// Fingerprint identifies the loaded content; it changes whenever any
	// table changes.
	Fingerprint string
}

// Open returns the Source named by cfg.Data.Source. The returned closer
// releases any connection the source holds.
func Open(ctx context.Context, cfg *config.Config) (Source, func() error, error) {
	switch cfg.Data.Source {
	case "csv":
		return NewCSVSource(cfg.Data.MoviesPath, cfg.Data.RatingsPath, cfg.Data.LinksPath), func() error { return nil }, nil
	case "postgres":
		var db *postgres.Client
		err := resilience.Retry(ctx, "postgres-connect", resilience.RetryConfig{
			MaxAttempts:  5,
			InitialDelay: 500 * time.Millisecond,
		}, func(ctx context.Context) error {
			var err error
			db, err = postgres.New(ctx, cfg.Postgres)
			return err
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		return NewPostgresSource(db), db.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown data source %q", cfg.Data.Source)
	}
}

// Load reads src within timeout and builds the Dataset. Nothing is
// returned unless every table was read and indexed.
func Load(ctx context.Context, src Source, timeout time.Duration) (*Dataset, error) {
	logger := slog.Default().With("component", "dataset", "source", src.Name())
	start := time.Now()

	tables, err := resilience.Call(ctx, timeout, "dataset-load", src.Read)
	if err != nil {
		return nil, fmt.Errorf("reading %s dataset: %w", src.Name(), err)
	}

	ds, err := Build(tables)
	if err != nil {
		return nil, err
	}
	logger.Info("dataset loaded",
		"movies", ds.Catalog.Len(),
		"ratings", ds.Ratings.Len(),
		"users", ds.Ratings.Users(),
		"links", len(tables.Links),
		"fingerprint", ds.Fingerprint,
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return ds, nil
}

// Build left-joins links onto movies and indexes the result.
func Build(t *Tables) (*Dataset, error) {
	movies := JoinLinks(t.Movies, t.Links)
	cat, err := catalog.New(movies)
	if err != nil {
		return nil, fmt.Errorf("building catalog: %w", err)
	}
	return &Dataset{
		Catalog:     cat,
		Ratings:     ratings.New(t.Ratings),
		Fingerprint: fingerprint(t),
	}, nil
}

// JoinLinks fills each movie's external ids from links on movie id. Ids
// already present on the movie row win; movies without a link row are kept.
// Ids are kept as the source text; the IMDb url is derived from the id when
// the row has none.
func JoinLinks(movies []catalog.Movie, links []Link) []catalog.Movie {
	byMovie := make(map[int]Link, len(links))
	for _, l := range links {
		if _, seen := byMovie[l.MovieID]; !seen {
			byMovie[l.MovieID] = l
		}
	}
	out := make([]catalog.Movie, len(movies))
	for i, m := range movies {
		if l, ok := byMovie[m.ID]; ok {
			if m.IMDbID == "" {
				m.IMDbID = l.IMDbID
			}
			if m.TMDbID == 0 {
				m.TMDbID = l.TMDbID
			}
		}
		if m.IMDbURL == "" {
			m.IMDbURL = catalog.IMDbURLFor(m.IMDbID)
		}
		out[i] = m
	}
	return out
}
