package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/Movie-Recommendation-Engine/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/Movie-Recommendation-Engine/internal/ratings"
	"github.com/Adithya-Monish-Kumar-K/Movie-Recommendation-Engine/pkg/postgres"
)

// Schema creates the three input tables when they do not exist.
const Schema = `
CREATE TABLE IF NOT EXISTS movies (
    movie_id   INTEGER PRIMARY KEY,
    title      TEXT NOT NULL,
    genres     TEXT,
    avg_rating DOUBLE PRECISION,
    imdb_id    TEXT,
    imdb_url   TEXT
);
CREATE TABLE IF NOT EXISTS ratings (
    user_id  INTEGER NOT NULL,
    movie_id INTEGER NOT NULL,
    rating   DOUBLE PRECISION NOT NULL
);
CREATE TABLE IF NOT EXISTS links (
    movie_id INTEGER PRIMARY KEY,
    imdb_id  TEXT,
    tmdb_id  INTEGER
);`

// EnsureSchema applies Schema.
func EnsureSchema(ctx context.Context, db *postgres.Client) error {
	if _, err := db.DB.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("creating dataset tables: %w", err)
	}
	return nil
}

// PostgresSource reads the tables of Schema in one read-only,
// repeatable-read transaction so the three tables are mutually consistent.
type PostgresSource struct {
	db     *postgres.Client
	logger *slog.Logger
}

func NewPostgresSource(db *postgres.Client) *PostgresSource {
	return &PostgresSource{
		db:     db,
		logger: slog.Default().With("component", "postgres-source"),
	}
}

func (s *PostgresSource) Name() string { return "postgres" }

func (s *PostgresSource) Read(ctx context.Context) (*Tables, error) {
	t := &Tables{}
	opts := &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	err := s.db.InTx(ctx, opts, func(tx *sql.Tx) error {
		var err error
		if t.Movies, err = readMovies(ctx, tx); err != nil {
			return err
		}
		if t.Ratings, err = readRatings(ctx, tx); err != nil {
			return err
		}
		t.Links, err = readLinks(ctx, tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("tables read", "movies", len(t.Movies), "ratings", len(t.Ratings), "links", len(t.Links))
	return t, nil
}

func readMovies(ctx context.Context, tx *sql.Tx) ([]catalog.Movie, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT movie_id, title, genres, avg_rating, imdb_id, imdb_url FROM movies ORDER BY movie_id`)
	if err != nil {
		return nil, fmt.Errorf("querying movies: %w", err)
	}
	defer rows.Close()

	var movies []catalog.Movie
	for rows.Next() {
		var (
			m                     catalog.Movie
			genres, imdbID, imdbU sql.NullString
			rating                sql.NullFloat64
		)
		if err := rows.Scan(&m.ID, &m.Title, &genres, &rating, &imdbID, &imdbU); err != nil {
			return nil, fmt.Errorf("scanning movie row: %w", err)
		}
		m.RawGenres = genres.String
		m.AvgRating = rating.Float64
		m.IMDbID = imdbID.String
		m.IMDbURL = imdbU.String
		movies = append(movies, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating movies: %w", err)
	}
	return movies, nil
}

func readRatings(ctx context.Context, tx *sql.Tx) ([]ratings.Observation, error) {
	rows, err := tx.QueryContext(ctx, `SELECT user_id, movie_id, rating FROM ratings`)
	if err != nil {
		return nil, fmt.Errorf("querying ratings: %w", err)
	}
	defer rows.Close()

	var obs []ratings.Observation
	for rows.Next() {
		var o ratings.Observation
		if err := rows.Scan(&o.UserID, &o.MovieID, &o.Rating); err != nil {
			return nil, fmt.Errorf("scanning rating row: %w", err)
		}
		obs = append(obs, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating ratings: %w", err)
	}
	return obs, nil
}

func readLinks(ctx context.Context, tx *sql.Tx) ([]Link, error) {
	rows, err := tx.QueryContext(ctx, `SELECT movie_id, imdb_id, tmdb_id FROM links`)
	if err != nil {
		return nil, fmt.Errorf("querying links: %w", err)
	}
	defer rows.Close()

	var links []Link
	for rows.Next() {
		var (
			l      Link
			imdbID sql.NullString
			tmdbID sql.NullInt64
		)
		if err := rows.Scan(&l.MovieID, &imdbID, &tmdbID); err != nil {
			return nil, fmt.Errorf("scanning link row: %w", err)
		}
		l.IMDbID = imdbID.String
		l.TMDbID = int(tmdbID.Int64)
		links = append(links, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating links: %w", err)
	}
	return links, nil
}

// Import writes t into the three tables, replacing their contents, in one
// transaction. It is used to seed a database from the CSV files.
func Import(ctx context.Context, db *postgres.Client, t *Tables) error {
	return db.InTx(ctx, nil, func(tx *sql.Tx) error {
		for _, table := range []string{"ratings", "links", "movies"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("clearing %s: %w", table, err)
			}
		}
		movieStmt, err := tx.PrepareContext(ctx,
			`INSERT INTO movies (movie_id, title, genres, avg_rating, imdb_id, imdb_url) VALUES ($1, $2, $3, $4, $5, $6)`)
		if err != nil {
			return fmt.Errorf("preparing movie insert: %w", err)
		}
		defer movieStmt.Close()
		for _, m := range t.Movies {
			if _, err := movieStmt.ExecContext(ctx, m.ID, m.Title, nullString(m.RawGenres), m.AvgRating, nullString(m.IMDbID), nullString(m.IMDbURL)); err != nil {
				return fmt.Errorf("inserting movie %d: %w", m.ID, err)
			}
		}

		ratingStmt, err := tx.PrepareContext(ctx, `INSERT INTO ratings (user_id, movie_id, rating) VALUES ($1, $2, $3)`)
		if err != nil {
			return fmt.Errorf("preparing rating insert: %w", err)
		}
		defer ratingStmt.Close()
		for _, o := range t.Ratings {
			if _, err := ratingStmt.ExecContext(ctx, o.UserID, o.MovieID, o.Rating); err != nil {
				return fmt.Errorf("inserting rating (%d, %d): %w", o.UserID, o.MovieID, err)
			}
		}

		linkStmt, err := tx.PrepareContext(ctx, `INSERT INTO links (movie_id, imdb_id, tmdb_id) VALUES ($1, $2, $3) ON CONFLICT (movie_id) DO NOTHING`)
		if err != nil {
			return fmt.Errorf("preparing link insert: %w", err)
		}
		defer linkStmt.Close()
		for _, l := range t.Links {
			var tmdb sql.NullInt64
			if l.TMDbID != 0 {
				tmdb = sql.NullInt64{Int64: int64(l.TMDbID), Valid: true}
			}
			if _, err := linkStmt.ExecContext(ctx, l.MovieID, nullString(l.IMDbID), tmdb); err != nil {
				return fmt.Errorf("inserting link %d: %w", l.MovieID, err)
			}
		}
		return nil
	})
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
