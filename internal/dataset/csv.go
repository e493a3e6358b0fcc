package dataset

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Movie-Recommendation-Engine/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/Movie-Recommendation-Engine/internal/ratings"
)

// CSVSource reads the three tables from CSV files with a header row.
// Columns are located by header name, so extra or reordered columns are
// fine. The links file is optional.
type CSVSource struct {
	MoviesPath  string
	RatingsPath string
	LinksPath   string
	logger      *slog.Logger
}

func NewCSVSource(moviesPath, ratingsPath, linksPath string) *CSVSource {
	return &CSVSource{
		MoviesPath:  moviesPath,
		RatingsPath: ratingsPath,
		LinksPath:   linksPath,
		logger:      slog.Default().With("component", "csv-source"),
	}
}

func (s *CSVSource) Name() string { return "csv" }

func (s *CSVSource) Read(ctx context.Context) (*Tables, error) {
	t := &Tables{}
	var err error
	if t.Movies, err = readFile(ctx, s.MoviesPath, ParseMovies); err != nil {
		return nil, err
	}
	if t.Ratings, err = readFile(ctx, s.RatingsPath, ParseRatings); err != nil {
		return nil, err
	}
	if s.LinksPath != "" {
		t.Links, err = readFile(ctx, s.LinksPath, ParseLinks)
		if errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("links file not found, external ids limited to the movies table", "path", s.LinksPath)
			err = nil
		}
		if err != nil {
			return nil, err
		}
	}
	return t, nil
}

func readFile[T any](ctx context.Context, path string, parse func(context.Context, io.Reader) ([]T, error)) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	rows, err := parse(ctx, bufio.NewReaderSize(f, 1<<16))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return rows, nil
}

// header maps lower-cased column names to their index.
type header map[string]int

func readHeader(r *csv.Reader) (header, error) {
	names, err := r.Read()
	if err != nil {
		if err == io.EOF {
			return nil, errors.New("missing header row")
		}
		return nil, fmt.Errorf("reading header: %w", err)
	}
	h := make(header, len(names))
	for i, n := range names {
		n = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(n, "\ufeff")))
		h[n] = i
	}
	return h, nil
}

// col returns the index of the first present name, or -1.
func (h header) col(names ...string) int {
	for _, n := range names {
		if i, ok := h[strings.ToLower(n)]; ok {
			return i
		}
	}
	return -1
}

func (h header) require(names ...string) (int, error) {
	i := h.col(names...)
	if i < 0 {
		return 0, fmt.Errorf("missing required column %q", names[0])
	}
	return i, nil
}

func field(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

// parseID accepts integers and integral floats such as "862.0".
func parseID(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

// parseOptionalFloat treats blank, unparsable and NaN values as zero.
func parseOptionalFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func optionalText(s string) string {
	switch strings.ToLower(s) {
	case "nan", "null", "none":
		return ""
	}
	return s
}

func newReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true
	cr.LazyQuotes = true
	return cr
}

// each reads rows until EOF, checking ctx every few thousand rows.
func each(ctx context.Context, r *csv.Reader, fn func(line int, rec []string)) error {
	for line := 2; ; line++ {
		if line%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		rec, err := r.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		fn(line, rec)
	}
}

// ParseMovies reads the catalog table. Required columns are movieId and
// title; genres, avg_rating, imdbId and imdb_url are optional. Rows with an
// unparsable id are skipped.
func ParseMovies(ctx context.Context, r io.Reader) ([]catalog.Movie, error) {
	cr := newReader(r)
	h, err := readHeader(cr)
	if err != nil {
		return nil, err
	}
	idCol, err := h.require("movieId", "movie_id")
	if err != nil {
		return nil, err
	}
	titleCol, err := h.require("title")
	if err != nil {
		return nil, err
	}
	genresCol := h.col("genres")
	ratingCol := h.col("avg_rating", "avgRating")
	imdbCol := h.col("imdbId", "imdb_id")
	urlCol := h.col("imdb_url", "imdbUrl")

	var movies []catalog.Movie
	skipped := 0
	err = each(ctx, cr, func(line int, rec []string) {
		id, ok := parseID(field(rec, idCol))
		if !ok {
			skipped++
			return
		}
		movies = append(movies, catalog.Movie{
			ID:        id,
			Title:     field(rec, titleCol),
			RawGenres: optionalText(field(rec, genresCol)),
			AvgRating: parseOptionalFloat(field(rec, ratingCol)),
			IMDbID:    optionalText(field(rec, imdbCol)),
			IMDbURL:   optionalText(field(rec, urlCol)),
		})
	})
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		slog.Warn("skipped malformed movie rows", "count", skipped)
	}
	return movies, nil
}

// ParseRatings reads the userId, movieId, rating table. Rows missing any of
// the three values are skipped.
func ParseRatings(ctx context.Context, r io.Reader) ([]ratings.Observation, error) {
	cr := newReader(r)
	h, err := readHeader(cr)
	if err != nil {
		return nil, err
	}
	userCol, err := h.require("userId", "user_id")
	if err != nil {
		return nil, err
	}
	movieCol, err := h.require("movieId", "movie_id")
	if err != nil {
		return nil, err
	}
	ratingCol, err := h.require("rating")
	if err != nil {
		return nil, err
	}

	obs := make([]ratings.Observation, 0, 1024)
	skipped := 0
	err = each(ctx, cr, func(line int, rec []string) {
		u, okU := parseID(field(rec, userCol))
		m, okM := parseID(field(rec, movieCol))
		v, errV := strconv.ParseFloat(field(rec, ratingCol), 64)
		if !okU || !okM || errV != nil || math.IsNaN(v) {
			skipped++
			return
		}
		obs = append(obs, ratings.Observation{UserID: u, MovieID: m, Rating: v})
	})
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		slog.Warn("skipped malformed rating rows", "count", skipped)
	}
	return obs, nil
}

// ParseLinks reads the movieId, imdbId, tmdbId table. Blank ids are kept as
// absent.
func ParseLinks(ctx context.Context, r io.Reader) ([]Link, error) {
	cr := newReader(r)
	h, err := readHeader(cr)
	if err != nil {
		return nil, err
	}
	movieCol, err := h.require("movieId", "movie_id")
	if err != nil {
		return nil, err
	}
	imdbCol := h.col("imdbId", "imdb_id")
	tmdbCol := h.col("tmdbId", "tmdb_id")

	var links []Link
	err = each(ctx, cr, func(line int, rec []string) {
		m, ok := parseID(field(rec, movieCol))
		if !ok {
			return
		}
		tmdb, _ := parseID(field(rec, tmdbCol))
		links = append(links, Link{
			MovieID: m,
			IMDbID:  optionalText(field(rec, imdbCol)),
			TMDbID:  tmdb,
		})
	})
	if err != nil {
		return nil, err
	}
	return links, nil
}
