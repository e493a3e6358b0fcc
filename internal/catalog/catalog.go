// Package catalog holds the immutable in-memory movie table: lookups by id,
// rating-ordered listings, substring genre filtering and the genre set.
package catalog

import (
	"fmt"
	"sort"
	"strings"
)

// Catalog is read-only after New returns and safe for concurrent use.
type Catalog struct {
	movies   []Movie
	byID     map[int]int
	byRating []int
	genres   []string
}

// New builds a catalog from rows in source order. Duplicate ids are rejected.
func New(rows []Movie) (*Catalog, error) {
	c := &Catalog{
		movies: make([]Movie, len(rows)),
		byID:   make(map[int]int, len(rows)),
	}
	genreSet := make(map[string]struct{})
	for i, m := range rows {
		if _, dup := c.byID[m.ID]; dup {
			return nil, fmt.Errorf("duplicate movie id %d", m.ID)
		}
		if m.Genres == nil {
			m.Genres = SplitGenres(m.RawGenres)
		}
		if m.RawGenres == "" && len(m.Genres) > 0 {
			m.RawGenres = strings.Join(m.Genres, GenreSeparator)
		}
		c.movies[i] = m
		c.byID[m.ID] = i
		for _, g := range m.Genres {
			genreSet[g] = struct{}{}
		}
	}

	c.byRating = make([]int, len(c.movies))
	for i := range c.byRating {
		c.byRating[i] = i
	}
	sort.SliceStable(c.byRating, func(a, b int) bool {
		return c.less(c.byRating[a], c.byRating[b])
	})

	c.genres = make([]string, 0, len(genreSet))
	for g := range genreSet {
		c.genres = append(c.genres, g)
	}
	sort.Strings(c.genres)
	return c, nil
}

// less orders by rating descending, then id ascending.
func (c *Catalog) less(i, j int) bool {
	a, b := c.movies[i], c.movies[j]
	if a.AvgRating != b.AvgRating {
		return a.AvgRating > b.AvgRating
	}
	return a.ID < b.ID
}

// Len returns the number of movies.
func (c *Catalog) Len() int { return len(c.movies) }

// Get returns the movie with id; ok is false when absent.
func (c *Catalog) Get(id int) (Movie, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Movie{}, false
	}
	return c.movies[i], true
}

// Has reports whether id is in the catalog.
func (c *Catalog) Has(id int) bool {
	_, ok := c.byID[id]
	return ok
}

// At returns the movie at catalog position i (source order).
func (c *Catalog) At(i int) Movie { return c.movies[i] }

// Titles returns the titles in catalog order, for index building.
func (c *Catalog) Titles() []string {
	titles := make([]string, len(c.movies))
	for i, m := range c.movies {
		titles[i] = m.Title
	}
	return titles
}

// TopByRating returns up to n movies by descending rating, ties by id.
func (c *Catalog) TopByRating(n int) []Movie {
	return c.collect(n, func(Movie) bool { return true })
}

// ByGenre returns up to n movies whose raw genre string contains genre as a
// substring, by descending rating. "Action" therefore also matches
// "Action|Adventure".
func (c *Catalog) ByGenre(genre string, n int) []Movie {
	return c.collect(n, func(m Movie) bool {
		return strings.Contains(m.RawGenres, genre)
	})
}

// ByAnyGenre returns up to n movies whose raw genre string contains any of
// tags, by descending rating, skipping exclude.
func (c *Catalog) ByAnyGenre(tags []string, n int, exclude int) []Movie {
	if len(tags) == 0 {
		return []Movie{}
	}
	return c.collect(n, func(m Movie) bool {
		if m.ID == exclude {
			return false
		}
		for _, g := range tags {
			if strings.Contains(m.RawGenres, g) {
				return true
			}
		}
		return false
	})
}

// AllGenres returns the distinct genre tags, sorted.
func (c *Catalog) AllGenres() []string {
	out := make([]string, len(c.genres))
	copy(out, c.genres)
	return out
}

func (c *Catalog) collect(n int, keep func(Movie) bool) []Movie {
	if n <= 0 {
		return []Movie{}
	}
	out := make([]Movie, 0, min(n, len(c.movies)))
	for _, i := range c.byRating {
		if !keep(c.movies[i]) {
			continue
		}
		out = append(out, c.movies[i])
		if len(out) == n {
			break
		}
	}
	return out
}
