package catalog

import (
	"fmt"
	"strconv"
	"strings"
)

// GenreSeparator joins genre tags in the raw source column.
const GenreSeparator = "|"

// Movie is one immutable catalog row joined with its external ids.
type Movie struct {
	ID     int
	Title  string
	Genres []string
	// RawGenres is the pipe-joined source string; genre filters match
	// substrings of it, not individual tags.
	RawGenres string
	AvgRating float64
	// IMDbID is the source column text, unformatted.
	IMDbID  string
	IMDbURL string
	// TMDbID is zero when the links table has no entry.
	TMDbID int
}

// SplitGenres splits a raw genre column into tags, dropping empty pieces.
func SplitGenres(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, GenreSeparator)
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			tags = append(tags, p)
		}
	}
	return tags
}

// FormatIMDbID renders a numeric or tt-prefixed id as "tt" plus seven or more
// digits. It returns "" for input that is not a number.
func FormatIMDbID(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "tt")
	if dot := strings.IndexByte(s, '.'); dot >= 0 {
		s = s[:dot]
	}
	if s == "" || strings.ContainsAny(s, "+-") {
		return ""
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("tt%07d", n)
}

// IMDbURLFor returns the title page for a raw or formatted IMDb id, or ""
// when the id is not a number.
func IMDbURLFor(imdbID string) string {
	id := FormatIMDbID(imdbID)
	if id == "" {
		return ""
	}
	return "https://www.imdb.com/title/" + id + "/"
}
