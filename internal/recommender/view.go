package recommender

import "github.com/Adithya-Monish-Kumar-K/Movie-Recommendation-Engine/internal/catalog"

// MovieView is the wire form of a catalog movie.
type MovieView struct {
	MovieID   int      `json:"movieId"`
	Title     string   `json:"title"`
	Genres    []string `json:"genres"`
	IMDbURL   string   `json:"imdb_url"`
	IMDbID    string   `json:"imdbId"`
	TMDbID    int      `json:"tmdbId,omitempty"`
	AvgRating float64  `json:"avg_rating"`
	// PosterURL is always null; poster lookup is not implemented.
	PosterURL *string `json:"poster_url"`
}

// MovieDetail is a movie with up to a configured number of similar movies.
type MovieDetail struct {
	MovieView
	SimilarMovies []MovieView `json:"similar_movies"`
}

// Result is a ranked list plus the path that produced it.
type Result struct {
	Movies []MovieView `json:"movies"`
	// Source is one of title_search, collaborative, genre_fallback,
	// no_signal, not_found, failed, popular or genre.
	Source string `json:"source,omitempty"`
}

// GenreList is the sorted set of genre tags.
type GenreList struct {
	Genres []string `json:"genres"`
}

const (
	SourceTitleSearch   = "title_search"
	SourcePopular       = "popular"
	SourceGenre         = "genre"
	SourceCollaborative = "collaborative"
	SourceGenreFallback = "genre_fallback"
)

func toView(m catalog.Movie) MovieView {
	genres := m.Genres
	if genres == nil {
		genres = []string{}
	}
	return MovieView{
		MovieID:   m.ID,
		Title:     m.Title,
		Genres:    genres,
		IMDbURL:   m.IMDbURL,
		IMDbID:    m.IMDbID,
		TMDbID:    m.TMDbID,
		AvgRating: m.AvgRating,
	}
}

func toViews(movies []catalog.Movie) []MovieView {
	out := make([]MovieView, len(movies))
	for i, m := range movies {
		out[i] = toView(m)
	}
	return out
}
