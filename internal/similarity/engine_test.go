package similarity

import (
	"math"
	"math/rand"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Movie-Recommendation-Engine/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/Movie-Recommendation-Engine/internal/ratings"
)

func newEngine(t *testing.T, rows []catalog.Movie, obs []ratings.Observation) *Engine {
	t.Helper()
	cat, err := catalog.New(rows)
	if err != nil {
		t.Fatalf("catalog.New: %v", err)
	}
	return New(cat, ratings.New(obs), DefaultConfig())
}

func threeMovies() []catalog.Movie {
	return []catalog.Movie{
		{ID: 1, Title: "Alpha", RawGenres: "Drama", AvgRating: 4.0},
		{ID: 2, Title: "Beta", RawGenres: "Drama|Romance", AvgRating: 3.0},
		{ID: 3, Title: "Gamma", RawGenres: "Comedy", AvgRating: 2.0},
	}
}

func TestSimilarLiftRanking(t *testing.T) {
	e := newEngine(t, threeMovies(), []ratings.Observation{
		{UserID: 1, MovieID: 1, Rating: 5},
		{UserID: 2, MovieID: 1, Rating: 5},
		{UserID: 1, MovieID: 2, Rating: 5},
		{UserID: 2, MovieID: 3, Rating: 1},
	})

	res := e.Similar(1, 10)
	if res.Outcome != OutcomeCollaborative {
		t.Fatalf("outcome = %v", res.Outcome)
	}
	if len(res.Items) != 1 || res.Items[0].Movie.ID != 2 {
		t.Fatalf("items = %+v, want only movie 2", res.Items)
	}
	// pSimilar = 1/2, population {u1,u2}, pAll = 1/2.
	if math.Abs(res.Items[0].Score-1.0) > 1e-12 {
		t.Errorf("score = %v, want 1.0", res.Items[0].Score)
	}
}

func TestSimilarFallbackWhenNoEnthusiasts(t *testing.T) {
	rows := []catalog.Movie{
		{ID: 1, Title: "Anchor", RawGenres: "Drama|Romance", AvgRating: 3.0},
		{ID: 2, Title: "Low drama", RawGenres: "Drama", AvgRating: 2.5},
		{ID: 3, Title: "High romance", RawGenres: "Romance|Comedy", AvgRating: 4.5},
		{ID: 4, Title: "Horror", RawGenres: "Horror", AvgRating: 5.0},
		{ID: 5, Title: "Mid drama", RawGenres: "Drama|War", AvgRating: 3.5},
	}
	e := newEngine(t, rows, []ratings.Observation{
		{UserID: 1, MovieID: 1, Rating: 4}, // exactly 4 is not an enthusiast
		{UserID: 1, MovieID: 3, Rating: 5},
	})

	res := e.Similar(1, 2)
	if res.Outcome != OutcomeFallback {
		t.Fatalf("outcome = %v, want fallback", res.Outcome)
	}
	got := []int{}
	for _, s := range res.Items {
		got = append(got, s.Movie.ID)
	}
	if len(got) != 2 || got[0] != 3 || got[1] != 5 {
		t.Errorf("fallback = %v, want [3 5]", got)
	}
}

func TestSimilarFallbackEmptyGenres(t *testing.T) {
	rows := []catalog.Movie{
		{ID: 1, Title: "No genres", AvgRating: 3.0},
		{ID: 2, Title: "Other", RawGenres: "Drama", AvgRating: 3.0},
	}
	e := newEngine(t, rows, nil)
	res := e.Similar(1, 10)
	if res.Outcome != OutcomeFallback || len(res.Items) != 0 {
		t.Errorf("got %v with %d items, want empty fallback", res.Outcome, len(res.Items))
	}
}

func TestSimilarNoSignalDoesNotFallBack(t *testing.T) {
	rows := []catalog.Movie{{ID: 1, Title: "A", RawGenres: "Drama"}, {ID: 2, Title: "B", RawGenres: "Drama"}}
	var obs []ratings.Observation
	// Eleven enthusiasts of the anchor; only one also loves movie 2, which
	// is under the 10% floor (1/11).
	for u := 1; u <= 11; u++ {
		obs = append(obs, ratings.Observation{UserID: u, MovieID: 1, Rating: 5})
	}
	obs = append(obs, ratings.Observation{UserID: 1, MovieID: 2, Rating: 5})
	e := newEngine(t, rows, obs)

	res := e.Similar(1, 10)
	if res.Outcome != OutcomeNoSignal {
		t.Fatalf("outcome = %v, want no_signal", res.Outcome)
	}
	if len(res.Items) != 0 {
		t.Errorf("items = %+v, want empty", res.Items)
	}
}

func TestSimilarFloorIsStrict(t *testing.T) {
	rows := []catalog.Movie{{ID: 1, Title: "A"}, {ID: 2, Title: "B"}}
	var obs []ratings.Observation
	for u := 1; u <= 10; u++ {
		obs = append(obs, ratings.Observation{UserID: u, MovieID: 1, Rating: 5})
	}
	obs = append(obs, ratings.Observation{UserID: 1, MovieID: 2, Rating: 5})
	e := newEngine(t, rows, obs)

	// 1/10 is exactly the floor and must be dropped.
	if got := e.SimilarTo(1, 10); len(got) != 0 {
		t.Errorf("got %+v, want empty", got)
	}
}

func TestSimilarExcludesDanglingIDs(t *testing.T) {
	e := newEngine(t, threeMovies(), []ratings.Observation{
		{UserID: 1, MovieID: 1, Rating: 5},
		{UserID: 1, MovieID: 999, Rating: 5},
		{UserID: 1, MovieID: 3, Rating: 4.5},
	})
	got := e.SimilarTo(1, 10)
	if len(got) != 1 || got[0].Movie.ID != 3 {
		t.Errorf("got %+v, want only movie 3", got)
	}
}

func TestSimilarUnknownAnchor(t *testing.T) {
	e := newEngine(t, threeMovies(), nil)
	res := e.Similar(404, 10)
	if res.Outcome != OutcomeNotFound || len(res.Items) != 0 {
		t.Errorf("got %v with %d items", res.Outcome, len(res.Items))
	}
}

func TestSimilarLimitAndTies(t *testing.T) {
	rows := []catalog.Movie{{ID: 1, Title: "A"}, {ID: 2, Title: "B"}, {ID: 3, Title: "C"}, {ID: 4, Title: "D"}}
	obs := []ratings.Observation{}
	for _, m := range []int{1, 2, 3, 4} {
		obs = append(obs, ratings.Observation{UserID: 1, MovieID: m, Rating: 5})
	}
	e := newEngine(t, rows, obs)

	got := e.SimilarTo(1, 2)
	if len(got) != 2 || got[0].Movie.ID != 2 || got[1].Movie.ID != 3 {
		t.Errorf("got %+v, want [2 3]", got)
	}
	if got := e.SimilarTo(1, 0); len(got) != 0 {
		t.Errorf("limit 0 returned %d", len(got))
	}
}

func TestSimilarRecoversFromFault(t *testing.T) {
	// A nil catalog panics on lookup.
	e := New(nil, nil, DefaultConfig())
	res := e.Similar(1, 10)
	if res.Outcome != OutcomeFailed || len(res.Items) != 0 {
		t.Errorf("got %v with %d items, want failed empty", res.Outcome, len(res.Items))
	}
}

func TestSimilarRandomInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	genres := []string{"Drama", "Comedy", "Action", "Horror"}
	rows := make([]catalog.Movie, 40)
	for i := range rows {
		rows[i] = catalog.Movie{
			ID:        i + 1,
			Title:     "m",
			RawGenres: genres[rng.Intn(len(genres))],
			AvgRating: float64(rng.Intn(50)) / 10,
		}
	}
	var obs []ratings.Observation
	for u := 1; u <= 60; u++ {
		for k := 0; k < 8; k++ {
			obs = append(obs, ratings.Observation{
				UserID:  u,
				MovieID: rng.Intn(45) + 1, // a few ids are dangling
				Rating:  float64(rng.Intn(10)+1) / 2,
			})
		}
	}
	e := newEngine(t, rows, obs)

	for id := 1; id <= 40; id++ {
		res := e.Similar(id, 10)
		if len(res.Items) > 10 {
			t.Fatalf("movie %d: %d items", id, len(res.Items))
		}
		for i, s := range res.Items {
			if s.Movie.ID == id {
				t.Errorf("movie %d returned itself", id)
			}
			if !e.catalog.Has(s.Movie.ID) {
				t.Errorf("movie %d returned dangling id %d", id, s.Movie.ID)
			}
			if res.Outcome == OutcomeCollaborative {
				if s.Score <= 0 || math.IsNaN(s.Score) || math.IsInf(s.Score, 0) {
					t.Errorf("movie %d: bad score %v", id, s.Score)
				}
				if i > 0 && s.Score > res.Items[i-1].Score {
					t.Errorf("movie %d: scores not descending", id)
				}
			}
		}
	}
}

func TestOutcomeString(t *testing.T) {
	if OutcomeFallback.String() != "genre_fallback" || Outcome(99).String() != "unknown" {
		t.Error("unexpected Outcome strings")
	}
}
