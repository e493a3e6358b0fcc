// Package ratings holds the immutable rating log and the per-movie and
// per-user indexes the similarity engine aggregates over.
package ratings

import "sort"

// Observation is a single (user, movie, rating) triple.
type Observation struct {
	UserID  int     `json:"user_id"`
	MovieID int     `json:"movie_id"`
	Rating  float64 `json:"rating"`
}

// Log is read-only after New returns.
type Log struct {
	count   int
	byMovie map[int][]Observation
	byUser  map[int][]Observation
}

// New indexes observations by movie and by user. Duplicates are kept; the
// upstream data is assumed to have at most one rating per (user, movie).
func New(observations []Observation) *Log {
	l := &Log{
		count:   len(observations),
		byMovie: make(map[int][]Observation),
		byUser:  make(map[int][]Observation),
	}
	for _, o := range observations {
		l.byMovie[o.MovieID] = append(l.byMovie[o.MovieID], o)
		l.byUser[o.UserID] = append(l.byUser[o.UserID], o)
	}
	return l
}

// Len returns the number of observations.
func (l *Log) Len() int { return l.count }

// Users returns the number of distinct users.
func (l *Log) Users() int { return len(l.byUser) }

// Movies returns the number of distinct rated movies, including ids that
// are not in the catalog.
func (l *Log) Movies() int { return len(l.byMovie) }

// ForMovie returns the observations of movieID. The slice must not be
// modified.
func (l *Log) ForMovie(movieID int) []Observation { return l.byMovie[movieID] }

// ForUser returns the observations of userID. The slice must not be
// modified.
func (l *Log) ForUser(userID int) []Observation { return l.byUser[userID] }

// UsersAbove returns the distinct users who rated movieID strictly above
// threshold, in ascending id order.
func (l *Log) UsersAbove(movieID int, threshold float64) []int {
	seen := make(map[int]struct{})
	for _, o := range l.byMovie[movieID] {
		if o.Rating > threshold {
			seen[o.UserID] = struct{}{}
		}
	}
	users := make([]int, 0, len(seen))
	for u := range seen {
		users = append(users, u)
	}
	sort.Ints(users)
	return users
}

// MoviesAbove returns the distinct movies userID rated strictly above
// threshold.
func (l *Log) MoviesAbove(userID int, threshold float64) map[int]struct{} {
	movies := make(map[int]struct{})
	for _, o := range l.byUser[userID] {
		if o.Rating > threshold {
			movies[o.MovieID] = struct{}{}
		}
	}
	return movies
}
