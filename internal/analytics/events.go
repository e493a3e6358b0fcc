// Package analytics records recommender queries as events, ships them to
// Kafka in batches, and aggregates them into usage statistics on the
// consuming side.
package analytics

import "time"

// QueryKind names the operation that produced a QueryEvent.
type QueryKind string

const (
	KindSearch   QueryKind = "search"
	KindSimilar  QueryKind = "similar"
	KindDetail   QueryKind = "detail"
	KindTrending QueryKind = "trending"
	KindGenre    QueryKind = "genre"
	KindHistory  QueryKind = "history"
)

// QueryEvent describes one answered (or rejected) query.
type QueryEvent struct {
	Kind QueryKind `json:"kind"`
	// Query is the search text or genre; empty for id-based queries.
	Query   string `json:"query,omitempty"`
	MovieID int    `json:"movie_id,omitempty"`
	// Source is the path that produced the result, such as
	// "collaborative" or "genre_fallback".
	Source    string    `json:"source,omitempty"`
	Returned  int       `json:"returned"`
	Status    int       `json:"status"`
	CacheHit  bool      `json:"cache_hit"`
	LatencyMs int64     `json:"latency_ms"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}
