package analytics

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Movie-Recommendation-Engine/pkg/kafka"
)

// latencyWindow bounds the samples kept for percentiles.
const latencyWindow = 10000

// AggregatedStats is a point-in-time summary of query traffic.
type AggregatedStats struct {
	TotalQueries      int64               `json:"total_queries"`
	QueriesByKind     map[QueryKind]int64 `json:"queries_by_kind"`
	CacheHits         int64               `json:"cache_hits"`
	CacheMisses       int64               `json:"cache_misses"`
	ZeroResultCount   int64               `json:"zero_result_count"`
	FallbackCount     int64               `json:"fallback_count"`
	ErrorCount        int64               `json:"error_count"`
	AvgLatencyMs      float64             `json:"avg_latency_ms"`
	P50LatencyMs      int64               `json:"p50_latency_ms"`
	P95LatencyMs      int64               `json:"p95_latency_ms"`
	P99LatencyMs      int64               `json:"p99_latency_ms"`
	TopQueries        []QueryCount        `json:"top_queries"`
	TopAnchors        []QueryCount        `json:"top_anchor_movies"`
	ZeroResultQueries []QueryCount        `json:"zero_result_queries"`
	QueriesPerMinute  float64             `json:"queries_per_minute"`
}

// QueryCount is a ranked key with its frequency.
type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator folds QueryEvents into counters. It is safe for concurrent use.
type Aggregator struct {
	mu                sync.Mutex
	total             int64
	byKind            map[QueryKind]int64
	cacheHits         int64
	cacheMisses       int64
	zeroResults       int64
	fallbacks         int64
	errors            int64
	latencies         []int64
	next              int
	queryCounts       map[string]int64
	anchorCounts      map[string]int64
	zeroResultQueries map[string]int64
	startTime         time.Time
	now               func() time.Time
	logger            *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		byKind:            make(map[QueryKind]int64),
		latencies:         make([]int64, 0, 1024),
		queryCounts:       make(map[string]int64),
		anchorCounts:      make(map[string]int64),
		zeroResultQueries: make(map[string]int64),
		startTime:         time.Now(),
		now:               time.Now,
		logger:            slog.Default().With("component", "analytics-aggregator"),
	}
}

// HandleEvent adapts the aggregator to a Kafka consumer. Undecodable
// messages are logged and committed so they are not redelivered.
func (a *Aggregator) HandleEvent() kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[QueryEvent](value)
		if err != nil {
			a.logger.Error("failed to decode analytics event", "key", string(key), "error", err)
			return nil
		}
		a.Record(event)
		return nil
	}
}

// Record folds one event into the counters.
func (a *Aggregator) Record(event QueryEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.total++
	a.byKind[event.Kind]++
	if event.CacheHit {
		a.cacheHits++
	} else {
		a.cacheMisses++
	}
	if event.Status >= 400 {
		a.errors++
		return
	}
	if event.Source == "genre_fallback" {
		a.fallbacks++
	}

	if len(a.latencies) < latencyWindow {
		a.latencies = append(a.latencies, event.LatencyMs)
	} else {
		a.latencies[a.next] = event.LatencyMs
		a.next = (a.next + 1) % latencyWindow
	}

	if event.Query != "" {
		a.queryCounts[event.Query]++
	}
	if event.MovieID != 0 {
		a.anchorCounts[strconv.Itoa(event.MovieID)]++
	}
	if event.Returned == 0 {
		a.zeroResults++
		if event.Query != "" {
			a.zeroResultQueries[event.Query]++
		}
	}
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	stats := AggregatedStats{
		TotalQueries:    a.total,
		QueriesByKind:   make(map[QueryKind]int64, len(a.byKind)),
		CacheHits:       a.cacheHits,
		CacheMisses:     a.cacheMisses,
		ZeroResultCount: a.zeroResults,
		FallbackCount:   a.fallbacks,
		ErrorCount:      a.errors,
	}
	for k, v := range a.byKind {
		stats.QueriesByKind[k] = v
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopQueries = topN(a.queryCounts, 10)
	stats.TopAnchors = topN(a.anchorCounts, 10)
	stats.ZeroResultQueries = topN(a.zeroResultQueries, 10)
	if elapsed := a.now().Sub(a.startTime).Minutes(); elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalQueries) / elapsed
	}
	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN ranks by count descending, ties by key ascending.
func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
