// Command loadtest drives a mixed workload against a running recommender
// and prints throughput, latency percentiles and cache hit rate per
// endpoint.
//
// Usage:
//
//	go run ./cmd/loadtest -url http://localhost:5000 -concurrency 20 -duration 30s
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// request builds the URL for the i-th call of one endpoint.
type request struct {
	name string
	url  func(base string, i int) string
}

var (
	titles = []string{"toy story", "star wars", "matrix", "godfather", "pulp fiction", "heat", "jumanji", "alien"}
	genres = []string{"Action", "Comedy", "Drama", "Animation", "Thriller", "Sci-Fi"}
	// anchors are popular MovieLens ids.
	anchors = []int{1, 2, 50, 260, 296, 318, 356, 480, 589, 593, 1196, 2571, 2959}
)

func workload() []request {
	return []request{
		{"search", func(base string, i int) string {
			return fmt.Sprintf("%s/api/search?q=%s&limit=10", base, url.QueryEscape(titles[i%len(titles)]))
		}},
		{"recommend", func(base string, i int) string {
			return fmt.Sprintf("%s/api/recommend?movie_id=%d&limit=10", base, anchors[i%len(anchors)])
		}},
		{"detail", func(base string, i int) string {
			return fmt.Sprintf("%s/api/movie/%d", base, anchors[i%len(anchors)])
		}},
		{"trending", func(base string, i int) string {
			return base + "/api/trending?limit=20"
		}},
		{"genre", func(base string, i int) string {
			return fmt.Sprintf("%s/api/movies/genre?genre=%s", base, url.QueryEscape(genres[i%len(genres)]))
		}},
	}
}

type endpointStats struct {
	requests  atomic.Int64
	errors    atomic.Int64
	cacheHits atomic.Int64

	mu        sync.Mutex
	latencies []time.Duration
	statuses  map[int]int64
}

func (s *endpointStats) record(d time.Duration, status int, cacheHit bool, err error) {
	s.requests.Add(1)
	if err != nil {
		s.errors.Add(1)
		return
	}
	if status < 200 || status >= 300 {
		s.errors.Add(1)
	}
	if cacheHit {
		s.cacheHits.Add(1)
	}
	s.mu.Lock()
	s.latencies = append(s.latencies, d)
	s.statuses[status]++
	s.mu.Unlock()
}

func main() {
	baseURL := flag.String("url", "http://localhost:5000", "base URL of the recommender service")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	flag.Parse()

	reqs := workload()
	stats := make(map[string]*endpointStats, len(reqs))
	for _, r := range reqs {
		stats[r.name] = &endpointStats{statuses: make(map[int]int64)}
	}

	fmt.Println("=== Recommender Load Test ===")
	fmt.Printf("Target:      %s\n", *baseURL)
	fmt.Printf("Concurrency: %d\n", *concurrency)
	fmt.Printf("Duration:    %s\n", *duration)
	fmt.Println()

	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        *concurrency * 2,
			MaxIdleConnsPerHost: *concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	for w := range *concurrency {
		g.Go(func() error {
			for i := w; ctx.Err() == nil; i++ {
				r := reqs[i%len(reqs)]
				call(ctx, client, r.url(*baseURL, i/len(reqs)), stats[r.name])
			}
			return nil
		})
	}
	g.Wait()

	total := report(reqs, stats, *duration)
	if total == 0 {
		fmt.Println("WARNING: No requests completed. Is the service running?")
		os.Exit(1)
	}
}

func call(ctx context.Context, client *http.Client, rawURL string, s *endpointStats) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		s.record(0, 0, false, err)
		return
	}
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() == nil {
			s.record(time.Since(start), 0, false, err)
		}
		return
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	s.record(time.Since(start), resp.StatusCode, resp.Header.Get("X-Cache") == "HIT", nil)
}

func report(reqs []request, stats map[string]*endpointStats, duration time.Duration) int64 {
	var total, errs int64
	fmt.Printf("%-10s %8s %7s %7s %10s %10s %10s %10s\n", "endpoint", "requests", "errors", "cache", "p50", "p95", "p99", "stddev")
	for _, r := range reqs {
		s := stats[r.name]
		n := s.requests.Load()
		total += n
		errs += s.errors.Load()

		s.mu.Lock()
		lat := slices.Clone(s.latencies)
		s.mu.Unlock()
		slices.Sort(lat)

		hitRate := "-"
		if len(lat) > 0 {
			hitRate = strconv.FormatFloat(float64(s.cacheHits.Load())/float64(len(lat))*100, 'f', 1, 64) + "%"
		}
		fmt.Printf("%-10s %8d %7d %7s %10s %10s %10s %10s\n", r.name, n, s.errors.Load(), hitRate,
			percentile(lat, 50), percentile(lat, 95), percentile(lat, 99), stddev(lat))
	}

	fmt.Println()
	fmt.Printf("Total Requests: %d\n", total)
	if total > 0 {
		fmt.Printf("Error Rate:     %.2f%%\n", float64(errs)/float64(total)*100)
		fmt.Printf("Requests/sec:   %.2f\n", float64(total)/duration.Seconds())
	}

	fmt.Println()
	fmt.Println("=== Status Codes ===")
	codes := make(map[int]int64)
	for _, s := range stats {
		s.mu.Lock()
		for code, n := range s.statuses {
			codes[code] += n
		}
		s.mu.Unlock()
	}
	keys := make([]int, 0, len(codes))
	for code := range codes {
		keys = append(keys, code)
	}
	slices.Sort(keys)
	for _, code := range keys {
		fmt.Printf("  %d: %d\n", code, codes[code])
	}
	return total
}

func percentile(sorted []time.Duration, pct int) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(float64(pct)/100*float64(len(sorted)))) - 1
	return sorted[max(idx, 0)].Round(time.Microsecond)
}

func stddev(lat []time.Duration) time.Duration {
	if len(lat) == 0 {
		return 0
	}
	var sum float64
	for _, l := range lat {
		sum += float64(l)
	}
	mean := sum / float64(len(lat))
	var sq float64
	for _, l := range lat {
		d := float64(l) - mean
		sq += d * d
	}
	return time.Duration(math.Sqrt(sq / float64(len(lat)))).Round(time.Microsecond)
}
