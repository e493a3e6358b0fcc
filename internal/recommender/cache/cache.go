// Package cache memoizes encoded recommender responses in Redis. Keys embed
// the dataset fingerprint so a reload never serves stale answers, and
// concurrent identical misses are coalesced with singleflight.
package cache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/Movie-Recommendation-Engine/internal/titleindex"
	"github.com/Adithya-Monish-Kumar-K/Movie-Recommendation-Engine/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Movie-Recommendation-Engine/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/Movie-Recommendation-Engine/pkg/resilience"
)

const keyPrefix = "movierec:"

// Store is the subset of the Redis client the cache uses.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// Key names one cacheable query.
type Key struct {
	Op   string
	Args map[string]string
}

// ResponseCache stores JSON bodies. Store failures trip a circuit breaker,
// after which requests bypass Redis until it recovers.
type ResponseCache struct {
	store       Store
	ttl         time.Duration
	fingerprint string
	breaker     *resilience.CircuitBreaker
	group       singleflight.Group
	metrics     *metrics.Metrics
	logger      *slog.Logger
	hits        atomic.Int64
	misses      atomic.Int64
}

// New creates a cache for the dataset identified by fingerprint. m may be
// nil.
func New(store Store, ttl time.Duration, fingerprint string, m *metrics.Metrics) *ResponseCache {
	return &ResponseCache{
		store:       store,
		ttl:         ttl,
		fingerprint: fingerprint,
		breaker: resilience.NewCircuitBreaker("redis-cache", resilience.CircuitBreakerConfig{
			FailureThreshold: 5,
			ResetTimeout:     30 * time.Second,
			OnStateChange: func(_ string, _, to resilience.State) {
				if m != nil {
					m.CacheCircuitState.Set(float64(to))
				}
			},
		}),
		metrics: m,
		logger:  slog.Default().With("component", "response-cache"),
	}
}

// Get returns the cached body for k.
func (c *ResponseCache) Get(ctx context.Context, k Key) ([]byte, bool) {
	key := c.buildKey(k)
	var data string
	err := c.breaker.Execute(func() error {
		var err error
		data, err = c.store.Get(ctx, key)
		if pkgredis.IsNilError(err) {
			return nil
		}
		return err
	})
	if err != nil || data == "" {
		if err != nil {
			c.logger.Warn("cache get failed", "key", key, "error", err)
		}
		c.recordMiss()
		return nil, false
	}
	c.recordHit()
	c.logger.Debug("cache hit", "op", k.Op, "key", key)
	return []byte(data), true
}

// Set stores body under k. Failures are logged, never returned.
func (c *ResponseCache) Set(ctx context.Context, k Key, body []byte) {
	key := c.buildKey(k)
	err := c.breaker.Execute(func() error {
		return c.store.Set(ctx, key, body, c.ttl)
	})
	if err != nil {
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached body for k, or runs compute once across
// concurrent callers and caches its result. hit reports a cache hit.
// Errors from compute are returned uncached.
func (c *ResponseCache) GetOrCompute(ctx context.Context, k Key, compute func() ([]byte, error)) (body []byte, hit bool, err error) {
	if body, ok := c.Get(ctx, k); ok {
		return body, true, nil
	}
	val, err, _ := c.group.Do(c.buildKey(k), func() (interface{}, error) {
		body, err := compute()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, k, body)
		return body, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.([]byte), false, nil
}

// Invalidate deletes every cached response.
func (c *ResponseCache) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.store.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

// Stats returns the hit and miss counts since start.
func (c *ResponseCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// BreakerState reports the Redis circuit state.
func (c *ResponseCache) BreakerState() resilience.State {
	return c.breaker.State()
}

func (c *ResponseCache) recordHit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *ResponseCache) recordMiss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

// buildKey hashes the operation, the normalized arguments and the dataset
// fingerprint. Argument order does not matter.
func (c *ResponseCache) buildKey(k Key) string {
	names := make([]string, 0, len(k.Args))
	for name := range k.Args {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(c.fingerprint)
	b.WriteByte('|')
	b.WriteString(k.Op)
	for _, name := range names {
		b.WriteByte('|')
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(normalizeArg(name, k.Args[name]))
	}
	hash := sha256.Sum256([]byte(b.String()))
	return fmt.Sprintf("%s%s:%x", keyPrefix, k.Op, hash[:16])
}

// normalizeArg folds query text the way the title index does, so "Toy
// Story!" and "toy  story" share an entry. Other arguments are trimmed.
func normalizeArg(name, value string) string {
	if name == "q" {
		return strings.Join(strings.Fields(titleindex.Normalize(value)), " ")
	}
	return strings.TrimSpace(value)
}
