package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	pkgredis "github.com/Adithya-Monish-Kumar-K/Movie-Recommendation-Engine/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/Movie-Recommendation-Engine/pkg/resilience"
)

type memStore struct {
	mu   sync.Mutex
	data map[string]string
	fail error
}

func newMemStore() *memStore { return &memStore{data: make(map[string]string)} }

func (s *memStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return "", s.fail
	}
	v, ok := s.data[key]
	if !ok {
		return "", pkgredis.Nil
	}
	return v, nil
}

func (s *memStore) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.data[key] = string(value.([]byte))
	return nil
}

func (s *memStore) FlushByPattern(ctx context.Context, pattern string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	var n int64
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			delete(s.data, k)
			n++
		}
	}
	return n, nil
}

func TestBuildKeyNormalizesArguments(t *testing.T) {
	c := New(newMemStore(), time.Minute, "fp1", nil)

	a := c.buildKey(Key{Op: "search", Args: map[string]string{"q": "Toy Story!", "limit": "10"}})
	b := c.buildKey(Key{Op: "search", Args: map[string]string{"limit": "10", "q": "  toy   story "}})
	if a != b {
		t.Errorf("equivalent queries produced different keys: %s vs %s", a, b)
	}
	if !strings.HasPrefix(a, keyPrefix+"search:") {
		t.Errorf("key %q lacks prefix", a)
	}

	differentLimit := c.buildKey(Key{Op: "search", Args: map[string]string{"q": "toy story", "limit": "5"}})
	if a == differentLimit {
		t.Error("limit ignored in key")
	}
	otherOp := c.buildKey(Key{Op: "genre", Args: map[string]string{"q": "toy story", "limit": "10"}})
	if a == otherOp {
		t.Error("op ignored in key")
	}

	other := New(newMemStore(), time.Minute, "fp2", nil)
	if a == other.buildKey(Key{Op: "search", Args: map[string]string{"q": "toy story", "limit": "10"}}) {
		t.Error("fingerprint ignored in key")
	}
}

func TestGetOrCompute(t *testing.T) {
	c := New(newMemStore(), time.Minute, "fp", nil)
	ctx := context.Background()
	k := Key{Op: "trending", Args: map[string]string{"limit": "20"}}

	calls := 0
	compute := func() ([]byte, error) {
		calls++
		return []byte(`{"movies":[]}`), nil
	}

	body, hit, err := c.GetOrCompute(ctx, k, compute)
	if err != nil || hit || string(body) != `{"movies":[]}` {
		t.Fatalf("first call: %q hit=%v err=%v", body, hit, err)
	}
	body, hit, err = c.GetOrCompute(ctx, k, compute)
	if err != nil || !hit || string(body) != `{"movies":[]}` {
		t.Fatalf("second call: %q hit=%v err=%v", body, hit, err)
	}
	if calls != 1 {
		t.Errorf("compute ran %d times", calls)
	}
	hits, misses := c.Stats()
	if hits != 1 || misses != 1 {
		t.Errorf("stats = %d/%d", hits, misses)
	}
}

func TestGetOrComputeDoesNotCacheErrors(t *testing.T) {
	c := New(newMemStore(), time.Minute, "fp", nil)
	k := Key{Op: "detail", Args: map[string]string{"id": "404"}}
	want := errors.New("not found")

	for i := 0; i < 2; i++ {
		if _, _, err := c.GetOrCompute(context.Background(), k, func() ([]byte, error) { return nil, want }); !errors.Is(err, want) {
			t.Fatalf("err = %v", err)
		}
	}
	if _, ok := c.Get(context.Background(), k); ok {
		t.Error("error response was cached")
	}
}

func TestGetOrComputeCoalescesConcurrentMisses(t *testing.T) {
	c := New(newMemStore(), time.Minute, "fp", nil)
	k := Key{Op: "search", Args: map[string]string{"q": "heat"}}
	var calls atomic.Int32
	release := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.GetOrCompute(context.Background(), k, func() ([]byte, error) {
				calls.Add(1)
				<-release
				return []byte("x"), nil
			})
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	if n := calls.Load(); n < 1 || n > 8 {
		t.Errorf("compute calls = %d", n)
	}
	if body, ok := c.Get(context.Background(), k); !ok || string(body) != "x" {
		t.Errorf("cached body = %q, %v", body, ok)
	}
}

func TestStoreFailureTripsBreaker(t *testing.T) {
	store := newMemStore()
	store.fail = errors.New("connection refused")
	c := New(store, time.Minute, "fp", nil)
	k := Key{Op: "trending"}

	for i := 0; i < 10; i++ {
		body, _, err := c.GetOrCompute(context.Background(), k, func() ([]byte, error) { return []byte("ok"), nil })
		if err != nil || string(body) != "ok" {
			t.Fatalf("call %d: %q, %v", i, body, err)
		}
	}
	if st := c.BreakerState(); st != resilience.StateOpen {
		t.Errorf("breaker state = %v, want open", st)
	}
}

func TestInvalidate(t *testing.T) {
	store := newMemStore()
	c := New(store, time.Minute, "fp", nil)
	ctx := context.Background()
	c.Set(ctx, Key{Op: "a"}, []byte("1"))
	c.Set(ctx, Key{Op: "b"}, []byte("2"))
	store.data["unrelated"] = "keep"

	n, err := c.Invalidate(ctx)
	if err != nil || n != 2 {
		t.Fatalf("Invalidate = %d, %v", n, err)
	}
	if _, ok := store.data["unrelated"]; !ok {
		t.Error("unrelated key removed")
	}
}
