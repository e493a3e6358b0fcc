package redis

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Movie-Recommendation-Engine/pkg/config"
)

func skipIfNoRedis(t *testing.T) *Client {
	t.Helper()
	cfg := config.Default().Redis
	if v := os.Getenv("TEST_REDIS_ADDR"); v != "" {
		cfg.Addr = v
	}
	c, err := NewClient(context.Background(), cfg)
	if err != nil {
		t.Skipf("skipping: redis unavailable: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestGetSetDel(t *testing.T) {
	c := skipIfNoRedis(t)
	ctx := context.Background()
	key := fmt.Sprintf("movierec-test:%d", time.Now().UnixNano())

	if _, err := c.Get(ctx, key); !IsNilError(err) {
		t.Fatalf("missing key: err = %v, want Nil", err)
	}
	if err := c.Set(ctx, key, "v", time.Minute); err != nil {
		t.Fatal(err)
	}
	if v, err := c.Get(ctx, key); err != nil || v != "v" {
		t.Fatalf("Get = %q, %v", v, err)
	}
	if err := c.Del(ctx, key); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Get(ctx, key); !IsNilError(err) {
		t.Errorf("deleted key: err = %v", err)
	}
}

func TestFlushByPattern(t *testing.T) {
	c := skipIfNoRedis(t)
	ctx := context.Background()
	prefix := fmt.Sprintf("movierec-flush-%d:", time.Now().UnixNano())

	for i := range 250 {
		if err := c.Set(ctx, fmt.Sprintf("%s%d", prefix, i), i, time.Minute); err != nil {
			t.Fatal(err)
		}
	}
	n, err := c.FlushByPattern(ctx, prefix+"*")
	if err != nil {
		t.Fatal(err)
	}
	if n != 250 {
		t.Errorf("deleted %d keys, want 250", n)
	}
}

func TestIsNilError(t *testing.T) {
	if !IsNilError(Nil) || !IsNilError(fmt.Errorf("wrapped: %w", Nil)) {
		t.Error("Nil not recognised")
	}
	if IsNilError(nil) || IsNilError(context.Canceled) {
		t.Error("non-Nil error recognised")
	}
}
