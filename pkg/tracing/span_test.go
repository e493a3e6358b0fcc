package tracing

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestChildSpansInheritTraceID(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "root", "abc123")
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, child := StartChildSpan(ctx, "child")
			child.SetAttr("n", 1)
			child.End()
		}()
	}
	wg.Wait()
	root.End()

	if len(root.Children) != 4 {
		t.Fatalf("children = %d", len(root.Children))
	}
	for _, c := range root.Children {
		if c.TraceID != "abc123" {
			t.Errorf("child trace id = %q", c.TraceID)
		}
	}
}

func TestStartChildSpanWithoutParent(t *testing.T) {
	ctx, span := StartChildSpan(context.Background(), "orphan")
	if SpanFromContext(ctx) != span || span.TraceID != "" {
		t.Error("orphan span not stored in context")
	}
}

func TestLogWritesTree(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx, root := StartSpan(context.Background(), "GET /api/trending", "t1")
	_, child := StartChildSpan(ctx, "engine.trending")
	child.End()
	root.End()

	root.Log(log, slog.LevelInfo)
	out := buf.String()
	if !strings.Contains(out, "span=\"GET /api/trending\"") || !strings.Contains(out, "span=engine.trending") || !strings.Contains(out, "depth=1") {
		t.Errorf("log output:\n%s", out)
	}
}

func TestMiddlewareStoresSpan(t *testing.T) {
	var seen *Span
	h := Middleware(time.Second)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = SpanFromContext(r.Context())
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/genres", nil))
	if seen == nil || seen.Name != "GET /api/genres" {
		t.Errorf("span = %+v", seen)
	}
}
