package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Movie-Recommendation-Engine/pkg/kafka"
)

func TestAggregatorRecord(t *testing.T) {
	a := NewAggregator()
	events := []QueryEvent{
		{Kind: KindSearch, Query: "toy story", Returned: 10, LatencyMs: 4, Status: 200},
		{Kind: KindSearch, Query: "toy story", Returned: 10, LatencyMs: 2, Status: 200, CacheHit: true},
		{Kind: KindSearch, Query: "zzz", Returned: 0, LatencyMs: 3, Status: 200},
		{Kind: KindSimilar, MovieID: 1, Source: "genre_fallback", Returned: 5, LatencyMs: 8, Status: 200},
		{Kind: KindDetail, MovieID: 4040, Status: 404, LatencyMs: 1},
	}
	for _, e := range events {
		a.Record(e)
	}

	s := a.Stats()
	if s.TotalQueries != 5 {
		t.Errorf("total = %d", s.TotalQueries)
	}
	if s.QueriesByKind[KindSearch] != 3 || s.QueriesByKind[KindDetail] != 1 {
		t.Errorf("by kind = %v", s.QueriesByKind)
	}
	if s.CacheHits != 1 || s.CacheMisses != 4 {
		t.Errorf("cache = %d/%d", s.CacheHits, s.CacheMisses)
	}
	if s.ZeroResultCount != 1 || s.FallbackCount != 1 || s.ErrorCount != 1 {
		t.Errorf("zero=%d fallback=%d errors=%d", s.ZeroResultCount, s.FallbackCount, s.ErrorCount)
	}
	if len(s.TopQueries) == 0 || s.TopQueries[0].Query != "toy story" || s.TopQueries[0].Count != 2 {
		t.Errorf("top queries = %v", s.TopQueries)
	}
	if len(s.TopAnchors) != 1 || s.TopAnchors[0].Query != "1" {
		t.Errorf("top anchors = %v", s.TopAnchors)
	}
	if len(s.ZeroResultQueries) != 1 || s.ZeroResultQueries[0].Query != "zzz" {
		t.Errorf("zero result queries = %v", s.ZeroResultQueries)
	}
	if s.AvgLatencyMs != 4.25 || s.P50LatencyMs != 4 {
		t.Errorf("avg=%v p50=%d", s.AvgLatencyMs, s.P50LatencyMs)
	}
}

func TestAggregatorLatencyWindowIsBounded(t *testing.T) {
	a := NewAggregator()
	for i := 0; i < latencyWindow+500; i++ {
		a.Record(QueryEvent{Kind: KindTrending, Returned: 1, LatencyMs: int64(i), Status: 200})
	}
	if len(a.latencies) != latencyWindow {
		t.Errorf("latency samples = %d", len(a.latencies))
	}
	if s := a.Stats(); s.TotalQueries != latencyWindow+500 {
		t.Errorf("total = %d", s.TotalQueries)
	}
}

func TestHandleEventSkipsUndecodable(t *testing.T) {
	a := NewAggregator()
	h := a.HandleEvent()
	if err := h(context.Background(), nil, []byte("not json")); err != nil {
		t.Errorf("bad message should be committed, got %v", err)
	}
	raw, _ := json.Marshal(QueryEvent{Kind: KindGenre, Query: "Action", Returned: 3, Status: 200})
	if err := h(context.Background(), []byte("genre"), raw); err != nil {
		t.Fatal(err)
	}
	if s := a.Stats(); s.TotalQueries != 1 || s.QueriesByKind[KindGenre] != 1 {
		t.Errorf("stats = %+v", s)
	}
}

func TestTopNTiesByKey(t *testing.T) {
	got := topN(map[string]int64{"b": 2, "a": 2, "c": 5}, 2)
	if len(got) != 2 || got[0].Query != "c" || got[1].Query != "a" {
		t.Errorf("topN = %v", got)
	}
}

type fakePublisher struct {
	mu      sync.Mutex
	batches [][]kafka.Event
	err     error
}

func (p *fakePublisher) PublishBatch(ctx context.Context, events []kafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := make([]kafka.Event, len(events))
	copy(cp, events)
	p.batches = append(p.batches, cp)
	return p.err
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, b := range p.batches {
		n += len(b)
	}
	return n
}

func TestCollectorBatchesAndFlushesOnClose(t *testing.T) {
	pub := &fakePublisher{}
	c := NewCollector(pub, 100, 3, time.Hour)
	c.Start(context.Background())

	for i := 0; i < 7; i++ {
		c.Track(QueryEvent{Kind: KindSearch, Query: "q"})
	}
	c.Close()

	if got := pub.count(); got != 7 {
		t.Errorf("published %d events, want 7", got)
	}
	for _, b := range pub.batches {
		if len(b) > 3 {
			t.Errorf("batch of %d exceeds batch size", len(b))
		}
	}
}

func TestCollectorPublishesEventsTrackedAfterCancel(t *testing.T) {
	pub := &fakePublisher{}
	ctx, cancel := context.WithCancel(context.Background())
	c := NewCollector(pub, 10, 100, time.Hour)
	c.Start(ctx)
	c.Track(QueryEvent{Kind: KindSimilar, MovieID: 7})
	cancel()

	for i := 0; i < 5; i++ {
		c.Track(QueryEvent{Kind: KindSearch, Query: "heat"})
	}
	c.Close()

	if got := pub.count(); got != 6 {
		t.Errorf("published %d events, want 6", got)
	}
	if key := pub.batches[0][0].Key; key != "similar:7" {
		t.Errorf("key = %q", key)
	}
}

func TestCollectorLogsPublishErrors(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	c := NewCollector(pub, 10, 100, time.Hour)
	c.Start(context.Background())
	c.Track(QueryEvent{Kind: KindSearch})
	c.Close()

	if got := pub.count(); got != 1 {
		t.Errorf("attempted %d events, want 1", got)
	}
}

func TestCollectorDropsWhenFull(t *testing.T) {
	c := NewCollector(&fakePublisher{}, 1, 10, time.Hour)
	c.Track(QueryEvent{Kind: KindSearch})
	c.Track(QueryEvent{Kind: KindSearch})
	if len(c.eventCh) != 1 {
		t.Errorf("buffered = %d, want 1", len(c.eventCh))
	}
}

type fakeLister struct{ snaps []AggregatedStats }

func (f fakeLister) ListSnapshots(ctx context.Context, limit int) ([]AggregatedStats, error) {
	if limit < len(f.snaps) {
		return f.snaps[:limit], nil
	}
	return f.snaps, nil
}

func TestHandler(t *testing.T) {
	a := NewAggregator()
	a.Record(QueryEvent{Kind: KindSearch, Query: "heat", Returned: 1, Status: 200})
	h := NewHandler(a, fakeLister{snaps: []AggregatedStats{{TotalQueries: 9}, {TotalQueries: 4}}})

	rec := httptest.NewRecorder()
	h.Stats(rec, httptest.NewRequest(http.MethodGet, "/api/analytics", nil))
	var stats AggregatedStats
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatal(err)
	}
	if stats.TotalQueries != 1 {
		t.Errorf("total = %d", stats.TotalQueries)
	}

	rec = httptest.NewRecorder()
	h.Snapshots(rec, httptest.NewRequest(http.MethodGet, "/api/analytics/snapshots?limit=1", nil))
	var body struct {
		Snapshots []AggregatedStats `json:"snapshots"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body.Snapshots) != 1 || body.Snapshots[0].TotalQueries != 9 {
		t.Errorf("snapshots = %+v", body.Snapshots)
	}

	rec = httptest.NewRecorder()
	h.Snapshots(rec, httptest.NewRequest(http.MethodGet, "/api/analytics/snapshots?limit=x", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	NewHandler(a, nil).Snapshots(rec, httptest.NewRequest(http.MethodGet, "/api/analytics/snapshots", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("disabled status = %d", rec.Code)
	}
}
