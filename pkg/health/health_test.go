package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func up(ctx context.Context) ComponentHealth { return ComponentHealth{Status: StatusUp} }
func down(ctx context.Context) ComponentHealth { return ComponentHealth{Status: StatusDown, Message: "refused"} }
func degraded(ctx context.Context) ComponentHealth {
	return ComponentHealth{Status: StatusDegraded, Message: "circuit open"}
}

func TestRunWorstStatusWins(t *testing.T) {
	tests := []struct {
		name   string
		checks map[string]Check
		want   Status
	}{
		{"all up", map[string]Check{"a": up, "b": up}, StatusUp},
		{"one degraded", map[string]Check{"a": up, "b": degraded}, StatusDegraded},
		{"down beats degraded", map[string]Check{"a": degraded, "b": down, "c": up}, StatusDown},
		{"no checks", nil, StatusUp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker()
			for n, ch := range tt.checks {
				c.Register(n, ch)
			}
			r := c.Run(context.Background())
			if r.Status != tt.want {
				t.Errorf("status = %s, want %s", r.Status, tt.want)
			}
			if len(r.Components) != len(tt.checks) {
				t.Errorf("components = %d", len(r.Components))
			}
		})
	}
}

func TestReadyHandlerGate(t *testing.T) {
	c := NewChecker()
	c.Register("cache", degraded)

	rec := httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("before ready: status = %d", rec.Code)
	}

	c.SetReady(true)
	rec = httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("degraded but ready: status = %d", rec.Code)
	}

	c.Register("db", down)
	rec = httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("dependency down: status = %d", rec.Code)
	}
}

func TestStatusAndLiveHandlers(t *testing.T) {
	c := NewChecker()
	rec := httptest.NewRecorder()
	c.StatusHandler()(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	var body map[string]string
	json.NewDecoder(rec.Body).Decode(&body)
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}

	rec = httptest.NewRecorder()
	c.LiveHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("live status = %d", rec.Code)
	}
}
