package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSummarize(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		returned int
		source   string
	}{
		{"list", `{"movies":[{"movieId":1},{"movieId":2}],"source":"collaborative"}`, 2, "collaborative"},
		{"empty list", `{"movies":[],"source":"not_found"}`, 0, "not_found"},
		{"detail", `{"movieId":1,"similar_movies":[{"movieId":4}]}`, 1, ""},
		{"garbage", `nope`, 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, src := summarize([]byte(tt.body))
			if n != tt.returned || src != tt.source {
				t.Errorf("summarize = (%d, %q), want (%d, %q)", n, src, tt.returned, tt.source)
			}
		})
	}
}

func TestLimitParam(t *testing.T) {
	h := New(nil, nil, nil)
	tests := []struct {
		query string
		want  int
		ok    bool
	}{
		{"", 0, true},
		{"limit=7", 7, true},
		{"limit=0", 0, false},
		{"limit=ten", 0, false},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/trending?"+tt.query, nil)
		got, ok := h.limitParam(rec, req)
		if got != tt.want || ok != tt.ok {
			t.Errorf("%q: limitParam = (%d, %v), want (%d, %v)", tt.query, got, ok, tt.want, tt.ok)
		}
		if !ok && rec.Code != http.StatusBadRequest {
			t.Errorf("%q: status = %d, want 400", tt.query, rec.Code)
		}
	}
}
