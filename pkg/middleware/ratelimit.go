package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Movie-Recommendation-Engine/internal/ratelimit"
	"github.com/Adithya-Monish-Kumar-K/Movie-Recommendation-Engine/pkg/metrics"
)

// RateLimit returns middleware that enforces a per-client token bucket keyed
// by client IP. The IP is the socket peer unless trustForwardedFor is set,
// which is only safe behind a proxy that overwrites X-Forwarded-For.
// Health endpoints are never limited. m may be nil.
func RateLimit(limiter *ratelimit.Limiter, m *metrics.Metrics, trustForwardedFor bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/health") || r.URL.Path == "/api/health" {
				next.ServeHTTP(w, r)
				return
			}

			if !limiter.Allow(clientIP(r, trustForwardedFor)) {
				if m != nil {
					m.RateLimitedTotal.Inc()
				}
				w.Header().Set("Retry-After", "60")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]string{"error": "rate limit exceeded"})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP returns the RemoteAddr host, or the first X-Forwarded-For hop
// when forwarded headers are trusted.
func clientIP(r *http.Request, trustForwardedFor bool) string {
	if trustForwardedFor {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			if first, _, _ := strings.Cut(fwd, ","); strings.TrimSpace(first) != "" {
				return strings.TrimSpace(first)
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
