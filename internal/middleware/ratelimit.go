package middleware

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/bryanwahyu/ddq-validator/internal/ratelimit"
)

// RateLimit rejects requests once the client's bucket is empty.
// Paths in skip bypass the limiter.
func RateLimit(limiter *ratelimit.Limiter, skip ...string) func(http.Handler) http.Handler {
	bypass := make(map[string]bool, len(skip))
	for _, p := range skip {
		bypass[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if bypass[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			if !limiter.Allow(clientKey(r)) {
				w.Header().Set("Retry-After", "60")
				http.Error(w, "rate limit exceeded, please try again later", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientKey uses the host part of RemoteAddr so one client maps to one bucket.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// SweepLimiter drops idle buckets every interval until ctx is done.
func SweepLimiter(ctx context.Context, limiter *ratelimit.Limiter, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			limiter.Sweep(maxIdle)
		}
	}
}
