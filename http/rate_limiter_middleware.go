package http

import (
	"net"
	"net/http"
)

// RateLimit rejects requests from a source that has exhausted its bucket.
// The source is the client IP, which middleware.RealIP may have rewritten.
func RateLimit(limiter *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			source, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				source = r.RemoteAddr
			}

			if !limiter.Allow(source) {
				w.Header().Set("Retry-After", "60")
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
