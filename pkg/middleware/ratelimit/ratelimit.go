// Package ratelimit provides token bucket request rate limiting.
package ratelimit

import (
	"net/http"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/cargodesk/cargodesk/pkg/controller"
	"github.com/cargodesk/cargodesk/pkg/middleware"
	"github.com/cargodesk/cargodesk/pkg/server/router"
)

// RateLimiter is the rate limiting contract. Implementations must be
// safe for concurrent use and limit per key.
type RateLimiter interface {
	// Allow reports whether a request for the given key is within limits
	Allow(key string) bool
}

// TokenBucketLimiter implements per-key token bucket rate limiting.
// Each key gets its own limiter, so limits apply per IP or per user
// depending on the configured KeyFunc.
type TokenBucketLimiter struct {
	limiters sync.Map // map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

// NewTokenBucketLimiter creates a token bucket limiter allowing
// requestsPerSecond on average with bursts up to burst.
func NewTokenBucketLimiter(requestsPerSecond int, burst int) *TokenBucketLimiter {
	return &TokenBucketLimiter{
		rate:  rate.Limit(requestsPerSecond),
		burst: burst,
	}
}

// Allow reports whether a request for the given key is within limits
func (l *TokenBucketLimiter) Allow(key string) bool {
	return l.getLimiter(key).Allow()
}

func (l *TokenBucketLimiter) getLimiter(key string) *rate.Limiter {
	if limiter, ok := l.limiters.Load(key); ok {
		return limiter.(*rate.Limiter)
	}

	limiter := rate.NewLimiter(l.rate, l.burst)
	actual, _ := l.limiters.LoadOrStore(key, limiter)
	return actual.(*rate.Limiter)
}

// Config defines rate limiting middleware configuration.
type Config struct {
	// RequestsPerSecond is the maximum average request rate
	RequestsPerSecond int
	// Burst is the maximum number of requests allowed in a burst
	Burst int
	// KeyFunc extracts the rate limiting key from the request
	KeyFunc func(router.Context) string
}

// RateLimit creates middleware that rejects requests over the limit with
// HTTP 429 and a Retry-After header.
func RateLimit(limiter RateLimiter, cfg Config) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			key := cfg.KeyFunc(c)

			if !limiter.Allow(key) {
				c.Response().Header().Set("Retry-After", "1")
				return c.JSON(http.StatusTooManyRequests, controller.ErrorResponse{
					Success:   false,
					ErrorCode: controller.CodeRateLimited,
					Message:   "rate limit exceeded",
					RequestID: middleware.GetRequestID(c.Request().Context()),
				})
			}

			return next(c)
		}
	}
}

// ExtractIPFromRequest extracts the client IP, honoring X-Forwarded-For
// and X-Real-IP before falling back to RemoteAddr.
func ExtractIPFromRequest(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[:idx]
	}
	return addr
}

// ExtractUserIDFromContext returns the authenticated user id for per-user
// limiting, or empty when the request is anonymous.
func ExtractUserIDFromContext(c router.Context) string {
	return middleware.GetUserID(c.Request().Context())
}
