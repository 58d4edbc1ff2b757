package server

import (
	"context"
	"strings"
	"time"

	"github.com/cargodesk/cargodesk/pkg/config"
	"github.com/cargodesk/cargodesk/pkg/middleware/cors"
	"github.com/cargodesk/cargodesk/pkg/middleware/logging"
	"github.com/cargodesk/cargodesk/pkg/middleware/metrics"
	"github.com/cargodesk/cargodesk/pkg/middleware/ratelimit"
	"github.com/cargodesk/cargodesk/pkg/middleware/recovery"
	"github.com/cargodesk/cargodesk/pkg/middleware/requestsize"
	"github.com/cargodesk/cargodesk/pkg/middleware/requestid"
	"github.com/cargodesk/cargodesk/pkg/middleware/tracing"
	"github.com/cargodesk/cargodesk/pkg/observability/logger"
	"github.com/cargodesk/cargodesk/pkg/server/router"
)

// PublicAPIServer wraps Server for application traffic. Its router carries
// the full cross-cutting middleware stack; route handlers are registered by
// the caller after construction.
type PublicAPIServer struct {
	*Server
	rateLimiter *ratelimit.RedisRateLimiter
}

// PublicAPIOptions groups the configuration slices the public server needs.
type PublicAPIOptions struct {
	HTTP          config.HTTPConfig
	CORS          config.CORSConfig
	RateLimit     config.RateLimitConfig
	Observability config.ObservabilityConfig
}

// NewPublicAPIServer creates the public API server and applies the standard
// middleware stack: request ID, CORS, logging, recovery, metrics, tracing
// (when enabled), and rate limiting (when enabled).
func NewPublicAPIServer(opts PublicAPIOptions, r router.Router, log logger.Logger) (*PublicAPIServer, error) {
	type middlewareEntry struct {
		name string
		fn   router.MiddlewareFunc
	}

	entries := []middlewareEntry{
		{name: "request_id", fn: requestid.RequestID()},
		{name: "cors", fn: cors.Middleware(corsConfig(opts.CORS))},
		{name: "logging", fn: logging.Logging(log)},
		{name: "recovery", fn: recovery.Recovery(log)},
		{name: "metrics", fn: metrics.Metrics()},
	}
	if opts.Observability.Tracing.Enabled {
		entries = append(entries, middlewareEntry{name: "tracing", fn: tracing.Tracing(tracing.Config{
			TracerName:           "http-server",
			ExcludedPathPrefixes: []string{"/health", "/metrics"},
		})})
	}

	var redisLimiter *ratelimit.RedisRateLimiter
	if opts.RateLimit.Enabled {
		limiter, entry, err := buildRateLimiter(opts.RateLimit, log)
		if err != nil {
			return nil, err
		}
		redisLimiter = limiter
		entries = append(entries, middlewareEntry{name: "rate_limit", fn: entry})
	}
	entries = append(entries, middlewareEntry{name: "request_size", fn: requestsize.Middleware(opts.HTTP.MaxRequestSize)})

	funcs := make([]router.MiddlewareFunc, 0, len(entries))
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		funcs = append(funcs, entry.fn)
		names = append(names, entry.name)
	}
	log.Debug("active middleware stack", "middlewares", strings.Join(names, ", "))
	r.Use(funcs...)

	baseServer := NewServer(Config{
		Port:         opts.HTTP.Port,
		ReadTimeout:  opts.HTTP.ReadTimeout,
		WriteTimeout: opts.HTTP.WriteTimeout,
		IdleTimeout:  opts.HTTP.IdleTimeout,
	}, r, log)

	return &PublicAPIServer{
		Server:      baseServer,
		rateLimiter: redisLimiter,
	}, nil
}

// Shutdown stops the server and closes the shared rate limiter connection
// when one is in use.
func (s *PublicAPIServer) Shutdown(ctx context.Context) error {
	if err := s.Server.Shutdown(ctx); err != nil {
		return err
	}
	if s.rateLimiter != nil {
		return s.rateLimiter.Close()
	}
	return nil
}

func corsConfig(cfg config.CORSConfig) cors.Config {
	return cors.Config{
		Enabled:          cfg.Enabled,
		AllowAllOrigins:  cfg.AllowAllOrigins,
		AllowOrigins:     cfg.AllowOrigins,
		AllowMethods:     cfg.AllowMethods,
		AllowHeaders:     cfg.AllowHeaders,
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           cfg.MaxAge,
	}
}

// buildRateLimiter selects a shared Redis counter when a Redis URL is
// configured, falling back to per-instance token buckets.
func buildRateLimiter(cfg config.RateLimitConfig, log logger.Logger) (*ratelimit.RedisRateLimiter, router.MiddlewareFunc, error) {
	rps := int(cfg.RequestsPerSecond)
	if rps <= 0 {
		rps = 1
	}
	limiterCfg := ratelimit.Config{
		RequestsPerSecond: rps,
		Burst:             cfg.Burst,
		KeyFunc: func(c router.Context) string {
			if userID := ratelimit.ExtractUserIDFromContext(c); userID != "" {
				return userID
			}
			return ratelimit.ExtractIPFromRequest(c.Request())
		},
	}

	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisLimiter, err := ratelimit.NewRedisRateLimiter(cfg.RedisURL, time.Second, rps, cfg.Burst, log)
		if err != nil {
			return nil, nil, err
		}
		return redisLimiter, ratelimit.RateLimit(redisLimiter, limiterCfg), nil
	}

	bucket := ratelimit.NewTokenBucketLimiter(rps, cfg.Burst)
	return nil, ratelimit.RateLimit(bucket, limiterCfg), nil
}
