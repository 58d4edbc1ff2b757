// Package logging provides structured request logging middleware.
package logging

import (
	"strings"
	"time"

	"github.com/cargodesk/cargodesk/pkg/middleware"
	"github.com/cargodesk/cargodesk/pkg/observability/logger"
	"github.com/cargodesk/cargodesk/pkg/server/router"
)

// Mode defines the logging verbosity for matching request paths.
type Mode string

const (
	// ModeOff disables request logging
	ModeOff Mode = "off"
	// ModeMinimal logs method, path, status, and duration
	ModeMinimal Mode = "minimal"
	// ModeFull additionally logs a request-started line and client details
	ModeFull Mode = "full"
)

// PathPolicy configures a logging mode for a path prefix.
type PathPolicy struct {
	Prefix string
	Mode   Mode
}

// Config configures request logging behavior.
type Config struct {
	Enabled              bool
	LogStart             bool
	ExcludedPathPrefixes []string
	PathPolicies         []PathPolicy
}

// DefaultConfig returns default request logging behavior.
func DefaultConfig() Config {
	return Config{
		Enabled:  true,
		LogStart: false,
	}
}

// Logging creates request logging middleware with default configuration.
func Logging(log logger.Logger) router.MiddlewareFunc {
	return WithConfig(log, DefaultConfig())
}

// WithConfig creates middleware that logs one line per completed request,
// with per-path-prefix verbosity policies.
func WithConfig(log logger.Logger, cfg Config) router.MiddlewareFunc {
	for index := range cfg.PathPolicies {
		cfg.PathPolicies[index].Mode = parseMode(cfg.PathPolicies[index].Mode)
	}

	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			path := c.Request().URL.Path
			mode := cfg.modeForPath(path)
			if mode == ModeOff {
				return next(c)
			}

			start := time.Now()
			req := c.Request()
			requestID := middleware.GetRequestID(req.Context())

			if cfg.LogStart && mode == ModeFull {
				log.Info("request started",
					"request_id", requestID,
					"method", req.Method,
					"path", path,
				)
			}

			err := next(c)
			duration := time.Since(start)
			status := c.Response().Status()

			args := []any{
				"request_id", requestID,
				"method", req.Method,
				"path", path,
				"status", status,
				"duration_ms", duration.Milliseconds(),
			}
			if mode == ModeFull {
				args = append(args,
					"remote_addr", req.RemoteAddr,
					"user_agent", req.UserAgent(),
				)
				if user := middleware.GetUserID(req.Context()); user != "" {
					args = append(args, "user_id", user)
				}
			}

			if err != nil {
				log.Error("request failed", append(args, "error", err)...)
				return err
			}

			log.Info("request completed", args...)
			return nil
		}
	}
}

func (c Config) modeForPath(path string) Mode {
	if !c.Enabled {
		return ModeOff
	}

	for _, prefix := range c.ExcludedPathPrefixes {
		if strings.HasPrefix(path, prefix) {
			return ModeOff
		}
	}

	// longest matching prefix wins
	bestLen := -1
	bestMode := ModeMinimal
	for _, policy := range c.PathPolicies {
		if strings.TrimSpace(policy.Prefix) == "" {
			continue
		}
		if strings.HasPrefix(path, policy.Prefix) && len(policy.Prefix) > bestLen {
			bestLen = len(policy.Prefix)
			bestMode = policy.Mode
		}
	}
	return bestMode
}

func parseMode(mode Mode) Mode {
	switch strings.ToLower(strings.TrimSpace(string(mode))) {
	case string(ModeOff):
		return ModeOff
	case string(ModeFull):
		return ModeFull
	default:
		return ModeMinimal
	}
}
