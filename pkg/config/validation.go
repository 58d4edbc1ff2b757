package config

import (
	"errors"
	"fmt"
)

// Validate checks configuration invariants. It is called by the loader after
// unmarshalling and can be used directly for programmatically built configs.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	var errs []error

	switch normalizeRouterType(cfg.RouterType) {
	case "", "gin", "gorilla":
	default:
		errs = append(errs, fmt.Errorf("unsupported router_type %q", cfg.RouterType))
	}

	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("http.port %d out of range", cfg.HTTP.Port))
	}
	if cfg.Management.Enabled {
		if cfg.Management.Port <= 0 || cfg.Management.Port > 65535 {
			errs = append(errs, fmt.Errorf("management.port %d out of range", cfg.Management.Port))
		}
		if cfg.Management.Port == cfg.HTTP.Port {
			errs = append(errs, errors.New("management.port must differ from http.port"))
		}
		if cfg.Management.TLS.Enabled {
			if cfg.Management.TLS.CertFile == "" || cfg.Management.TLS.KeyFile == "" || cfg.Management.TLS.CAFile == "" {
				errs = append(errs, errors.New("management.tls requires cert_file, key_file, and ca_file"))
			}
		}
	}

	if cfg.Lock.Timeout <= 0 {
		errs = append(errs, errors.New("lock.timeout must be > 0"))
	}
	if cfg.Lock.CleanupInterval <= 0 {
		errs = append(errs, errors.New("lock.cleanup_interval must be > 0"))
	}
	// Conflicts are surfaced to the user, never retried silently. Rejecting
	// these settings keeps that decision from being undone by configuration.
	if cfg.Lock.RetryAttempts != 0 {
		errs = append(errs, errors.New("lock.retry_attempts must be 0: automatic lock retries are not supported"))
	}
	if cfg.Lock.RetryDelay != 0 {
		errs = append(errs, errors.New("lock.retry_delay must be 0: automatic lock retries are not supported"))
	}

	switch cfg.Scheduler.LockProvider {
	case SchedulerLockProviderPostgres:
	case SchedulerLockProviderRedis:
		if cfg.Scheduler.RedisURL == "" {
			errs = append(errs, errors.New("scheduler.redis_url is required for the redis lock provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported scheduler.lock_provider %q", cfg.Scheduler.LockProvider))
	}
	if cfg.Scheduler.LockTTL <= 0 {
		errs = append(errs, errors.New("scheduler.lock_ttl must be > 0"))
	}

	if cfg.Auth.Enabled && cfg.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret is required when auth is enabled"))
	}

	switch cfg.Logger.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("invalid logger.level %q", cfg.Logger.Level))
	}
	switch cfg.Logger.Format {
	case "json", "text", "console":
	default:
		errs = append(errs, fmt.Errorf("invalid logger.format %q", cfg.Logger.Format))
	}

	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.RequestsPerSecond <= 0 {
			errs = append(errs, errors.New("rate_limit.requests_per_second must be > 0"))
		}
		if cfg.RateLimit.Burst <= 0 {
			errs = append(errs, errors.New("rate_limit.burst must be > 0"))
		}
	}

	if cfg.Observability.Tracing.Enabled {
		if cfg.Observability.Tracing.Endpoint == "" {
			errs = append(errs, errors.New("observability.tracing.endpoint is required when tracing is enabled"))
		}
		if cfg.Observability.Tracing.SampleRate < 0 || cfg.Observability.Tracing.SampleRate > 1 {
			errs = append(errs, fmt.Errorf("observability.tracing.sample_rate %v out of range [0,1]", cfg.Observability.Tracing.SampleRate))
		}
	}

	return errors.Join(errs...)
}
