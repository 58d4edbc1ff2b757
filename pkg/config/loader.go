package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Loader defines the interface for loading configuration
type Loader interface {
	Load() (*Config, error)
	Validate(*Config) error
}

// ViperLoader implements Loader using Viper for configuration management
type ViperLoader struct {
	configFile string
	envPrefix  string
}

// NewViperLoader creates a new ViperLoader.
// configFile: path to a configuration file (optional, can be empty)
// envPrefix: prefix for environment variables (e.g. "CARGODESK")
func NewViperLoader(configFile, envPrefix string) *ViperLoader {
	return &ViperLoader{
		configFile: configFile,
		envPrefix:  envPrefix,
	}
}

// Load loads configuration with precedence: ENV > file > defaults
func (l *ViperLoader) Load() (*Config, error) {
	v := viper.New()

	l.setDefaults(v, DefaultConfig())

	if l.configFile != "" {
		v.SetConfigFile(l.configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", l.configFile, err)
		}
	}

	v.SetEnvPrefix(l.envPrefix)
	l.bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := applyLegacyLockEnv(&cfg); err != nil {
		return nil, err
	}

	if err := l.Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// bindEnvVars explicitly binds environment variables for nested structs
func (l *ViperLoader) bindEnvVars(v *viper.Viper) {
	v.BindEnv("router_type", l.prefixedEnv("ROUTER_TYPE"))
	v.BindEnv("service.name", l.prefixedEnv("SERVICE_NAME"))
	v.BindEnv("service.environment", l.prefixedEnv("SERVICE_ENVIRONMENT"), l.prefixedEnv("ENVIRONMENT"))

	// HTTP
	v.BindEnv("http.port", l.prefixedEnv("HTTP_PORT"))
	v.BindEnv("http.read_timeout", l.prefixedEnv("HTTP_READ_TIMEOUT"))
	v.BindEnv("http.write_timeout", l.prefixedEnv("HTTP_WRITE_TIMEOUT"))
	v.BindEnv("http.idle_timeout", l.prefixedEnv("HTTP_IDLE_TIMEOUT"))
	v.BindEnv("http.max_request_size", l.prefixedEnv("HTTP_MAX_REQUEST_SIZE"))

	// Management
	v.BindEnv("management.enabled", l.prefixedEnv("MGMT_ENABLED"))
	v.BindEnv("management.port", l.prefixedEnv("MGMT_PORT"))
	v.BindEnv("management.read_timeout", l.prefixedEnv("MGMT_READ_TIMEOUT"))
	v.BindEnv("management.write_timeout", l.prefixedEnv("MGMT_WRITE_TIMEOUT"))
	v.BindEnv("management.tls.enabled", l.prefixedEnv("MGMT_TLS_ENABLED"))
	v.BindEnv("management.tls.cert_file", l.prefixedEnv("MGMT_TLS_CERT_FILE"))
	v.BindEnv("management.tls.key_file", l.prefixedEnv("MGMT_TLS_KEY_FILE"))
	v.BindEnv("management.tls.ca_file", l.prefixedEnv("MGMT_TLS_CA_FILE"))

	// Database
	v.BindEnv("database.url", l.prefixedEnv("DATABASE_URL"), "DATABASE_URL")
	v.BindEnv("database.max_open_conns", l.prefixedEnv("DATABASE_MAX_OPEN_CONNS"))
	v.BindEnv("database.max_idle_conns", l.prefixedEnv("DATABASE_MAX_IDLE_CONNS"))
	v.BindEnv("database.conn_max_lifetime", l.prefixedEnv("DATABASE_CONN_MAX_LIFETIME"))
	v.BindEnv("database.conn_max_idle_time", l.prefixedEnv("DATABASE_CONN_MAX_IDLE_TIME"))
	v.BindEnv("database.query_timeout", l.prefixedEnv("DATABASE_QUERY_TIMEOUT"))

	// Lock protocol
	v.BindEnv("lock.timeout", l.prefixedEnv("LOCK_TIMEOUT"))
	v.BindEnv("lock.cleanup_interval", l.prefixedEnv("LOCK_CLEANUP_INTERVAL"))
	v.BindEnv("lock.retry_attempts", l.prefixedEnv("LOCK_RETRY_ATTEMPTS"))
	v.BindEnv("lock.retry_delay", l.prefixedEnv("LOCK_RETRY_DELAY"))

	// Scheduler
	v.BindEnv("scheduler.lock_provider", l.prefixedEnv("SCHEDULER_LOCK_PROVIDER"))
	v.BindEnv("scheduler.lock_ttl", l.prefixedEnv("SCHEDULER_LOCK_TTL"))
	v.BindEnv("scheduler.postgres_table", l.prefixedEnv("SCHEDULER_POSTGRES_TABLE"))
	v.BindEnv("scheduler.redis_url", l.prefixedEnv("SCHEDULER_REDIS_URL"))

	// Auth
	v.BindEnv("auth.enabled", l.prefixedEnv("AUTH_ENABLED"))
	v.BindEnv("auth.jwt_secret", l.prefixedEnv("AUTH_JWT_SECRET"))
	v.BindEnv("auth.issuer", l.prefixedEnv("AUTH_ISSUER"))
	v.BindEnv("auth.audience", l.prefixedEnv("AUTH_AUDIENCE"))

	// Logger
	v.BindEnv("logger.level", l.prefixedEnv("LOG_LEVEL"))
	v.BindEnv("logger.format", l.prefixedEnv("LOG_FORMAT"))

	// CORS
	v.BindEnv("cors.enabled", l.prefixedEnv("CORS_ENABLED"))
	v.BindEnv("cors.allow_all_origins", l.prefixedEnv("CORS_ALLOW_ALL_ORIGINS"))
	v.BindEnv("cors.allow_origins", l.prefixedEnv("CORS_ALLOW_ORIGINS"))
	v.BindEnv("cors.allow_methods", l.prefixedEnv("CORS_ALLOW_METHODS"))
	v.BindEnv("cors.allow_headers", l.prefixedEnv("CORS_ALLOW_HEADERS"))
	v.BindEnv("cors.allow_credentials", l.prefixedEnv("CORS_ALLOW_CREDENTIALS"))
	v.BindEnv("cors.max_age", l.prefixedEnv("CORS_MAX_AGE"))

	// Rate limiting
	v.BindEnv("rate_limit.enabled", l.prefixedEnv("RATE_LIMIT_ENABLED"))
	v.BindEnv("rate_limit.requests_per_second", l.prefixedEnv("RATE_LIMIT_RPS"))
	v.BindEnv("rate_limit.burst", l.prefixedEnv("RATE_LIMIT_BURST"))

	// Tracing
	v.BindEnv("observability.tracing.enabled", l.prefixedEnv("TRACING_ENABLED"))
	v.BindEnv("observability.tracing.endpoint", l.prefixedEnv("TRACING_ENDPOINT"))
	v.BindEnv("observability.tracing.sample_rate", l.prefixedEnv("TRACING_SAMPLE_RATE"))
}

// applyLegacyLockEnv honors the bare LOCK_TIMEOUT_SECONDS and
// LOCK_CLEANUP_INTERVAL_MINUTES variables used by deployments that predate the
// prefixed duration-valued scheme. They take precedence when set.
func applyLegacyLockEnv(cfg *Config) error {
	if raw := os.Getenv("LOCK_TIMEOUT_SECONDS"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds <= 0 {
			return fmt.Errorf("invalid LOCK_TIMEOUT_SECONDS %q", raw)
		}
		cfg.Lock.Timeout = time.Duration(seconds) * time.Second
	}
	if raw := os.Getenv("LOCK_CLEANUP_INTERVAL_MINUTES"); raw != "" {
		minutes, err := strconv.Atoi(raw)
		if err != nil || minutes <= 0 {
			return fmt.Errorf("invalid LOCK_CLEANUP_INTERVAL_MINUTES %q", raw)
		}
		cfg.Lock.CleanupInterval = time.Duration(minutes) * time.Minute
	}
	return nil
}

func (l *ViperLoader) prefixedEnv(name string) string {
	if l.envPrefix == "" {
		return name
	}
	return l.envPrefix + "_" + name
}

// setDefaults seeds viper with the default configuration values
func (l *ViperLoader) setDefaults(v *viper.Viper, defaults *Config) {
	v.SetDefault("router_type", defaults.RouterType)
	v.SetDefault("service.name", defaults.Service.Name)
	v.SetDefault("service.environment", defaults.Service.Environment)

	v.SetDefault("http.port", defaults.HTTP.Port)
	v.SetDefault("http.read_timeout", defaults.HTTP.ReadTimeout)
	v.SetDefault("http.write_timeout", defaults.HTTP.WriteTimeout)
	v.SetDefault("http.idle_timeout", defaults.HTTP.IdleTimeout)
	v.SetDefault("http.max_request_size", defaults.HTTP.MaxRequestSize)

	v.SetDefault("management.enabled", defaults.Management.Enabled)
	v.SetDefault("management.port", defaults.Management.Port)
	v.SetDefault("management.read_timeout", defaults.Management.ReadTimeout)
	v.SetDefault("management.write_timeout", defaults.Management.WriteTimeout)

	v.SetDefault("database.url", defaults.Database.URL)
	v.SetDefault("database.max_open_conns", defaults.Database.MaxOpenConns)
	v.SetDefault("database.max_idle_conns", defaults.Database.MaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", defaults.Database.ConnMaxLifetime)
	v.SetDefault("database.conn_max_idle_time", defaults.Database.ConnMaxIdleTime)
	v.SetDefault("database.query_timeout", defaults.Database.QueryTimeout)

	v.SetDefault("lock.timeout", defaults.Lock.Timeout)
	v.SetDefault("lock.cleanup_interval", defaults.Lock.CleanupInterval)
	v.SetDefault("lock.retry_attempts", defaults.Lock.RetryAttempts)
	v.SetDefault("lock.retry_delay", defaults.Lock.RetryDelay)

	v.SetDefault("scheduler.lock_provider", defaults.Scheduler.LockProvider)
	v.SetDefault("scheduler.lock_ttl", defaults.Scheduler.LockTTL)
	v.SetDefault("scheduler.postgres_table", defaults.Scheduler.PostgresTable)
	v.SetDefault("scheduler.redis_url", defaults.Scheduler.RedisURL)

	v.SetDefault("auth.enabled", defaults.Auth.Enabled)
	v.SetDefault("auth.jwt_secret", defaults.Auth.JWTSecret)
	v.SetDefault("auth.issuer", defaults.Auth.Issuer)
	v.SetDefault("auth.audience", defaults.Auth.Audience)

	v.SetDefault("logger.level", defaults.Logger.Level)
	v.SetDefault("logger.format", defaults.Logger.Format)

	v.SetDefault("cors.enabled", defaults.CORS.Enabled)
	v.SetDefault("cors.allow_all_origins", defaults.CORS.AllowAllOrigins)
	v.SetDefault("cors.allow_origins", defaults.CORS.AllowOrigins)
	v.SetDefault("cors.allow_methods", defaults.CORS.AllowMethods)
	v.SetDefault("cors.allow_headers", defaults.CORS.AllowHeaders)
	v.SetDefault("cors.allow_credentials", defaults.CORS.AllowCredentials)
	v.SetDefault("cors.max_age", defaults.CORS.MaxAge)

	v.SetDefault("rate_limit.enabled", defaults.RateLimit.Enabled)
	v.SetDefault("rate_limit.requests_per_second", defaults.RateLimit.RequestsPerSecond)
	v.SetDefault("rate_limit.burst", defaults.RateLimit.Burst)

	v.SetDefault("observability.tracing.enabled", defaults.Observability.Tracing.Enabled)
	v.SetDefault("observability.tracing.endpoint", defaults.Observability.Tracing.Endpoint)
	v.SetDefault("observability.tracing.sample_rate", defaults.Observability.Tracing.SampleRate)
}

// Validate checks configuration invariants
func (l *ViperLoader) Validate(cfg *Config) error {
	return Validate(cfg)
}

func normalizeRouterType(routerType string) string {
	return strings.TrimSpace(strings.ToLower(routerType))
}
