// Package config loads and validates service configuration.
package config

import "time"

// Scheduler lock provider constants
const (
	// SchedulerLockProviderPostgres uses PostgreSQL for the sweep singleton lease
	SchedulerLockProviderPostgres = "postgres"
	// SchedulerLockProviderRedis uses Redis for the sweep singleton lease
	SchedulerLockProviderRedis = "redis"
)

// Config is the root configuration structure for the service
type Config struct {
	RouterType    string `mapstructure:"router_type"`
	Service       ServiceConfig
	HTTP          HTTPConfig
	Management    ManagementConfig
	Database      DatabaseConfig
	Lock          LockConfig
	Scheduler     SchedulerConfig
	Auth          AuthConfig
	Logger        LoggerConfig
	CORS          CORSConfig
	RateLimit     RateLimitConfig `mapstructure:"rate_limit"`
	Observability ObservabilityConfig
}

// ServiceConfig configures service identity metadata.
type ServiceConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// HTTPConfig configures the public API server
type HTTPConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	MaxRequestSize int64         `mapstructure:"max_request_size"`
}

// ManagementConfig configures the management server (health, metrics, version)
type ManagementConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	TLS          TLSConfig     `mapstructure:"tls"`
}

// TLSConfig configures mutual TLS for the management server. All three
// files must be set when Enabled is true.
type TLSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
	CAFile   string `mapstructure:"ca_file"`
}

// DatabaseConfig configures the PostgreSQL connection pool
type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	QueryTimeout    time.Duration `mapstructure:"query_timeout"`
}

// LockConfig configures the record-locking protocol.
//
// RetryAttempts and RetryDelay exist so that a non-zero setting can be
// rejected loudly: conflicts are reported to the user immediately, never
// retried behind the scenes.
type LockConfig struct {
	Timeout         time.Duration `mapstructure:"timeout"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	RetryAttempts   int           `mapstructure:"retry_attempts"`
	RetryDelay      time.Duration `mapstructure:"retry_delay"`
}

// SchedulerConfig configures the periodic task runtime and its singleton lease
type SchedulerConfig struct {
	LockProvider  string        `mapstructure:"lock_provider"`
	LockTTL       time.Duration `mapstructure:"lock_ttl"`
	PostgresTable string        `mapstructure:"postgres_table"`
	RedisURL      string        `mapstructure:"redis_url"`
}

// AuthConfig configures JWT session authentication
type AuthConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
	Audience  string `mapstructure:"audience"`
}

// LoggerConfig configures structured logging
type LoggerConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// CORSConfig configures CORS for the browser admin UI.
type CORSConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	AllowAllOrigins  bool          `mapstructure:"allow_all_origins"`
	AllowOrigins     []string      `mapstructure:"allow_origins"`
	AllowMethods     []string      `mapstructure:"allow_methods"`
	AllowHeaders     []string      `mapstructure:"allow_headers"`
	AllowCredentials bool          `mapstructure:"allow_credentials"`
	MaxAge           time.Duration `mapstructure:"max_age"`
}

// RateLimitConfig configures in-process request rate limiting
type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
	// RedisURL switches limiting from per-instance token buckets to a
	// shared Redis counter when set
	RedisURL string `mapstructure:"redis_url"`
}

// ObservabilityConfig groups observability settings
type ObservabilityConfig struct {
	Tracing TracingConfig `mapstructure:"tracing"`
}

// TracingConfig configures OTLP trace export
type TracingConfig struct {
	Enabled    bool    `mapstructure:"enabled"`
	Endpoint   string  `mapstructure:"endpoint"`
	SampleRate float64 `mapstructure:"sample_rate"`
}

// DefaultConfig returns the configuration defaults. Environment variables and
// the config file override these.
func DefaultConfig() *Config {
	return &Config{
		RouterType: "gin",
		Service: ServiceConfig{
			Name:        "cargodesk",
			Environment: "development",
		},
		HTTP: HTTPConfig{
			Port:           8080,
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   15 * time.Second,
			IdleTimeout:    60 * time.Second,
			MaxRequestSize: 1 << 20,
		},
		Management: ManagementConfig{
			Enabled:      true,
			Port:         9090,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
		},
		Database: DatabaseConfig{
			URL:             "",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
			QueryTimeout:    5 * time.Second,
		},
		Lock: LockConfig{
			Timeout:         300 * time.Second,
			CleanupInterval: 10 * time.Minute,
			RetryAttempts:   0,
			RetryDelay:      0,
		},
		Scheduler: SchedulerConfig{
			LockProvider:  SchedulerLockProviderPostgres,
			LockTTL:       30 * time.Second,
			PostgresTable: "cargodesk_scheduler_locks",
		},
		Auth: AuthConfig{
			Enabled: false,
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "json",
		},
		CORS: CORSConfig{
			Enabled:          false,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Authorization", "Content-Type", "X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		},
		RateLimit: RateLimitConfig{
			Enabled:           false,
			RequestsPerSecond: 50,
			Burst:             100,
		},
		Observability: ObservabilityConfig{
			Tracing: TracingConfig{
				Enabled:    false,
				SampleRate: 0.1,
			},
		},
	}
}
