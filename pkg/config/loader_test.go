package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	loader := NewViperLoader("", "CARGODESK_TEST_DEFAULTS")
	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Lock.Timeout != 300*time.Second {
		t.Fatalf("lock.timeout = %v", cfg.Lock.Timeout)
	}
	if cfg.Lock.CleanupInterval != 10*time.Minute {
		t.Fatalf("lock.cleanup_interval = %v", cfg.Lock.CleanupInterval)
	}
	if cfg.Lock.RetryAttempts != 0 || cfg.Lock.RetryDelay != 0 {
		t.Fatal("retry settings must default to zero")
	}
	if cfg.RouterType != "gin" {
		t.Fatalf("router_type = %s", cfg.RouterType)
	}
	if cfg.Scheduler.LockProvider != SchedulerLockProviderPostgres {
		t.Fatalf("scheduler.lock_provider = %s", cfg.Scheduler.LockProvider)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
router_type: gorilla
http:
  port: 3000
lock:
  timeout: 120s
  cleanup_interval: 5m
auth:
  enabled: false
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	loader := NewViperLoader(path, "CARGODESK_TEST_FILE")
	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.RouterType != "gorilla" {
		t.Fatalf("router_type = %s", cfg.RouterType)
	}
	if cfg.HTTP.Port != 3000 {
		t.Fatalf("http.port = %d", cfg.HTTP.Port)
	}
	if cfg.Lock.Timeout != 120*time.Second {
		t.Fatalf("lock.timeout = %v", cfg.Lock.Timeout)
	}
	if cfg.Lock.CleanupInterval != 5*time.Minute {
		t.Fatalf("lock.cleanup_interval = %v", cfg.Lock.CleanupInterval)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("CARGODESK_TEST_ENV_HTTP_PORT", "4000")
	t.Setenv("CARGODESK_TEST_ENV_LOCK_TIMEOUT", "90s")

	loader := NewViperLoader("", "CARGODESK_TEST_ENV")
	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.HTTP.Port != 4000 {
		t.Fatalf("http.port = %d", cfg.HTTP.Port)
	}
	if cfg.Lock.Timeout != 90*time.Second {
		t.Fatalf("lock.timeout = %v", cfg.Lock.Timeout)
	}
}

func TestLegacyLockEnvVars(t *testing.T) {
	t.Setenv("LOCK_TIMEOUT_SECONDS", "600")
	t.Setenv("LOCK_CLEANUP_INTERVAL_MINUTES", "15")

	loader := NewViperLoader("", "CARGODESK_TEST_LEGACY")
	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Lock.Timeout != 600*time.Second {
		t.Fatalf("lock.timeout = %v", cfg.Lock.Timeout)
	}
	if cfg.Lock.CleanupInterval != 15*time.Minute {
		t.Fatalf("lock.cleanup_interval = %v", cfg.Lock.CleanupInterval)
	}
}

func TestLegacyLockEnvVarsInvalid(t *testing.T) {
	t.Setenv("LOCK_TIMEOUT_SECONDS", "soon")

	loader := NewViperLoader("", "CARGODESK_TEST_LEGACY_BAD")
	if _, err := loader.Load(); err == nil {
		t.Fatal("expected error for invalid LOCK_TIMEOUT_SECONDS")
	}
}

func TestValidateRejectsRetrySettings(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Lock.RetryAttempts = 3
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for non-zero retry_attempts")
	}

	cfg = DefaultConfig()
	cfg.Lock.RetryDelay = time.Second
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for non-zero retry_delay")
	}
}

func TestValidateRejectsBadRouterType(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RouterType = "express"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for unsupported router type")
	}
}

func TestValidateRequiresJWTSecretWhenAuthEnabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Auth.Enabled = true
	cfg.Auth.JWTSecret = ""
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for missing jwt secret")
	}
}

func TestValidateRedisProviderNeedsURL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Scheduler.LockProvider = SchedulerLockProviderRedis
	cfg.Scheduler.RedisURL = ""
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for missing redis url")
	}
}
