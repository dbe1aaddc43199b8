package config

import (
	"testing"
	"time"
)

func TestLoadDevelopmentDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DefaultRegion != defaultRegion || cfg.PINPolicy != defaultPINPolicy {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Address() != ":8080" {
		t.Fatalf("unexpected address %s", cfg.Address())
	}
}

func TestLoadProductionRequiresSecrets(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("DATABASE_URL", "postgres://localhost/simwallet")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("JWT_SECRET", "")

	if _, err := Load(); err == nil {
		t.Fatalf("expected missing secret error")
	}

	t.Setenv("JWT_SECRET", "0123456789abcdef0123")
	t.Setenv("REFRESH_SECRET", "fedcba98765432100123")
	t.Setenv("ADMIN_TOKEN", "admin-token-0123456789")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.IsDev() {
		t.Fatalf("production must not be dev")
	}
}

func TestLoadDurations(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("SHUTDOWN_TIMEOUT_SECONDS", "3")
	t.Setenv("ACCESS_TOKEN_TTL", "90s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ShutdownPeriod != 3*time.Second || cfg.AccessTokenTTL != 90*time.Second {
		t.Fatalf("unexpected durations: %v %v", cfg.ShutdownPeriod, cfg.AccessTokenTTL)
	}

	t.Setenv("ACCESS_TOKEN_TTL", "soon")
	if _, err := Load(); err == nil {
		t.Fatalf("expected invalid duration error")
	}
}

func TestValidateRejectsBadRegionAndBackend(t *testing.T) {
	cfg := Config{AppEnv: "test", DefaultRegion: "ZZ", AliasBackend: "memory", ResolverCacheSize: 1}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected region error")
	}
	cfg.DefaultRegion = "CG"
	cfg.AliasBackend = "etcd"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected backend error")
	}
}
