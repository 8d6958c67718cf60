package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "STORE_DRIVER", "DATA_PATH", "JWT_SECRET", "TOKEN_TTL", "CORS_ORIGINS"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	if cfg.ServerPort != ":8080" {
		t.Fatalf("expected :8080, got %q", cfg.ServerPort)
	}
	if cfg.StoreDriver != DriverJSON {
		t.Fatalf("expected json driver, got %q", cfg.StoreDriver)
	}
	if cfg.TokenTTL != 7*24*time.Hour {
		t.Fatalf("expected 7d token ttl, got %v", cfg.TokenTTL)
	}
	if cfg.JWTSecret == "" || !cfg.JWTSecretRandom {
		t.Fatalf("expected generated secret, got %q random=%v", cfg.JWTSecret, cfg.JWTSecretRandom)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "*" {
		t.Fatalf("unexpected cors origins %v", cfg.CORSOrigins)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("STORE_DRIVER", "SQLite")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("TOKEN_TTL", "2h")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test")
	t.Setenv("LOG_DEBUG", "true")

	cfg := Load()

	if cfg.ServerPort != ":9090" {
		t.Fatalf("expected :9090, got %q", cfg.ServerPort)
	}
	if cfg.StoreDriver != DriverSQLite {
		t.Fatalf("expected sqlite, got %q", cfg.StoreDriver)
	}
	if cfg.JWTSecret != "s3cret" || cfg.JWTSecretRandom {
		t.Fatalf("expected configured secret")
	}
	if cfg.TokenTTL != 2*time.Hour {
		t.Fatalf("expected 2h, got %v", cfg.TokenTTL)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "http://b.test" {
		t.Fatalf("unexpected cors origins %v", cfg.CORSOrigins)
	}
	if !cfg.Debug {
		t.Fatalf("expected debug on")
	}
}

func TestInvalidDurationFallsBack(t *testing.T) {
	t.Setenv("TOKEN_TTL", "soon")
	if got := Load().TokenTTL; got != 7*24*time.Hour {
		t.Fatalf("expected default ttl, got %v", got)
	}
}
