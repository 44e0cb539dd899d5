package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "backend:\n  url: http://api.local/api/\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Server.Port != "8080" || cfg.Server.LandingPath != "/announcements" || cfg.Server.LoginPath != "/login" {
		t.Fatalf("unexpected server defaults: %+v", cfg.Server)
	}
	if cfg.Backend.Timeout != 10*time.Second || cfg.Backend.LoginPath != "auth/login/" {
		t.Fatalf("unexpected backend defaults: %+v", cfg.Backend)
	}
	if cfg.Storage.Driver != "memory" || cfg.Cache.Driver != "memory" {
		t.Fatalf("unexpected driver defaults: storage=%s cache=%s", cfg.Storage.Driver, cfg.Cache.Driver)
	}
	if cfg.Storage.TokenRetention != 7*24*time.Hour {
		t.Fatalf("unexpected token retention %s", cfg.Storage.TokenRetention)
	}
	if cfg.Backend.Breaker.Enabled {
		t.Fatalf("breaker must be opt-in")
	}
}

func TestLoadConfigParsesDurations(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "9000"
  shutdown_timeout: 15s
backend:
  url: https://api.example.com/api/
  timeout: 3s
cache:
  ttl: 1m
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Server.Port != "9000" || cfg.Server.ShutdownTimeout != 15*time.Second {
		t.Fatalf("unexpected server: %+v", cfg.Server)
	}
	if cfg.Backend.Timeout != 3*time.Second || cfg.Cache.TTL != time.Minute {
		t.Fatalf("unexpected durations: backend=%s cache=%s", cfg.Backend.Timeout, cfg.Cache.TTL)
	}
}

func TestLoadConfigValidation(t *testing.T) {
	path := writeConfig(t, `
backend:
  url: not a url
storage:
  driver: postgres
telegram:
  enabled: true
`)
	_, err := LoadConfig(path)
	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	for _, field := range []string{"backend.url", "storage.dsn", "telegram.bot_token", "telegram.chat_id"} {
		if _, ok := verr[field]; !ok {
			t.Fatalf("expected %s to be reported, got %v", field, verr)
		}
	}
}

func TestLoadConfigRejectsUnknownDriver(t *testing.T) {
	path := writeConfig(t, "backend:\n  url: http://api/\ncache:\n  driver: memcached\n")
	_, err := LoadConfig(path)
	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr["cache.driver"] != "must be one of memory redis" {
		t.Fatalf("unexpected message: %q", verr["cache.driver"])
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
