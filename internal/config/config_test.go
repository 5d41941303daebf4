package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/roomrelay/roomrelay/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Listen != ":8080" {
		t.Errorf("listen = %q, want :8080", cfg.Server.Listen)
	}
	if cfg.History.PageSize != 50 {
		t.Errorf("page size = %d, want 50", cfg.History.PageSize)
	}
	if cfg.RateLimit.Burst != 5 || cfg.RateLimit.RefillInterval != time.Second {
		t.Errorf("rate limit = %+v, want burst 5 per second", cfg.RateLimit)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "json" {
		t.Errorf("log config = %+v, want info/json", cfg.Log)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CHAT_SERVER_LISTEN", ":9090")
	t.Setenv("CHAT_SERVER_MAX_MESSAGE_SIZE", "1024")
	t.Setenv("CHAT_RATE_LIMIT_BURST", "20")
	t.Setenv("CHAT_RATE_LIMIT_REFILL_INTERVAL", "2s")
	t.Setenv("CHAT_SERVER_ALLOWED_ORIGINS", "http://a.example, http://b.example")
	t.Setenv("CHAT_LOG_LEVEL", "debug")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Listen != ":9090" {
		t.Errorf("listen = %q, want :9090", cfg.Server.Listen)
	}
	if cfg.Server.MaxMessageSize != 1024 {
		t.Errorf("max message size = %d, want 1024", cfg.Server.MaxMessageSize)
	}
	if cfg.RateLimit.Burst != 20 {
		t.Errorf("burst = %d, want 20", cfg.RateLimit.Burst)
	}
	if cfg.RateLimit.RefillInterval != 2*time.Second {
		t.Errorf("refill interval = %s, want 2s", cfg.RateLimit.RefillInterval)
	}
	if len(cfg.Server.AllowedOrigins) != 2 || cfg.Server.AllowedOrigins[1] != "http://b.example" {
		t.Errorf("allowed origins = %v", cfg.Server.AllowedOrigins)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q, want debug", cfg.Log.Level)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := "server:\n  listen: \":7070\"\nhistory:\n  page_size: 25\n"
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv(config.ConfigPathEnvVar, path)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Listen != ":7070" {
		t.Errorf("listen = %q, want :7070 from file", cfg.Server.Listen)
	}
	if cfg.History.PageSize != 25 {
		t.Errorf("page size = %d, want 25 from file", cfg.History.PageSize)
	}
	// Untouched keys keep their defaults.
	if cfg.Store.Dir != "data/messages" {
		t.Errorf("store dir = %q, want default", cfg.Store.Dir)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"empty listen", func(c *config.Config) { c.Server.Listen = "" }},
		{"zero max message size", func(c *config.Config) { c.Server.MaxMessageSize = 0 }},
		{"empty store dir", func(c *config.Config) { c.Store.Dir = "" }},
		{"zero page size", func(c *config.Config) { c.History.PageSize = 0 }},
		{"zero burst", func(c *config.Config) { c.RateLimit.Burst = 0 }},
		{"zero refill interval", func(c *config.Config) { c.RateLimit.RefillInterval = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate accepted an invalid config")
			}
		})
	}
}
