// Package config loads the chat relay configuration from layered sources:
// built-in defaults, an optional YAML file, then environment variables. Later
// layers override earlier ones.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is stripped from environment variables before they are mapped to
// config keys, e.g. CHAT_SERVER_LISTEN -> server.listen.
const EnvPrefix = "CHAT_"

// ConfigPathEnvVar overrides the config file search path.
const ConfigPathEnvVar = "CHAT_CONFIG"

// DefaultConfigPaths lists where a config file is searched, in order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/roomrelay/config.yaml",
}

// RateLimitConfig defines per-connection inbound message throttling.
type RateLimitConfig struct {
	Burst          int           `koanf:"burst"`
	RefillInterval time.Duration `koanf:"refill_interval"`
}

// ServerConfig holds the HTTP/WebSocket listener settings.
type ServerConfig struct {
	Listen          string        `koanf:"listen"`
	AllowedOrigins  []string      `koanf:"allowed_origins"`
	MaxMessageSize  int64         `koanf:"max_message_size"`
	StaticDir       string        `koanf:"static_dir"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// StoreConfig holds the message store settings.
type StoreConfig struct {
	Dir string `koanf:"dir"`
}

// HistoryConfig holds history pagination settings.
type HistoryConfig struct {
	// PageSize is the limit applied to history requests that omit one.
	PageSize int `koanf:"page_size"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Config is the root configuration for the relay process.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Store     StoreConfig     `koanf:"store"`
	History   HistoryConfig   `koanf:"history"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	Log       LogConfig       `koanf:"log"`
}

// Default returns the built-in defaults applied before any file or env layer.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Listen:          ":8080",
			AllowedOrigins:  []string{"http://localhost:8080"},
			MaxMessageSize:  4096,
			StaticDir:       "public",
			ShutdownTimeout: 10 * time.Second,
		},
		Store: StoreConfig{
			Dir: "data/messages",
		},
		History: HistoryConfig{
			PageSize: 50,
		},
		RateLimit: RateLimitConfig{
			Burst:          5,
			RefillInterval: time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file, and
// CHAT_-prefixed environment variables, then validates the result.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		// CHAT_SERVER_MAX_MESSAGE_SIZE -> server.max_message_size
		s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		for _, section := range []string{"server", "store", "history", "rate_limit", "log"} {
			if strings.HasPrefix(s, section+"_") {
				return section + "." + strings.TrimPrefix(s, section+"_")
			}
		}
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	// Comma-separated origins from the environment.
	if raw := k.String("server.allowed_origins"); raw != "" && strings.Contains(raw, ",") {
		parts := strings.Split(raw, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if err := k.Set("server.allowed_origins", parts); err != nil {
			return nil, fmt.Errorf("set allowed origins: %w", err)
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Server.Listen == "" {
		return fmt.Errorf("server.listen must not be empty")
	}
	if c.Server.MaxMessageSize <= 0 {
		return fmt.Errorf("server.max_message_size must be positive, got %d", c.Server.MaxMessageSize)
	}
	if c.Store.Dir == "" {
		return fmt.Errorf("store.dir must not be empty")
	}
	if c.History.PageSize <= 0 {
		return fmt.Errorf("history.page_size must be positive, got %d", c.History.PageSize)
	}
	if c.RateLimit.Burst <= 0 {
		return fmt.Errorf("rate_limit.burst must be positive, got %d", c.RateLimit.Burst)
	}
	if c.RateLimit.RefillInterval <= 0 {
		return fmt.Errorf("rate_limit.refill_interval must be positive, got %s", c.RateLimit.RefillInterval)
	}
	return nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
