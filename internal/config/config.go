// Copyright (c) 2025 The lifeos Authors
//
// This file is part of lifeos. Licensed under the GNU Affero General
// Public License v3.0. See https://www.gnu.org/licenses/agpl-3.0.html

// Package config loads the server configuration from YAML with
// environment variable overrides.
package config

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete server configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	WebAuthn  WebAuthnConfig  `yaml:"webauthn"`
	Session   SessionConfig   `yaml:"session"`
	Storage   StorageConfig   `yaml:"storage"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig contains server-level settings
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// LoggingConfig controls logging behavior
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// WebAuthnConfig controls the WebAuthn relying party
type WebAuthnConfig struct {
	// Origin is the full web origin clients connect from, for example
	// "https://app.example.com". The relying party ID is derived from
	// its hostname.
	Origin string `yaml:"origin"`

	// DisplayName is the relying party name shown in passkey prompts.
	DisplayName string `yaml:"display_name"`

	// ChallengeTTL is how long issued challenges stay valid.
	ChallengeTTL time.Duration `yaml:"challenge_ttl"`
}

// SessionConfig controls session tokens and the inactivity lock
type SessionConfig struct {
	// Secret signs session tokens. Required.
	Secret string `yaml:"secret"`

	// TokenTTL is how long session tokens are valid.
	TokenTTL time.Duration `yaml:"token_ttl"`

	// InactivityWindow is how long a session may idle before locking.
	InactivityWindow time.Duration `yaml:"inactivity_window"`
}

// StorageConfig selects the persistence backends
type StorageConfig struct {
	// Backend is "memory" or "postgres".
	Backend string `yaml:"backend"`

	// PostgresDSN is the connection string when Backend is "postgres".
	PostgresDSN string `yaml:"postgres_dsn"`

	// RedisAddr enables the Redis challenge store when set. When empty,
	// challenges are held in memory.
	RedisAddr string `yaml:"redis_addr"`

	// RedisPassword authenticates to Redis, if required.
	RedisPassword string `yaml:"redis_password"`
}

// RateLimitConfig controls rate limiting on ceremony endpoints
type RateLimitConfig struct {
	Enabled        bool `yaml:"enabled"`
	RequestsPerMin int  `yaml:"requests_per_min"`
	Burst          int  `yaml:"burst"`
}

// MetricsConfig controls the metrics endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Default returns a configuration with sensible defaults for local
// development. The session secret must still be provided.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8443,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		WebAuthn: WebAuthnConfig{
			Origin:       "http://localhost:8443",
			DisplayName:  "lifeos",
			ChallengeTTL: 5 * time.Minute,
		},
		Session: SessionConfig{
			TokenTTL:         15 * time.Minute,
			InactivityWindow: 15 * time.Minute,
		},
		Storage: StorageConfig{
			Backend: "memory",
		},
		RateLimit: RateLimitConfig{
			Enabled:        true,
			RequestsPerMin: 60,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Load reads configuration from a YAML file and applies environment
// variable overrides.
func Load(path string) (*Config, error) {
	// #nosec G304 - Config file path is provided by admin/user
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration
func applyEnvOverrides(cfg *Config) {
	if host := os.Getenv("LIFEOS_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if portStr := os.Getenv("LIFEOS_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil || port < 1 || port > 65535 {
			log.Printf("Warning: invalid LIFEOS_PORT value %q, using default %d",
				portStr, cfg.Server.Port)
		} else {
			cfg.Server.Port = port
		}
	}

	if level := os.Getenv("LIFEOS_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if format := os.Getenv("LIFEOS_LOG_FORMAT"); format != "" {
		cfg.Logging.Format = format
	}

	if origin := os.Getenv("LIFEOS_ORIGIN"); origin != "" {
		cfg.WebAuthn.Origin = origin
	}

	if secret := os.Getenv("LIFEOS_SESSION_SECRET"); secret != "" {
		cfg.Session.Secret = secret
	}

	if backend := os.Getenv("LIFEOS_STORAGE_BACKEND"); backend != "" {
		cfg.Storage.Backend = backend
	}
	if dsn := os.Getenv("LIFEOS_POSTGRES_DSN"); dsn != "" {
		cfg.Storage.PostgresDSN = dsn
	}
	if addr := os.Getenv("LIFEOS_REDIS_ADDR"); addr != "" {
		cfg.Storage.RedisAddr = addr
	}
	if password := os.Getenv("LIFEOS_REDIS_PASSWORD"); password != "" {
		cfg.Storage.RedisPassword = password
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	validFormats := map[string]bool{
		"json": true, "text": true,
	}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("invalid log format: %s (must be json or text)", c.Logging.Format)
	}

	if c.WebAuthn.Origin == "" {
		return fmt.Errorf("webauthn origin must be specified")
	}

	if c.Session.Secret == "" {
		return fmt.Errorf("session secret must be specified")
	}
	if len(c.Session.Secret) < 32 {
		return fmt.Errorf("session secret must be at least 32 characters")
	}

	switch c.Storage.Backend {
	case "memory":
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("postgres_dsn is required when storage backend is postgres")
		}
	default:
		return fmt.Errorf("invalid storage backend: %s (must be memory or postgres)", c.Storage.Backend)
	}

	if c.RateLimit.Enabled && c.RateLimit.RequestsPerMin < 1 {
		return fmt.Errorf("ratelimit requests_per_min must be positive when enabled")
	}

	return nil
}

// BuildLogger constructs a slog.Logger from the logging configuration.
func (c *Config) BuildLogger() *slog.Logger {
	var level slog.Level
	switch strings.ToLower(c.Logging.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(c.Logging.Format) == "text" {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
