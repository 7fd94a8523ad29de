// Copyright (c) 2025 The lifeos Authors
//
// This file is part of lifeos. Licensed under the GNU Affero General
// Public License v3.0. See https://www.gnu.org/licenses/agpl-3.0.html

package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  host: 0.0.0.0
  port: 9000
logging:
  level: debug
  format: text
webauthn:
  origin: https://app.example.com
  display_name: Example
  challenge_ttl: 2m
session:
  secret: `+testSecret+`
storage:
  backend: memory
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "https://app.example.com", cfg.WebAuthn.Origin)
	assert.Equal(t, 2*time.Minute, cfg.WebAuthn.ChallengeTTL)
	// Unspecified fields keep their defaults.
	assert.Equal(t, 15*time.Minute, cfg.Session.InactivityWindow)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
session:
  secret: `+testSecret+`
`)

	t.Setenv("LIFEOS_PORT", "7070")
	t.Setenv("LIFEOS_ORIGIN", "https://override.example.com")
	t.Setenv("LIFEOS_LOG_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "https://override.example.com", cfg.WebAuthn.Origin)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadInvalidEnvPortKeepsDefault(t *testing.T) {
	path := writeConfig(t, `
session:
  secret: `+testSecret+`
`)

	t.Setenv("LIFEOS_PORT", "not-a-port")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8443, cfg.Server.Port)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg := Default()
		cfg.Session.Secret = testSecret
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "bad port",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "invalid server port",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "invalid log level",
		},
		{
			name:    "bad log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: "invalid log format",
		},
		{
			name:    "missing origin",
			mutate:  func(c *Config) { c.WebAuthn.Origin = "" },
			wantErr: "webauthn origin",
		},
		{
			name:    "missing secret",
			mutate:  func(c *Config) { c.Session.Secret = "" },
			wantErr: "session secret",
		},
		{
			name:    "short secret",
			mutate:  func(c *Config) { c.Session.Secret = "too-short" },
			wantErr: "at least 32 characters",
		},
		{
			name:    "postgres without dsn",
			mutate:  func(c *Config) { c.Storage.Backend = "postgres" },
			wantErr: "postgres_dsn is required",
		},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.Storage.Backend = "dynamo" },
			wantErr: "invalid storage backend",
		},
		{
			name:    "ratelimit without rate",
			mutate:  func(c *Config) { c.RateLimit.RequestsPerMin = 0 },
			wantErr: "requests_per_min",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestBuildLogger(t *testing.T) {
	cfg := Default()
	cfg.Logging.Level = "debug"

	logger := cfg.BuildLogger()
	require.NotNil(t, logger)
	assert.True(t, logger.Enabled(context.Background(), slog.LevelDebug))

	cfg.Logging.Level = "error"
	logger = cfg.BuildLogger()
	assert.False(t, logger.Enabled(context.Background(), slog.LevelInfo))
}
