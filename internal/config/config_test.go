package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "stdio", cfg.Server.TransportMode)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "file", cfg.Store.Driver)
	assert.Equal(t, "./data", cfg.Store.Path)
	assert.Equal(t, "stub", cfg.Generation.Provider)
	assert.Equal(t, 120, cfg.Generation.TimeoutSeconds)
	assert.Equal(t, 6000, cfg.Generation.ContextTokenBudget)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  transport_mode: http
  port: 9090
store:
  driver: sqlite
  path: loreweave.db
generation:
  provider: openai
  api_key: sk-test
  model: gpt-4o
log:
  level: debug
`), 0o644))
	t.Setenv("LOREWEAVE_CONFIG_PATH", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http", cfg.Server.TransportMode)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "loreweave.db", cfg.Store.Path)
	assert.Equal(t, "openai", cfg.Generation.Provider)
	assert.Equal(t, "gpt-4o", cfg.Generation.Model)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9090\n"), 0o644))
	t.Setenv("LOREWEAVE_CONFIG_PATH", path)
	t.Setenv("LOREWEAVE_PORT", "7070")
	t.Setenv("LOREWEAVE_STORE_DRIVER", "memory")
	t.Setenv("LOREWEAVE_GENERATION_TIMEOUT_SECONDS", "30")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, 30, cfg.Generation.TimeoutSeconds)
}

func TestLoadRejectsBadEnvValues(t *testing.T) {
	t.Setenv("LOREWEAVE_PORT", "eighty")

	_, err := Load()
	assert.ErrorContains(t, err, "LOREWEAVE_PORT")
}

func TestValidate(t *testing.T) {
	base := func() Config {
		cfg := Config{}
		cfg.Server.TransportMode = "stdio"
		cfg.Store.Driver = "memory"
		cfg.Generation.Provider = "stub"
		cfg.Log.Level = "info"
		return cfg
	}

	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"bad transport", func(c *Config) { c.Server.TransportMode = "grpc" }, "transport mode"},
		{"auth without keys", func(c *Config) { c.Server.AuthEnabled = true }, "no api keys"},
		{"bad driver", func(c *Config) { c.Store.Driver = "dynamo" }, "store driver"},
		{"redis without url", func(c *Config) { c.Store.Driver = "redis" }, "redis_url"},
		{"openai without key", func(c *Config) { c.Generation.Provider = "openai" }, "api key"},
		{"bad provider", func(c *Config) { c.Generation.Provider = "bard" }, "generation provider"},
		{"bad log level", func(c *Config) { c.Log.Level = "trace" }, "log level"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}
