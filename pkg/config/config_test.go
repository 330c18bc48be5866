package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "")
	t.Setenv("OpenRouter_API_KEY", "")

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.Server.Address())
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "history_river.db", cfg.Database.DSN)
	assert.Equal(t, "deepseek/deepseek-v3.2-exp", cfg.Generator.Model)
	assert.Equal(t, 30*time.Second, cfg.Generator.Timeout)
	assert.Empty(t, cfg.Redis.Addr)
	assert.Equal(t, 365, cfg.Cache.CleanupDays)
	assert.Equal(t, 10*time.Second, cfg.Warmup.Delay)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("HISTORY_RIVER_SERVER_PORT", "9090")
	t.Setenv("HISTORY_RIVER_DATABASE_DRIVER", "postgres")
	t.Setenv("HISTORY_RIVER_DATABASE_DSN", "postgres://localhost/history?sslmode=disable")
	t.Setenv("HISTORY_RIVER_REDIS_ADDR", "localhost:6379")
	t.Setenv("HISTORY_RIVER_WARMUP_DELAY", "2s")
	t.Setenv("OPENROUTER_API_KEY", "sk-or-legacy")

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 2*time.Second, cfg.Warmup.Delay)
	assert.Equal(t, "sk-or-legacy", cfg.Generator.APIKey)
}

func TestLoad_PrefixedKeyWins(t *testing.T) {
	t.Setenv("HISTORY_RIVER_GENERATOR_API_KEY", "sk-or-new")
	t.Setenv("OPENROUTER_API_KEY", "sk-or-legacy")

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, "sk-or-new", cfg.Generator.APIKey)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 8100
log:
  level: debug
  pretty: true
ratelimit:
  rps: 0
`), 0o600))

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, 8100, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.LoggingConfig().Pretty)
	assert.Zero(t, cfg.RateLimit.RPS)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		v := viper.New()
		SetDefaults(v)
		var cfg Config
		require.NoError(t, v.Unmarshal(&cfg))
		return &cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port", func(c *Config) { c.Server.Port = 0 }},
		{"driver", func(c *Config) { c.Database.Driver = "mysql" }},
		{"dsn", func(c *Config) { c.Database.DSN = "" }},
		{"log level", func(c *Config) { c.Log.Level = "trace" }},
		{"rate limit", func(c *Config) { c.RateLimit.Burst = -1 }},
		{"warmup", func(c *Config) { c.Warmup.Concurrency = 0 }},
		{"cleanup", func(c *Config) { c.Cache.CleanupDays = -1 }},
	}

	require.NoError(t, valid().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
