// Package config loads history-river settings from defaults, an optional
// config file and HISTORY_RIVER_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Sternrassler/history-river/pkg/logging"
)

// EnvPrefix namespaces environment overrides, e.g. HISTORY_RIVER_SERVER_PORT.
const EnvPrefix = "HISTORY_RIVER"

// Config is the complete application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Generator GeneratorConfig `mapstructure:"generator"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Log       LogConfig       `mapstructure:"log"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Warmup    WarmupConfig    `mapstructure:"warmup"`
	Cache     CacheConfig     `mapstructure:"cache"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// AllowedOrigins enables CORS for the listed origins ("*" for any).
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Address returns the listen address.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Addr, s.Port)
}

type DatabaseConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type GeneratorConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// RedisConfig enables the cross-process fetch lease when Addr is set.
type RedisConfig struct {
	Addr      string        `mapstructure:"addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	LeaseTTL  time.Duration `mapstructure:"lease_ttl"`
	LeaseWait time.Duration `mapstructure:"lease_wait"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// RateLimitConfig limits event-detail requests per client IP.
// A zero RPS disables the limit.
type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

type WarmupConfig struct {
	Concurrency int           `mapstructure:"concurrency"`
	Delay       time.Duration `mapstructure:"delay"`
	PageSize    int           `mapstructure:"page_size"`
}

type CacheConfig struct {
	CleanupDays int `mapstructure:"cleanup_days"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", "")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "history_river.db")

	v.SetDefault("generator.api_key", "")
	v.SetDefault("generator.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("generator.model", "deepseek/deepseek-v3.2-exp")
	v.SetDefault("generator.timeout", 30*time.Second)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.lease_ttl", 45*time.Second)
	v.SetDefault("redis.lease_wait", 35*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetDefault("ratelimit.rps", 1.0)
	v.SetDefault("ratelimit.burst", 10)

	v.SetDefault("warmup.concurrency", 1)
	v.SetDefault("warmup.delay", 10*time.Second)
	v.SetDefault("warmup.page_size", 100)

	v.SetDefault("cache.cleanup_days", 365)
}

// Load reads the configuration into a new Config. configFile may be empty.
// The API key also honours the OPENROUTER_API_KEY variable used by earlier
// deployments.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("generator.api_key", EnvPrefix+"_GENERATOR_API_KEY", "OPENROUTER_API_KEY", "OpenRouter_API_KEY"); err != nil {
		return nil, fmt.Errorf("bind api key env: %w", err)
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that would otherwise fail late. The generator
// key is not required here because only serving and warm-up need it.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("database.driver %q must be sqlite or postgres", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsn is required"))
	}
	if !logging.ValidLevel(c.Log.Level) {
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	if c.RateLimit.RPS < 0 || c.RateLimit.Burst < 0 {
		errs = append(errs, errors.New("ratelimit values must not be negative"))
	}
	if c.Warmup.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("warmup.concurrency %d must be at least 1", c.Warmup.Concurrency))
	}
	if c.Cache.CleanupDays < 0 {
		errs = append(errs, fmt.Errorf("cache.cleanup_days %d must not be negative", c.Cache.CleanupDays))
	}
	return errors.Join(errs...)
}

// LoggingConfig converts the log section for logging.Setup.
func (c *Config) LoggingConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.LogLevel(c.Log.Level)
	cfg.Pretty = c.Log.Pretty
	return cfg
}
