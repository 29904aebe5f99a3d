package config

import (
	"fmt"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Analytics AnalyticsConfig `mapstructure:"analytics"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// AnalyticsConfig holds the remote analytics service settings.
type AnalyticsConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	ServiceID      string        `mapstructure:"service_id"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	CreateAttempts   int           `mapstructure:"create_attempts"`
	CreateRetryDelay time.Duration `mapstructure:"create_retry_delay"`

	Poll PollConfig `mapstructure:"poll"`
}

// PollConfig mirrors the polling contract: an unconditional warm-up delay,
// then a fixed cadence for a bounded number of attempts.
type PollConfig struct {
	FirstDelay  time.Duration `mapstructure:"first_delay"`
	Interval    time.Duration `mapstructure:"interval"`
	MaxAttempts int           `mapstructure:"max_attempts"`
}

// AuthConfig holds settings for the credential collaborator.
type AuthConfig struct {
	TokenURL     string `mapstructure:"token_url"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	StaticToken  string `mapstructure:"static_token"`
}

type CacheConfig struct {
	DefaultTTL  time.Duration `mapstructure:"default_ttl"`
	FallbackDir string        `mapstructure:"fallback_dir"`
	DemoMode    bool          `mapstructure:"demo_mode"`
	StaleBias   int           `mapstructure:"stale_bias"`
	Redis       RedisConfig   `mapstructure:"redis"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type CatalogConfig struct {
	Path string `mapstructure:"path"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "fleet-insights"
	}
	if cfg.App.Environment == "" {
		cfg.App.Environment = "development"
	}
	if cfg.Analytics.RequestTimeout == 0 {
		cfg.Analytics.RequestTimeout = 30 * time.Second
	}
	if cfg.Analytics.CreateAttempts == 0 {
		cfg.Analytics.CreateAttempts = 3
	}
	if cfg.Analytics.CreateRetryDelay == 0 {
		cfg.Analytics.CreateRetryDelay = 3 * time.Second
	}
	if cfg.Analytics.Poll.FirstDelay == 0 {
		cfg.Analytics.Poll.FirstDelay = 8 * time.Second
	}
	if cfg.Analytics.Poll.Interval == 0 {
		cfg.Analytics.Poll.Interval = 5 * time.Second
	}
	if cfg.Analytics.Poll.MaxAttempts == 0 {
		cfg.Analytics.Poll.MaxAttempts = 30
	}
	if cfg.Cache.DefaultTTL == 0 {
		cfg.Cache.DefaultTTL = 15 * time.Minute
	}
	if cfg.Cache.FallbackDir == "" {
		cfg.Cache.FallbackDir = "./fallback"
	}
	if cfg.Cache.StaleBias == 0 {
		cfg.Cache.StaleBias = 2
	}
	if cfg.Catalog.Path == "" {
		cfg.Catalog.Path = "./configs/catalog.json"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Metrics.Address == "" {
		cfg.Metrics.Address = ":9090"
	}
}

func validateConfig(cfg *Config) error {
	if !cfg.Cache.DemoMode && cfg.Analytics.BaseURL == "" {
		return fmt.Errorf("analytics.base_url is required outside demo mode")
	}
	if cfg.Analytics.CreateAttempts < 1 {
		return fmt.Errorf("analytics.create_attempts must be at least 1")
	}
	if cfg.Analytics.Poll.MaxAttempts < 1 {
		return fmt.Errorf("analytics.poll.max_attempts must be at least 1")
	}
	if cfg.Cache.StaleBias < 1 {
		return fmt.Errorf("cache.stale_bias must be at least 1")
	}
	return nil
}
