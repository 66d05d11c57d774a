package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the application configuration loaded from files and environment variables.
type Config struct {
	AppName  string `mapstructure:"app_name"`
	Env      string `mapstructure:"app_env"`
	LogLevel string `mapstructure:"log_level"`

	APIKey                string        `mapstructure:"newsapi_key"`
	BaseURL               string        `mapstructure:"newsapi_base_url"`
	RequestTimeoutSeconds int64         `mapstructure:"request_timeout_seconds"`
	RequestTimeout        time.Duration `mapstructure:"-"`
	RequestsPerSecond     float64       `mapstructure:"requests_per_second"`

	StreamIntervalSeconds int64         `mapstructure:"stream_interval_seconds"`
	StreamInterval        time.Duration `mapstructure:"-"`
	RecencyWindowSize     int           `mapstructure:"recency_window_size"`

	QueriesFile          string `mapstructure:"queries_file"`
	PublishersFile       string `mapstructure:"publishers_file"`
	MaxConcurrentQueries int    `mapstructure:"max_concurrent_queries"`

	StorageType            string        `mapstructure:"storage_type"`
	BBoltPath              string        `mapstructure:"bbolt_path"`
	RedisAddr              string        `mapstructure:"redis_addr"`
	StorageTTLSeconds      int64         `mapstructure:"storage_ttl_seconds"`
	StorageCleanupSeconds  int64         `mapstructure:"storage_cleanup_interval_seconds"`
	StorageTTL             time.Duration `mapstructure:"-"`
	StorageCleanupInterval time.Duration `mapstructure:"-"`

	EnrichArticles bool          `mapstructure:"enrich_articles"`
	ScrapeDelayMs  int64         `mapstructure:"scrape_delay_ms"`
	ScrapeDelay    time.Duration `mapstructure:"-"`

	MetricsAddr string `mapstructure:"metrics_addr"`
}

// Load reads configuration from environment variables and config files.
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()

	v.SetDefault("app_name", "samvad-newsapi")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("newsapi_key", "")
	v.SetDefault("newsapi_base_url", "https://newsapi.org")
	v.SetDefault("request_timeout_seconds", 0)
	v.SetDefault("requests_per_second", 0)
	v.SetDefault("stream_interval_seconds", 60)
	v.SetDefault("recency_window_size", 1000)
	v.SetDefault("queries_file", "./configs/queries.yaml")
	v.SetDefault("publishers_file", "./configs/publishers.yaml")
	v.SetDefault("max_concurrent_queries", 4)
	v.SetDefault("storage_type", "bbolt")
	v.SetDefault("bbolt_path", "./data/published.db")
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("storage_ttl_seconds", int64((5*24*time.Hour)/time.Second))
	v.SetDefault("storage_cleanup_interval_seconds", int64((12*time.Hour)/time.Second))
	v.SetDefault("enrich_articles", false)
	v.SetDefault("scrape_delay_ms", 500)
	v.SetDefault("metrics_addr", "")

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.finalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) finalize() error {
	if cfg.RequestTimeoutSeconds < 0 {
		return fmt.Errorf("invalid request_timeout_seconds (must not be negative)")
	}
	cfg.RequestTimeout = time.Duration(cfg.RequestTimeoutSeconds) * time.Second

	if cfg.RequestsPerSecond < 0 {
		return fmt.Errorf("invalid requests_per_second (must not be negative)")
	}

	if cfg.StreamIntervalSeconds <= 0 {
		return fmt.Errorf("invalid stream_interval_seconds (must be positive seconds)")
	}
	cfg.StreamInterval = time.Duration(cfg.StreamIntervalSeconds) * time.Second

	if cfg.RecencyWindowSize <= 0 {
		return fmt.Errorf("invalid recency_window_size (must be positive)")
	}
	if cfg.MaxConcurrentQueries <= 0 {
		return fmt.Errorf("invalid max_concurrent_queries (must be positive)")
	}

	if cfg.StorageTTLSeconds <= 0 {
		return fmt.Errorf("invalid storage_ttl_seconds (must be positive seconds)")
	}
	if cfg.StorageCleanupSeconds <= 0 {
		return fmt.Errorf("invalid storage_cleanup_interval_seconds (must be positive seconds)")
	}
	cfg.StorageTTL = time.Duration(cfg.StorageTTLSeconds) * time.Second
	cfg.StorageCleanupInterval = time.Duration(cfg.StorageCleanupSeconds) * time.Second

	if cfg.ScrapeDelayMs < 0 {
		return fmt.Errorf("invalid scrape_delay_ms (must not be negative)")
	}
	cfg.ScrapeDelay = time.Duration(cfg.ScrapeDelayMs) * time.Millisecond

	return nil
}

// Redacted returns a copy safe to log.
func (cfg Config) Redacted() Config {
	if cfg.APIKey != "" {
		cfg.APIKey = "****"
	}
	return cfg
}
