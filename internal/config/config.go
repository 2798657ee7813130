package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the process configuration loaded from files and environment variables.
// Sync behaviour (upstream, polling, notifications) lives in the settings store instead.
type Config struct {
	AppName          string        `mapstructure:"app_name"`
	Env              string        `mapstructure:"app_env"`
	LogLevel         string        `mapstructure:"log_level"`
	LogFile          string        `mapstructure:"log_file"`
	PublishersFile   string        `mapstructure:"publishers_file"`
	MetricsAddr      string        `mapstructure:"metrics_addr"`
	FetchConcurrency int           `mapstructure:"fetch_concurrency"`
	HTTPTimeoutSecs  int64         `mapstructure:"http_timeout"`
	HTTPTimeout      time.Duration `mapstructure:"-"`

	StorageType string `mapstructure:"storage_type"`
	BBoltPath   string `mapstructure:"bbolt_path"`
}

// Load reads configuration from environment variables and the optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()

	v.SetDefault("app_name", "collie")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")
	v.SetDefault("publishers_file", "")
	v.SetDefault("metrics_addr", "")
	v.SetDefault("fetch_concurrency", 4)
	v.SetDefault("http_timeout", 0) // seconds, 0 keeps transport defaults
	v.SetDefault("storage_type", "bbolt")
	v.SetDefault("bbolt_path", "./data/collie.db")

	v.SetEnvPrefix("collie")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.FetchConcurrency <= 0 {
		return nil, fmt.Errorf("invalid fetch_concurrency (must be positive)")
	}
	if cfg.HTTPTimeoutSecs < 0 {
		return nil, fmt.Errorf("invalid http_timeout (must not be negative seconds)")
	}
	cfg.HTTPTimeout = time.Duration(cfg.HTTPTimeoutSecs) * time.Second

	return &cfg, nil
}
