// Package config loads the agent settings from the environment and an
// optional .env file using viper.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	CacheDriverSQLite = "sqlite"
	CacheDriverRedis  = "redis"
	CacheDriverMemory = "memory"
)

// Config holds all the configuration variables for the widget agent.
type Config struct {
	ServerPort            string        `mapstructure:"SERVER_PORT"`
	BackendBaseURL        string        `mapstructure:"BACKEND_BASE_URL"`
	BackendAccessToken    string        `mapstructure:"BACKEND_ACCESS_TOKEN"`
	BackendTimeout        time.Duration `mapstructure:"BACKEND_TIMEOUT"`
	CacheDriver           string        `mapstructure:"CACHE_DRIVER"`
	SQLitePath            string        `mapstructure:"SQLITE_PATH"`
	RedisAddr             string        `mapstructure:"REDIS_ADDR"`
	RedisPrefix           string        `mapstructure:"REDIS_PREFIX"`
	RabbitMQURL           string        `mapstructure:"RABBITMQ_URL"`
	PushExchange          string        `mapstructure:"PUSH_EXCHANGE"`
	PushQueue             string        `mapstructure:"PUSH_QUEUE"`
	PushWebhookSecret     string        `mapstructure:"PUSH_WEBHOOK_SECRET"`
	PushRateLimit         int           `mapstructure:"PUSH_RATE_LIMIT"`
	WidgetRefreshSchedule string        `mapstructure:"WIDGET_REFRESH_SCHEDULE"`
	ProgressSyncSchedule  string        `mapstructure:"PROGRESS_SYNC_SCHEDULE"`
	CORSAllowedOrigins    string        `mapstructure:"CORS_ALLOWED_ORIGINS"`
	LogLevel              string        `mapstructure:"LOG_LEVEL"`
}

var keys = []string{
	"SERVER_PORT",
	"BACKEND_BASE_URL",
	"BACKEND_ACCESS_TOKEN",
	"BACKEND_TIMEOUT",
	"CACHE_DRIVER",
	"SQLITE_PATH",
	"REDIS_ADDR",
	"REDIS_PREFIX",
	"RABBITMQ_URL",
	"PUSH_EXCHANGE",
	"PUSH_QUEUE",
	"PUSH_WEBHOOK_SECRET",
	"PUSH_RATE_LIMIT",
	"WIDGET_REFRESH_SCHEDULE",
	"PROGRESS_SYNC_SCHEDULE",
	"CORS_ALLOWED_ORIGINS",
	"LOG_LEVEL",
}

// LoadConfig reads configuration from environment variables, falling back
// to a .env file under path when one exists.
func LoadConfig(path string) (*Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("BACKEND_BASE_URL", "https://localhost:3000")
	viper.SetDefault("BACKEND_ACCESS_TOKEN", "YOUR_ACCESS_TOKEN")
	viper.SetDefault("BACKEND_TIMEOUT", "0s")
	viper.SetDefault("CACHE_DRIVER", CacheDriverSQLite)
	viper.SetDefault("SQLITE_PATH", "widget.db")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_PREFIX", "loanwidget")
	viper.SetDefault("PUSH_EXCHANGE", "push_events")
	viper.SetDefault("PUSH_QUEUE", "loan_widget_push")
	viper.SetDefault("PUSH_RATE_LIMIT", 60)
	viper.SetDefault("WIDGET_REFRESH_SCHEDULE", "@every 30m")
	viper.SetDefault("LOG_LEVEL", "info")

	for _, key := range keys {
		_ = viper.BindEnv(key)
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.BackendBaseURL = strings.TrimRight(strings.TrimSpace(cfg.BackendBaseURL), "/")
	cfg.CacheDriver = strings.ToLower(strings.TrimSpace(cfg.CacheDriver))
	cfg.RabbitMQURL = strings.TrimSpace(cfg.RabbitMQURL)
	cfg.PushWebhookSecret = strings.TrimSpace(cfg.PushWebhookSecret)
	cfg.ProgressSyncSchedule = strings.TrimSpace(cfg.ProgressSyncSchedule)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	u, err := url.Parse(c.BackendBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("BACKEND_BASE_URL must be an http(s) URL, got %q", c.BackendBaseURL)
	}

	switch c.CacheDriver {
	case CacheDriverSQLite, CacheDriverRedis, CacheDriverMemory:
	default:
		return fmt.Errorf("CACHE_DRIVER must be one of sqlite, redis, memory, got %q", c.CacheDriver)
	}

	if c.BackendTimeout < 0 {
		return fmt.Errorf("BACKEND_TIMEOUT must not be negative")
	}
	if c.PushRateLimit < 0 {
		return fmt.Errorf("PUSH_RATE_LIMIT must not be negative")
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// AllowedOrigins splits CORS_ALLOWED_ORIGINS on commas. Empty means CORS
// is off.
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// SlogLevel parses LOG_LEVEL.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return level, nil
}
