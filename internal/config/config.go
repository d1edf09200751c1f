// Package config loads the yaml configuration with ${ENV_VAR} expansion.
package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port         int     `yaml:"port"`
		AdminAPIKey  string  `yaml:"admin_api_key"`
		RateLimitRPS float64 `yaml:"rate_limit_rps"`
		RateBurst    int     `yaml:"rate_burst"`
	} `yaml:"server"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Backup BackupConfig `yaml:"backup"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Booking struct {
		CapacityCacheTTLSeconds int `yaml:"capacity_cache_ttl_seconds"`
		NumberRetries           int `yaml:"number_retries"`
		SessionTimeoutMinutes   int `yaml:"session_timeout_minutes"`
	} `yaml:"booking"`
}

// BackupConfig drives the periodic sqlite file copy.
type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	IntervalHours int    `yaml:"interval_hours"`
	Dir           string `yaml:"dir"`
	RetentionDays int    `yaml:"retention_days"`
}

// Interval returns the backup period, defaulting to daily.
func (c BackupConfig) Interval() time.Duration {
	if c.IntervalHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.IntervalHours) * time.Hour
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitRPS <= 0 {
		cfg.Server.RateLimitRPS = 5
	}
	if cfg.Server.RateBurst <= 0 {
		cfg.Server.RateBurst = 10
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/batard.db"
	}
	if cfg.Backup.Dir == "" {
		cfg.Backup.Dir = "data/backups"
	}
	if cfg.Booking.CapacityCacheTTLSeconds <= 0 {
		cfg.Booking.CapacityCacheTTLSeconds = 5
	}
	if cfg.Booking.NumberRetries <= 0 {
		cfg.Booking.NumberRetries = 5
	}
	if cfg.Booking.SessionTimeoutMinutes <= 0 {
		cfg.Booking.SessionTimeoutMinutes = 30
	}

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// CapacityCacheTTL returns the advisory capacity cache lifetime.
func (c *Config) CapacityCacheTTL() time.Duration {
	return time.Duration(c.Booking.CapacityCacheTTLSeconds) * time.Second
}

// SessionTimeout returns the checkout planner idle timeout.
func (c *Config) SessionTimeout() time.Duration {
	return time.Duration(c.Booking.SessionTimeoutMinutes) * time.Minute
}
