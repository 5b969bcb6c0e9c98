// Package config loads service configuration from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment names.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config is the full service configuration.
type Config struct {
	Listen      string `yaml:"listen"`       // HTTP listen address.
	Environment string `yaml:"environment"`  // development or production.
	DatabaseDSN string `yaml:"database_dsn"` // SQLite path or postgres DSN.

	CronSecret string `yaml:"cron_secret"` // Shared bearer secret for cron and ingest endpoints.

	JWTSecret      string `yaml:"jwt_secret"`       // Admin console token signing key.
	JWTExpiryHours int    `yaml:"jwt_expiry_hours"` // Admin token lifetime.

	RedisAddr     string `yaml:"redis_addr"`     // Optional redis for the cron lock.
	RedisPassword string `yaml:"redis_password"` // Optional redis auth.

	PauseWebhookURL    string `yaml:"pause_webhook_url"`    // Resource-pause collaborator endpoint.
	PauseWebhookSecret string `yaml:"pause_webhook_secret"` // Bearer secret for the pause webhook.

	Log LogConfig `yaml:"log"` // Logging configuration.
}

// LogConfig controls log level and optional file rotation.
type LogConfig struct {
	Level      string `yaml:"level"`        // logrus level name.
	File       string `yaml:"file"`         // Log file path; empty logs to stderr.
	MaxSizeMB  int    `yaml:"max_size_mb"`  // Rotate after this size.
	MaxBackups int    `yaml:"max_backups"`  // Rotated files to keep.
	MaxAgeDays int    `yaml:"max_age_days"` // Rotated file retention.
}

// Load reads the config file (when present), applies defaults, then
// applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Config{
		Listen:         ":8788",
		Environment:    EnvDevelopment,
		DatabaseDSN:    "craft-metering.db",
		JWTExpiryHours: 24,
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 30,
		},
	}

	if strings.TrimSpace(path) != "" {
		data, errRead := os.ReadFile(path)
		if errRead != nil {
			if !os.IsNotExist(errRead) {
				return Config{}, fmt.Errorf("config: read %s: %w", path, errRead)
			}
		} else if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, errUnmarshal)
		}
	}

	applyEnvOverrides(&cfg)

	if cfg.IsProduction() && strings.TrimSpace(cfg.CronSecret) == "" {
		return Config{}, fmt.Errorf("config: cron_secret is required in production")
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrides := []struct {
		key    string
		target *string
	}{
		{"CRAFT_LISTEN", &cfg.Listen},
		{"CRAFT_ENV", &cfg.Environment},
		{"CRAFT_DSN", &cfg.DatabaseDSN},
		{"CRON_SECRET", &cfg.CronSecret},
		{"JWT_SECRET", &cfg.JWTSecret},
		{"REDIS_ADDR", &cfg.RedisAddr},
		{"REDIS_PASSWORD", &cfg.RedisPassword},
		{"PAUSE_WEBHOOK_URL", &cfg.PauseWebhookURL},
		{"PAUSE_WEBHOOK_SECRET", &cfg.PauseWebhookSecret},
		{"CRAFT_LOG_LEVEL", &cfg.Log.Level},
		{"CRAFT_LOG_FILE", &cfg.Log.File},
	}
	for _, o := range overrides {
		if value, ok := os.LookupEnv(o.key); ok && strings.TrimSpace(value) != "" {
			*o.target = strings.TrimSpace(value)
		}
	}
}

// IsProduction reports whether the service runs in production mode.
func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), EnvProduction)
}
