// Package config loads CLI settings from the environment and an optional
// dotenv file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultEnvFile is read when present unless another file is given.
const DefaultEnvFile = "EXAMPLE.env"

// Config holds the settings shared by all commands.
type Config struct {
	APIKey   string        `mapstructure:"api_key"`
	BaseURL  string        `mapstructure:"base_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
	RedisURL string        `mapstructure:"redis_url"`

	League     string `mapstructure:"league"`
	Timezone   string `mapstructure:"timezone"`
	TargetDate string `mapstructure:"target_date"`
	OutDir     string `mapstructure:"out_dir"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// envKeys maps config keys to environment variables, in lookup order.
var envKeys = map[string][]string{
	"api_key":     {"API_KEY"},
	"base_url":    {"BASE_URL"},
	"timeout":     {"TIMEOUT"},
	"redis_url":   {"REDIS_URL"},
	"league":      {"LEAGUE"},
	"timezone":    {"TIMEZONE"},
	"target_date": {"TARGET_DATE", "DATE"},
	"out_dir":     {"OUT_DIR"},
	"log_level":   {"LOG_LEVEL"},
	"log_format":  {"LOG_FORMAT"},
}

// Load reads envFile into the process environment when it exists, without
// overriding variables that are already set, then builds the configuration
// from the environment.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}

	v := viper.New()
	setDefaults(v)
	for key, names := range envKeys {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	cfg.League = strings.ToLower(strings.TrimSpace(cfg.League))
	cfg.Timezone = strings.TrimSpace(cfg.Timezone)
	cfg.TargetDate = strings.TrimSpace(cfg.TargetDate)
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.LogFormat = strings.ToLower(cfg.LogFormat)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("base_url", "https://ishmaelinsights.com")
	v.SetDefault("timeout", "30s")

	v.SetDefault("league", "cbb")
	v.SetDefault("timezone", "America/Los_Angeles")
	v.SetDefault("out_dir", "exports")

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "auto")
}

func validate(cfg *Config) error {
	if cfg.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive: %s", cfg.Timeout)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[cfg.LogLevel] {
		return fmt.Errorf("invalid logging level: %s", cfg.LogLevel)
	}

	validFormats := map[string]bool{
		"auto":    true,
		"console": true,
		"json":    true,
	}
	if !validFormats[cfg.LogFormat] {
		return fmt.Errorf("invalid logging format: %s", cfg.LogFormat)
	}

	return nil
}
