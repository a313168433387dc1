// Package config provides configuration for the thread service.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the service configuration.
type Config struct {
	// Server settings
	HTTPPort int

	// Database
	DatabaseURL string

	// Agent responder. Empty URL selects the built-in mock.
	ResponderURL     string
	ResponderTimeout time.Duration

	// Auth: api key -> credential id
	APIKeys map[string]string

	// Rate limits
	RateLimitPerMinute int
	RateLimitPerHour   int
	MaxActiveSessions  int

	// Session lifecycle
	InactivityThreshold time.Duration
	SweepInterval       time.Duration

	// Logging
	LogLevel string
}

// fileConfig mirrors Config for the optional YAML file. Durations are
// given in milliseconds, matching the env variables.
type fileConfig struct {
	HTTPPort              int               `yaml:"http_port"`
	DatabaseURL           string            `yaml:"database_url"`
	ResponderURL          string            `yaml:"responder_url"`
	ResponderTimeoutMS    int               `yaml:"responder_timeout_ms"`
	APIKeys               map[string]string `yaml:"api_keys"`
	RateLimitPerMinute    int               `yaml:"rate_limit_per_minute"`
	RateLimitPerHour      int               `yaml:"rate_limit_per_hour"`
	MaxActiveSessions     int               `yaml:"max_active_sessions"`
	InactivityThresholdMS int               `yaml:"inactivity_threshold_ms"`
	SweepIntervalMS       int               `yaml:"sweep_interval_ms"`
	LogLevel              string            `yaml:"log_level"`
}

// Load builds the configuration: defaults, then the YAML file at path (if
// any), then environment overrides.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		var fc fileConfig
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
		applyFile(cfg, &fc)
	}

	applyEnv(cfg)
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		HTTPPort:            8080,
		DatabaseURL:         "file:threads.db?cache=shared&mode=rwc",
		ResponderURL:        "",
		ResponderTimeout:    5 * time.Minute,
		APIKeys:             map[string]string{"dev-key": "dev"},
		RateLimitPerMinute:  60,
		RateLimitPerHour:    1000,
		MaxActiveSessions:   100,
		InactivityThreshold: 24 * time.Hour,
		SweepInterval:       time.Minute,
		LogLevel:            "info",
	}
}

func applyFile(cfg *Config, fc *fileConfig) {
	if fc.HTTPPort != 0 {
		cfg.HTTPPort = fc.HTTPPort
	}
	if fc.DatabaseURL != "" {
		cfg.DatabaseURL = fc.DatabaseURL
	}
	if fc.ResponderURL != "" {
		cfg.ResponderURL = fc.ResponderURL
	}
	if fc.ResponderTimeoutMS != 0 {
		cfg.ResponderTimeout = time.Duration(fc.ResponderTimeoutMS) * time.Millisecond
	}
	if len(fc.APIKeys) > 0 {
		cfg.APIKeys = fc.APIKeys
	}
	if fc.RateLimitPerMinute != 0 {
		cfg.RateLimitPerMinute = fc.RateLimitPerMinute
	}
	if fc.RateLimitPerHour != 0 {
		cfg.RateLimitPerHour = fc.RateLimitPerHour
	}
	if fc.MaxActiveSessions != 0 {
		cfg.MaxActiveSessions = fc.MaxActiveSessions
	}
	if fc.InactivityThresholdMS != 0 {
		cfg.InactivityThreshold = time.Duration(fc.InactivityThresholdMS) * time.Millisecond
	}
	if fc.SweepIntervalMS != 0 {
		cfg.SweepInterval = time.Duration(fc.SweepIntervalMS) * time.Millisecond
	}
	if fc.LogLevel != "" {
		cfg.LogLevel = fc.LogLevel
	}
}

func applyEnv(cfg *Config) {
	cfg.HTTPPort = getEnvInt("HTTP_PORT", cfg.HTTPPort)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.ResponderURL = getEnv("RESPONDER_URL", cfg.ResponderURL)
	cfg.ResponderTimeout = getEnvDurationMS("RESPONDER_TIMEOUT_MS", cfg.ResponderTimeout)
	cfg.RateLimitPerMinute = getEnvInt("RATE_LIMIT_PER_MINUTE", cfg.RateLimitPerMinute)
	cfg.RateLimitPerHour = getEnvInt("RATE_LIMIT_PER_HOUR", cfg.RateLimitPerHour)
	cfg.MaxActiveSessions = getEnvInt("MAX_ACTIVE_SESSIONS", cfg.MaxActiveSessions)
	cfg.InactivityThreshold = getEnvDurationMS("INACTIVITY_THRESHOLD_MS", cfg.InactivityThreshold)
	cfg.SweepInterval = getEnvDurationMS("SWEEP_INTERVAL_MS", cfg.SweepInterval)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)

	if keys := parseAPIKeys(os.Getenv("API_KEYS")); len(keys) > 0 {
		cfg.APIKeys = keys
	}
}

// parseAPIKeys parses "key:credential,key:credential" pairs.
func parseAPIKeys(val string) map[string]string {
	if val == "" {
		return nil
	}
	keys := make(map[string]string)
	for _, pair := range strings.Split(val, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), ":", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			continue
		}
		keys[parts[0]] = parts[1]
	}
	return keys
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvDurationMS(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return time.Duration(intVal) * time.Millisecond
		}
	}
	return defaultVal
}
