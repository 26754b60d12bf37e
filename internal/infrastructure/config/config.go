package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all client configuration.
type Config struct {
	Backend   BackendConfig   `yaml:"backend"`
	Reconnect ReconnectConfig `yaml:"reconnect"`
	Session   SessionConfig   `yaml:"session"`
	Logging   LogConfig       `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// BackendConfig holds backend endpoint configuration. The base URL is a
// configuration value rather than a constant: deployments have shipped on
// different ports.
type BackendConfig struct {
	BaseURL     string        `envconfig:"CHATLINK_BACKEND_URL" default:"http://localhost:8000" yaml:"base_url"`
	HTTPTimeout time.Duration `envconfig:"CHATLINK_HTTP_TIMEOUT" default:"30s" yaml:"http_timeout"`
}

// ReconnectConfig holds the streaming transport reconnection policy.
type ReconnectConfig struct {
	BaseDelay   time.Duration `envconfig:"CHATLINK_RECONNECT_BASE" default:"1s" yaml:"base_delay"`
	MaxAttempts int           `envconfig:"CHATLINK_RECONNECT_ATTEMPTS" default:"5" yaml:"max_attempts"`
}

// SessionConfig holds session establishment deadlines.
type SessionConfig struct {
	CreateTimeout time.Duration `envconfig:"CHATLINK_SESSION_TIMEOUT" default:"5s" yaml:"create_timeout"`
	PollInterval  time.Duration `envconfig:"CHATLINK_SESSION_POLL" default:"100ms" yaml:"poll_interval"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"CHATLINK_LOG_LEVEL" default:"info" yaml:"level"`
	Development bool   `envconfig:"CHATLINK_LOG_DEV" default:"false" yaml:"development"`
}

// MetricsConfig holds the optional local metrics listener.
type MetricsConfig struct {
	Addr    string `envconfig:"CHATLINK_METRICS_ADDR" default:"" yaml:"addr"`
	Enabled bool   `envconfig:"CHATLINK_METRICS_ENABLED" default:"false" yaml:"enabled"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadFile loads configuration from the environment, then applies overrides
// from a YAML file. Values present in the file win.
func LoadFile(path string) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			BaseURL:     "http://localhost:8000",
			HTTPTimeout: 30 * time.Second,
		},
		Reconnect: ReconnectConfig{
			BaseDelay:   time.Second,
			MaxAttempts: 5,
		},
		Session: SessionConfig{
			CreateTimeout: 5 * time.Second,
			PollInterval:  100 * time.Millisecond,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
	}
}
