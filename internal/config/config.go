// Package config loads client settings from an optional YAML file and the
// environment. Environment variables win over the file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults.
const (
	DefaultBaseURL          = "http://127.0.0.1:5000"
	DefaultDebounce         = 500 * time.Millisecond
	DefaultRequestTimeout   = 15 * time.Second
	DefaultReconnectInitial = 500 * time.Millisecond
	DefaultReconnectMax     = 30 * time.Second
)

// Config holds every client setting.
type Config struct {
	// BaseURL is the root of the finance backend REST API.
	BaseURL string `yaml:"base_url"`

	// RealtimeURL is the WebSocket endpoint. Derived from BaseURL when empty.
	RealtimeURL string `yaml:"realtime_url"`

	// DBPath is the SQLite file holding the session and cached snapshots.
	// Empty keeps everything in memory.
	DBPath string `yaml:"db_path"`

	// SessionKey optionally seals the stored token (32 bytes, hex or base64).
	SessionKey string `yaml:"session_key"`

	// Debounce is the coalescing window for realtime-triggered re-fetches.
	Debounce time.Duration `yaml:"debounce"`

	// RequestTimeout bounds every backend request.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// ReconnectInitial and ReconnectMax bound the realtime reconnect backoff.
	ReconnectInitial time.Duration `yaml:"reconnect_initial"`
	ReconnectMax     time.Duration `yaml:"reconnect_max"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// MetricsAddr, when set, serves Prometheus metrics on this address.
	MetricsAddr string `yaml:"metrics_addr"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		BaseURL:          DefaultBaseURL,
		DBPath:           defaultDBPath(),
		Debounce:         DefaultDebounce,
		RequestTimeout:   DefaultRequestTimeout,
		ReconnectInitial: DefaultReconnectInitial,
		ReconnectMax:     DefaultReconnectMax,
		LogLevel:         "info",
	}
}

func defaultDBPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "chama", "state.db")
}

// Load reads path (if non-empty and present), then applies environment
// overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func (c *Config) applyEnv() error {
	c.BaseURL = getEnv("CHAMA_BASE_URL", c.BaseURL)
	c.RealtimeURL = getEnv("CHAMA_REALTIME_URL", c.RealtimeURL)
	c.DBPath = getEnv("CHAMA_DB_PATH", c.DBPath)
	c.SessionKey = getEnv("CHAMA_SESSION_KEY", c.SessionKey)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.MetricsAddr = getEnv("CHAMA_METRICS_ADDR", c.MetricsAddr)

	if v := os.Getenv("CHAMA_DEBOUNCE"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("CHAMA_DEBOUNCE: %w", err)
		}
		c.Debounce = d
	}
	return nil
}

// Validate checks the configuration and fills derived fields.
func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("base_url must be an absolute http(s) URL, got %q", c.BaseURL)
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")

	if c.RealtimeURL == "" {
		c.RealtimeURL = DeriveRealtimeURL(c.BaseURL)
	}
	if c.Debounce <= 0 {
		return fmt.Errorf("debounce must be positive, got %s", c.Debounce)
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.ReconnectInitial <= 0 {
		c.ReconnectInitial = DefaultReconnectInitial
	}
	if c.ReconnectMax < c.ReconnectInitial {
		c.ReconnectMax = c.ReconnectInitial
	}
	return nil
}

// DeriveRealtimeURL maps http(s)://host/base to ws(s)://host/base/realtime.
func DeriveRealtimeURL(baseURL string) string {
	switch {
	case strings.HasPrefix(baseURL, "https://"):
		return "wss://" + strings.TrimPrefix(baseURL, "https://") + "/realtime"
	case strings.HasPrefix(baseURL, "http://"):
		return "ws://" + strings.TrimPrefix(baseURL, "http://") + "/realtime"
	}
	return baseURL + "/realtime"
}
