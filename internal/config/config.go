// Package config loads settings for the standalone binaries from a JSON or
// YAML file overlaid with DUELHALL_* environment variables.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Duration accepts "1.5s" style strings in files and env vars.
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

type Config struct {
	// Addr is the listen address of serve.
	Addr string `json:"addr" yaml:"addr" env:"DUELHALL_ADDR"`
	// DBPath is the SQLite file of serve. Empty keeps documents in memory.
	DBPath      string `json:"db_path" yaml:"db_path" env:"DUELHALL_DB_PATH"`
	TokenSecret string `json:"token_secret" yaml:"token_secret" env:"DUELHALL_TOKEN_SECRET"`
	// ServerURL is where client commands reach serve.
	ServerURL string `json:"server_url" yaml:"server_url" env:"DUELHALL_SERVER_URL"`

	PollInterval Duration `json:"poll_interval" yaml:"poll_interval" env:"DUELHALL_POLL_INTERVAL"`
	PairInterval Duration `json:"pair_interval" yaml:"pair_interval" env:"DUELHALL_PAIR_INTERVAL"`
	InviteTTL    Duration `json:"invite_ttl" yaml:"invite_ttl" env:"DUELHALL_INVITE_TTL"`
	HandSize     int      `json:"hand_size" yaml:"hand_size" env:"DUELHALL_HAND_SIZE"`

	// Retention is how long idle sessions and stale queue entries survive
	// the cleanup janitor; CleanupInterval is how often it runs.
	Retention       Duration `json:"retention" yaml:"retention" env:"DUELHALL_RETENTION"`
	CleanupInterval Duration `json:"cleanup_interval" yaml:"cleanup_interval" env:"DUELHALL_CLEANUP_INTERVAL"`

	LogLevel string `json:"log_level" yaml:"log_level" env:"DUELHALL_LOG_LEVEL"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Addr:            "127.0.0.1:7350",
		ServerURL:       "http://127.0.0.1:7350",
		PollInterval:    Duration(1500 * time.Millisecond),
		PairInterval:    Duration(2 * time.Second),
		InviteTTL:       Duration(60 * time.Second),
		HandSize:        7,
		Retention:       Duration(24 * time.Hour),
		CleanupInterval: Duration(10 * time.Minute),
		LogLevel:        "info",
	}
}

// Load reads path (optional) over the defaults, then applies environment
// variables. The file format follows the extension: .yaml/.yml or JSON.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			err = yaml.Unmarshal(data, &cfg)
		default:
			err = json.Unmarshal(data, &cfg)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal config %s: %w", path, err)
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the services cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.PollInterval <= 0:
		return fmt.Errorf("poll_interval must be positive")
	case c.PairInterval <= 0:
		return fmt.Errorf("pair_interval must be positive")
	case c.InviteTTL <= 0:
		return fmt.Errorf("invite_ttl must be positive")
	case c.HandSize < 1 || c.HandSize > 15:
		return fmt.Errorf("hand_size must be between 1 and 15, got %d", c.HandSize)
	}
	return nil
}
