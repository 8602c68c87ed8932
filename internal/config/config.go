// Package config holds the Warden daemon configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds daemon configuration.
type Config struct {
	// ListenAddr is the control plane bind address.
	ListenAddr string `yaml:"listen_addr"`
	// DBPath is the SQLite database file location.
	DBPath string `yaml:"db_path"`
	// APIToken, when set, is required as a bearer token on every request.
	APIToken string `yaml:"api_token"`
	// SweepIntervalSec is how often, in seconds, expired assignments are
	// reclaimed.
	SweepIntervalSec int `yaml:"sweep_interval_sec"`
	// LeaseTTLSec is the default assignment lease duration in seconds.
	LeaseTTLSec int `yaml:"lease_ttl_sec"`
	// DefaultGates are the completion gates applied when neither the task
	// nor the project declares any.
	DefaultGates []string `yaml:"default_gates"`
	// EventLimit caps how many audit events list endpoints return.
	EventLimit int `yaml:"event_limit"`
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return &Config{
		ListenAddr:       "127.0.0.1:7521",
		DBPath:           filepath.Join(home, ".warden", "warden.db"),
		SweepIntervalSec: 30,
		LeaseTTLSec:      900,
		EventLimit:       50,
	}
}

// SweepInterval returns the sweep interval as a duration.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSec) * time.Second
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults, not an error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFromHome loads configuration from ~/.warden/config.yaml.
func LoadFromHome() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultConfig(), nil
	}
	return Load(filepath.Join(home, ".warden", "config.yaml"))
}

// Save writes configuration to a YAML file, creating parent directories
// if needed.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("db_path cannot be empty")
	}
	if c.SweepIntervalSec < 1 {
		return fmt.Errorf("sweep_interval_sec must be at least 1")
	}
	if c.LeaseTTLSec < 1 {
		return fmt.Errorf("lease_ttl_sec must be at least 1")
	}
	if c.EventLimit < 1 {
		return fmt.Errorf("event_limit must be at least 1")
	}
	return nil
}
