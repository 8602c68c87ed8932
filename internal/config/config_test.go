package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.ListenAddr != "127.0.0.1:7521" {
		t.Errorf("Expected default listen addr, got %s", cfg.ListenAddr)
	}
	if cfg.DBPath == "" {
		t.Error("Expected a default db path")
	}
	if cfg.SweepInterval() != 30*time.Second {
		t.Errorf("Expected 30s sweep interval, got %v", cfg.SweepInterval())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected defaults to validate: %v", err)
	}
}

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ListenAddr != DefaultConfig().ListenAddr {
		t.Errorf("Expected defaults for a missing file, got %+v", cfg)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "warden", "config.yaml")

	cfg := DefaultConfig()
	cfg.ListenAddr = "127.0.0.1:9999"
	cfg.APIToken = "sekret"
	cfg.LeaseTTLSec = 120
	cfg.DefaultGates = []string{"has_tests", "has_artifacts:minCount=2"}

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.ListenAddr != "127.0.0.1:9999" || loaded.APIToken != "sekret" {
		t.Errorf("Expected config to round-trip, got %+v", loaded)
	}
	if loaded.LeaseTTLSec != 120 {
		t.Errorf("Expected lease ttl 120, got %d", loaded.LeaseTTLSec)
	}
	if len(loaded.DefaultGates) != 2 {
		t.Errorf("Expected default gates to round-trip, got %v", loaded.DefaultGates)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty listen addr", func(c *Config) { c.ListenAddr = "" }},
		{"empty db path", func(c *Config) { c.DBPath = "" }},
		{"zero sweep interval", func(c *Config) { c.SweepIntervalSec = 0 }},
		{"zero lease ttl", func(c *Config) { c.LeaseTTLSec = 0 }},
		{"zero event limit", func(c *Config) { c.EventLimit = 0 }},
	}

	for _, tc := range cases {
		cfg := DefaultConfig()
		tc.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation to fail", tc.name)
		}
	}
}

func TestSave_NilConfigRejected(t *testing.T) {
	if err := Save(filepath.Join(t.TempDir(), "c.yaml"), nil); err == nil {
		t.Error("Expected nil config to be rejected")
	}
}
