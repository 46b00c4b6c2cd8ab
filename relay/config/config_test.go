package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config should be valid: %v", err)
	}
	if cfg.Retain() {
		t.Error("Expected local relay to drop snapshots with their room")
	}
	if time.Duration(cfg.BridgeTimeout) != 5*time.Second {
		t.Errorf("Expected 5s bridge timeout, got %v", time.Duration(cfg.BridgeTimeout))
	}
	if time.Duration(cfg.ReapInterval) != 30*time.Second {
		t.Errorf("Expected 30s reap interval, got %v", time.Duration(cfg.ReapInterval))
	}
	if cfg.Addr() != "0.0.0.0:8080" {
		t.Errorf("Unexpected address %s", cfg.Addr())
	}
}

func TestRetain(t *testing.T) {
	cfg := Default()
	cfg.Mode = ModeCloud
	if !cfg.Retain() {
		t.Error("Expected cloud relay to retain snapshots")
	}

	off := false
	cfg.RetainSnapshots = &off
	if cfg.Retain() {
		t.Error("Expected explicit setting to win over mode")
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("overlay", func(t *testing.T) {
		path := filepath.Join(dir, "relay.json")
		content := `{"mode":"CLOUD","port":"9000","bridge_timeout":"2s","reap_interval":15000,"retain_snapshots":false}`
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}

		cfg := Default()
		if err := cfg.LoadFile(path); err != nil {
			t.Fatalf("Failed to load config: %v", err)
		}
		if err := cfg.Validate(); err != nil {
			t.Fatalf("Loaded config should be valid: %v", err)
		}
		if cfg.Mode != ModeCloud {
			t.Errorf("Expected normalized cloud mode, got %s", cfg.Mode)
		}
		if cfg.Port != "9000" {
			t.Errorf("Expected port 9000, got %s", cfg.Port)
		}
		if time.Duration(cfg.BridgeTimeout) != 2*time.Second {
			t.Errorf("Expected 2s, got %v", time.Duration(cfg.BridgeTimeout))
		}
		if time.Duration(cfg.ReapInterval) != 15*time.Second {
			t.Errorf("Expected 15s, got %v", time.Duration(cfg.ReapInterval))
		}
		if cfg.Retain() {
			t.Error("Expected retain_snapshots=false to be honoured")
		}
		if !cfg.BridgeEnabled {
			t.Error("Expected defaults to survive the overlay")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		err := Default().LoadFile(filepath.Join(dir, "nope.json"))
		if !errors.Is(err, ErrConfigNotFound) {
			t.Errorf("Expected ErrConfigNotFound, got %v", err)
		}
	})

	t.Run("bad json", func(t *testing.T) {
		path := filepath.Join(dir, "bad.json")
		os.WriteFile(path, []byte(`{"mode":`), 0644)
		if err := Default().LoadFile(path); err == nil {
			t.Error("Expected parse error")
		}
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"bad mode", func(c *Config) { c.Mode = "mesh" }},
		{"no port", func(c *Config) { c.Port = "" }},
		{"zero timeout", func(c *Config) { c.BridgeTimeout = 0 }},
		{"zero reap", func(c *Config) { c.ReapInterval = 0 }},
		{"zero message size", func(c *Config) { c.MaxMessageSize = 0 }},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("DEBUG")
	if err != nil || level != slog.LevelDebug {
		t.Errorf("Expected debug level, got %v (%v)", level, err)
	}
}
