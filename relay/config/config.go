package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
)

var (
	ErrConfigNotFound = errors.New("configuration not found")
	ErrInvalidConfig  = errors.New("invalid configuration")
)

// Relay modes
const (
	ModeLocal = "local"
	ModeCloud = "cloud"
)

// Duration is a time.Duration that reads "5s" style strings from JSON
type Duration time.Duration

// UnmarshalJSON implements json.Unmarshaler
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return err
		}
		*d = Duration(parsed)
		return nil
	}
	var ms int64
	if err := json.Unmarshal(data, &ms); err != nil {
		return fmt.Errorf("duration must be a string like \"5s\" or milliseconds: %w", err)
	}
	*d = Duration(time.Duration(ms) * time.Millisecond)
	return nil
}

// MarshalJSON implements json.Marshaler
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Config holds every tunable of the relay
type Config struct {
	Mode            string   `json:"mode"`
	Host            string   `json:"host"`
	Port            string   `json:"port"`
	RetainSnapshots *bool    `json:"retain_snapshots,omitempty"`
	BridgeEnabled   bool     `json:"bridge_enabled"`
	BridgeTimeout   Duration `json:"bridge_timeout"`
	ReapInterval    Duration `json:"reap_interval"`
	MaxMessageSize  int64    `json:"max_message_size"`
	AllowedOrigins  []string `json:"allowed_origins"`
	LogLevel        string   `json:"log_level"`
	Ngrok           Ngrok    `json:"ngrok"`
}

// Ngrok configures the optional public tunnel
type Ngrok struct {
	Enabled   bool   `json:"enabled"`
	AuthToken string `json:"auth_token,omitempty"`
	Domain    string `json:"domain,omitempty"`
}

// Default returns the configuration of a local-network relay
func Default() *Config {
	return &Config{
		Mode:           ModeLocal,
		Host:           "0.0.0.0",
		Port:           "8080",
		BridgeEnabled:  true,
		BridgeTimeout:  Duration(5 * time.Second),
		ReapInterval:   Duration(30 * time.Second),
		MaxMessageSize: 1 << 20,
		AllowedOrigins: []string{"*"},
		LogLevel:       "info",
	}
}

// LoadFile overlays the JSON file at path onto c
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

// Validate checks the configuration and normalizes its enums
func (c *Config) Validate() error {
	c.Mode = strings.ToLower(strings.TrimSpace(c.Mode))
	if c.Mode != ModeLocal && c.Mode != ModeCloud {
		return fmt.Errorf("%w: mode must be %q or %q, got %q", ErrInvalidConfig, ModeLocal, ModeCloud, c.Mode)
	}
	if c.Port == "" {
		return fmt.Errorf("%w: port is required", ErrInvalidConfig)
	}
	if c.BridgeTimeout <= 0 {
		return fmt.Errorf("%w: bridge_timeout must be positive", ErrInvalidConfig)
	}
	if c.ReapInterval <= 0 {
		return fmt.Errorf("%w: reap_interval must be positive", ErrInvalidConfig)
	}
	if c.MaxMessageSize <= 0 {
		return fmt.Errorf("%w: max_message_size must be positive", ErrInvalidConfig)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Addr returns the listen address
func (c *Config) Addr() string {
	return c.Host + ":" + c.Port
}

// Retain reports whether snapshots outlive their room.
// Unless set explicitly, cloud relays retain and local relays do not.
func (c *Config) Retain() bool {
	if c.RetainSnapshots != nil {
		return *c.RetainSnapshots
	}
	return c.Mode == ModeCloud
}

// TrustForwardedFor reports whether X-Forwarded-For identifies the client
func (c *Config) TrustForwardedFor() bool {
	return c.Mode == ModeCloud
}

// ParseLevel maps a level name onto a slog.Level
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
}
