// Package config handles configuration loading and validation for imetype.
//
// Configuration is read from TOML, JSON or YAML. The raw document is
// checked against an embedded JSON schema before it is decoded, then
// environment overrides are applied and the result is validated.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"imetype/internal/logging"
)

// Version is the current configuration format version.
const Version = 1

// Config is the complete imetype configuration.
type Config struct {
	// Version is the configuration format version.
	Version int `toml:"version" json:"version" yaml:"version"`

	Wayland WaylandConfig `toml:"wayland" json:"wayland" yaml:"wayland"`
	Input   InputConfig   `toml:"input" json:"input" yaml:"input"`
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`
	DBus    DBusConfig    `toml:"dbus" json:"dbus" yaml:"dbus"`
}

// WaylandConfig selects the compositor socket.
type WaylandConfig struct {
	// Display is the socket name inside RuntimeDir, or an absolute path.
	Display string `toml:"display" json:"display" yaml:"display"`

	// RuntimeDir overrides $XDG_RUNTIME_DIR.
	RuntimeDir string `toml:"runtime_dir" json:"runtime_dir" yaml:"runtime_dir"`

	// ManagerVersion caps the input-method manager version that is bound.
	ManagerVersion uint32 `toml:"manager_version" json:"manager_version" yaml:"manager_version"`
}

// InputConfig controls how the terminal is read.
type InputConfig struct {
	// RawMode turns off echo and line buffering while reading. It has no
	// effect when stdin is not a terminal.
	RawMode bool `toml:"raw_mode" json:"raw_mode" yaml:"raw_mode"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string `toml:"level" json:"level" yaml:"level"`
	Format     string `toml:"format" json:"format" yaml:"format"`
	Output     string `toml:"output" json:"output" yaml:"output"`
	FilePath   string `toml:"file_path" json:"file_path" yaml:"file_path"`
	MaxSizeMB  int    `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" json:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" json:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `toml:"compress" json:"compress" yaml:"compress"`
}

// DBusConfig configures the session-bus status service.
type DBusConfig struct {
	Enabled    bool   `toml:"enabled" json:"enabled" yaml:"enabled"`
	BusName    string `toml:"bus_name" json:"bus_name" yaml:"bus_name"`
	ObjectPath string `toml:"object_path" json:"object_path" yaml:"object_path"`
}

// Defaults for the status service.
const (
	DefaultBusName    = "io.github.imetype"
	DefaultObjectPath = "/io/github/imetype"
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: Version,
		Wayland: WaylandConfig{
			Display:        "gamescope-0",
			ManagerVersion: 2,
		},
		Input: InputConfig{
			RawMode: true,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "file",
			FilePath:   logging.DefaultLogPath(),
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 14,
			Compress:   true,
		},
		DBus: DBusConfig{
			Enabled:    false,
			BusName:    DefaultBusName,
			ObjectPath: DefaultObjectPath,
		},
	}
}

// Load reads configuration from the specified path.
// If the file doesn't exist, returns default configuration.
// Supports TOML, JSON, and YAML formats based on file extension.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg, err := loadConfigFromFile(path)
	if err != nil {
		return nil, err
	}

	cfg.ApplyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	return ValidateConfig(c)
}

// ApplyEnvOverrides applies environment variable overrides to the configuration.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("GAMESCOPE_WAYLAND_DISPLAY"); v != "" {
		c.Wayland.Display = v
	}
	if v := os.Getenv("XDG_RUNTIME_DIR"); v != "" && c.Wayland.RuntimeDir == "" {
		c.Wayland.RuntimeDir = v
	}

	if v := os.Getenv("IMETYPE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("IMETYPE_LOG_PATH"); v != "" {
		c.Logging.FilePath = v
	}

	// Unparseable values are ignored.
	if v := os.Getenv("IMETYPE_DBUS"); v != "" {
		if on, err := strconv.ParseBool(v); err == nil {
			c.DBus.Enabled = on
		}
	}
}

// LoggerConfig converts the logging section for logging.New.
func (l LoggingConfig) LoggerConfig() (*logging.Config, error) {
	level, err := logging.ParseLevel(l.Level)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(l.Format)
	if err != nil {
		return nil, err
	}

	cfg := logging.DefaultConfig()
	cfg.Level = level
	cfg.Format = format
	cfg.Output = l.Output
	cfg.FilePath = l.FilePath
	cfg.MaxSize = int64(l.MaxSizeMB)
	cfg.MaxBackups = l.MaxBackups
	cfg.MaxAge = l.MaxAgeDays
	cfg.Compress = l.Compress
	return cfg, nil
}

// Save writes cfg to path in the format implied by its extension,
// defaulting to TOML.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	var data []byte
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		b, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return fmt.Errorf("encode JSON: %w", err)
		}
		data = b
	case ".yaml", ".yml":
		b, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("encode YAML: %w", err)
		}
		data = b
	default:
		var sb strings.Builder
		if err := toml.NewEncoder(&sb).Encode(cfg); err != nil {
			return fmt.Errorf("encode TOML: %w", err)
		}
		data = []byte(sb.String())
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
