package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imetype/internal/logging"
)

// clearEnv removes every variable ApplyEnvOverrides reads and points
// XDG_RUNTIME_DIR at a fresh directory.
func clearEnv(t *testing.T) string {
	t.Helper()
	for _, k := range []string{
		"GAMESCOPE_WAYLAND_DISPLAY",
		"IMETYPE_LOG_LEVEL",
		"IMETYPE_LOG_PATH",
		"IMETYPE_DBUS",
	} {
		t.Setenv(k, "")
	}
	dir := t.TempDir()
	t.Setenv("XDG_RUNTIME_DIR", dir)
	return dir
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, Version, cfg.Version)
	assert.Equal(t, "gamescope-0", cfg.Wayland.Display)
	assert.Equal(t, uint32(2), cfg.Wayland.ManagerVersion)
	assert.True(t, cfg.Input.RawMode)
	assert.False(t, cfg.DBus.Enabled)
	assert.Equal(t, DefaultBusName, cfg.DBus.BusName)
	assert.True(t, strings.HasSuffix(cfg.Logging.FilePath, "imetype.log"))
}

func TestConfigPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/cfg")
	assert.Equal(t, "/cfg/imetype/config.toml", ConfigPath())
}

func TestFindConfigFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", home)

	assert.Equal(t, ConfigPath(), FindConfigFile())

	dir := filepath.Join(home, "imetype")
	require.NoError(t, os.MkdirAll(dir, 0700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), nil, 0600))
	assert.Equal(t, filepath.Join(dir, "config.yaml"), FindConfigFile())
}

func TestLoadMissingFile(t *testing.T) {
	runtimeDir := clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)

	want := DefaultConfig()
	want.Wayland.RuntimeDir = runtimeDir
	assert.Equal(t, want, cfg)
}

func TestLoadFormats(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"toml", "config.toml", `
[wayland]
display = "gamescope-1"
manager_version = 1

[logging]
level = "debug"
output = "stderr"
`},
		{"json", "config.json", `{
  "wayland": {"display": "gamescope-1", "manager_version": 1},
  "logging": {"level": "debug", "output": "stderr"}
}`},
		{"yaml", "config.yaml", `
wayland:
  display: gamescope-1
  manager_version: 1
logging:
  level: debug
  output: stderr
`},
		{"autodetect toml", "imetype.conf", `
[wayland]
display = "gamescope-1"
manager_version = 1
[logging]
level = "debug"
output = "stderr"
`},
		{"autodetect json", "imetype.conf", `{"wayland": {"display": "gamescope-1", "manager_version": 1}, "logging": {"level": "debug", "output": "stderr"}}`},
		{"autodetect yaml", "imetype.conf", "wayland:\n  display: gamescope-1\n  manager_version: 1\nlogging:\n  level: debug\n  output: stderr\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			cfg, err := Load(writeFile(t, tt.file, tt.content))
			require.NoError(t, err)

			assert.Equal(t, "gamescope-1", cfg.Wayland.Display)
			assert.Equal(t, uint32(1), cfg.Wayland.ManagerVersion)
			assert.Equal(t, "debug", cfg.Logging.Level)
			assert.Equal(t, "stderr", cfg.Logging.Output)
			// untouched keys keep their defaults
			assert.True(t, cfg.Input.RawMode)
			assert.Equal(t, "text", cfg.Logging.Format)
		})
	}
}

func TestLoadSchemaRejects(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"unknown top-level key", "config.toml", "colour = \"red\"\n"},
		{"unknown nested key", "config.json", `{"wayland": {"socket": "x"}}`},
		{"wrong type", "config.yaml", "input:\n  raw_mode: sometimes\n"},
		{"string for integer", "config.toml", "[wayland]\nmanager_version = \"2\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			_, err := Load(writeFile(t, tt.file, tt.content))
			require.Error(t, err)

			var verr *jsonschema.ValidationError
			assert.True(t, errors.As(err, &verr), "got %v", err)
		})
	}
}

func TestLoadSyntaxError(t *testing.T) {
	clearEnv(t)

	_, err := Load(writeFile(t, "config.toml", "[wayland\n"))
	assert.ErrorContains(t, err, "decode TOML")

	_, err = Load(writeFile(t, "config", "{{{ not: [ any format"))
	assert.ErrorContains(t, err, "unable to parse")
}

func TestLoadValidationFailure(t *testing.T) {
	clearEnv(t)

	_, err := Load(writeFile(t, "config.toml", "[wayland]\nmanager_version = 9\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))
	require.Len(t, verrs, 1)
	assert.Equal(t, "wayland.manager_version", verrs[0].Field)
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("GAMESCOPE_WAYLAND_DISPLAY", "/run/gs.sock")
	t.Setenv("IMETYPE_LOG_LEVEL", "warn")
	t.Setenv("IMETYPE_LOG_PATH", "/tmp/x.log")
	t.Setenv("IMETYPE_DBUS", "true")

	cfg, err := Load(writeFile(t, "config.toml", "[wayland]\ndisplay = \"gamescope-3\"\n"))
	require.NoError(t, err)

	assert.Equal(t, "/run/gs.sock", cfg.Wayland.Display)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "/tmp/x.log", cfg.Logging.FilePath)
	assert.True(t, cfg.DBus.Enabled)
}

func TestEnvRuntimeDirDoesNotOverrideFile(t *testing.T) {
	clearEnv(t)
	own := t.TempDir()

	cfg, err := Load(writeFile(t, "config.toml", "[wayland]\nruntime_dir = \""+own+"\"\n"))
	require.NoError(t, err)
	assert.Equal(t, own, cfg.Wayland.RuntimeDir)
}

func TestEnvBadBoolIgnored(t *testing.T) {
	clearEnv(t)
	t.Setenv("IMETYPE_DBUS", "maybe")

	cfg := DefaultConfig()
	cfg.ApplyEnvOverrides()
	assert.False(t, cfg.DBus.Enabled)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{"bad version", func(c *Config) { c.Version = 0 }, "version"},
		{"future version", func(c *Config) { c.Version = Version + 1 }, "version"},
		{"empty display", func(c *Config) { c.Wayland.Display = "" }, "wayland.display"},
		{"relative path display", func(c *Config) { c.Wayland.Display = "run/gs" }, "wayland.display"},
		{"manager version zero", func(c *Config) { c.Wayland.ManagerVersion = 0 }, "wayland.manager_version"},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"bad output", func(c *Config) { c.Logging.Output = "syslog" }, "logging.output"},
		{"empty output", func(c *Config) { c.Logging.Output = "" }, "logging.output"},
		{"file without path", func(c *Config) { c.Logging.FilePath = "" }, "logging.file_path"},
		{"negative backups", func(c *Config) { c.Logging.MaxBackups = -1 }, "logging.max_backups"},
		{"negative size", func(c *Config) { c.Logging.MaxSizeMB = -1 }, "logging.max_size_mb"},
		{"negative age", func(c *Config) { c.Logging.MaxAgeDays = -1 }, "logging.max_age_days"},
		{"bad bus name", func(c *Config) { c.DBus.BusName = "nodots" }, "dbus.bus_name"},
		{"bad object path", func(c *Config) { c.DBus.ObjectPath = "/trailing/" }, "dbus.object_path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Wayland.RuntimeDir = t.TempDir()
			tt.modify(cfg)

			err := ValidateConfig(cfg)
			require.Error(t, err)

			var verrs ValidationErrors
			require.True(t, errors.As(err, &verrs))
			var fields []string
			for _, e := range verrs.Errors() {
				fields = append(fields, e.Field)
			}
			assert.Contains(t, fields, tt.field)
		})
	}
}

func TestValidateWarnings(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Wayland.RuntimeDir = filepath.Join(t.TempDir(), "missing")

	assert.NoError(t, ValidateConfig(cfg))

	warnings := Check(cfg).Warnings()
	require.Len(t, warnings, 1)
	assert.Equal(t, "wayland.runtime_dir", warnings[0].Field)

	cfg.Wayland.RuntimeDir = ""
	assert.NoError(t, ValidateConfig(cfg))
	assert.Len(t, Check(cfg).Warnings(), 1)

	// absolute displays need no runtime directory
	cfg.Wayland.Display = "/run/gamescope-0"
	assert.Empty(t, Check(cfg))
}

func TestLoggerConfig(t *testing.T) {
	l := DefaultConfig().Logging
	l.Level = "debug"
	l.Format = "json"
	l.Output = "both"
	l.MaxSizeMB = 5

	cfg, err := l.LoggerConfig()
	require.NoError(t, err)
	assert.Equal(t, logging.LevelDebug, cfg.Level)
	assert.Equal(t, logging.FormatJSON, cfg.Format)
	assert.Equal(t, "both", cfg.Output)
	assert.Equal(t, int64(5), cfg.MaxSize)
	assert.Equal(t, l.FilePath, cfg.FilePath)

	l.Level = "loud"
	_, err = l.LoggerConfig()
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	for _, name := range []string{"config.toml", "config.json", "config.yaml"} {
		t.Run(name, func(t *testing.T) {
			runtimeDir := clearEnv(t)

			cfg := DefaultConfig()
			cfg.Wayland.Display = "gamescope-7"
			cfg.Wayland.RuntimeDir = runtimeDir
			cfg.DBus.Enabled = true
			cfg.Logging.Compress = false

			path := filepath.Join(t.TempDir(), "sub", name)
			require.NoError(t, Save(cfg, path))

			got, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, cfg, got)
		})
	}
}

func TestSchemaCompiles(t *testing.T) {
	sch, err := Schema()
	require.NoError(t, err)
	require.NotNil(t, sch)

	assert.NoError(t, validateDocument(map[string]any{}))
	assert.NoError(t, validateDocument(map[string]any{
		"version": int64(1),
		"dbus":    map[string]any{"enabled": true},
	}))
}
