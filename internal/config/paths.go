package config

import (
	"os"
	"path/filepath"
)

// SupportedConfigFormats returns the recognised config file extensions.
func SupportedConfigFormats() []string {
	return []string{"toml", "json", "yaml", "yml"}
}

// ConfigDir returns $XDG_CONFIG_HOME/imetype, or ~/.config/imetype.
func ConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "imetype")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "imetype")
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// FindConfigFile searches the config directory for config.<ext> in the
// order of SupportedConfigFormats. It returns ConfigPath if none exists.
func FindConfigFile() string {
	dir := ConfigDir()
	for _, ext := range SupportedConfigFormats() {
		path := filepath.Join(dir, "config."+ext)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ConfigPath()
}
