package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"imetype/internal/wayland"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Is reports ErrInvalidConfig so callers can match any validation failure.
func (e ValidationErrors) Is(target error) bool {
	return target == ErrInvalidConfig
}

// ErrInvalidConfig is returned when validation fails.
var ErrInvalidConfig = errors.New("invalid configuration")

// ValidateConfig validates c. Warning-level issues alone do not fail it.
func ValidateConfig(c *Config) error {
	errs := Check(c)
	if errs.HasErrors() {
		return errs
	}
	return nil
}

// Check returns every validation issue in c, warnings included.
func Check(c *Config) ValidationErrors {
	var errs ValidationErrors

	if c.Version < 1 || c.Version > Version {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (current: %d)", c.Version, Version),
		})
	}

	errs = append(errs, validateWayland(&c.Wayland)...)
	errs = append(errs, validateLogging(&c.Logging)...)
	errs = append(errs, validateDBus(&c.DBus)...)
	return errs
}

func validateWayland(w *WaylandConfig) ValidationErrors {
	var errs ValidationErrors

	switch {
	case w.Display == "":
		errs = append(errs, *RequiredFieldError("wayland.display"))
	case !filepath.IsAbs(w.Display) && strings.ContainsRune(w.Display, '/'):
		errs = append(errs, ValidationError{
			Field:   "wayland.display",
			Message: "must be a socket name or an absolute path",
		})
	case !filepath.IsAbs(w.Display) && w.RuntimeDir == "":
		errs = append(errs, ValidationError{
			Field:   "wayland.runtime_dir",
			Message: "required for a relative display (XDG_RUNTIME_DIR is not set)",
		})
	}

	if w.RuntimeDir != "" {
		if info, err := os.Stat(w.RuntimeDir); err != nil || !info.IsDir() {
			errs = append(errs, ValidationError{
				Field:   "wayland.runtime_dir",
				Message: fmt.Sprintf("%s is not a directory", w.RuntimeDir),
			})
		}
	}

	if w.ManagerVersion < 1 || w.ManagerVersion > wayland.DefaultManagerVersion {
		errs = append(errs, *RangeError("wayland.manager_version", 1, wayland.DefaultManagerVersion))
	}

	return errs
}

func validateLogging(l *LoggingConfig) ValidationErrors {
	var errs ValidationErrors

	switch l.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid log level: %s (valid: debug, info, warn, error)", l.Level),
		})
	}

	switch l.Format {
	case "text", "json":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid log format: %s (valid: text, json)", l.Format),
		})
	}

	switch l.Output {
	case "stdout", "stderr":
	case "file", "both":
		if l.FilePath == "" {
			errs = append(errs, ValidationError{
				Field:   "logging.file_path",
				Message: fmt.Sprintf("file path is required when output is '%s'", l.Output),
			})
		}
	case "":
		errs = append(errs, *RequiredFieldError("logging.output"))
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.output",
			Message: fmt.Sprintf("invalid log output: %s (valid: stdout, stderr, file, both)", l.Output),
		})
	}

	if l.MaxSizeMB < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_size_mb",
			Message: "max size cannot be negative (0 disables size rotation)",
		})
	}
	if l.MaxBackups < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_backups",
			Message: "max backups cannot be negative",
		})
	}
	if l.MaxAgeDays < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_age_days",
			Message: "max age cannot be negative",
		})
	}

	return errs
}

var (
	busNameRe    = regexp.MustCompile(`^[A-Za-z_-][A-Za-z0-9_-]*(\.[A-Za-z_-][A-Za-z0-9_-]*)+$`)
	objectPathRe = regexp.MustCompile(`^(/|(/[A-Za-z0-9_]+)+)$`)
)

func validateDBus(d *DBusConfig) ValidationErrors {
	var errs ValidationErrors

	if len(d.BusName) > 255 || !busNameRe.MatchString(d.BusName) {
		errs = append(errs, ValidationError{
			Field:   "dbus.bus_name",
			Message: fmt.Sprintf("invalid bus name: %q", d.BusName),
		})
	}
	if !objectPathRe.MatchString(d.ObjectPath) {
		errs = append(errs, ValidationError{
			Field:   "dbus.object_path",
			Message: fmt.Sprintf("invalid object path: %q", d.ObjectPath),
		})
	}

	return errs
}

// IsWarning returns true if this is a non-fatal validation issue.
func (e *ValidationError) IsWarning() bool {
	// The runtime directory may not exist until the compositor starts.
	warningFields := []string{
		"wayland.runtime_dir",
	}
	for _, f := range warningFields {
		if strings.HasPrefix(e.Field, f) {
			return true
		}
	}
	return false
}

// Warnings returns only warning-level validation errors.
func (e ValidationErrors) Warnings() ValidationErrors {
	var warnings ValidationErrors
	for _, err := range e {
		if err.IsWarning() {
			warnings = append(warnings, err)
		}
	}
	return warnings
}

// Errors returns only error-level validation errors.
func (e ValidationErrors) Errors() ValidationErrors {
	var errs ValidationErrors
	for _, err := range e {
		if !err.IsWarning() {
			errs = append(errs, err)
		}
	}
	return errs
}

// HasErrors returns true if there are any non-warning errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e.Errors()) > 0
}

// RequiredFieldError creates a validation error for a required field.
func RequiredFieldError(field string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: "required field is missing",
	}
}

// RangeError creates a validation error for an out-of-range value.
func RangeError(field string, min, max any) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: fmt.Sprintf("value must be between %v and %v", min, max),
	}
}
