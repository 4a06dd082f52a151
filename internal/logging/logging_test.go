package logging

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
		hasError bool
	}{
		{"debug", LevelDebug, false},
		{"DEBUG", LevelDebug, false},
		{"info", LevelInfo, false},
		{"warn", LevelWarn, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"invalid", LevelInfo, true},
		{"", LevelInfo, true},
	}

	for _, test := range tests {
		t.Run(test.input, func(t *testing.T) {
			level, err := ParseLevel(test.input)
			if test.hasError && err == nil {
				t.Error("expected error, got nil")
			}
			if !test.hasError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !test.hasError && level != test.expected {
				t.Errorf("expected %v, got %v", test.expected, level)
			}
		})
	}
}

func TestLevelString(t *testing.T) {
	for _, level := range []Level{LevelDebug, LevelInfo, LevelWarn, LevelError} {
		parsed, err := ParseLevel(LevelString(level))
		if err != nil {
			t.Fatalf("ParseLevel(LevelString(%v)): %v", level, err)
		}
		if parsed != level {
			t.Errorf("round trip of %v gave %v", level, parsed)
		}
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat("json"); err != nil || f != FormatJSON {
		t.Errorf("ParseFormat(json) = %v, %v", f, err)
	}
	if f, err := ParseFormat(""); err != nil || f != FormatText {
		t.Errorf("ParseFormat(\"\") = %v, %v", f, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("expected error for xml")
	}
}

func TestDefaultConfig(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", "/state")
	cfg := DefaultConfig()

	if cfg.Level != LevelInfo {
		t.Errorf("expected default level Info, got %v", cfg.Level)
	}
	if cfg.Output != "stderr" {
		t.Errorf("expected default output stderr, got %s", cfg.Output)
	}
	if cfg.FilePath != "/state/imetype/imetype.log" {
		t.Errorf("unexpected default log path %s", cfg.FilePath)
	}
	if cfg.Component != "imetype" {
		t.Errorf("unexpected component %s", cfg.Component)
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer

	logger, err := New(&Config{
		Level:     LevelInfo,
		Format:    FormatJSON,
		Writer:    &buf,
		Component: "test",
	})
	if err != nil {
		t.Fatalf("failed to create JSON logger: %v", err)
	}
	defer logger.Close()

	logger.Info("applied", "kind", "submit", "serial", 7)

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v: %q", err, buf.String())
	}
	if entry["msg"] != "applied" || entry["kind"] != "submit" || entry["component"] != "test" {
		t.Errorf("unexpected entry: %v", entry)
	}
}

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer

	logger, err := New(&Config{Level: LevelInfo, Writer: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	child := logger.WithComponent("ime")

	child.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug line written at info level: %q", buf.String())
	}

	logger.SetLevel(LevelDebug)
	child.Debug("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("debug line missing after SetLevel: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "component=ime") {
		t.Errorf("component attribute missing: %q", buf.String())
	}
	if child.Level() != LevelDebug {
		t.Errorf("child level = %v", child.Level())
	}
}

func TestShouldRedact(t *testing.T) {
	tests := []struct {
		key      string
		expected bool
	}{
		{"password", true},
		{"api_key", true},
		{"auth_token", true},
		{"private", true},
		{"serial", false},
		{"kind", false},
		{"session", false},
		{"display", false},
	}

	for _, test := range tests {
		t.Run(test.key, func(t *testing.T) {
			if got := shouldRedact(test.key); got != test.expected {
				t.Errorf("shouldRedact(%q) = %v, expected %v", test.key, got, test.expected)
			}
		})
	}
}

func TestRedactionInOutput(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&Config{Level: LevelInfo, Writer: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	logger.Info("bus", "auth_token", "hunter2")
	if strings.Contains(buf.String(), "hunter2") {
		t.Errorf("secret leaked: %q", buf.String())
	}
}

func TestFileOutput(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "logs", "imetype.log")

	cfg := DefaultConfig()
	cfg.Output = "file"
	cfg.FilePath = logPath
	logger, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("hello file")
	if err := logger.Sync(); err != nil {
		t.Errorf("sync failed: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("close failed: %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "hello file") {
		t.Errorf("log file missing line: %q", data)
	}
}

func TestFileRotatorRotatesBySize(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")

	rotator, err := NewFileRotator(&Config{
		FilePath:   logPath,
		MaxSize:    1, // 1 MB
		MaxAge:     7,
		MaxBackups: 10,
		Compress:   false,
	})
	if err != nil {
		t.Fatalf("failed to create rotator: %v", err)
	}

	// Distinct timestamps for the rotated names.
	tick := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rotator.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}

	chunk := bytes.Repeat([]byte("x"), 600*1024)
	for i := 0; i < 3; i++ {
		if _, err := rotator.Write(chunk); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
		rotator.wg.Wait()
	}
	if err := rotator.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	rotated, err := rotator.RotatedFiles()
	if err != nil {
		t.Fatalf("RotatedFiles: %v", err)
	}
	if len(rotated) != 2 {
		t.Errorf("expected 2 rotated files, got %v", rotated)
	}

	info, err := os.Stat(logPath)
	if err != nil {
		t.Fatalf("stat current log: %v", err)
	}
	if info.Size() != int64(len(chunk)) {
		t.Errorf("current log size = %d", info.Size())
	}
}

func TestFileRotatorCompressesAndPrunes(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")

	rotator, err := NewFileRotator(&Config{
		FilePath:   logPath,
		MaxSize:    1,
		MaxBackups: 1,
		Compress:   true,
	})
	if err != nil {
		t.Fatalf("failed to create rotator: %v", err)
	}

	// Each write lands on a new day.
	day := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rotator.now = func() time.Time { return day }
	rotator.openedAt = day

	for i := 0; i < 3; i++ {
		if _, err := rotator.Write([]byte("line\n")); err != nil {
			t.Fatalf("write: %v", err)
		}
		rotator.wg.Wait()
		day = day.AddDate(0, 0, 1)
	}
	if err := rotator.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	rotated, err := rotator.RotatedFiles()
	if err != nil {
		t.Fatalf("RotatedFiles: %v", err)
	}
	if len(rotated) != 1 {
		t.Fatalf("expected 1 rotated file after pruning, got %v", rotated)
	}
	if !strings.HasSuffix(rotated[0], ".gz") {
		t.Errorf("rotated file not compressed: %s", rotated[0])
	}
}

func TestCrashHandler(t *testing.T) {
	tmpDir := t.TempDir()

	var hooked []string
	handler := NewCrashHandler(&CrashHandlerConfig{
		CrashDir:  tmpDir,
		Version:   "1.0.0",
		Component: "test",
		OnCrash: func(r CrashReport) {
			hooked = append(hooked, r.PanicValue)
		},
	})
	handler.stderr = io.Discard

	ran := false
	panicked := handler.Recover(map[string]interface{}{"serial": 3}, func() {
		ran = true
		panic("intentional test panic")
	})
	if !ran || !panicked {
		t.Fatalf("ran=%v panicked=%v", ran, panicked)
	}
	if len(hooked) != 1 || hooked[0] != "intentional test panic" {
		t.Errorf("OnCrash not called as expected: %v", hooked)
	}

	reports, err := handler.CrashReports()
	if err != nil {
		t.Fatalf("failed to get crash reports: %v", err)
	}
	if len(reports) != 1 {
		t.Fatalf("expected 1 crash report, got %d", len(reports))
	}
	report := reports[0]
	if report.Version != "1.0.0" || report.Component != "test" {
		t.Errorf("unexpected report header: %+v", report)
	}
	if report.Context["serial"] != float64(3) {
		t.Errorf("context not recorded: %v", report.Context)
	}

	if handler.Recover(nil, func() {}) {
		t.Error("Recover reported a panic for a clean run")
	}
}

func TestCrashHandlerCleanupOld(t *testing.T) {
	tmpDir := t.TempDir()
	handler := NewCrashHandler(&CrashHandlerConfig{CrashDir: tmpDir, Component: "test"})
	handler.stderr = io.Discard

	handler.HandlePanic("old", nil)
	reports, _ := handler.CrashReports()
	if len(reports) != 1 {
		t.Fatalf("expected 1 report, got %d", len(reports))
	}

	files, _ := filepath.Glob(filepath.Join(tmpDir, "crash-*.json"))
	past := time.Now().Add(-48 * time.Hour)
	for _, f := range files {
		if err := os.Chtimes(f, past, past); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}

	if err := handler.CleanupOldCrashReports(24 * time.Hour); err != nil {
		t.Fatalf("CleanupOldCrashReports failed: %v", err)
	}
	reports, _ = handler.CrashReports()
	if len(reports) != 0 {
		t.Errorf("expected old reports removed, %d left", len(reports))
	}
}
