package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Detector != DetectorEvent {
		t.Errorf("Detector = %q, want %q", cfg.Detector, DetectorEvent)
	}
	if cfg.PollIntervalMs != 100 {
		t.Errorf("PollIntervalMs = %d, want 100", cfg.PollIntervalMs)
	}
	if cfg.StatusPort != 0 {
		t.Errorf("StatusPort = %d, want 0", cfg.StatusPort)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error = %v, want nil for missing file", err)
	}
	if cfg.Detector != DetectorEvent || cfg.LogLevel != "info" {
		t.Fatalf("Load returned %+v, want defaults", cfg)
	}
}

func TestLoadSiblingFileDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error = %v", err)
	}
	if want := filepath.Join(dir, "workspaces.json"); cfg.WorkspaceFile != want {
		t.Errorf("WorkspaceFile = %q, want %q", cfg.WorkspaceFile, want)
	}
	if want := filepath.Join(dir, "history.db"); cfg.HistoryFile != want {
		t.Errorf("HistoryFile = %q, want %q", cfg.HistoryFile, want)
	}
}

func TestLoadParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := strings.Join([]string{
		"detector: polling",
		"poll_interval_ms: 50",
		"status_port: 8123",
		"history_file: off",
		"log_level: debug",
	}, "\n")
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("WriteFile error = %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error = %v", err)
	}
	if cfg.Detector != DetectorPolling {
		t.Errorf("Detector = %q, want polling", cfg.Detector)
	}
	if cfg.PollIntervalMs != 50 {
		t.Errorf("PollIntervalMs = %d, want 50", cfg.PollIntervalMs)
	}
	if cfg.StatusPort != 8123 {
		t.Errorf("StatusPort = %d, want 8123", cfg.StatusPort)
	}
	if cfg.HistoryEnabled() {
		t.Error("HistoryEnabled() = true with history_file: off")
	}
	if cfg.SlogLevel() != slog.LevelDebug {
		t.Errorf("SlogLevel() = %v, want debug", cfg.SlogLevel())
	}
}

func TestLoadUnparsableFileReturnsDefaultsWithError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("detector: [unclosed"), 0o600); err != nil {
		t.Fatalf("WriteFile error = %v", err)
	}

	cfg, err := Load(path)
	if err == nil {
		t.Fatal("Load of unparsable file returned nil error")
	}
	if cfg.Detector != DetectorEvent || cfg.LogLevel != "info" {
		t.Fatalf("Load returned %+v, want defaults despite the error", cfg)
	}
}

func TestLoadRejectsUnknownDetector(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("detector: hybrid\n"), 0o600); err != nil {
		t.Fatalf("WriteFile error = %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("Load accepted unknown detector, want error")
	}
}

func TestLoadNormalizesDetectorCase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("detector: Polling\n"), 0o600); err != nil {
		t.Fatalf("WriteFile error = %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error = %v", err)
	}
	if cfg.Detector != DetectorPolling {
		t.Fatalf("Detector = %q, want %q", cfg.Detector, DetectorPolling)
	}
}

func TestLoadUnknownLogLevelFallsBackToInfo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("log_level: verbose\n"), 0o600); err != nil {
		t.Fatalf("WriteFile error = %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error = %v; unknown log level must not fail startup", err)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("LogLevel = %q, want info fallback", cfg.LogLevel)
	}
}

func TestLoadClampsInvalidStatusPort(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"status_port: 70000", 0},
		{"status_port: -5", 0},
		{"status_port: -1", -1}, // -1 is the documented "disabled" value
	}
	for _, tt := range tests {
		path := filepath.Join(t.TempDir(), "config.yaml")
		if err := os.WriteFile(path, []byte(tt.raw), 0o600); err != nil {
			t.Fatalf("WriteFile error = %v", err)
		}
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load(%q) error = %v", tt.raw, err)
		}
		if cfg.StatusPort != tt.want {
			t.Errorf("Load(%q).StatusPort = %d, want %d", tt.raw, cfg.StatusPort, tt.want)
		}
	}
}

func TestStreamEnabled(t *testing.T) {
	cfg := DefaultConfig()
	if !cfg.StreamEnabled() {
		t.Error("StreamEnabled() = false for port 0 (auto-assign)")
	}
	cfg.StatusPort = -1
	if cfg.StreamEnabled() {
		t.Error("StreamEnabled() = true for port -1")
	}
}

func TestEnsureFileWritesDefaults(t *testing.T) {
	dir := t.TempDir()
	defaultConfigDirFn = func() (string, error) { return dir, nil }
	defer func() { defaultConfigDirFn = defaultConfigDir }()

	path := filepath.Join(dir, "config.yaml")
	cfg, err := EnsureFile(path)
	if err != nil {
		t.Fatalf("EnsureFile error = %v", err)
	}
	if cfg.Detector != DetectorEvent {
		t.Fatalf("EnsureFile returned %+v, want defaults", cfg)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file not created: %v", err)
	}

	// Second call loads the same file rather than rewriting it.
	info1, _ := os.Stat(path)
	if _, err := EnsureFile(path); err != nil {
		t.Fatalf("second EnsureFile error = %v", err)
	}
	info2, _ := os.Stat(path)
	if !info1.ModTime().Equal(info2.ModTime()) {
		t.Fatal("EnsureFile rewrote an existing file")
	}
}

func TestSaveRejectsPathOutsideConfigDir(t *testing.T) {
	dir := t.TempDir()
	defaultConfigDirFn = func() (string, error) { return dir, nil }
	defer func() { defaultConfigDirFn = defaultConfigDir }()

	outside := filepath.Join(t.TempDir(), "config.yaml")
	if _, err := Save(outside, DefaultConfig()); err == nil {
		t.Fatal("Save outside the config directory returned nil error")
	}

	inside := filepath.Join(dir, "config.yaml")
	if _, err := Save(inside, DefaultConfig()); err != nil {
		t.Fatalf("Save inside the config directory error = %v", err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	defaultConfigDirFn = func() (string, error) { return dir, nil }
	defer func() { defaultConfigDirFn = defaultConfigDir }()

	path := filepath.Join(dir, "config.yaml")
	in := Config{
		Detector:       DetectorPolling,
		PollIntervalMs: 25,
		StatusPort:     9000,
		LogLevel:       "warn",
	}
	saved, err := Save(path, in)
	if err != nil {
		t.Fatalf("Save error = %v", err)
	}
	if saved.WorkspaceFile == "" || saved.HistoryFile == "" {
		t.Fatalf("Save did not fill sibling defaults: %+v", saved)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load error = %v", err)
	}
	if got != saved {
		t.Fatalf("round trip = %+v, want %+v", got, saved)
	}
}

func TestDefaultPathPrefersLocalAppData(t *testing.T) {
	t.Setenv("LOCALAPPDATA", filepath.Join("C:", "local"))
	t.Setenv("APPDATA", filepath.Join("C:", "roaming"))
	if got := DefaultPath(); !strings.Contains(got, "local") {
		t.Fatalf("DefaultPath() = %q, want LOCALAPPDATA-based", got)
	}

	t.Setenv("LOCALAPPDATA", "")
	if got := DefaultPath(); !strings.Contains(got, "roaming") {
		t.Fatalf("DefaultPath() = %q, want APPDATA-based", got)
	}
}

func TestDefaultPathFallsBackToTempDir(t *testing.T) {
	t.Setenv("LOCALAPPDATA", "")
	t.Setenv("APPDATA", "")
	userHomeDirFn = func() (string, error) { return "", os.ErrNotExist }
	defer func() { userHomeDirFn = os.UserHomeDir }()

	got := DefaultPath()
	if !strings.HasPrefix(got, os.TempDir()) {
		t.Fatalf("DefaultPath() = %q, want under %q", got, os.TempDir())
	}
}
