// Package config loads and persists workset runtime configuration.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"
)

const (
	maxConfigFileBytes int64 = 1 << 20 // 1MB
	maxRenameRetry           = 10
	// Windows file lock releases (antivirus/indexing) typically settle quickly.
	// Use a short linear backoff: baseDelay * (1..maxRenameRetry).
	renameRetryBaseDelay = 10 * time.Millisecond
	// maxValidPort is the highest TCP port number (2^16 - 1).
	// Port 0 is valid and means "OS auto-assign".
	maxValidPort = 65535

	// DetectorEvent registers hotkeys with the OS and waits for WM_HOTKEY.
	DetectorEvent = "event"
	// DetectorPolling samples key state on a timer instead of registering.
	DetectorPolling = "polling"
)

// defaultConfigDirFn is a test seam; tests override it to simulate
// directory-resolution failures in validateConfigPath.
var defaultConfigDirFn = defaultConfigDir
var userHomeDirFn = os.UserHomeDir

// Config is workset runtime configuration.
type Config struct {
	// WorkspaceFile is the JSON file holding the workspace list. Empty
	// means "workspaces.json next to the config file".
	WorkspaceFile string `yaml:"workspace_file" json:"workspace_file"`
	// Detector selects how shortcut presses are noticed: "event" (OS
	// hotkey registration, default) or "polling" (key-state sampling).
	Detector string `yaml:"detector" json:"detector"`
	// PollIntervalMs is the sampling cadence for the polling detector.
	// Ignored in event mode.
	PollIntervalMs int `yaml:"poll_interval_ms" json:"poll_interval_ms"`
	// PipeName overrides the control pipe name. Empty derives a per-user
	// name. Mostly useful for tests.
	PipeName string `yaml:"pipe_name,omitempty" json:"pipe_name,omitempty"`
	// StatusPort is the localhost port for the WebSocket state stream.
	// 0 (default) lets the OS assign a port; -1 disables the stream.
	StatusPort int `yaml:"status_port" json:"status_port"`
	// HistoryFile is the SQLite activation history database. Empty means
	// "history.db next to the config file"; "off" disables history.
	HistoryFile string `yaml:"history_file,omitempty" json:"history_file,omitempty"`
	LogLevel    string `yaml:"log_level" json:"log_level"`
	// LogFile is where logs go. Empty means stderr.
	LogFile string `yaml:"log_file,omitempty" json:"log_file,omitempty"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Detector:       DetectorEvent,
		PollIntervalMs: 100,
		StatusPort:     0,
		LogLevel:       "info",
	}
}

// DefaultPath resolves the config file path, preferring LOCALAPPDATA over
// APPDATA, falling back to ~/.config when both are unset, and then to
// os.TempDir() if the home directory cannot be resolved.
func DefaultPath() string {
	base := strings.TrimSpace(os.Getenv("LOCALAPPDATA"))
	if base == "" {
		base = strings.TrimSpace(os.Getenv("APPDATA"))
	}
	if base == "" {
		home, err := userHomeDirFn()
		if err != nil {
			// Keep config path resolvable even in restricted environments.
			slog.Warn("[config] using temp dir as config path fallback", "error", err)
			base = os.TempDir()
		} else {
			base = filepath.Join(home, ".config")
		}
	}
	return filepath.Join(base, "workset", "config.yaml")
}

// Load reads the config file. A missing file yields defaults without error;
// an unparsable file yields defaults with the parse error so the caller can
// surface it.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, errors.New("config path required")
	}

	raw, err := readLimitedFile(path, maxConfigFileBytes)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return applyDefaults(cfg, path), nil
		}
		return applyDefaults(cfg, path), err
	}
	if len(raw) == 0 {
		return applyDefaults(cfg, path), nil
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		slog.Warn("[config] failed to parse config, using defaults", "path", path, "error", err)
		return applyDefaults(DefaultConfig(), path), err
	}
	cfg = applyDefaults(cfg, path)
	if err := validate(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// EnsureFile writes default config if missing and returns loaded config.
func EnsureFile(path string) (Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
		if _, err := Save(path, cfg); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

// Save validates cfg, fills defaults, and atomically writes to path.
// Returns the normalized config that was actually written to disk.
func Save(path string, cfg Config) (Config, error) {
	normalizedPath, err := validateConfigPath(path)
	if err != nil {
		return cfg, err
	}
	cfg = applyDefaults(cfg, normalizedPath)
	if err := validate(&cfg); err != nil {
		return cfg, fmt.Errorf("save config: %w", err)
	}

	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return cfg, fmt.Errorf("save config: marshal: %w", err)
	}
	if err := atomicWrite(normalizedPath, raw); err != nil {
		return cfg, err
	}
	slog.Debug("[config] config saved", "path", path)
	return cfg, nil
}

// applyDefaults fills empty fields. Sibling-file defaults (workspace list,
// history db) resolve relative to the config file so everything lives in one
// directory by default.
func applyDefaults(cfg Config, path string) Config {
	defaults := DefaultConfig()
	if reflect.DeepEqual(cfg, Config{}) {
		cfg = defaults
	}
	if strings.TrimSpace(cfg.Detector) == "" {
		cfg.Detector = defaults.Detector
	}
	if cfg.PollIntervalMs <= 0 {
		cfg.PollIntervalMs = defaults.PollIntervalMs
	}
	if strings.TrimSpace(cfg.LogLevel) == "" {
		cfg.LogLevel = defaults.LogLevel
	}
	dir := filepath.Dir(path)
	if strings.TrimSpace(cfg.WorkspaceFile) == "" {
		cfg.WorkspaceFile = filepath.Join(dir, "workspaces.json")
	}
	if strings.TrimSpace(cfg.HistoryFile) == "" {
		cfg.HistoryFile = filepath.Join(dir, "history.db")
	}
	return cfg
}

// validate checks the fields that have a closed value set. Invalid ports
// fall back to auto-assign instead of failing, consistent with the policy
// that config problems must not prevent startup.
func validate(cfg *Config) error {
	switch strings.ToLower(strings.TrimSpace(cfg.Detector)) {
	case DetectorEvent:
		cfg.Detector = DetectorEvent
	case DetectorPolling:
		cfg.Detector = DetectorPolling
	default:
		return fmt.Errorf("detector must be %q or %q, got %q", DetectorEvent, DetectorPolling, cfg.Detector)
	}

	switch strings.ToLower(strings.TrimSpace(cfg.LogLevel)) {
	case "debug", "info", "warn", "error":
		cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	default:
		slog.Warn("[config] unknown log_level, falling back to info", "configured", cfg.LogLevel)
		cfg.LogLevel = "info"
	}

	if cfg.StatusPort < -1 || cfg.StatusPort > maxValidPort {
		slog.Warn("[config] status_port out of valid range, falling back to 0 (auto-assign)",
			"configured", cfg.StatusPort, "max", maxValidPort)
		cfg.StatusPort = 0
	}
	return nil
}

// SlogLevel maps LogLevel to a slog.Level.
func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// HistoryEnabled reports whether activation history recording is on.
func (c Config) HistoryEnabled() bool {
	return !strings.EqualFold(strings.TrimSpace(c.HistoryFile), "off")
}

// StreamEnabled reports whether the WebSocket state stream is on.
func (c Config) StreamEnabled() bool {
	return c.StatusPort >= 0
}

// atomicWrite writes config data using temp-file + rename to avoid partial
// writes and retries rename on Windows to tolerate transient file locks.
func atomicWrite(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err = os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("save config: mkdir: %w", err)
	}

	// Atomic write: temp file + rename in same directory ensures
	// same-filesystem rename and prevents partial writes on crash.
	tmpFile, err := os.CreateTemp(dir, ".config.yaml.tmp.*")
	if err != nil {
		return fmt.Errorf("save config: create temp: %w", err)
	}
	tmpPath := tmpFile.Name()

	defer func() {
		if tmpFile != nil {
			if closeErr := tmpFile.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
				slog.Warn("[config] failed to close temp file", "path", tmpPath, "error", closeErr)
			}
		}
		if err != nil {
			if removeErr := os.Remove(tmpPath); removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
				slog.Warn("[config] failed to remove temp file", "path", tmpPath, "error", removeErr)
			}
		}
	}()

	if err = tmpFile.Chmod(0o600); err != nil {
		return fmt.Errorf("save config: chmod temp: %w", err)
	}
	if _, err = tmpFile.Write(data); err != nil {
		return fmt.Errorf("save config: write: %w", err)
	}
	if err = tmpFile.Sync(); err != nil {
		return fmt.Errorf("save config: sync: %w", err)
	}
	err = tmpFile.Close()
	tmpFile = nil
	if err != nil {
		return fmt.Errorf("save config: close: %w", err)
	}

	if err = renameFileWithRetry(tmpPath, path); err != nil {
		return fmt.Errorf("save config: rename: %w", err)
	}
	return nil
}

// validateConfigPath normalizes path and enforces that config writes stay
// inside the default config directory when that directory is resolvable.
func validateConfigPath(path string) (string, error) {
	trimmedPath := strings.TrimSpace(path)
	if trimmedPath == "" {
		return "", errors.New("config path required")
	}
	absolutePath, err := filepath.Abs(trimmedPath)
	if err != nil {
		return "", fmt.Errorf("save config: resolve path: %w", err)
	}

	expectedDir, err := defaultConfigDirFn()
	if err != nil {
		return "", fmt.Errorf("save config: resolve config dir: %w", err)
	}
	absoluteExpectedDir, err := filepath.Abs(expectedDir)
	if err != nil {
		return "", fmt.Errorf("save config: resolve config dir: %w", err)
	}
	if !pathWithinDir(absolutePath, absoluteExpectedDir) {
		return "", fmt.Errorf("save config: path outside config directory: %q", absolutePath)
	}

	return absolutePath, nil
}

func defaultConfigDir() (string, error) {
	return filepath.Dir(DefaultPath()), nil
}

// pathWithinDir blocks directory traversal by ensuring path is under dir.
// It also rejects Windows cross-drive escapes because filepath.Rel returns
// an absolute path when roots differ.
func pathWithinDir(path string, dir string) bool {
	relativePath, err := filepath.Rel(filepath.Clean(dir), filepath.Clean(path))
	if err != nil {
		return false
	}
	if relativePath == "." {
		return true
	}
	if relativePath == ".." || strings.HasPrefix(relativePath, ".."+string(os.PathSeparator)) {
		return false
	}
	return !filepath.IsAbs(relativePath)
}

func readLimitedFile(path string, maxBytes int64) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	limited := io.LimitReader(file, maxBytes+1)
	raw, err := io.ReadAll(limited)
	if err != nil {
		return nil, err
	}
	if int64(len(raw)) > maxBytes {
		return nil, fmt.Errorf("config file exceeds %d bytes", maxBytes)
	}
	return raw, nil
}

func renameFileWithRetry(sourcePath string, targetPath string) error {
	var lastErr error
	for attempt := range maxRenameRetry {
		err := os.Rename(sourcePath, targetPath)
		if err == nil {
			return nil
		}
		lastErr = err
		if runtime.GOOS != "windows" {
			return err
		}
		time.Sleep(time.Duration(attempt+1) * renameRetryBaseDelay)
	}
	return lastErr
}
