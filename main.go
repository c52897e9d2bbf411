package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"workset/internal/config"
	"workset/internal/singleinstance"
)

func main() {
	configPath := flag.String("config", config.DefaultPath(), "path to config.yaml")
	flag.Parse()

	cfg, err := config.EnsureFile(*configPath)
	if err != nil {
		// Config problems fall back to defaults; startup continues.
		slog.Warn("[main] config load problem, continuing with defaults", "path", *configPath, "error", err)
	}
	if err := setupLogging(cfg); err != nil {
		fmt.Fprintln(os.Stderr, "workset:", err)
		os.Exit(1)
	}

	// Single-instance check before any hotkey registration. Two instances
	// would fight over the same system-wide shortcuts.
	mutexLock, err := singleinstance.TryLock(singleinstance.DefaultMutexName())
	if errors.Is(err, singleinstance.ErrAlreadyRunning) {
		fmt.Fprintln(os.Stderr, "workset is already running; use worksetctl to talk to it")
		os.Exit(1)
	}
	if err != nil {
		// Mutex creation failed for an unexpected reason. Continue startup.
		slog.Warn("[main] mutex creation failed, proceeding without single-instance guard", "error", err)
	}
	if mutexLock != nil {
		defer func() {
			if releaseErr := mutexLock.Release(); releaseErr != nil {
				slog.Warn("[main] mutex release failed", "error", releaseErr)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := NewApp(cfg, *configPath)
	if err := app.startup(ctx); err != nil {
		slog.Error("[main] startup failed", "error", err)
		app.shutdown()
		os.Exit(1)
	}

	slog.Info("[main] workset running", "configPath", *configPath, "detector", cfg.Detector)
	<-ctx.Done()
	slog.Info("[main] shutdown signal received")
	app.shutdown()
}

// setupLogging installs the process-wide slog handler per config.
func setupLogging(cfg config.Config) error {
	var out io.Writer = os.Stderr
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return fmt.Errorf("open log file %s: %w", cfg.LogFile, err)
		}
		out = f
	}
	handler := slog.NewTextHandler(out, &slog.HandlerOptions{Level: cfg.SlogLevel()})
	slog.SetDefault(slog.New(handler))
	return nil
}
