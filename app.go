package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"workset/internal/config"
	"workset/internal/engine"
	"workset/internal/history"
	"workset/internal/hotkeys"
	"workset/internal/ipc"
	"workset/internal/statestream"
	"workset/internal/win32"
	"workset/internal/workerutil"
	"workset/internal/workspace"
)

// App owns the daemon's long-lived services and their startup/shutdown order.
//
// Concurrency discipline: the workspace store lock is never held across an
// OS window call. Every pipeline that acts on windows snapshots (clones)
// first, acts second, and writes display state back third.
type App struct {
	cfg        config.Config
	configPath string

	store    *workspace.Store
	registry *hotkeys.Registry
	detector hotkeys.Detector
	loop     *win32.MessageLoop // event mode only; nil when polling
	ops      engine.WindowOps
	engine   *engine.Engine

	pipeServer *ipc.PipeServer
	hub        *statestream.Hub  // nil when the state stream is disabled
	history    *history.Store    // nil when history is disabled
	watcher    *fsnotify.Watcher // nil when the workspace file watcher is disabled

	// Per-workspace dispatch queues with duplicate coalescing. Guarded by
	// dispatchMu; worker goroutines are tracked in bgWG.
	dispatchMu sync.Mutex
	queues     map[string]*dispatchQueue

	ctx          context.Context
	cancel       context.CancelFunc
	bgWG         sync.WaitGroup
	shuttingDown atomic.Bool
}

// NewApp creates the unstarted daemon.
func NewApp(cfg config.Config, configPath string) *App {
	return &App{
		cfg:        cfg,
		configPath: configPath,
		store:      workspace.NewStore(cfg.WorkspaceFile),
		ops:        desktopOps{},
		queues:     map[string]*dispatchQueue{},
	}
}

// startup brings every service up in dependency order: store, detector
// stack, history, state stream, control pipe, file watcher, dispatch loop.
func (a *App) startup(parent context.Context) error {
	a.ctx, a.cancel = context.WithCancel(parent)

	a.store.Load()
	a.engine = engine.New(a.ops)

	if err := a.startDetector(); err != nil {
		return err
	}
	a.registerAll()

	if a.cfg.HistoryEnabled() {
		h, err := history.Open(a.cfg.HistoryFile)
		if err != nil {
			// History is a convenience; a broken database must not block the
			// hotkey pipeline.
			slog.Warn("[app] history disabled: database unavailable", "error", err)
		} else {
			a.history = h
		}
	}

	if a.cfg.StreamEnabled() {
		a.hub = statestream.NewHub(statestream.HubOptions{
			Addr: fmt.Sprintf("127.0.0.1:%d", a.cfg.StatusPort),
		})
		if err := a.hub.Start(a.ctx); err != nil {
			slog.Warn("[app] state stream disabled: server failed to start", "error", err)
			a.hub = nil
		}
	}

	a.pipeServer = ipc.NewPipeServer(a.cfg.PipeName, a)
	if err := a.pipeServer.Start(); err != nil {
		return fmt.Errorf("start control pipe: %w", err)
	}

	if err := a.startWatcher(); err != nil {
		slog.Warn("[app] workspace file watcher disabled", "error", err)
	}

	workerutil.RunWithPanicRecovery(a.ctx, "detector", &a.bgWG, func(ctx context.Context) {
		if err := a.detector.Run(ctx); err != nil {
			slog.Error("[app] detector exited with error", "error", err)
		}
	}, workerutil.RecoveryOptions{
		IsShutdown: a.shuttingDown.Load,
		// The detector closes its activation channel on exit; restarting it
		// without rebuilding the dispatch loop would deadlock, so one run only.
		MaxRetries: 1,
	})
	workerutil.RunWithPanicRecovery(a.ctx, "dispatch", &a.bgWG, a.dispatchLoop, workerutil.RecoveryOptions{
		IsShutdown: a.shuttingDown.Load,
		MaxRetries: 1,
	})

	a.publishState()
	return nil
}

// startDetector builds the detection stack for the configured mode.
func (a *App) startDetector() error {
	switch a.cfg.Detector {
	case config.DetectorPolling:
		a.registry = hotkeys.NewRegistry(hotkeys.ValidateBinder{})
		interval := time.Duration(a.cfg.PollIntervalMs) * time.Millisecond
		a.detector = hotkeys.NewPollingDetector(a.registry, interval, a.pollTargets, win32.KeyDown)
	default:
		a.loop = win32.NewMessageLoop()
		if err := a.loop.Start(); err != nil {
			return fmt.Errorf("start hotkey message loop: %w", err)
		}
		a.registry = hotkeys.NewRegistry(hotkeys.NewLoopBinder(a.loop))
		a.detector = hotkeys.NewEventDetector(a.registry, a.loop.Events(), a.store.IsDisabled)
	}
	return nil
}

// registerAll registers the hotkey of every workspace whose binding parses.
// Registration failures are logged and skipped: one conflicting shortcut must
// not take the rest of the list down with it.
func (a *App) registerAll() {
	for _, ws := range a.store.Snapshot() {
		text := ws.HotkeyText()
		if text == "" {
			continue
		}
		b, err := hotkeys.ParseBinding(text)
		if err != nil {
			slog.Warn("[app] workspace has unparsable hotkey, skipping registration",
				"workspace", ws.Name, "hotkey", text, "error", err)
			continue
		}
		if _, err := a.registry.Register(ws.UID, b); err != nil {
			slog.Warn("[app] hotkey registration failed",
				"workspace", ws.Name, "hotkey", b.Normalized(), "error", err)
		}
	}
}

// pollTargets feeds the polling detector one sampling pass worth of
// shortcuts. Disabled state rides along so the detector can keep its edge
// state warm for disabled workspaces.
func (a *App) pollTargets() []hotkeys.PollTarget {
	regs := a.registry.Registrations()
	out := make([]hotkeys.PollTarget, 0, len(regs))
	for _, reg := range regs {
		out = append(out, hotkeys.PollTarget{
			WorkspaceID: reg.WorkspaceID,
			Binding:     reg.Binding,
			Disabled:    a.store.IsDisabled(reg.WorkspaceID),
		})
	}
	return out
}

// publishState revalidates every workspace and pushes the result to the
// state stream. Safe to call from any goroutine.
func (a *App) publishState() {
	snapshot := a.store.RevalidateAll(a.isLive)
	if a.hub != nil {
		a.hub.BroadcastState(snapshot)
	}
}

// isLive goes through the WindowOps seam so liveness checks see the same
// desktop the engine does.
func (a *App) isLive(h workspace.Handle) bool {
	return a.ops.IsLive(h)
}

// shutdown tears services down in reverse order of startup. Idempotent
// enough for the error path: nil services are skipped.
func (a *App) shutdown() {
	a.shuttingDown.Store(true)
	if a.cancel != nil {
		a.cancel()
	}

	a.stopWatcher()

	if a.pipeServer != nil {
		if err := a.pipeServer.Stop(); err != nil {
			slog.Warn("[app] pipe server stop failed", "error", err)
		}
	}
	if a.hub != nil {
		if err := a.hub.Stop(); err != nil {
			slog.Warn("[app] state stream stop failed", "error", err)
		}
	}

	a.bgWG.Wait()

	// The detector's deferred UnregisterAll already ran when its context was
	// cancelled; this is the backstop for the startup error path.
	if a.registry != nil {
		a.registry.UnregisterAll()
	}
	if a.loop != nil {
		if err := a.loop.Stop(); err != nil {
			slog.Warn("[app] message loop stop failed", "error", err)
		}
	}

	if err := a.store.Save(); err != nil {
		slog.Warn("[app] final workspace save failed", "error", err)
	}
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			slog.Warn("[app] history close failed", "error", err)
		}
	}
	slog.Info("[app] shutdown complete")
}
