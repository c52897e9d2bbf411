package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	// watchDebounce coalesces editor write bursts (save + rename + chmod)
	// into a single reload.
	watchDebounce = 500 * time.Millisecond

	// selfWriteWindow is how recently our own Save must have run for a file
	// event to be attributed to it and ignored.
	selfWriteWindow = 2 * time.Second
)

// startWatcher watches the workspace file's directory for external edits and
// reloads the list when the file changes. The directory (not the file) is
// watched because atomic saves replace the file, which drops a file-level
// watch on most platforms.
func (a *App) startWatcher() error {
	path := a.store.Path()
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("watch dir %s: %w", dir, err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	a.watcher = w

	a.bgWG.Go(func() { a.watchLoop(w, filepath.Base(path)) })
	slog.Info("[watch] workspace file watcher started", "dir", dir, "file", filepath.Base(path))
	return nil
}

func (a *App) stopWatcher() {
	if a.watcher == nil {
		return
	}
	if err := a.watcher.Close(); err != nil {
		slog.Warn("[watch] watcher close failed", "error", err)
	}
}

func (a *App) watchLoop(w *fsnotify.Watcher, fileName string) {
	var debounce *time.Timer
	var debounceC <-chan time.Time

	for {
		select {
		case <-a.ctx.Done():
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if !strings.EqualFold(filepath.Base(ev.Name), fileName) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if debounce == nil {
				debounce = time.NewTimer(watchDebounce)
				debounceC = debounce.C
			} else {
				debounce.Reset(watchDebounce)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			slog.Warn("[watch] watcher error", "error", err)
		case <-debounceC:
			debounce = nil
			debounceC = nil
			if a.store.RecentlySaved(selfWriteWindow) {
				slog.Debug("[watch] ignoring event from our own save")
				continue
			}
			slog.Info("[watch] workspace file changed externally, reloading")
			a.reloadWorkspaces()
		}
	}
}

// reloadWorkspaces re-reads the workspace file and rebuilds every hotkey
// registration from the fresh list.
func (a *App) reloadWorkspaces() {
	a.store.Load()
	a.registry.UnregisterAll()
	a.registerAll()
	a.publishState()
}
