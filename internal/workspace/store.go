package workspace

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	maxWorkspaceFileBytes = 4 << 20 // 4MB
	maxRenameRetry        = 10
	// Windows file lock releases (antivirus/indexing) typically settle
	// quickly; use a short linear backoff.
	renameRetryBaseDelay = 10 * time.Millisecond
)

// ErrNotFound is returned by store mutations targeting a missing workspace.
var ErrNotFound = errors.New("workspace not found")

// Store is the shared, mutex-guarded workspace list. The detection loop,
// the dispatch pipeline, and the control surfaces all read and mutate it
// concurrently; every access goes through the lock, and the lock is never
// held across an OS window call (callers snapshot, act, then write back).
type Store struct {
	mu      sync.Mutex
	path    string
	items   []Workspace
	savedAt time.Time
}

// NewStore creates a store persisting to path. The list starts empty until
// Load is called.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the persistence path.
func (s *Store) Path() string { return s.path }

// Load reads the workspace list from disk. A missing or unparsable file
// yields an empty list with a warning, never an error to the caller:
// corrupt persistence must not prevent startup. Workspaces without a UID
// (files written by older versions) are assigned one.
func (s *Store) Load() {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Info("[store] no workspace file, starting empty", "path", s.path)
		} else {
			slog.Warn("[store] cannot read workspace file, starting empty", "path", s.path, "error", err)
		}
		s.items = nil
		return
	}
	if len(raw) > maxWorkspaceFileBytes {
		slog.Warn("[store] workspace file too large, starting empty", "path", s.path, "bytes", len(raw))
		s.items = nil
		return
	}

	var items []Workspace
	if err := json.Unmarshal(raw, &items); err != nil {
		slog.Warn("[store] workspace file is not valid JSON, starting empty", "path", s.path, "error", err)
		s.items = nil
		return
	}

	for i := range items {
		if items[i].UID == "" {
			items[i].UID = uuid.NewString()
		}
	}
	s.items = items
	slog.Info("[store] workspaces loaded", "path", s.path, "count", len(items))
}

// Save writes the list atomically (temp file + rename, with the Windows
// rename retry) as pretty-printed JSON.
func (s *Store) Save() error {
	s.mu.Lock()
	raw, err := json.MarshalIndent(s.items, "", "  ")
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("marshal workspaces: %w", err)
	}
	path := s.path
	s.savedAt = time.Now()
	s.mu.Unlock()

	if err := atomicWrite(path, raw); err != nil {
		return err
	}
	slog.Info("[store] workspaces saved", "path", path)
	return nil
}

// RecentlySaved reports whether Save ran within the given window. The file
// watcher uses this to tell our own writes apart from external edits.
func (s *Store) RecentlySaved(window time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.savedAt.IsZero() && time.Since(s.savedAt) < window
}

// Snapshot returns deep clones of every workspace.
func (s *Store) Snapshot() []Workspace {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Workspace, len(s.items))
	for i := range s.items {
		out[i] = s.items[i].Clone()
	}
	return out
}

// Get returns a deep clone of the workspace with the given UID.
func (s *Store) Get(uid string) (Workspace, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ws := s.findLocked(uid); ws != nil {
		return ws.Clone(), true
	}
	return Workspace{}, false
}

// FindByName returns a deep clone of the first workspace with the given name.
func (s *Store) FindByName(name string) (Workspace, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].Name == name {
			return s.items[i].Clone(), true
		}
	}
	return Workspace{}, false
}

// IsDisabled reports the disabled flag; unknown workspaces count as
// disabled so stale activations are dropped.
func (s *Store) IsDisabled(uid string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ws := s.findLocked(uid); ws != nil {
		return ws.Disabled
	}
	return true
}

// Add appends a new empty workspace and returns a clone of it.
func (s *Store) Add(name string) Workspace {
	s.mu.Lock()
	defer s.mu.Unlock()
	ws := Workspace{
		UID:     uuid.NewString(),
		Name:    name,
		Windows: []WindowEntry{},
	}
	s.items = append(s.items, ws)
	return ws.Clone()
}

// Remove deletes the workspace with the given UID.
func (s *Store) Remove(uid string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].UID == uid {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return true
		}
	}
	return false
}

// Rename changes a workspace's display name.
func (s *Store) Rename(uid, name string) error {
	return s.update(uid, func(ws *Workspace) error {
		ws.Name = name
		return nil
	})
}

// SetDisabled flips the disabled flag.
func (s *Store) SetDisabled(uid string, disabled bool) error {
	return s.update(uid, func(ws *Workspace) error {
		ws.Disabled = disabled
		return nil
	})
}

// SetHotkey stores the shortcut text. The text is stored even when the
// registry later fails to register it, so the user can edit and retry.
func (s *Store) SetHotkey(uid, keySequence string) error {
	return s.update(uid, func(ws *Workspace) error {
		if keySequence == "" {
			ws.Hotkey = nil
			return nil
		}
		ws.Hotkey = &Hotkey{KeySequence: keySequence}
		return nil
	})
}

// AddWindow appends a window entry.
func (s *Store) AddWindow(uid string, entry WindowEntry) error {
	return s.update(uid, func(ws *Workspace) error {
		ws.Windows = append(ws.Windows, entry)
		return nil
	})
}

// RemoveWindow deletes the window at index.
func (s *Store) RemoveWindow(uid string, index int) error {
	return s.update(uid, func(ws *Workspace) error {
		if index < 0 || index >= len(ws.Windows) {
			return fmt.Errorf("window index %d out of range", index)
		}
		ws.Windows = append(ws.Windows[:index], ws.Windows[index+1:]...)
		return nil
	})
}

// UpdateWindow applies fn to the window at index.
func (s *Store) UpdateWindow(uid string, index int, fn func(*WindowEntry)) error {
	return s.update(uid, func(ws *Workspace) error {
		if index < 0 || index >= len(ws.Windows) {
			return fmt.Errorf("window index %d out of range", index)
		}
		fn(&ws.Windows[index])
		return nil
	})
}

// SetLastActivated writes back the display state after a dispatched toggle.
func (s *Store) SetLastActivated(uid, binding string, at time.Time) {
	_ = s.update(uid, func(ws *Workspace) error {
		ws.LastActivated = at
		ws.LastBinding = binding
		return nil
	})
}

// RevalidateAll recomputes derived validity for every workspace and window
// against the given liveness query, and returns clones of the result. The
// liveness calls happen under the store lock; IsWindow is a cheap
// non-blocking query, unlike move/activate which are never made under lock.
func (s *Store) RevalidateAll(isLive func(Handle) bool) []Workspace {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Workspace, len(s.items))
	for i := range s.items {
		s.items[i].Validate(isLive)
		out[i] = s.items[i].Clone()
	}
	return out
}

func (s *Store) update(uid string, fn func(*Workspace) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ws := s.findLocked(uid)
	if ws == nil {
		return fmt.Errorf("%q: %w", uid, ErrNotFound)
	}
	return fn(ws)
}

func (s *Store) findLocked(uid string) *Workspace {
	for i := range s.items {
		if s.items[i].UID == uid {
			return &s.items[i]
		}
	}
	return nil
}

// atomicWrite writes data using temp-file + rename to avoid partial writes,
// retrying the rename on Windows to tolerate transient file locks.
func atomicWrite(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err = os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("save workspaces: mkdir: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, ".workspaces.json.tmp.*")
	if err != nil {
		return fmt.Errorf("save workspaces: create temp: %w", err)
	}
	tmpPath := tmpFile.Name()

	defer func() {
		if tmpFile != nil {
			if closeErr := tmpFile.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
				slog.Warn("[store] failed to close temp file", "path", tmpPath, "error", closeErr)
			}
		}
		if err != nil {
			if removeErr := os.Remove(tmpPath); removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
				slog.Warn("[store] failed to remove temp file", "path", tmpPath, "error", removeErr)
			}
		}
	}()

	if _, err = tmpFile.Write(data); err != nil {
		return fmt.Errorf("save workspaces: write: %w", err)
	}
	if err = tmpFile.Sync(); err != nil {
		return fmt.Errorf("save workspaces: sync: %w", err)
	}
	err = tmpFile.Close()
	tmpFile = nil
	if err != nil {
		return fmt.Errorf("save workspaces: close: %w", err)
	}

	if err = renameWithRetry(tmpPath, path); err != nil {
		return fmt.Errorf("save workspaces: rename: %w", err)
	}
	return nil
}

func renameWithRetry(sourcePath, targetPath string) error {
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
