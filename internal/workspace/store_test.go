package workspace

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "workspaces.json"))
}

func TestStoreLoadMissingFileStartsEmpty(t *testing.T) {
	s := newTestStore(t)
	s.Load()
	if got := s.Snapshot(); len(got) != 0 {
		t.Fatalf("Snapshot after loading missing file = %d workspaces, want 0", len(got))
	}
}

func TestStoreLoadCorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workspaces.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("WriteFile error = %v", err)
	}
	s := NewStore(path)
	s.Load()
	if got := s.Snapshot(); len(got) != 0 {
		t.Fatalf("Snapshot after loading corrupt file = %d workspaces, want 0", len(got))
	}
}

func TestStoreLoadAssignsMissingUIDs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workspaces.json")
	raw := `[{"name": "editors", "hotkey": null, "windows": [], "disabled": false, "valid": false}]`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("WriteFile error = %v", err)
	}

	s := NewStore(path)
	s.Load()
	got := s.Snapshot()
	if len(got) != 1 {
		t.Fatalf("Snapshot = %d workspaces, want 1", len(got))
	}
	if got[0].UID == "" {
		t.Fatal("workspace from a pre-UID file left without a UID")
	}
}

func TestStoreSaveLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ws := s.Add("editors")
	if err := s.SetHotkey(ws.UID, "Ctrl+Alt+H"); err != nil {
		t.Fatalf("SetHotkey error = %v", err)
	}
	entry := WindowEntry{
		Handle: 67364,
		Title:  "vim",
		Home:   Rect{X: 0, Y: 0, W: 800, H: 600},
		Target: Rect{X: 1920, Y: 0, W: 800, H: 600},
	}
	if err := s.AddWindow(ws.UID, entry); err != nil {
		t.Fatalf("AddWindow error = %v", err)
	}
	if err := s.Save(); err != nil {
		t.Fatalf("Save error = %v", err)
	}

	reloaded := NewStore(s.Path())
	reloaded.Load()
	got, found := reloaded.Get(ws.UID)
	if !found {
		t.Fatalf("Get(%q) not found after reload", ws.UID)
	}
	if got.Name != "editors" || got.HotkeyText() != "Ctrl+Alt+H" {
		t.Fatalf("reloaded workspace = %+v", got)
	}
	if len(got.Windows) != 1 || got.Windows[0] != entry {
		t.Fatalf("reloaded windows = %+v, want [%+v]", got.Windows, entry)
	}
}

func TestStoreMutations(t *testing.T) {
	s := newTestStore(t)
	ws := s.Add("editors")

	if err := s.Rename(ws.UID, "terminals"); err != nil {
		t.Fatalf("Rename error = %v", err)
	}
	if got, _ := s.Get(ws.UID); got.Name != "terminals" {
		t.Fatalf("name after Rename = %q, want terminals", got.Name)
	}

	if err := s.SetHotkey(ws.UID, "Ctrl+Alt+T"); err != nil {
		t.Fatalf("SetHotkey error = %v", err)
	}
	if err := s.SetHotkey(ws.UID, ""); err != nil {
		t.Fatalf("SetHotkey(clear) error = %v", err)
	}
	if got, _ := s.Get(ws.UID); got.Hotkey != nil {
		t.Fatalf("Hotkey after clear = %+v, want nil", got.Hotkey)
	}

	if err := s.SetDisabled(ws.UID, true); err != nil {
		t.Fatalf("SetDisabled error = %v", err)
	}
	if !s.IsDisabled(ws.UID) {
		t.Fatal("IsDisabled = false after SetDisabled(true)")
	}

	if !s.Remove(ws.UID) {
		t.Fatal("Remove = false for existing workspace")
	}
	if s.Remove(ws.UID) {
		t.Fatal("second Remove = true for deleted workspace")
	}
}

func TestStoreMutationsOnMissingWorkspace(t *testing.T) {
	s := newTestStore(t)
	if err := s.Rename("no-such-uid", "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Rename error = %v, want ErrNotFound", err)
	}
	if err := s.AddWindow("no-such-uid", WindowEntry{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("AddWindow error = %v, want ErrNotFound", err)
	}
}

func TestStoreWindowIndexBounds(t *testing.T) {
	s := newTestStore(t)
	ws := s.Add("editors")
	if err := s.AddWindow(ws.UID, WindowEntry{Handle: 1, Title: "vim"}); err != nil {
		t.Fatalf("AddWindow error = %v", err)
	}

	if err := s.RemoveWindow(ws.UID, 5); err == nil {
		t.Fatal("RemoveWindow(5) = nil error on a one-window workspace")
	}
	if err := s.RemoveWindow(ws.UID, -1); err == nil {
		t.Fatal("RemoveWindow(-1) = nil error")
	}
	if err := s.RemoveWindow(ws.UID, 0); err != nil {
		t.Fatalf("RemoveWindow(0) error = %v", err)
	}
	if got, _ := s.Get(ws.UID); len(got.Windows) != 0 {
		t.Fatalf("windows after RemoveWindow = %+v, want empty", got.Windows)
	}
}

func TestStoreUpdateWindow(t *testing.T) {
	s := newTestStore(t)
	ws := s.Add("editors")
	if err := s.AddWindow(ws.UID, WindowEntry{Handle: 1, Title: "vim"}); err != nil {
		t.Fatalf("AddWindow error = %v", err)
	}

	err := s.UpdateWindow(ws.UID, 0, func(w *WindowEntry) {
		w.Handle = 2
		w.Title = "vim - main.go"
	})
	if err != nil {
		t.Fatalf("UpdateWindow error = %v", err)
	}
	got, _ := s.Get(ws.UID)
	if got.Windows[0].Handle != 2 || got.Windows[0].Title != "vim - main.go" {
		t.Fatalf("window after UpdateWindow = %+v", got.Windows[0])
	}
}

func TestStoreIsDisabledUnknownIsTrue(t *testing.T) {
	s := newTestStore(t)
	if !s.IsDisabled("no-such-uid") {
		t.Fatal("IsDisabled(unknown) = false, want true so stale activations drop")
	}
}

func TestStoreSnapshotIsIsolated(t *testing.T) {
	s := newTestStore(t)
	ws := s.Add("editors")
	if err := s.AddWindow(ws.UID, WindowEntry{Handle: 1, Title: "vim"}); err != nil {
		t.Fatalf("AddWindow error = %v", err)
	}

	snap := s.Snapshot()
	snap[0].Windows[0].Title = "mutated"

	if got, _ := s.Get(ws.UID); got.Windows[0].Title != "vim" {
		t.Fatalf("snapshot mutation leaked into store: %q", got.Windows[0].Title)
	}
}

func TestStoreRecentlySaved(t *testing.T) {
	s := newTestStore(t)
	if s.RecentlySaved(time.Hour) {
		t.Fatal("RecentlySaved = true before any Save")
	}
	if err := s.Save(); err != nil {
		t.Fatalf("Save error = %v", err)
	}
	if !s.RecentlySaved(time.Hour) {
		t.Fatal("RecentlySaved = false right after Save")
	}
	if s.RecentlySaved(time.Nanosecond) {
		t.Fatal("RecentlySaved = true outside the window")
	}
}

func TestStoreRevalidateAll(t *testing.T) {
	s := newTestStore(t)
	ws := s.Add("editors")
	if err := s.SetHotkey(ws.UID, "Ctrl+Alt+H"); err != nil {
		t.Fatalf("SetHotkey error = %v", err)
	}
	if err := s.AddWindow(ws.UID, WindowEntry{Handle: 1, Title: "vim"}); err != nil {
		t.Fatalf("AddWindow error = %v", err)
	}

	out := s.RevalidateAll(func(h Handle) bool { return h == 1 })
	if len(out) != 1 || !out[0].Valid || !out[0].Windows[0].Valid {
		t.Fatalf("RevalidateAll = %+v, want valid workspace and window", out)
	}

	// Window dies: validity flips on the next pass.
	out = s.RevalidateAll(func(Handle) bool { return false })
	if out[0].Valid || out[0].Windows[0].Valid {
		t.Fatalf("RevalidateAll after window death = %+v, want invalid", out)
	}
}

func TestStoreSetLastActivated(t *testing.T) {
	s := newTestStore(t)
	ws := s.Add("editors")
	at := time.Unix(1700000000, 0)

	s.SetLastActivated(ws.UID, "Ctrl+Alt+H", at)

	got, _ := s.Get(ws.UID)
	if !got.LastActivated.Equal(at) || got.LastBinding != "Ctrl+Alt+H" {
		t.Fatalf("last activation = (%v, %q), want (%v, Ctrl+Alt+H)", got.LastActivated, got.LastBinding, at)
	}
}
