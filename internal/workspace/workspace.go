// Package workspace defines the workspace/window data model and the locked
// store shared between the key-detection loop and the control surfaces.
package workspace

import (
	"encoding/json"
	"fmt"
	"time"

	"workset/internal/hotkeys"
)

// Handle is an opaque OS window handle. It is a weak reference: the window
// can close at any moment, so every use must re-validate through the
// liveness query before mutating OS state.
type Handle uintptr

// Rect is a screen rectangle in resolution-relative integer coordinates.
// Zero or negative sizes are representable; the OS call may reject them,
// which is a recoverable per-window error. Persisted as a JSON array
// [x, y, w, h], matching the historical workspaces.json layout.
type Rect struct {
	X int
	Y int
	W int
	H int
}

// MarshalJSON encodes the rect as [x, y, w, h].
func (r Rect) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]int{r.X, r.Y, r.W, r.H})
}

// UnmarshalJSON decodes [x, y, w, h].
func (r *Rect) UnmarshalJSON(data []byte) error {
	var arr [4]int
	if err := json.Unmarshal(data, &arr); err != nil {
		return fmt.Errorf("rect must be a [x, y, w, h] array: %w", err)
	}
	r.X, r.Y, r.W, r.H = arr[0], arr[1], arr[2], arr[3]
	return nil
}

// String formats the rect for logs.
func (r Rect) String() string {
	return fmt.Sprintf("(%d, %d, %dx%d)", r.X, r.Y, r.W, r.H)
}

// Hotkey is the persisted shortcut of a workspace. Only the text survives
// serialization; registration ids are runtime state owned by the registry.
type Hotkey struct {
	KeySequence string `json:"key_sequence"`
}

// WindowEntry is one tracked window inside a workspace. Valid is derived:
// it caches the last liveness check for display and is recomputed before
// every decision, never trusted across OS state changes.
type WindowEntry struct {
	Handle Handle `json:"id"`
	Title  string `json:"title"`
	Home   Rect   `json:"home"`
	Target Rect   `json:"target"`
	Valid  bool   `json:"valid"`
}

// Workspace groups windows under a name and an optional global hotkey.
//
// Valid is derived from the hotkey text and window liveness (see Validate)
// and is recomputed on every publish and before every toggle. LastActivated
// and LastBinding are runtime-only display state written back by the
// dispatch pipeline.
type Workspace struct {
	UID      string        `json:"uid,omitempty"`
	Name     string        `json:"name"`
	Hotkey   *Hotkey       `json:"hotkey"`
	Windows  []WindowEntry `json:"windows"`
	Disabled bool          `json:"disabled"`
	Valid    bool          `json:"valid"`

	LastActivated time.Time `json:"-"`
	LastBinding   string    `json:"-"`
}

// HotkeyText returns the shortcut text or "" when none is assigned.
func (w *Workspace) HotkeyText() string {
	if w.Hotkey == nil {
		return ""
	}
	return w.Hotkey.KeySequence
}

// Clone returns a deep copy. The dispatch pipeline toggles against clones
// so no lock is held during OS calls.
func (w *Workspace) Clone() Workspace {
	out := *w
	if w.Hotkey != nil {
		hk := *w.Hotkey
		out.Hotkey = &hk
	}
	out.Windows = make([]WindowEntry, len(w.Windows))
	copy(out.Windows, w.Windows)
	return out
}

// Validate recomputes the derived validity of the workspace and its
// windows: the hotkey text must parse and at least one window must be live.
// Disabled state does not affect validity; the two are independent.
func (w *Workspace) Validate(isLive func(Handle) bool) {
	anyLive := false
	for i := range w.Windows {
		live := isLive(w.Windows[i].Handle)
		w.Windows[i].Valid = live
		anyLive = anyLive || live
	}
	w.Valid = hotkeys.IsValidBinding(w.HotkeyText()) && anyLive
}
