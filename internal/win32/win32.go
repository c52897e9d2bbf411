// Package win32 wraps the small slice of user32/kernel32 that workset needs:
// global hotkey registration with a message loop, global key state queries,
// and window move/restore/activate primitives.
//
// Everything OS-facing lives behind build tags; the rest of the codebase
// consumes these functions through interfaces so it stays portable and
// testable off-Windows.
package win32

import (
	"errors"
	"time"
)

// Handle is an opaque OS window handle (HWND). The process does not own the
// referenced window; it can become invalid at any time, so callers must
// re-check IsWindow before acting on it.
type Handle uintptr

// HotkeyEvent is one WM_HOTKEY notification delivered by the message loop.
type HotkeyEvent struct {
	ID   int32
	Time time.Time
}

// ErrHotkeyInUse is returned by MessageLoop.Register when the OS reports the
// modifier/key combination is already bound, by this process or another one.
var ErrHotkeyInUse = errors.New("hotkey combination already in use")

// ErrUnsupported is returned by every OS-facing call on non-Windows builds.
var ErrUnsupported = errors.New("win32: not supported on this platform")
