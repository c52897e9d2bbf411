package hotkeys

import (
	"errors"
	"fmt"

	"workset/internal/win32"
)

// ValidateBinder is the polling-mode binder. Polling samples global key
// state directly and never registers hotkeys with the OS, so binding only
// validates the key code. The registry still enforces id uniqueness and
// per-workspace exclusivity on top of it.
type ValidateBinder struct{}

// BindHotkey validates the key code without touching the OS.
func (ValidateBinder) BindHotkey(_ int32, _ uint32, vk uint32) error {
	if vk == 0 {
		return ErrInvalidKey
	}
	return nil
}

// UnbindHotkey is a no-op.
func (ValidateBinder) UnbindHotkey(int32) error { return nil }

// loopBinder routes bind/unbind through the Win32 message loop thread.
// RegisterHotKey is thread-affine: WM_HOTKEY is posted to the registering
// thread, so the loop must perform the call itself.
type loopBinder struct {
	loop *win32.MessageLoop
}

// NewLoopBinder creates the event-mode binder on top of a started message loop.
func NewLoopBinder(loop *win32.MessageLoop) Binder {
	return loopBinder{loop: loop}
}

func (b loopBinder) BindHotkey(id int32, modifiers uint32, vk uint32) error {
	err := b.loop.Register(id, modifiers, vk)
	if errors.Is(err, win32.ErrHotkeyInUse) {
		return fmt.Errorf("%v: %w", err, ErrConflict)
	}
	return err
}

func (b loopBinder) UnbindHotkey(id int32) error {
	return b.loop.Unregister(id)
}
