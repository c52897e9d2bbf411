//go:build windows

package win32

import (
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32   = windows.NewLazySystemDLL("user32.dll")
	kernel32 = windows.NewLazySystemDLL("kernel32.dll")

	procRegisterHotKey      = user32.NewProc("RegisterHotKey")
	procUnregisterHotKey    = user32.NewProc("UnregisterHotKey")
	procGetMessageW         = user32.NewProc("GetMessageW")
	procTranslateMessage    = user32.NewProc("TranslateMessage")
	procDispatchMessageW    = user32.NewProc("DispatchMessageW")
	procPostThreadMessageW  = user32.NewProc("PostThreadMessageW")
	procPeekMessageW        = user32.NewProc("PeekMessageW")
	procGetAsyncKeyState    = user32.NewProc("GetAsyncKeyState")
	procIsWindow            = user32.NewProc("IsWindow")
	procIsIconic            = user32.NewProc("IsIconic")
	procShowWindow          = user32.NewProc("ShowWindow")
	procSetWindowPos        = user32.NewProc("SetWindowPos")
	procSetForegroundWindow = user32.NewProc("SetForegroundWindow")
	procGetWindowRect       = user32.NewProc("GetWindowRect")
	procGetForegroundWindow = user32.NewProc("GetForegroundWindow")
	procGetWindowTextW      = user32.NewProc("GetWindowTextW")
	procGetCurrentThreadID  = kernel32.NewProc("GetCurrentThreadId")
)

const (
	swRestore   = 9
	swpNoZOrder = 0x0004
)

// winRect mirrors the Win32 RECT struct (left, top, right, bottom).
type winRect struct {
	left   int32
	top    int32
	right  int32
	bottom int32
}

// IsWindow reports whether the handle still refers to a live window.
// This is a pass-through query; the result is stale the moment it returns
// and must never be cached across calls.
func IsWindow(h Handle) bool {
	ret, _, _ := procIsWindow.Call(uintptr(h))
	return ret != 0
}

// IsIconic reports whether the window is minimized.
func IsIconic(h Handle) bool {
	ret, _, _ := procIsIconic.Call(uintptr(h))
	return ret != 0
}

// RestoreWindow restores a minimized window via ShowWindow(SW_RESTORE).
func RestoreWindow(h Handle) error {
	ret, _, err := procShowWindow.Call(uintptr(h), swRestore)
	// ShowWindow returns the previous visibility state, not success. A zero
	// return with a set errno is the only failure signal available.
	if ret == 0 && err != windows.Errno(0) {
		return fmt.Errorf("ShowWindow(SW_RESTORE): %w", err)
	}
	return nil
}

// SetForegroundWindow brings the window to the foreground. Windows refuses
// this for background processes under some focus rules; a false return is
// expected and non-fatal.
func SetForegroundWindow(h Handle) bool {
	ret, _, _ := procSetForegroundWindow.Call(uintptr(h))
	return ret != 0
}

// GetWindowRect returns the window's screen rectangle as x, y, width, height.
func GetWindowRect(h Handle) (x, y, w, hh int, err error) {
	var r winRect
	ret, _, callErr := procGetWindowRect.Call(uintptr(h), uintptr(unsafe.Pointer(&r)))
	if ret == 0 {
		if callErr == windows.Errno(0) {
			callErr = errors.New("GetWindowRect failed")
		}
		return 0, 0, 0, 0, callErr
	}
	return int(r.left), int(r.top), int(r.right - r.left), int(r.bottom - r.top), nil
}

// SetWindowPos moves and resizes the window without changing z-order.
func SetWindowPos(h Handle, x, y, w, hh int) error {
	ret, _, err := procSetWindowPos.Call(
		uintptr(h),
		0, // hWndInsertAfter ignored with SWP_NOZORDER
		uintptr(int32(x)),
		uintptr(int32(y)),
		uintptr(int32(w)),
		uintptr(int32(hh)),
		swpNoZOrder,
	)
	if ret == 0 {
		if err == windows.Errno(0) {
			return errors.New("SetWindowPos failed")
		}
		return err
	}
	return nil
}

// ForegroundWindow returns the handle and title of the currently active
// window. A zero handle means no window has focus.
func ForegroundWindow() (Handle, string, error) {
	ret, _, _ := procGetForegroundWindow.Call()
	if ret == 0 {
		return 0, "", errors.New("no foreground window")
	}
	h := Handle(ret)
	var buf [256]uint16
	n, _, _ := procGetWindowTextW.Call(ret, uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	return h, windows.UTF16ToString(buf[:n]), nil
}

// KeyDown reports whether the virtual key is currently held down,
// per GetAsyncKeyState's high bit.
func KeyDown(vk uint32) bool {
	ret, _, _ := procGetAsyncKeyState.Call(uintptr(vk))
	return int16(ret) < 0
}

func registerHotKey(id int32, modifiers, vk uint32) error {
	ret, _, err := procRegisterHotKey.Call(0, uintptr(id), uintptr(modifiers), uintptr(vk))
	if ret != 0 {
		return nil
	}
	if err == windows.ERROR_HOTKEY_ALREADY_REGISTERED {
		return ErrHotkeyInUse
	}
	if err == windows.Errno(0) {
		return errors.New("RegisterHotKey failed")
	}
	return err
}

func unregisterHotKey(id int32) error {
	ret, _, err := procUnregisterHotKey.Call(0, uintptr(id))
	if ret != 0 {
		return nil
	}
	if err == windows.Errno(0) {
		return errors.New("UnregisterHotKey failed")
	}
	return err
}

func currentThreadID() (uint32, error) {
	tid, _, err := procGetCurrentThreadID.Call()
	if tid == 0 {
		return 0, fmt.Errorf("GetCurrentThreadId returned 0: %w", err)
	}
	return uint32(tid), nil
}
