//go:build !windows

package win32

// Global hotkeys and window manipulation are Windows-only in this project.
// These stubs keep the rest of the codebase (and its tests) portable.

// IsWindow always reports false on non-Windows platforms.
func IsWindow(Handle) bool { return false }

// IsIconic always reports false on non-Windows platforms.
func IsIconic(Handle) bool { return false }

// RestoreWindow is unsupported on non-Windows platforms.
func RestoreWindow(Handle) error { return ErrUnsupported }

// SetForegroundWindow always reports false on non-Windows platforms.
func SetForegroundWindow(Handle) bool { return false }

// GetWindowRect is unsupported on non-Windows platforms.
func GetWindowRect(Handle) (x, y, w, h int, err error) {
	return 0, 0, 0, 0, ErrUnsupported
}

// SetWindowPos is unsupported on non-Windows platforms.
func SetWindowPos(Handle, int, int, int, int) error { return ErrUnsupported }

// ForegroundWindow is unsupported on non-Windows platforms.
func ForegroundWindow() (Handle, string, error) { return 0, "", ErrUnsupported }

// KeyDown always reports false on non-Windows platforms.
func KeyDown(uint32) bool { return false }

// MessageLoop is a non-functional placeholder on non-Windows platforms.
type MessageLoop struct{}

// NewMessageLoop creates a placeholder loop whose Start always fails.
func NewMessageLoop() *MessageLoop { return &MessageLoop{} }

// Events returns nil; the loop never starts on non-Windows platforms.
func (l *MessageLoop) Events() <-chan HotkeyEvent { return nil }

// Start is unsupported on non-Windows platforms.
func (l *MessageLoop) Start() error { return ErrUnsupported }

// Stop is a no-op on non-Windows platforms.
func (l *MessageLoop) Stop() error { return nil }

// Register is unsupported on non-Windows platforms.
func (l *MessageLoop) Register(int32, uint32, uint32) error { return ErrUnsupported }

// Unregister is unsupported on non-Windows platforms.
func (l *MessageLoop) Unregister(int32) error { return ErrUnsupported }
