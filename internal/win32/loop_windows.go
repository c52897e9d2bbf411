//go:build windows

package win32

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

const (
	wmHotkey   = 0x0312
	wmQuit     = 0x0012
	wmApp      = 0x8000
	pmNoRemove = 0x0000
)

// point mirrors the Win32 POINT struct.
type point struct {
	x int32
	y int32
}

// winMsg mirrors the Win32 MSG struct (tagMSG from winuser.h).
// Field order and types must not be changed -- the layout must match
// the Win32 binary layout on both 32-bit and 64-bit Windows.
type winMsg struct {
	hWnd     uintptr
	message  uint32
	wParam   uintptr
	lParam   uintptr
	time     uint32
	pt       point
	lPrivate uint32 // reserved by Windows; required for correct struct size
}

type loopReady struct {
	threadID uint32
	err      error
}

// MessageLoop pumps a thread message queue on a locked OS thread, delivering
// WM_HOTKEY notifications on Events and servicing RegisterHotKey /
// UnregisterHotKey requests posted by other goroutines.
type MessageLoop struct {
	mu       sync.Mutex
	started  bool
	threadID uint32
	doneCh   chan struct{}
	pending  opQueue
	events   chan HotkeyEvent
}

// NewMessageLoop creates an unstarted MessageLoop.
func NewMessageLoop() *MessageLoop {
	return &MessageLoop{
		events: make(chan HotkeyEvent, 16),
	}
}

// Events returns the WM_HOTKEY notification stream. Events are dropped if
// the channel buffer is full; a consumer slower than keypresses has bigger
// problems than a lost repeat.
func (l *MessageLoop) Events() <-chan HotkeyEvent {
	return l.events
}

// Start spawns the message loop on a locked OS thread and waits until the
// thread's message queue exists, so Register and Stop can post to it.
func (l *MessageLoop) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.started {
		return errors.New("message loop already started")
	}
	if err := user32.Load(); err != nil {
		return fmt.Errorf("user32.dll is unavailable: %w", err)
	}
	if err := kernel32.Load(); err != nil {
		return fmt.Errorf("kernel32.dll is unavailable: %w", err)
	}

	readyCh := make(chan loopReady, 1)
	doneCh := make(chan struct{})
	go l.run(readyCh, doneCh)

	ready := <-readyCh
	if ready.err != nil {
		return fmt.Errorf("message loop startup: %w", ready.err)
	}
	l.threadID = ready.threadID
	l.doneCh = doneCh
	l.started = true
	return nil
}

// Stop posts WM_QUIT to the loop thread and waits for it to drain. Any
// hotkeys still registered on the thread are released by the loop on exit.
func (l *MessageLoop) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.started {
		return nil
	}
	l.started = false

	stopErr := postThreadMessage(l.threadID, wmQuit)

	timer := time.NewTimer(2 * time.Second)
	defer timer.Stop()
	select {
	case <-l.doneCh:
	case <-timer.C:
		stopErr = errors.Join(stopErr, errors.New("message loop stop timed out"))
		slog.Warn("[hotkey-loop] stop timed out, loop thread may leak")
	}
	return stopErr
}

// Register binds a global hotkey on the loop thread. Returns ErrHotkeyInUse
// when the OS reports the combination is taken.
func (l *MessageLoop) Register(id int32, modifiers, vk uint32) error {
	return l.submit(loopOp{id: id, modifiers: modifiers, vk: vk})
}

// Unregister releases a hotkey binding on the loop thread.
func (l *MessageLoop) Unregister(id int32) error {
	return l.submit(loopOp{unregister: true, id: id})
}

func (l *MessageLoop) submit(op loopOp) error {
	l.mu.Lock()
	if !l.started {
		l.mu.Unlock()
		return errors.New("message loop not running")
	}
	threadID := l.threadID
	doneCh := l.doneCh
	l.mu.Unlock()

	// Enqueue first, then wake. push cannot block, so the wake that makes
	// the loop thread leave GetMessageW and drain the queue always follows.
	op.result = make(chan error, 1)
	l.pending.push(op)
	if err := postThreadMessage(threadID, wmApp); err != nil {
		return fmt.Errorf("wake loop thread: %w", err)
	}
	select {
	case err := <-op.result:
		return err
	case <-doneCh:
		return errors.New("message loop exited")
	}
}

func (l *MessageLoop) run(readyCh chan<- loopReady, doneCh chan struct{}) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(doneCh)

	threadID, err := currentThreadID()
	if err != nil {
		readyCh <- loopReady{err: err}
		return
	}

	// PeekMessageW forces Windows to create the thread message queue so that
	// PostThreadMessageW can deliver to it. The return value is irrelevant;
	// queue creation is a side effect of the call itself.
	var qmsg winMsg
	procPeekMessageW.Call(uintptr(unsafe.Pointer(&qmsg)), 0, 0, 0, pmNoRemove)

	// Track ids registered on this thread so exit always releases them.
	registered := map[int32]struct{}{}
	defer func() {
		for id := range registered {
			if err := unregisterHotKey(id); err != nil {
				slog.Error("[hotkey-loop] unregister on loop exit failed", "error", err, "hotkeyID", id)
			}
		}
	}()

	readyCh <- loopReady{threadID: threadID}

	for {
		var msg winMsg
		ret, _, lastErr := procGetMessageW.Call(uintptr(unsafe.Pointer(&msg)), 0, 0, 0)
		switch int32(ret) {
		case -1:
			slog.Warn("[hotkey-loop] GetMessageW returned error, exiting loop", "error", lastErr)
			return
		case 0:
			// WM_QUIT: normal shutdown path.
			slog.Info("[hotkey-loop] received WM_QUIT, exiting")
			return
		}

		switch msg.message {
		case wmHotkey:
			ev := HotkeyEvent{ID: int32(msg.wParam), Time: time.Now()}
			select {
			case l.events <- ev:
			default:
				slog.Warn("[hotkey-loop] event buffer full, dropping activation", "hotkeyID", ev.ID)
			}
		case wmApp:
			l.drainOps(registered)
		default:
			procTranslateMessage.Call(uintptr(unsafe.Pointer(&msg)))
			procDispatchMessageW.Call(uintptr(unsafe.Pointer(&msg)))
		}
	}
}

func (l *MessageLoop) drainOps(registered map[int32]struct{}) {
	for _, op := range l.pending.drain() {
		var err error
		if op.unregister {
			err = unregisterHotKey(op.id)
			delete(registered, op.id)
		} else {
			err = registerHotKey(op.id, op.modifiers, op.vk)
			if err == nil {
				registered[op.id] = struct{}{}
			}
		}
		op.result <- err
	}
}

func postThreadMessage(threadID uint32, message uint32) error {
	if threadID == 0 {
		return errors.New("cannot post message: threadID is 0")
	}
	ret, _, err := procPostThreadMessageW.Call(uintptr(threadID), uintptr(message), 0, 0)
	if ret != 0 {
		return nil
	}
	if err == windows.Errno(0) {
		return errors.New("PostThreadMessageW failed")
	}
	return err
}
