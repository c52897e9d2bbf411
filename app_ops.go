package main

import (
	"workset/internal/win32"
	"workset/internal/workspace"
)

// desktopOps is the production WindowOps backed by user32. Each method is a
// direct pass-through; tests substitute a fake desktop instead.
type desktopOps struct{}

func (desktopOps) IsLive(h workspace.Handle) bool {
	return win32.IsWindow(win32.Handle(h))
}

func (desktopOps) Rect(h workspace.Handle) (workspace.Rect, error) {
	x, y, w, hh, err := win32.GetWindowRect(win32.Handle(h))
	if err != nil {
		return workspace.Rect{}, err
	}
	return workspace.Rect{X: x, Y: y, W: w, H: hh}, nil
}

func (desktopOps) Move(h workspace.Handle, r workspace.Rect) error {
	return win32.SetWindowPos(win32.Handle(h), r.X, r.Y, r.W, r.H)
}

func (desktopOps) IsMinimized(h workspace.Handle) bool {
	return win32.IsIconic(win32.Handle(h))
}

func (desktopOps) Restore(h workspace.Handle) error {
	return win32.RestoreWindow(win32.Handle(h))
}

func (desktopOps) Activate(h workspace.Handle) bool {
	return win32.SetForegroundWindow(win32.Handle(h))
}
