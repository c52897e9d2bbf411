// Package engine implements the workspace toggle: deciding whether a
// workspace's windows go to their home or target rectangles and moving them
// there. The engine holds no locks and calls the OS only through WindowOps,
// so callers hand it a workspace clone and tests hand it a fake desktop.
package engine

import (
	"log/slog"
	"time"

	"workset/internal/workspace"
)

// WindowOps is the platform window-manipulation surface the engine needs.
// IsLive is a pass-through liveness query with no caching: a cached answer
// would be stale the instant a window closes.
type WindowOps interface {
	IsLive(h workspace.Handle) bool
	Rect(h workspace.Handle) (workspace.Rect, error)
	Move(h workspace.Handle, r workspace.Rect) error
	IsMinimized(h workspace.Handle) bool
	Restore(h workspace.Handle) error
	Activate(h workspace.Handle) bool
}

// Outcome classifies what happened to one window during a toggle.
type Outcome string

const (
	// Moved: the window was moved to the destination (activation may still
	// have failed; see WindowResult.ActivateOK).
	Moved Outcome = "moved"
	// SkippedInvalid: the handle no longer refers to a live window. This is
	// the expected steady-state signal for a closed window, not an error.
	SkippedInvalid Outcome = "skipped_invalid"
	// MoveFailed: the OS rejected the move.
	MoveFailed Outcome = "move_failed"
	// ActivateFailed: the move succeeded but the window could not be
	// brought to the foreground.
	ActivateFailed Outcome = "activate_failed"
)

// WindowResult is the per-window outcome of one toggle.
type WindowResult struct {
	Title   string           `json:"title"`
	Handle  workspace.Handle `json:"handle"`
	Outcome Outcome          `json:"outcome"`
	Detail  string           `json:"detail,omitempty"`
}

// ToggleReport records one toggle invocation.
type ToggleReport struct {
	WorkspaceUID  string         `json:"workspace_uid"`
	WorkspaceName string         `json:"workspace_name"`
	AllAtHome     bool           `json:"all_at_home"`
	Destination   string         `json:"destination"` // "home" or "target"
	Windows       []WindowResult `json:"windows"`
	At            time.Time      `json:"at"`
}

// Moved counts windows that reached the destination.
func (r ToggleReport) Moved() int { return r.count(Moved) + r.count(ActivateFailed) }

// Skipped counts windows excluded for dead handles.
func (r ToggleReport) Skipped() int { return r.count(SkippedInvalid) }

// Failed counts windows whose move was rejected.
func (r ToggleReport) Failed() int { return r.count(MoveFailed) }

func (r ToggleReport) count(o Outcome) int {
	n := 0
	for _, w := range r.Windows {
		if w.Outcome == o {
			n++
		}
	}
	return n
}

// Engine toggles workspaces through a WindowOps implementation.
type Engine struct {
	ops WindowOps
}

// New creates an engine on top of ops.
func New(ops WindowOps) *Engine {
	return &Engine{ops: ops}
}

// Toggle moves every live window of the workspace to the opposite side of
// where the workspace as a whole currently is.
//
// The direction is a single workspace-wide decision: if every live window
// sits exactly at its home rectangle the destination is target, otherwise
// it is home. A half-moved workspace therefore snaps back to home first.
// Moves are issued unconditionally for every live window -- moving a window
// that is already in place is idempotent and keeps the engine robust
// against external drift.
//
// Restore, move, and activate are independent best-effort sub-steps: a
// failure in one never blocks the next sub-step or the next window.
func (e *Engine) Toggle(ws workspace.Workspace) ToggleReport {
	report := ToggleReport{
		WorkspaceUID:  ws.UID,
		WorkspaceName: ws.Name,
		At:            time.Now(),
	}

	live := make(map[workspace.Handle]bool, len(ws.Windows))
	for _, w := range ws.Windows {
		live[w.Handle] = e.ops.IsLive(w.Handle)
	}

	report.AllAtHome = e.allAtHome(ws, live)
	destination := "home"
	if report.AllAtHome {
		destination = "target"
	}
	report.Destination = destination
	slog.Debug("[engine] toggle direction decided",
		"workspace", ws.Name, "allAtHome", report.AllAtHome, "destination", destination)

	for _, w := range ws.Windows {
		if !live[w.Handle] {
			slog.Warn("[engine] skipping dead window", "workspace", ws.Name, "title", w.Title)
			report.Windows = append(report.Windows, WindowResult{
				Title: w.Title, Handle: w.Handle, Outcome: SkippedInvalid,
			})
			continue
		}

		if e.ops.IsMinimized(w.Handle) {
			if err := e.ops.Restore(w.Handle); err != nil {
				slog.Warn("[engine] failed to restore minimized window",
					"workspace", ws.Name, "title", w.Title, "error", err)
			}
		}

		dest := w.Home
		if report.AllAtHome {
			dest = w.Target
		}

		result := WindowResult{Title: w.Title, Handle: w.Handle, Outcome: Moved}
		if err := e.ops.Move(w.Handle, dest); err != nil {
			slog.Warn("[engine] move failed",
				"workspace", ws.Name, "title", w.Title, "dest", dest, "error", err)
			result.Outcome = MoveFailed
			result.Detail = err.Error()
		} else {
			slog.Info("[engine] moved window", "workspace", ws.Name, "title", w.Title, "dest", dest)
		}

		if !e.ops.Activate(w.Handle) {
			slog.Warn("[engine] failed to activate window", "workspace", ws.Name, "title", w.Title)
			if result.Outcome == Moved {
				result.Outcome = ActivateFailed
			}
		}

		report.Windows = append(report.Windows, result)
	}

	return report
}

// allAtHome reports whether every live window sits exactly at its home
// rectangle. Vacuously true when no window is live; the resulting "move to
// target" decision then acts on nothing.
func (e *Engine) allAtHome(ws workspace.Workspace, live map[workspace.Handle]bool) bool {
	for _, w := range ws.Windows {
		if !live[w.Handle] {
			continue
		}
		current, err := e.ops.Rect(w.Handle)
		if err != nil || current != w.Home {
			return false
		}
	}
	return true
}
