package main

import (
	"context"
	"log/slog"
	"sync"

	"workset/internal/hotkeys"
)

// dispatchQueue serializes toggles for one workspace. pending holds at most
// one activation: a press arriving while an earlier one is still executing
// replaces it, so a key mashed five times produces at most one queued toggle
// behind the running one.
type dispatchQueue struct {
	mu      sync.Mutex
	pending *hotkeys.Activation
	wake    chan struct{} // buffered 1
}

func (q *dispatchQueue) enqueue(act hotkeys.Activation) {
	q.mu.Lock()
	coalesced := q.pending != nil
	q.pending = &act
	q.mu.Unlock()
	if coalesced {
		slog.Debug("[dispatch] coalesced duplicate activation", "workspaceID", act.WorkspaceID)
	}
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *dispatchQueue) take() (hotkeys.Activation, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.pending == nil {
		return hotkeys.Activation{}, false
	}
	act := *q.pending
	q.pending = nil
	return act, true
}

// dispatchLoop routes the detector's activation stream into per-workspace
// queues. Ordering per workspace is preserved; distinct workspaces toggle
// concurrently.
func (a *App) dispatchLoop(ctx context.Context) {
	activations := a.detector.Activations()
	for {
		select {
		case <-ctx.Done():
			return
		case act, ok := <-activations:
			if !ok {
				slog.Info("[dispatch] activation stream closed")
				return
			}
			a.queueFor(act.WorkspaceID).enqueue(act)
		}
	}
}

// queueFor returns the workspace's dispatch queue, creating it (and its
// worker goroutine) on first use.
func (a *App) queueFor(workspaceID string) *dispatchQueue {
	a.dispatchMu.Lock()
	defer a.dispatchMu.Unlock()
	q, ok := a.queues[workspaceID]
	if !ok {
		q = &dispatchQueue{wake: make(chan struct{}, 1)}
		a.queues[workspaceID] = q
		a.bgWG.Go(func() { a.queueWorker(q) })
	}
	return q
}

func (a *App) queueWorker(q *dispatchQueue) {
	for {
		select {
		case <-a.ctx.Done():
			return
		case <-q.wake:
			for {
				act, ok := q.take()
				if !ok {
					break
				}
				a.runToggle(act)
			}
		}
	}
}

// runToggle executes one activation end to end: snapshot, toggle, write-back,
// record, broadcast. The store lock is released before the engine touches
// any window.
func (a *App) runToggle(act hotkeys.Activation) {
	ws, ok := a.store.Get(act.WorkspaceID)
	if !ok {
		// Workspace removed between press and dispatch.
		slog.Debug("[dispatch] dropping activation for removed workspace", "workspaceID", act.WorkspaceID)
		return
	}
	if ws.Disabled {
		slog.Debug("[dispatch] dropping activation for disabled workspace", "workspace", ws.Name)
		return
	}

	slog.Info("[dispatch] activation", "workspace", ws.Name, "binding", act.Binding)
	report := a.engine.Toggle(ws)

	a.store.SetLastActivated(ws.UID, act.Binding, act.Time)

	if a.history != nil {
		if err := a.history.Record(a.ctx, act.Binding, report); err != nil {
			slog.Warn("[dispatch] failed to record activation history", "error", err)
		}
	}
	if a.hub != nil {
		a.hub.BroadcastActivation(report)
	}
	a.publishState()
}
