package hotkeys

import (
	"context"
	"log/slog"

	"workset/internal/win32"
)

// EventDetector consumes WM_HOTKEY notifications from the Win32 message
// loop. Each event carries the registration id the OS was given, which the
// registry resolves back to a workspace. Naturally edge-triggered: the OS
// posts one message per press.
type EventDetector struct {
	registry *Registry
	events   <-chan win32.HotkeyEvent
	disabled func(workspaceID string) bool
	out      chan Activation
}

// NewEventDetector creates an event detector reading from events (normally
// MessageLoop.Events). disabled reports whether a workspace is currently
// disabled; its activations are dropped before dispatch. A nil disabled
// func treats every workspace as enabled.
func NewEventDetector(registry *Registry, events <-chan win32.HotkeyEvent, disabled func(workspaceID string) bool) *EventDetector {
	if disabled == nil {
		disabled = func(string) bool { return false }
	}
	return &EventDetector{
		registry: registry,
		events:   events,
		disabled: disabled,
		out:      make(chan Activation, 16),
	}
}

// Activations returns the ordered activation stream.
func (d *EventDetector) Activations() <-chan Activation { return d.out }

// Run dispatches hotkey events until ctx is cancelled, then unregisters all
// hotkeys and closes the activation channel.
func (d *EventDetector) Run(ctx context.Context) error {
	defer close(d.out)
	defer d.registry.UnregisterAll()

	slog.Info("[detector] event detector started")
	for {
		select {
		case <-ctx.Done():
			slog.Info("[detector] event detector stopping")
			return nil
		case ev, ok := <-d.events:
			if !ok {
				slog.Warn("[detector] hotkey event channel closed, stopping")
				return nil
			}
			workspaceID, found := d.registry.Lookup(ev.ID)
			if !found {
				// Stale id: the registration was removed between the OS
				// posting the message and us consuming it.
				slog.Debug("[detector] dropping event for unknown hotkey id", "id", ev.ID)
				continue
			}
			if d.disabled(workspaceID) {
				continue
			}
			reg, _ := d.registry.WorkspaceBinding(workspaceID)
			act := Activation{WorkspaceID: workspaceID, Binding: reg.Binding.Normalized(), Time: ev.Time}
			select {
			case d.out <- act:
			case <-ctx.Done():
				slog.Info("[detector] event detector stopping")
				return nil
			}
		}
	}
}
