package hotkeys

import (
	"context"
	"time"
)

// Activation is one detected hotkey press routed to a workspace. Activations
// are emitted in arrival order, one at a time, already filtered of disabled
// workspaces.
type Activation struct {
	WorkspaceID string
	Binding     string
	Time        time.Time
}

// Detector is the key-detection loop contract shared by the polling and
// event implementations. Run blocks until ctx is cancelled; on cancellation
// it unregisters every hotkey before returning and closes the activation
// channel, so no activation is dispatched after the signal is observed.
type Detector interface {
	Run(ctx context.Context) error
	Activations() <-chan Activation
}
