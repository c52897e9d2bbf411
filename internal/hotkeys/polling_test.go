package hotkeys

import (
	"context"
	"testing"
	"time"
)

// fakeKeyboard simulates GetAsyncKeyState: the set of currently-held
// virtual keys.
type fakeKeyboard map[VKey]bool

func (k fakeKeyboard) down(vk uint32) bool { return k[VKey(vk)] }

func (k fakeKeyboard) press(keys ...VKey) {
	for key := range k {
		delete(k, key)
	}
	for _, key := range keys {
		k[key] = true
	}
}

func newTestPollingDetector(t *testing.T, keyboard fakeKeyboard, targets func() []PollTarget) *PollingDetector {
	t.Helper()
	d := NewPollingDetector(NewRegistry(ValidateBinder{}), DefaultPollInterval, targets, keyboard.down)
	d.now = func() time.Time { return time.Unix(1700000000, 0) }
	return d
}

// drain collects whatever is buffered on the activation channel right now.
func drain(d *PollingDetector) []Activation {
	var out []Activation
	for {
		select {
		case act := <-d.Activations():
			out = append(out, act)
		default:
			return out
		}
	}
}

func TestPollingFiresOnceWhileHeld(t *testing.T) {
	keyboard := fakeKeyboard{}
	binding := mustParse(t, "Ctrl+Alt+H")
	targets := func() []PollTarget {
		return []PollTarget{{WorkspaceID: "ws-1", Binding: binding}}
	}
	d := newTestPollingDetector(t, keyboard, targets)
	pressed := map[string]bool{}

	keyboard.press(VKControl, VKMenu, 'H')
	for range 5 {
		d.sample(context.Background(), pressed)
	}

	acts := drain(d)
	if len(acts) != 1 {
		t.Fatalf("held combination fired %d times across 5 ticks, want 1", len(acts))
	}
	if acts[0].WorkspaceID != "ws-1" || acts[0].Binding != "Ctrl+Alt+H" {
		t.Fatalf("activation = %+v, want ws-1 / Ctrl+Alt+H", acts[0])
	}
}

func TestPollingFiresAgainAfterRelease(t *testing.T) {
	keyboard := fakeKeyboard{}
	binding := mustParse(t, "Ctrl+Alt+H")
	targets := func() []PollTarget {
		return []PollTarget{{WorkspaceID: "ws-1", Binding: binding}}
	}
	d := newTestPollingDetector(t, keyboard, targets)
	pressed := map[string]bool{}

	keyboard.press(VKControl, VKMenu, 'H')
	d.sample(context.Background(), pressed)
	keyboard.press() // all released
	d.sample(context.Background(), pressed)
	keyboard.press(VKControl, VKMenu, 'H')
	d.sample(context.Background(), pressed)

	if acts := drain(d); len(acts) != 2 {
		t.Fatalf("press-release-press fired %d times, want 2", len(acts))
	}
}

func TestPollingRequiresAllModifiers(t *testing.T) {
	keyboard := fakeKeyboard{}
	binding := mustParse(t, "Ctrl+Shift+H")
	targets := func() []PollTarget {
		return []PollTarget{{WorkspaceID: "ws-1", Binding: binding}}
	}
	d := newTestPollingDetector(t, keyboard, targets)
	pressed := map[string]bool{}

	keyboard.press(VKControl, 'H') // Shift missing
	d.sample(context.Background(), pressed)
	if acts := drain(d); len(acts) != 0 {
		t.Fatalf("incomplete combination fired %d times, want 0", len(acts))
	}

	keyboard.press(VKControl, VKShift, 'H')
	d.sample(context.Background(), pressed)
	if acts := drain(d); len(acts) != 1 {
		t.Fatalf("complete combination fired %d times, want 1", len(acts))
	}
}

func TestPollingWinModifierAcceptsEitherSide(t *testing.T) {
	keyboard := fakeKeyboard{}
	binding := mustParse(t, "Win+H")
	targets := func() []PollTarget {
		return []PollTarget{{WorkspaceID: "ws-1", Binding: binding}}
	}
	d := newTestPollingDetector(t, keyboard, targets)
	pressed := map[string]bool{}

	keyboard.press(VKRWin, 'H')
	d.sample(context.Background(), pressed)
	if acts := drain(d); len(acts) != 1 {
		t.Fatalf("right Win key fired %d times, want 1", len(acts))
	}
}

func TestPollingDisabledSuppressesButKeepsEdgeState(t *testing.T) {
	keyboard := fakeKeyboard{}
	binding := mustParse(t, "Ctrl+Alt+H")
	disabled := true
	targets := func() []PollTarget {
		return []PollTarget{{WorkspaceID: "ws-1", Binding: binding, Disabled: disabled}}
	}
	d := newTestPollingDetector(t, keyboard, targets)
	pressed := map[string]bool{}

	// Press while disabled: nothing fires, but the edge state records "down".
	keyboard.press(VKControl, VKMenu, 'H')
	d.sample(context.Background(), pressed)
	if acts := drain(d); len(acts) != 0 {
		t.Fatalf("disabled workspace fired %d times, want 0", len(acts))
	}

	// Re-enable while the combination is still held: no retroactive fire.
	disabled = false
	d.sample(context.Background(), pressed)
	if acts := drain(d); len(acts) != 0 {
		t.Fatalf("re-enabling mid-hold fired %d times, want 0", len(acts))
	}

	// A fresh press after release fires normally.
	keyboard.press()
	d.sample(context.Background(), pressed)
	keyboard.press(VKControl, VKMenu, 'H')
	d.sample(context.Background(), pressed)
	if acts := drain(d); len(acts) != 1 {
		t.Fatalf("fresh press after re-enable fired %d times, want 1", len(acts))
	}
}

func TestPollingForgetsRemovedTargets(t *testing.T) {
	keyboard := fakeKeyboard{}
	binding := mustParse(t, "Ctrl+Alt+H")
	var current []PollTarget
	targets := func() []PollTarget { return current }
	d := newTestPollingDetector(t, keyboard, targets)
	pressed := map[string]bool{}

	current = []PollTarget{{WorkspaceID: "ws-1", Binding: binding}}
	keyboard.press(VKControl, VKMenu, 'H')
	d.sample(context.Background(), pressed)
	drain(d)

	// Target disappears (workspace removed) while the keys stay held.
	current = nil
	d.sample(context.Background(), pressed)
	if len(pressed) != 0 {
		t.Fatalf("edge state for removed target not pruned: %v", pressed)
	}
}

func TestPollingRunStopsOnCancelAndClosesStream(t *testing.T) {
	keyboard := fakeKeyboard{}
	d := NewPollingDetector(NewRegistry(ValidateBinder{}), 10*time.Millisecond,
		func() []PollTarget { return nil }, keyboard.down)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after context cancellation")
	}

	if _, open := <-d.Activations(); open {
		t.Fatal("activation channel still open after Run returned")
	}
}
