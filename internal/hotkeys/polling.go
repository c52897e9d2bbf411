package hotkeys

import (
	"context"
	"log/slog"
	"time"
)

// DefaultPollInterval matches the historical 100ms sampling cadence.
const DefaultPollInterval = 100 * time.Millisecond

// PollTarget is one workspace shortcut the polling detector samples.
type PollTarget struct {
	WorkspaceID string
	Binding     Binding
	Disabled    bool
}

// TargetFunc returns the current set of shortcuts to sample. Called once
// per tick so the detector always sees live workspace state without holding
// any lock across the sampling pass.
type TargetFunc func() []PollTarget

// KeyStateFunc reports whether a virtual key is currently held down.
type KeyStateFunc func(vk uint32) bool

// PollingDetector samples global key state at a fixed interval and emits an
// activation when every modifier and the terminal key of a shortcut are down
// simultaneously. Firing is edge-triggered: each shortcut keeps its previous
// tick's pressed state and fires only on the false-to-true transition, so a
// held combination produces exactly one activation, not one per tick.
type PollingDetector struct {
	registry *Registry
	interval time.Duration
	targets  TargetFunc
	keyDown  KeyStateFunc
	out      chan Activation

	now func() time.Time // test seam
}

// NewPollingDetector creates a polling detector. interval values below 10ms
// fall back to DefaultPollInterval.
func NewPollingDetector(registry *Registry, interval time.Duration, targets TargetFunc, keyDown KeyStateFunc) *PollingDetector {
	if interval < 10*time.Millisecond {
		interval = DefaultPollInterval
	}
	return &PollingDetector{
		registry: registry,
		interval: interval,
		targets:  targets,
		keyDown:  keyDown,
		out:      make(chan Activation, 16),
		now:      time.Now,
	}
}

// Activations returns the ordered activation stream.
func (d *PollingDetector) Activations() <-chan Activation { return d.out }

// Run samples until ctx is cancelled, then unregisters all hotkeys and
// closes the activation channel.
func (d *PollingDetector) Run(ctx context.Context) error {
	defer close(d.out)
	defer d.registry.UnregisterAll()

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	pressed := make(map[string]bool)
	slog.Info("[detector] polling detector started", "interval", d.interval)

	for {
		select {
		case <-ctx.Done():
			slog.Info("[detector] polling detector stopping")
			return nil
		case <-ticker.C:
			d.sample(ctx, pressed)
		}
	}
}

func (d *PollingDetector) sample(ctx context.Context, pressed map[string]bool) {
	targets := d.targets()
	seen := make(map[string]struct{}, len(targets))

	for _, t := range targets {
		key := t.WorkspaceID + "\x00" + t.Binding.Normalized()
		seen[key] = struct{}{}

		down := d.comboDown(t.Binding)
		fire := down && !pressed[key]
		pressed[key] = down

		if !fire {
			continue
		}
		if t.Disabled {
			// Dropped before dispatch; the edge state above still updated so
			// re-enabling mid-hold does not retro-fire.
			continue
		}

		act := Activation{WorkspaceID: t.WorkspaceID, Binding: t.Binding.Normalized(), Time: d.now()}
		select {
		case d.out <- act:
		case <-ctx.Done():
			return
		}
	}

	// Forget shortcuts that disappeared (workspace deleted or rebound) so a
	// later target under the same key starts from a clean edge state.
	for key := range pressed {
		if _, ok := seen[key]; !ok {
			delete(pressed, key)
		}
	}
}

// comboDown reports whether every modifier and the terminal key of the
// binding are currently held.
func (d *PollingDetector) comboDown(b Binding) bool {
	mods := b.Modifiers()
	if mods&ModControl != 0 && !d.keyDown(uint32(VKControl)) {
		return false
	}
	if mods&ModAlt != 0 && !d.keyDown(uint32(VKMenu)) {
		return false
	}
	if mods&ModShift != 0 && !d.keyDown(uint32(VKShift)) {
		return false
	}
	if mods&ModWin != 0 && !d.keyDown(uint32(VKLWin)) && !d.keyDown(uint32(VKRWin)) {
		return false
	}
	return d.keyDown(uint32(b.Key()))
}
