package hotkeys

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Win32 reserves [0x0000, 0x3FFF] for shared-DLL hotkey ids; applications
// get [0x4000, 0xBFFF].
const (
	firstHotkeyID int32 = 0x4000
	maxHotkeyID   int32 = 0xBFFF
)

var (
	// ErrConflict means the modifier/key combination is already bound, either
	// by another workspace in this registry or by another application.
	ErrConflict = errors.New("hotkey combination already registered")

	// ErrInvalidKey means the binding carries no usable virtual-key code.
	ErrInvalidKey = errors.New("hotkey key cannot be translated to a key code")

	// ErrIDExhausted means the Win32 application hotkey id range is used up.
	ErrIDExhausted = errors.New("hotkey id range exhausted")

	// ErrAlreadyBound means the workspace already holds a registration;
	// use Reassign to replace it.
	ErrAlreadyBound = errors.New("workspace already has a registered hotkey")
)

// Binder performs the OS-level hotkey bind/unbind. The event-mode binder
// talks to the Win32 message loop; the polling-mode binder only validates,
// since polling samples key state directly and never registers with the OS.
type Binder interface {
	BindHotkey(id int32, modifiers uint32, vk uint32) error
	UnbindHotkey(id int32) error
}

// Registration is a snapshot of one live hotkey registration.
type Registration struct {
	ID          int32
	WorkspaceID string
	Binding     Binding
}

// Registry owns the mapping between registration ids, workspaces, and
// bindings. It allocates process-unique ids, enforces at most one live OS
// registration per id and at most one id per workspace, and funnels every
// OS call through its Binder.
//
// The mutex guards the maps and is held across the single OS call of each
// mutation, and nothing else; in particular it is never held while a
// workspace toggle runs.
type Registry struct {
	mu          sync.Mutex
	binder      Binder
	nextID      int32
	freeIDs     []int32
	byID        map[int32]Registration
	byKey       map[string]int32 // normalized binding -> id
	byWorkspace map[string]int32 // workspace id -> id
}

// NewRegistry creates an empty registry backed by the given binder.
func NewRegistry(binder Binder) *Registry {
	return &Registry{
		binder:      binder,
		nextID:      firstHotkeyID,
		byID:        make(map[int32]Registration),
		byKey:       make(map[string]int32),
		byWorkspace: make(map[string]int32),
	}
}

// Register allocates a fresh id, binds the hotkey with the OS, and records
// the registration. Fails with ErrConflict if the combination is taken,
// ErrAlreadyBound if the workspace already holds a registration, and
// ErrInvalidKey for a zero key code.
func (r *Registry) Register(workspaceID string, b Binding) (int32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registerLocked(workspaceID, b)
}

func (r *Registry) registerLocked(workspaceID string, b Binding) (int32, error) {
	if b.IsZero() || b.Key() == 0 {
		return 0, ErrInvalidKey
	}
	if !b.HasModifiers() {
		// Permitted by the grammar but globally captures every press of the
		// key; almost never what the user wants for a plain letter.
		slog.Warn("[hotkey] registering modifier-less binding; it will swallow all presses of this key system-wide",
			"binding", b.Normalized(), "workspaceID", workspaceID)
	}

	if _, taken := r.byKey[b.Normalized()]; taken {
		return 0, fmt.Errorf("%q: %w", b.Normalized(), ErrConflict)
	}
	if _, bound := r.byWorkspace[workspaceID]; bound {
		return 0, ErrAlreadyBound
	}

	id, err := r.allocateIDLocked()
	if err != nil {
		return 0, err
	}

	if err := r.binder.BindHotkey(id, uint32(b.Modifiers()), uint32(b.Key())); err != nil {
		r.freeIDs = append(r.freeIDs, id)
		return 0, fmt.Errorf("bind %q: %w", b.Normalized(), err)
	}

	r.byID[id] = Registration{ID: id, WorkspaceID: workspaceID, Binding: b}
	r.byKey[b.Normalized()] = id
	r.byWorkspace[workspaceID] = id
	slog.Info("[hotkey] registered", "binding", b.Normalized(), "id", id, "workspaceID", workspaceID)
	return id, nil
}

// Unregister releases the OS binding and removes the registration. Returns
// false if the id was not (or no longer) registered; that is non-fatal.
func (r *Registry) Unregister(id int32) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.unregisterLocked(id)
}

// Reassign replaces the workspace's registration with a new binding. The
// old id is unregistered before the new one is registered; leaving a stale
// system-wide binding behind would make some future unrelated shortcut
// collide with it. The swap happens under one lock hold, so no concurrent
// mutation can observe the workspace half-unbound.
func (r *Registry) Reassign(workspaceID string, b Binding) (int32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b.IsZero() || b.Key() == 0 {
		// Reject before touching the old binding; an invalid replacement
		// must not cost the workspace its working hotkey.
		return 0, ErrInvalidKey
	}
	if oldID, ok := r.byWorkspace[workspaceID]; ok {
		r.unregisterLocked(oldID)
	}
	return r.registerLocked(workspaceID, b)
}

// ClearWorkspace drops the workspace's registration, if any.
func (r *Registry) ClearWorkspace(workspaceID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byWorkspace[workspaceID]
	if !ok {
		return false
	}
	return r.unregisterLocked(id)
}

// Lookup resolves a registration id to its workspace. The detection loop
// uses this to route an activation.
func (r *Registry) Lookup(id int32) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.byID[id]
	if !ok {
		return "", false
	}
	return reg.WorkspaceID, true
}

// WorkspaceBinding returns the workspace's current registration, if any.
func (r *Registry) WorkspaceBinding(workspaceID string) (Registration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byWorkspace[workspaceID]
	if !ok {
		return Registration{}, false
	}
	return r.byID[id], true
}

// Registrations returns a snapshot of all live registrations.
func (r *Registry) Registrations() []Registration {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Registration, 0, len(r.byID))
	for _, reg := range r.byID {
		out = append(out, reg)
	}
	return out
}

// UnregisterAll releases every live registration. Called on shutdown so no
// system-wide binding outlives the process, and by the detection loop when
// its cancellation signal arrives.
func (r *Registry) UnregisterAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id := range r.byID {
		r.unregisterLocked(id)
	}
}

func (r *Registry) allocateIDLocked() (int32, error) {
	if n := len(r.freeIDs); n > 0 {
		id := r.freeIDs[n-1]
		r.freeIDs = r.freeIDs[:n-1]
		return id, nil
	}
	if r.nextID > maxHotkeyID {
		return 0, ErrIDExhausted
	}
	id := r.nextID
	r.nextID++
	return id, nil
}

func (r *Registry) unregisterLocked(id int32) bool {
	reg, ok := r.byID[id]
	if !ok {
		return false
	}
	if err := r.binder.UnbindHotkey(id); err != nil {
		// The map entry is removed regardless: a failed OS unbind usually
		// means the binding is already gone (thread exit released it).
		slog.Warn("[hotkey] OS unbind failed", "error", err, "id", id, "binding", reg.Binding.Normalized())
	}
	delete(r.byID, id)
	delete(r.byKey, reg.Binding.Normalized())
	delete(r.byWorkspace, reg.WorkspaceID)
	r.freeIDs = append(r.freeIDs, id)
	slog.Info("[hotkey] unregistered", "binding", reg.Binding.Normalized(), "id", id)
	return true
}
