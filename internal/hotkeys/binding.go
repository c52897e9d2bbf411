// Package hotkeys implements the hotkey core of workset: the binding
// grammar ("Ctrl+Alt+H"), the registry that owns OS registration ids, and
// the key-detection loop that turns key state into workspace activations.
package hotkeys

import (
	"errors"
	"fmt"
	"strings"
)

// Modifier is a Win32 hotkey modifier bitmask (MOD_ALT and friends).
type Modifier uint32

// VKey is a Win32 virtual-key code.
type VKey uint32

const (
	ModAlt     Modifier = 0x0001
	ModControl Modifier = 0x0002
	ModShift   Modifier = 0x0004
	ModWin     Modifier = 0x0008
)

// ErrInvalidBinding is wrapped by every ParseBinding failure.
var ErrInvalidBinding = errors.New("invalid hotkey binding")

// Binding is a parsed, normalized global hotkey.
// Construct only via ParseBinding to guarantee invariant consistency.
type Binding struct {
	modifiers  Modifier
	key        VKey
	keyToken   string
	normalized string
}

// Modifiers returns the modifier bitmask.
func (b Binding) Modifiers() Modifier { return b.modifiers }

// Key returns the virtual-key code of the terminal key.
func (b Binding) Key() VKey { return b.key }

// KeyToken returns the canonical terminal key token (e.g. "H", "F12").
func (b Binding) KeyToken() string { return b.keyToken }

// Normalized returns the canonical binding string: modifiers in fixed
// Ctrl, Alt, Shift, Win order, then the key token. Two bindings are the
// same hotkey iff their normalized strings are equal.
func (b Binding) Normalized() string { return b.normalized }

// HasModifiers reports whether at least one modifier is present. The
// grammar accepts bare terminal keys; registering one globally captures
// every press of that key system-wide, so callers warn on this.
func (b Binding) HasModifiers() bool { return b.modifiers != 0 }

// IsZero reports whether b is the zero Binding (not produced by ParseBinding).
func (b Binding) IsZero() bool { return b.normalized == "" }

// Equal reports whether two bindings denote the same modifier set and key,
// regardless of the spelling they were parsed from.
func (b Binding) Equal(other Binding) bool {
	return b.modifiers == other.modifiers && b.key == other.key
}

// canonicalModifierOrder fixes the order modifiers appear in normalized
// strings, independent of input order.
var canonicalModifierOrder = []struct {
	mod  Modifier
	name string
}{
	{ModControl, "Ctrl"},
	{ModAlt, "Alt"},
	{ModShift, "Shift"},
	{ModWin, "Win"},
}

var modifierByName = map[string]Modifier{
	"CTRL":  ModControl,
	"ALT":   ModAlt,
	"SHIFT": ModShift,
	"WIN":   ModWin,
}

// ParseBinding parses a binding like "Ctrl+Alt+H": zero to four distinct
// modifiers (case-insensitive, any order) joined by '+', followed by exactly
// one terminal key from the fixed vocabulary in keytable.go. Parsing is pure.
//
// A terminal key with no modifiers is accepted. That matches the historical
// grammar; it is almost certainly a bad idea for single letters (the hotkey
// would hijack ordinary typing), which is why Registry.Register logs a
// warning for modifier-less bindings rather than this function rejecting them.
func ParseBinding(spec string) (Binding, error) {
	raw := strings.TrimSpace(spec)
	if raw == "" {
		return Binding{}, fmt.Errorf("%w: empty spec", ErrInvalidBinding)
	}

	parts := strings.Split(raw, "+")
	var modifiers Modifier
	for _, token := range parts[:len(parts)-1] {
		name := strings.ToUpper(strings.TrimSpace(token))
		mod, ok := modifierByName[name]
		if !ok {
			return Binding{}, fmt.Errorf("%w: unknown modifier %q in %q", ErrInvalidBinding, token, raw)
		}
		if modifiers&mod != 0 {
			return Binding{}, fmt.Errorf("%w: duplicate modifier %q in %q", ErrInvalidBinding, token, raw)
		}
		modifiers |= mod
	}

	keyToken := strings.TrimSpace(parts[len(parts)-1])
	key, canonical, ok := keyFromToken(keyToken)
	if !ok {
		return Binding{}, fmt.Errorf("%w: unknown key %q in %q", ErrInvalidBinding, keyToken, raw)
	}

	var sb strings.Builder
	for _, entry := range canonicalModifierOrder {
		if modifiers&entry.mod != 0 {
			sb.WriteString(entry.name)
			sb.WriteByte('+')
		}
	}
	sb.WriteString(canonical)

	return Binding{
		modifiers:  modifiers,
		key:        key,
		keyToken:   canonical,
		normalized: sb.String(),
	}, nil
}

// IsValidBinding reports whether spec parses. Mirrors the validity check the
// workspace model applies to stored hotkey strings.
func IsValidBinding(spec string) bool {
	_, err := ParseBinding(spec)
	return err == nil
}
