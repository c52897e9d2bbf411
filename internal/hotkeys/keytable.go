package hotkeys

import "strings"

// Virtual-key codes for the modifier keys themselves, used by the polling
// detector to sample GetAsyncKeyState.
const (
	VKShift   VKey = 0x10
	VKControl VKey = 0x11
	VKMenu    VKey = 0x12 // Alt
	VKLWin    VKey = 0x5B
	VKRWin    VKey = 0x5C
)

// namedKeys is the fixed terminal-key vocabulary beyond letters and digits.
// Tokens are canonical uppercase; lookup is case-insensitive via keyFromToken.
var namedKeys = map[string]VKey{
	// Function keys
	"F1": 0x70, "F2": 0x71, "F3": 0x72, "F4": 0x73,
	"F5": 0x74, "F6": 0x75, "F7": 0x76, "F8": 0x77,
	"F9": 0x78, "F10": 0x79, "F11": 0x7A, "F12": 0x7B,
	"F13": 0x7C, "F14": 0x7D, "F15": 0x7E, "F16": 0x7F,
	"F17": 0x80, "F18": 0x81, "F19": 0x82, "F20": 0x83,
	"F21": 0x84, "F22": 0x85, "F23": 0x86, "F24": 0x87,

	// Numpad
	"NUMPAD0": 0x60, "NUMPAD1": 0x61, "NUMPAD2": 0x62, "NUMPAD3": 0x63,
	"NUMPAD4": 0x64, "NUMPAD5": 0x65, "NUMPAD6": 0x66, "NUMPAD7": 0x67,
	"NUMPAD8": 0x68, "NUMPAD9": 0x69,
	"NUMPADMULTIPLY":  0x6A,
	"NUMPADADD":       0x6B,
	"NUMPADSEPARATOR": 0x6C,
	"NUMPADSUBTRACT":  0x6D,
	"NUMPADDOT":       0x6E,
	"NUMPADDIVIDE":    0x6F,

	// Arrows
	"UP": 0x26, "DOWN": 0x28, "LEFT": 0x25, "RIGHT": 0x27,

	// Navigation / editing
	"BACKSPACE": 0x08,
	"TAB":       0x09,
	"ENTER":     0x0D,
	"PAUSE":     0x13,
	"CAPSLOCK":  0x14,
	"ESCAPE":    0x1B,
	"SPACE":     0x20,
	"PAGEUP":    0x21,
	"PAGEDOWN":  0x22,
	"END":       0x23,
	"HOME":      0x24,
	"INSERT":    0x2D,
	"DELETE":    0x2E,

	// OEM punctuation
	"OEM_PLUS":   0xBB, // '=+'
	"OEM_COMMA":  0xBC, // ',<'
	"OEM_MINUS":  0xBD, // '-_'
	"OEM_PERIOD": 0xBE, // '.>'
	"OEM_1":      0xBA, // ';:'
	"OEM_2":      0xBF, // '/?'
	"OEM_3":      0xC0, // '`~'
	"OEM_4":      0xDB, // '[{'
	"OEM_5":      0xDC, // '\|'
	"OEM_6":      0xDD, // ']}'
	"OEM_7":      0xDE, // ''"'

	// Lock / system keys
	"PRINTSCREEN": 0x2C,
	"SCROLLLOCK":  0x91,
	"NUMLOCK":     0x90,

	// Side-specific modifiers as terminal keys
	"LEFTSHIFT": 0xA0, "RIGHTSHIFT": 0xA1,
	"LEFTCTRL": 0xA2, "RIGHTCTRL": 0xA3,
	"LEFTALT": 0xA4, "RIGHTALT": 0xA5,
}

// keyFromToken resolves a terminal-key token to its virtual-key code and
// canonical spelling. Single letters and digits map directly to their ASCII
// codes (Win32 virtual keys for '0'-'9' and 'A'-'Z' equal the character).
func keyFromToken(token string) (VKey, string, bool) {
	upper := strings.ToUpper(token)
	if upper == "" {
		return 0, "", false
	}
	if len(upper) == 1 {
		ch := upper[0]
		if (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9') {
			return VKey(ch), upper, true
		}
		return 0, "", false
	}
	if vk, ok := namedKeys[upper]; ok {
		return vk, upper, true
	}
	return 0, "", false
}
