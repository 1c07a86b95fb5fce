package keys

import "strconv"

// X11 keysyms for the modifier keys
const (
	X11LeftControl  uint32 = 0xffe3
	X11RightControl uint32 = 0xffe4
	X11LeftShift    uint32 = 0xffe1
	X11RightShift   uint32 = 0xffe2
	X11LeftAlt      uint32 = 0xffe9
	X11RightAlt     uint32 = 0xffea
	X11LeftMeta     uint32 = 0xffe7
	X11RightMeta    uint32 = 0xffe8
	X11LeftSuper    uint32 = 0xffeb
	X11RightSuper   uint32 = 0xffec
	X11AltGr        uint32 = 0xfe03
	X11CapsLock     uint32 = 0xffe5
	X11NumLock      uint32 = 0xff7f
)

// Linux evdev codes for the modifier keys
const (
	EvdevLeftControl  uint32 = 29
	EvdevRightControl uint32 = 97
	EvdevLeftShift    uint32 = 42
	EvdevRightShift   uint32 = 54
	EvdevLeftAlt      uint32 = 56
	EvdevRightAlt     uint32 = 100
	EvdevLeftSuper    uint32 = 125
	EvdevRightSuper   uint32 = 126
	EvdevCapsLock     uint32 = 58
)

// keysymNames maps non-printable X11 keysyms to stable names
var keysymNames = map[uint32]string{
	0xff0d: "enter", 0xff8d: "enter",
	0xff09: "tab", 0xfe20: "tab", // ISO_Left_Tab is shift+Tab
	0xff08: "backspace",
	0xff1b: "escape",
	0xffff: "delete", 0xff9f: "delete",
	0xff63: "insert",
	0xff50: "home", 0xff57: "end",
	0xff55: "page_up", 0xff56: "page_down",
	0xff51: "left", 0xff52: "up", 0xff53: "right", 0xff54: "down",
	0xff13: "pause", 0xff61: "print", 0xff14: "scroll_lock",
	0xff67: "menu",
	// modifiers
	X11LeftShift: "shift_l", X11RightShift: "shift_r",
	X11LeftControl: "control_l", X11RightControl: "control_r",
	X11LeftAlt: "alt_l", X11RightAlt: "alt_r",
	X11LeftMeta: "meta_l", X11RightMeta: "meta_r",
	X11LeftSuper: "super_l", X11RightSuper: "super_r",
	X11AltGr:    "iso_level3_shift",
	X11CapsLock: "caps_lock", X11NumLock: "num_lock",
}

// evdevNames maps Linux input event codes to stable names
var evdevNames = map[uint32]string{
	// a-z
	30: "a", 48: "b", 46: "c", 32: "d", 18: "e", 33: "f", 34: "g", 35: "h",
	23: "i", 36: "j", 37: "k", 38: "l", 50: "m", 49: "n", 24: "o", 25: "p",
	16: "q", 19: "r", 31: "s", 20: "t", 22: "u", 47: "v", 17: "w", 45: "x",
	21: "y", 44: "z",
	// 0-9
	11: "0", 2: "1", 3: "2", 4: "3", 5: "4", 6: "5", 7: "6", 8: "7", 9: "8", 10: "9",
	// Special characters
	41: "`", 26: "[", 27: "]", 43: "\\", 39: ";", 40: "'", 51: ",", 52: ".", 53: "/", 12: "-", 13: "=",
	// F1-F12
	59: "f1", 60: "f2", 61: "f3", 62: "f4", 63: "f5", 64: "f6",
	65: "f7", 66: "f8", 67: "f9", 68: "f10", 87: "f11", 88: "f12",
	// specials
	1: "escape", 14: "backspace", 15: "tab", 28: "enter", 96: "enter", 57: "space",
	102: "home", 103: "up", 104: "page_up", 105: "left", 106: "right",
	107: "end", 108: "down", 109: "page_down", 110: "insert", 111: "delete",
	// modifiers
	EvdevLeftControl: "control_l", EvdevRightControl: "control_r",
	EvdevLeftShift: "shift_l", EvdevRightShift: "shift_r",
	EvdevLeftAlt: "alt_l", EvdevRightAlt: "alt_r",
	EvdevLeftSuper: "super_l", EvdevRightSuper: "super_r",
	EvdevCapsLock: "caps_lock",
}

// punctuationKeysyms maps printable punctuation to the keysym names
// injection tools expect when the key is sent with modifiers.
var punctuationKeysyms = map[string]string{
	" ": "space", "!": "exclam", "\"": "quotedbl", "#": "numbersign",
	"$": "dollar", "%": "percent", "&": "ampersand", "'": "apostrophe",
	"(": "parenleft", ")": "parenright", "*": "asterisk", "+": "plus",
	",": "comma", "-": "minus", ".": "period", "/": "slash",
	":": "colon", ";": "semicolon", "<": "less", "=": "equal",
	">": "greater", "?": "question", "@": "at", "[": "bracketleft",
	"\\": "backslash", "]": "bracketright", "^": "asciicircum", "_": "underscore",
	"`": "grave", "{": "braceleft", "|": "bar", "}": "braceright",
	"~": "asciitilde",
}

// sequenceTokens maps stable names of special keys to injection tokens
var sequenceTokens = map[string]string{
	"enter":     "Return",
	"tab":       "Tab",
	"backspace": "BackSpace",
	"escape":    "Escape",
	"delete":    "Delete",
	"insert":    "Insert",
	"home":      "Home",
	"end":       "End",
	"page_up":   "Prior",
	"page_down": "Next",
	"left":      "Left",
	"right":     "Right",
	"up":        "Up",
	"down":      "Down",
	"space":     "space",
	"pause":     "Pause",
	"print":     "Print",
	"menu":      "Menu",
}

// GrabBaseKeys is the fixed table of keysym names intercepted while a
// managed window has focus.
var GrabBaseKeys = func() []string {
	keys := make([]string, 0, 64)
	for c := 'a'; c <= 'z'; c++ {
		keys = append(keys, string(c))
	}
	for c := '0'; c <= '9'; c++ {
		keys = append(keys, string(c))
	}
	for i := 1; i <= 12; i++ {
		keys = append(keys, "F"+strconv.Itoa(i))
	}
	return append(keys,
		"space", "Tab", "Return", "Up", "Down", "Left", "Right",
		"minus", "equal", "BackSpace", "Escape",
		"Prior", "Next", "Home", "End", "Insert", "Delete",
	)
}()
