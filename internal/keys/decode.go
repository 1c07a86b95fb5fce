// Package keys decodes raw key events into stable key identities and builds
// injection sequences.
package keys

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ErrUnknownKey is returned when a raw event cannot be mapped to a key.
var ErrUnknownKey = errors.New("unknown key")

// Origin tells which code space a RawEvent's Code belongs to.
type Origin int

const (
	// OriginKeysym codes are X11 keysyms (X11 grabs, gohook on Linux).
	OriginKeysym Origin = iota
	// OriginEvdev codes are Linux input event codes.
	OriginEvdev
)

// RawEvent is a key transition as reported by an input source.
type RawEvent struct {
	Origin Origin
	Code   uint32
	// Text is the glyph the source says the key produced, if it reports one.
	Text string
	Down bool
}

// Key is the decoded, stable identity of a physical key.
type Key struct {
	// Name is the stable name: the lower-cased character for literal keys,
	// a canonical name such as "enter", "f1" or "alt_l" otherwise.
	Name string
	// Text is the printable glyph produced, preserving case and shift
	// variants. Empty for special keys.
	Text string
}

// Decode maps a raw event to its stable key identity.
func Decode(raw RawEvent) (Key, error) {
	var name string
	switch raw.Origin {
	case OriginKeysym:
		name = keysymName(raw.Code)
	case OriginEvdev:
		name = evdevNames[raw.Code]
	default:
		return Key{}, fmt.Errorf("%w: origin %d", ErrUnknownKey, raw.Origin)
	}

	text := raw.Text
	if !printable(text) {
		text = ""
	}
	if name == "" && text != "" {
		name = strings.ToLower(text)
	}
	if name == "" {
		return Key{}, fmt.Errorf("%w: code %#x", ErrUnknownKey, raw.Code)
	}
	if text == "" && utf8.RuneCountInString(name) == 1 {
		text = name
	}
	if name == "space" && text == "" {
		text = " "
	}
	return Key{Name: name, Text: text}, nil
}

func keysymName(sym uint32) string {
	if n, ok := keysymNames[sym]; ok {
		return n
	}
	switch {
	case sym >= 0xffbe && sym <= 0xffc9: // F1..F12
		return fmt.Sprintf("f%d", sym-0xffbe+1)
	case sym == 0x20:
		return "space"
	case sym > 0x20 && sym <= 0x7e, sym >= 0xa0 && sym <= 0xff:
		return string(unicode.ToLower(rune(sym)))
	case sym >= 0x01000100 && sym <= 0x0110ffff:
		return string(unicode.ToLower(rune(sym - 0x01000000)))
	}
	return ""
}

// KeysymText returns the glyph for a printable keysym, or "".
func KeysymText(sym uint32) string {
	switch {
	case sym == 0x20:
		return " "
	case sym > 0x20 && sym <= 0x7e, sym >= 0xa0 && sym <= 0xff:
		return string(rune(sym))
	case sym >= 0x01000100 && sym <= 0x0110ffff:
		return string(rune(sym - 0x01000000))
	}
	return ""
}

func printable(s string) bool {
	if utf8.RuneCountInString(s) != 1 {
		return false
	}
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsPrint(r)
}

// Modifier returns the combo modifier ("alt", "control", "shift") this key
// is a variant of, or "".
func (k Key) Modifier() string {
	return ModifierOf(k.Name)
}

// ModifierOf returns the combo modifier a stable name is a variant of.
func ModifierOf(name string) string {
	switch name {
	case "alt_l", "alt_r", "alt":
		return "alt"
	case "control_l", "control_r", "control":
		return "control"
	case "shift_l", "shift_r", "shift":
		return "shift"
	}
	return ""
}

// IsModifier reports whether a stable name is a modifier key. Super, meta,
// AltGr and lock keys count as modifiers but never appear in combos.
func IsModifier(name string) bool {
	if ModifierOf(name) != "" {
		return true
	}
	switch name {
	case "super_l", "super_r", "meta_l", "meta_r", "iso_level3_shift", "caps_lock", "num_lock":
		return true
	}
	return false
}

// IsLiteral reports whether the key produces a single printable glyph.
func (k Key) IsLiteral() bool {
	return printable(k.Text)
}

// SequenceToken maps a stable name to the token injection tools expect:
// enter -> Return, f1 -> F1, comma -> comma, letters stay lower-case.
func SequenceToken(name string) string {
	if t, ok := sequenceTokens[name]; ok {
		return t
	}
	if len(name) >= 2 && name[0] == 'f' && isDigits(name[1:]) {
		return strings.ToUpper(name)
	}
	if t, ok := punctuationKeysyms[name]; ok {
		return t
	}
	return strings.ToLower(name)
}

// Sequence builds a modifier-prefixed key sequence such as "alt+ctrl+Return".
func Sequence(alt, control, shift bool, name string) string {
	parts := make([]string, 0, 4)
	if alt {
		parts = append(parts, "alt")
	}
	if control {
		parts = append(parts, "ctrl")
	}
	if shift {
		parts = append(parts, "shift")
	}
	return strings.Join(append(parts, SequenceToken(name)), "+")
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
