package inject

import (
	"strings"

	"github.com/dooshek/multiboxer/internal/broadcast"
	"github.com/dooshek/multiboxer/internal/types"
	"github.com/go-vgo/robotgo"
)

// Robotgo injects through the XTEST extension in-process. It can only type
// into the focused window.
type Robotgo struct {
	tap  func(key string, mods []string) error
	text func(s string)
}

func NewRobotgo() *Robotgo {
	return &Robotgo{
		tap: func(key string, mods []string) error {
			if len(mods) == 0 {
				return robotgo.KeyTap(key)
			}
			return robotgo.KeyTap(key, mods)
		},
		text: func(s string) { robotgo.TypeStr(s) },
	}
}

func (r *Robotgo) InjectKey(sequence string, target types.WindowID) error {
	if target != types.NoWindow {
		return broadcast.ErrWindowTargetUnsupported
	}
	key, mods := robotgoKey(sequence)
	return r.tap(key, mods)
}

func (r *Robotgo) InjectLiteral(char string, target types.WindowID) error {
	if target != types.NoWindow {
		return broadcast.ErrWindowTargetUnsupported
	}
	r.text(char)
	return nil
}

var robotgoNames = map[string]string{
	"Return":    "enter",
	"Tab":       "tab",
	"BackSpace": "backspace",
	"Escape":    "esc",
	"Delete":    "delete",
	"Insert":    "insert",
	"Home":      "home",
	"End":       "end",
	"Prior":     "pageup",
	"Next":      "pagedown",
	"Left":      "left",
	"Right":     "right",
	"Up":        "up",
	"Down":      "down",
	"space":     "space",
	"Print":     "printscreen",
	"Menu":      "menu",
	"Pause":     "pause",

	"minus": "-", "equal": "=", "bracketleft": "[", "bracketright": "]",
	"backslash": "\\", "semicolon": ";", "apostrophe": "'", "grave": "`",
	"comma": ",", "period": ".", "slash": "/", "plus": "+",
}

var robotgoMods = map[string]string{
	"alt":   "alt",
	"ctrl":  "ctrl",
	"shift": "shift",
}

// robotgoKey splits an xdotool style sequence ("alt+ctrl+Return") into a
// robotgo key name and its modifiers.
func robotgoKey(sequence string) (string, []string) {
	parts := strings.Split(sequence, "+")
	key := parts[len(parts)-1]
	var mods []string
	for _, p := range parts[:len(parts)-1] {
		if m, ok := robotgoMods[p]; ok {
			mods = append(mods, m)
		}
	}
	if name, ok := robotgoNames[key]; ok {
		return name, mods
	}
	if len(key) > 1 && key[0] == 'F' {
		return strings.ToLower(key), mods
	}
	return key, mods
}
