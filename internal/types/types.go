package types

import "strconv"

// WindowID is an opaque top-level window handle from the windowing system.
type WindowID uint32

// NoWindow means "no window": nothing focused, or a failed query.
const NoWindow WindowID = 0

func (w WindowID) String() string {
	return strconv.FormatUint(uint64(w), 10)
}

// BroadcastMode selects how keystrokes are replayed into the other windows.
type BroadcastMode string

const (
	// ModeFocusSweep focuses each target, injects, then restores focus.
	// Reliable, but latency grows with every target.
	ModeFocusSweep BroadcastMode = "focus_sweep"
	// ModeBackground addresses each window directly without changing focus.
	// Fast, but some applications ignore input sent to unfocused windows.
	ModeBackground BroadcastMode = "background"
)

// Valid reports whether m names a known mode.
func (m BroadcastMode) Valid() bool {
	return m == ModeFocusSweep || m == ModeBackground
}

// InputSource selects where raw key events come from.
type InputSource string

const (
	SourceX11   InputSource = "x11"
	SourceHook  InputSource = "hook"
	SourceEvdev InputSource = "evdev"
)

// InjectorKind selects the external input-injection utility.
type InjectorKind string

const (
	InjectorXdotool InjectorKind = "xdotool"
	InjectorRobotgo InjectorKind = "robotgo"
)

// LayoutMode selects how ApplyLayout arranges the managed windows.
type LayoutMode string

const (
	LayoutMaximize       LayoutMode = "maximize"
	LayoutTileHorizontal LayoutMode = "tile_horizontal"
	LayoutMainLeft       LayoutMode = "main_left"
	LayoutGrid           LayoutMode = "grid"
)

func (m LayoutMode) Valid() bool {
	switch m {
	case LayoutMaximize, LayoutTileHorizontal, LayoutMainLeft, LayoutGrid:
		return true
	}
	return false
}

type Shortcuts struct {
	Prev            string   `yaml:"prev"`
	Next            string   `yaml:"next"`
	MinimizeAll     string   `yaml:"minimize_all"`
	CloseAll        string   `yaml:"close_all"`
	ToggleBroadcast string   `yaml:"toggle_broadcast"`
	ToggleOverlay   string   `yaml:"toggle_overlay"`
	WindowKeys      []string `yaml:"window_keys"`
}

// Timings are the fixed, bounded sleeps of the engine, in milliseconds.
type Timings struct {
	FocusPollMs     int `yaml:"focus_poll_ms"`
	FocusSettleMs   int `yaml:"focus_settle_ms"`
	RestoreSettleMs int `yaml:"restore_settle_ms"`
}

type DBusConfig struct {
	Enabled bool `yaml:"enabled"`
}

type NotificationConfig struct {
	Enabled bool `yaml:"enabled"`
}

type Config struct {
	Pattern          string             `yaml:"pattern"`
	TitlePrefix      string             `yaml:"title_prefix"` // managed windows become "<prefix> N"; empty disables
	BroadcastEnabled bool               `yaml:"broadcast_enabled"`
	BroadcastMode    BroadcastMode      `yaml:"broadcast_mode"`
	Injector         InjectorKind       `yaml:"injector"`
	InputSource      InputSource        `yaml:"input_source"`
	OverlayEnabled   bool               `yaml:"overlay_enabled"`
	OverlayColor     string             `yaml:"overlay_color"`
	OverlayFontSize  int                `yaml:"overlay_font_size"`
	InhibitKeys      []string           `yaml:"inhibit_keys"`
	Shortcuts        Shortcuts          `yaml:"shortcuts"`
	Timings          Timings            `yaml:"timings"`
	DBus             DBusConfig         `yaml:"dbus"`
	Notifications    NotificationConfig `yaml:"notifications"`
}

// DefaultConfig mirrors the settings a fresh install starts with.
func DefaultConfig() *Config {
	return &Config{
		Pattern:          "World of Warcraft",
		TitlePrefix:      "WoW Window",
		BroadcastEnabled: true,
		BroadcastMode:    ModeFocusSweep,
		Injector:         InjectorXdotool,
		InputSource:      SourceX11,
		OverlayEnabled:   true,
		OverlayColor:     "#00FF00",
		OverlayFontSize:  36000,
		InhibitKeys:      []string{"Alt_L", "Alt_R", "Control_L", "Control_R", "Escape"},
		Shortcuts: Shortcuts{
			Prev:            "Alt+a",
			Next:            "Alt+d",
			MinimizeAll:     "Alt+m",
			CloseAll:        "Alt+Delete",
			ToggleBroadcast: "Alt+b",
			ToggleOverlay:   "Alt+o",
			WindowKeys:      []string{"Alt+F1", "Alt+F2", "Alt+F3", "Alt+F4", "Alt+F5"},
		},
		Timings: Timings{
			FocusPollMs:     50,
			FocusSettleMs:   10,
			RestoreSettleMs: 6,
		},
		DBus:          DBusConfig{Enabled: true},
		Notifications: NotificationConfig{Enabled: true},
	}
}

// Clone returns a deep copy so snapshots can be handed out safely.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	out := *c
	out.InhibitKeys = append([]string(nil), c.InhibitKeys...)
	out.Shortcuts.WindowKeys = append([]string(nil), c.Shortcuts.WindowKeys...)
	return &out
}

// GetBroadcastMode returns the configured mode, defaulting to focus sweep.
func (c *Config) GetBroadcastMode() BroadcastMode {
	if c.BroadcastMode.Valid() {
		return c.BroadcastMode
	}
	return ModeFocusSweep
}

// GetTimings returns timings with defaults applied and the poll interval
// clamped to the 20-50 ms window.
func (c *Config) GetTimings() Timings {
	t := c.Timings
	switch {
	case t.FocusPollMs <= 0:
		t.FocusPollMs = 50
	case t.FocusPollMs < 20:
		t.FocusPollMs = 20
	case t.FocusPollMs > 50:
		t.FocusPollMs = 50
	}
	if t.FocusSettleMs <= 0 {
		t.FocusSettleMs = 10
	}
	if t.RestoreSettleMs <= 0 {
		t.RestoreSettleMs = 6
	}
	return t
}
