// Package x11 owns the connection to the X server: passive key grabs on the
// root window, key event delivery and EWMH focus and title queries.
package x11

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/keybind"
	"github.com/BurntSushi/xgbutil/xevent"
	"github.com/dooshek/multiboxer/internal/logger"
	"github.com/dooshek/multiboxer/internal/types"
)

// ErrNoDisplay is returned when no X display is reachable.
var ErrNoDisplay = errors.New("no X11 display available")

// Conn is a shared X connection. Requests are safe from any goroutine; the
// event loop runs on the goroutine that calls Loop.
type Conn struct {
	xu   *xgbutil.XUtil
	root xproto.Window
}

// Connect opens the display named by $DISPLAY.
func Connect() (*Conn, error) {
	if os.Getenv("DISPLAY") == "" {
		return nil, ErrNoDisplay
	}
	xu, err := xgbutil.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}
	keybind.Initialize(xu)
	return &Conn{xu: xu, root: xu.RootWin()}, nil
}

// XUtil exposes the underlying connection for event wiring.
func (c *Conn) XUtil() *xgbutil.XUtil { return c.xu }

// RootWindow returns the root window of the default screen.
func (c *Conn) RootWindow() xproto.Window { return c.root }

// ActiveWindow reads _NET_ACTIVE_WINDOW from the root window.
func (c *Conn) ActiveWindow() (types.WindowID, error) {
	w, err := ewmh.ActiveWindowGet(c.xu)
	if err != nil {
		return types.NoWindow, fmt.Errorf("failed to read active window: %w", err)
	}
	return types.WindowID(w), nil
}

// ScreenSize returns the size of the default screen in pixels.
func (c *Conn) ScreenSize() (width, height int, err error) {
	s := c.xu.Screen()
	return int(s.WidthInPixels), int(s.HeightInPixels), nil
}

// Titles maps every client window to its _NET_WM_NAME. Windows whose name
// cannot be read are reported with an empty title.
func (c *Conn) Titles() (map[types.WindowID]string, error) {
	clients, err := ewmh.ClientListGet(c.xu)
	if err != nil {
		return nil, fmt.Errorf("failed to read client list: %w", err)
	}
	out := make(map[types.WindowID]string, len(clients))
	for _, w := range clients {
		name, err := ewmh.WmNameGet(c.xu, w)
		if err != nil {
			name = ""
		}
		out[types.WindowID(w)] = name
	}
	return out, nil
}

// Keycodes resolves a keysym name ("a", "F1", "Return") to the keycodes
// producing it on the current keyboard mapping.
func (c *Conn) Keycodes(name string) []uint32 {
	codes := keybind.StrToKeycodes(c.xu, name)
	out := make([]uint32, 0, len(codes))
	for _, kc := range codes {
		if kc != 0 {
			out = append(out, uint32(kc))
		}
	}
	return out
}

// GrabKey installs a single passive grab for keycode on the root window.
// keybind.GrabChecked also grabs mods|Lock and friends, which the server
// rejects with BadValue when mods is AnyModifier; AnyModifier already
// matches those states.
func (c *Conn) GrabKey(code uint32, mods uint16) error {
	return xproto.GrabKeyChecked(c.xu.Conn(), true, c.root, mods, xproto.Keycode(code),
		xproto.GrabModeAsync, xproto.GrabModeAsync).Check()
}

// UngrabKey releases a passive grab installed by GrabKey.
func (c *Conn) UngrabKey(code uint32, mods uint16) error {
	return xproto.UngrabKeyChecked(c.xu.Conn(), xproto.Keycode(code), c.root, mods).Check()
}

// UngrabKeyboard ends an active keyboard grab. A passive grab becomes
// active while its key is held, and synthetic events would keep coming
// back to us until it ends.
func (c *Conn) UngrabKeyboard() error {
	return xproto.UngrabKeyboardChecked(c.xu.Conn(), xproto.TimeCurrentTime).Check()
}

// AnyModifier is the grab mask matching every modifier combination.
const AnyModifier = uint16(xproto.ModMaskAny)

// Keysym returns the keysym in column col of the mapping for keycode.
func (c *Conn) Keysym(code xproto.Keycode, col byte) uint32 {
	return uint32(keybind.KeysymGet(c.xu, code, col))
}

// Loop runs the X event loop until Quit is called.
func (c *Conn) Loop() {
	logger.Debug("X11 event loop started")
	xevent.Main(c.xu)
	logger.Debug("X11 event loop stopped")
}

// Quit stops Loop.
func (c *Conn) Quit() {
	xevent.Quit(c.xu)
}

// Close tears down the connection.
func (c *Conn) Close() {
	c.xu.Conn().Close()
}
