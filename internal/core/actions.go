package core

import (
	"github.com/dooshek/multiboxer/internal/shortcut"
	"github.com/dooshek/multiboxer/internal/types"
)

// RunAction executes a named shortcut action. It runs on the key loop.
func (c *Controller) RunAction(a shortcut.Action) {
	switch a {
	case shortcut.ActionPrev:
		c.cycle(-1)
	case shortcut.ActionNext:
		c.cycle(1)
	case shortcut.ActionMinimizeAll:
		c.eachWindow("minimize", c.deps.Windows.Minimize)
	case shortcut.ActionCloseAll:
		c.eachWindow("close", c.deps.Windows.Close)
	case shortcut.ActionToggleBroadcast:
		c.SetBroadcastEnabled(!c.bc.Enabled())
	case shortcut.ActionToggleOverlay:
		c.SetOverlayEnabled(!c.state.OverlayEnabled())
	default:
		c.log.Warn().Str("action", string(a)).Msg("Unknown action")
	}
}

// FocusIndex activates window n of the managed set. Out-of-range indexes
// are ignored.
func (c *Controller) FocusIndex(index int) {
	id := c.state.Windows().At(index)
	if id == types.NoWindow {
		c.log.Debug().Int("index", index).Msg("No window at index")
		return
	}
	c.activate(id)
}

// cycle moves focus delta positions through the managed set, wrapping
// around. When focus is outside the set it goes to the first window.
func (c *Controller) cycle(delta int) {
	windows := c.state.Windows()
	n := windows.Len()
	if n == 0 {
		return
	}
	target := 0
	if idx := windows.Index(c.tracker.Active()); idx >= 0 {
		target = ((idx+delta)%n + n) % n
	}
	c.activate(windows.At(target))
}

func (c *Controller) activate(id types.WindowID) {
	if err := c.deps.Windows.Activate(id); err != nil {
		c.log.Warn().Err(err).Uint32("window", uint32(id)).Msg("Failed to activate window")
	}
}

// eachWindow applies op to every managed window. One failure does not stop
// the others.
func (c *Controller) eachWindow(name string, op func(types.WindowID) error) {
	for _, id := range c.state.Windows().IDs() {
		if err := op(id); err != nil {
			c.log.Warn().Err(err).Uint32("window", uint32(id)).Str("op", name).Msg("Window operation failed")
		}
	}
}
