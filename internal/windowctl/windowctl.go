// Package windowctl activates, minimizes, resizes and closes top-level
// windows through xdotool and wmctrl.
package windowctl

import (
	"fmt"

	"github.com/dooshek/multiboxer/internal/types"
	"github.com/dooshek/multiboxer/internal/xdotool"
)

// Geometry is a window position and size in pixels.
type Geometry struct {
	X, Y, Width, Height int
}

type Controller struct {
	run xdotool.Runner
}

func New(run xdotool.Runner) *Controller {
	if run == nil {
		run = xdotool.ExecRunner{}
	}
	return &Controller{run: run}
}

// Activate raises and focuses the window, waiting until the window manager
// reports it active.
func (c *Controller) Activate(id types.WindowID) error {
	if err := c.run.Run("xdotool", "windowactivate", "--sync", id.String()); err != nil {
		return fmt.Errorf("failed to activate window %s: %w", id, err)
	}
	return nil
}

func (c *Controller) Minimize(id types.WindowID) error {
	return c.wmctrl(id, "-b", "add,hidden")
}

func (c *Controller) Maximize(id types.WindowID) error {
	return c.wmctrl(id, "-b", "add,maximized_vert,maximized_horz")
}

// MoveResize places the window at g on its current desktop.
func (c *Controller) MoveResize(id types.WindowID, g Geometry) error {
	return c.wmctrl(id, "-e", fmt.Sprintf("0,%d,%d,%d,%d", g.X, g.Y, g.Width, g.Height))
}

// SetTitle renames the window. Games overwrite their title, so this is
// mainly useful for telling clients apart in the window list.
func (c *Controller) SetTitle(id types.WindowID, title string) error {
	if err := c.run.Run("xdotool", "set_window", "--name", title, id.String()); err != nil {
		return fmt.Errorf("failed to rename window %s: %w", id, err)
	}
	return nil
}

// Close asks the window to close. The request is not waited for.
func (c *Controller) Close(id types.WindowID) error {
	if err := c.run.Spawn("xdotool", "windowclose", id.String()); err != nil {
		return fmt.Errorf("failed to close window %s: %w", id, err)
	}
	return nil
}

func (c *Controller) wmctrl(id types.WindowID, args ...string) error {
	full := append([]string{"-ir", id.String()}, args...)
	if err := c.run.Run("wmctrl", full...); err != nil {
		return fmt.Errorf("wmctrl %v on window %s failed: %w", args, id, err)
	}
	return nil
}
