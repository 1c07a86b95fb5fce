package core

import (
	"errors"
	"fmt"

	"github.com/dooshek/multiboxer/internal/types"
	"github.com/dooshek/multiboxer/internal/windowctl"
)

// ErrNoWindows is returned by ApplyLayout when the managed set is empty.
var ErrNoWindows = errors.New("no managed windows")

// minTileHeight keeps tiles usable when many windows share the screen.
const minTileHeight = 10

// ApplyLayout arranges the managed windows. Grid places windows of
// width x height left to right, wrapping at the screen edge; the other
// modes ignore the size. One window failing does not stop the others.
func (c *Controller) ApplyLayout(mode types.LayoutMode, width, height int) error {
	if !mode.Valid() {
		return fmt.Errorf("unknown layout %q", mode)
	}
	ids := c.state.Windows().IDs()
	if len(ids) == 0 {
		return ErrNoWindows
	}
	if mode == types.LayoutMaximize {
		c.eachWindow("maximize", c.deps.Windows.Maximize)
		return nil
	}
	if mode == types.LayoutGrid && (width <= 0 || height <= 0) {
		return fmt.Errorf("invalid grid size %dx%d", width, height)
	}
	if c.deps.Screen == nil {
		return errors.New("screen size unknown without an X connection")
	}
	sw, sh, err := c.deps.Screen.ScreenSize()
	if err != nil {
		return fmt.Errorf("failed to read screen size: %w", err)
	}

	for i, g := range layoutGeometry(mode, len(ids), sw, sh, width, height) {
		if err := c.deps.Windows.MoveResize(ids[i], g); err != nil {
			c.log.Warn().Err(err).Uint32("window", uint32(ids[i])).Msg("Failed to place window")
		}
	}
	c.log.Info().Str("layout", string(mode)).Int("windows", len(ids)).Msg("Layout applied")
	return nil
}

// layoutGeometry computes one rectangle per window, in set order.
func layoutGeometry(mode types.LayoutMode, n, sw, sh, width, height int) []windowctl.Geometry {
	out := make([]windowctl.Geometry, 0, n)
	switch mode {
	case types.LayoutTileHorizontal:
		h := max(minTileHeight, sh/n)
		for i := 0; i < n; i++ {
			out = append(out, windowctl.Geometry{X: 0, Y: i * h, Width: sw, Height: h})
		}
	case types.LayoutMainLeft:
		mainW := sw / 2
		out = append(out, windowctl.Geometry{X: 0, Y: 0, Width: mainW, Height: sh})
		if n > 1 {
			h := max(minTileHeight, sh/(n-1))
			for i := 0; i < n-1; i++ {
				out = append(out, windowctl.Geometry{X: mainW, Y: i * h, Width: sw - mainW, Height: h})
			}
		}
	case types.LayoutGrid:
		perRow := max(1, sw/width)
		for i := 0; i < n; i++ {
			out = append(out, windowctl.Geometry{
				X:      (i % perRow) * width,
				Y:      (i / perRow) * height,
				Width:  width,
				Height: height,
			})
		}
	}
	return out
}
