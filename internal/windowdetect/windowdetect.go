// Package windowdetect finds the managed windows and reports which window
// has focus.
package windowdetect

import (
	"fmt"
	"os"
	"strings"

	"github.com/dooshek/multiboxer/internal/logger"
	"github.com/dooshek/multiboxer/internal/types"
	"github.com/dooshek/multiboxer/internal/xdotool"
	"github.com/rs/zerolog"
)

// EWMH answers focus and title queries from the window manager hints.
// Implemented by x11.Conn.
type EWMH interface {
	ActiveWindow() (types.WindowID, error)
	Titles() (map[types.WindowID]string, error)
}

// Detector queries EWMH when an X connection is available and xdotool
// otherwise.
type Detector struct {
	ewmh EWMH
	run  xdotool.Runner
	pid  int
	log  zerolog.Logger
}

// New creates a detector. ewmh may be nil.
func New(ewmh EWMH, run xdotool.Runner) *Detector {
	if run == nil {
		run = xdotool.ExecRunner{}
	}
	return &Detector{
		ewmh: ewmh,
		run:  run,
		pid:  os.Getpid(),
		log:  logger.With("windowdetect"),
	}
}

// ActiveWindow returns the focused top-level window.
func (d *Detector) ActiveWindow() (types.WindowID, error) {
	if d.ewmh != nil {
		id, err := d.ewmh.ActiveWindow()
		if err == nil {
			return id, nil
		}
		d.log.Debug().Err(err).Msg("EWMH active window query failed, asking xdotool")
	}
	out, err := d.run.Output("xdotool", "getactivewindow")
	if err != nil {
		return types.NoWindow, fmt.Errorf("failed to get active window: %w", err)
	}
	return xdotool.ParseID(out)
}

// Search returns the visible windows whose title matches pattern, in the
// order xdotool reports them. Windows owned by this process are dropped.
func (d *Detector) Search(pattern string) ([]types.WindowID, error) {
	out, err := d.run.Output("xdotool", "search", "--onlyvisible", "--name", pattern)
	if err != nil {
		// xdotool exits 1 with empty output when nothing matches.
		if len(strings.TrimSpace(string(out))) == 0 {
			return nil, nil
		}
		return nil, fmt.Errorf("xdotool search failed: %w", err)
	}

	var ids []types.WindowID
	for _, id := range xdotool.ParseIDs(out) {
		if d.ownedBySelf(id) {
			d.log.Debug().Uint32("window", uint32(id)).Msg("Skipping own window")
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (d *Detector) ownedBySelf(id types.WindowID) bool {
	out, err := d.run.Output("xdotool", "getwindowpid", id.String())
	if err != nil {
		// Windows without _NET_WM_PID, or already gone.
		return false
	}
	return strings.TrimSpace(string(out)) == fmt.Sprint(d.pid)
}

// Titles maps windows to their titles.
func (d *Detector) Titles() (map[types.WindowID]string, error) {
	if d.ewmh != nil {
		return d.ewmh.Titles()
	}
	return nil, fmt.Errorf("window titles need an X connection")
}

// Title returns the current name of one window.
func (d *Detector) Title(id types.WindowID) (string, error) {
	out, err := d.run.Output("xdotool", "getwindowname", id.String())
	if err != nil {
		return "", fmt.Errorf("failed to get name of window %s: %w", id, err)
	}
	return strings.TrimRight(string(out), "\n"), nil
}
