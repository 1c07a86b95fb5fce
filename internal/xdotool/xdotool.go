// Package xdotool runs the xdotool and wmctrl command line utilities.
package xdotool

import (
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/dooshek/multiboxer/internal/logger"
	"github.com/dooshek/multiboxer/internal/types"
)

// ErrNotInstalled is returned when a required utility is missing from PATH.
var ErrNotInstalled = errors.New("required utility is not installed")

// Runner executes external commands. Tests replace it with a recorder.
type Runner interface {
	// Output runs the command and returns its standard output.
	Output(name string, args ...string) ([]byte, error)
	// Run runs the command and waits for it to finish.
	Run(name string, args ...string) error
	// Spawn starts the command without waiting for it.
	Spawn(name string, args ...string) error
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Output(name string, args ...string) ([]byte, error) {
	return exec.Command(name, args...).Output()
}

func (ExecRunner) Run(name string, args ...string) error {
	return exec.Command(name, args...).Run()
}

func (ExecRunner) Spawn(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() {
		if err := cmd.Wait(); err != nil {
			logger.Debugf("%s %s exited: %v", name, strings.Join(args, " "), err)
		}
	}()
	return nil
}

// Check verifies that xdotool is installed.
func Check() error {
	if _, err := exec.LookPath("xdotool"); err != nil {
		return fmt.Errorf("%w: xdotool is needed for window control and key injection. Install it using:\n"+
			"Fedora: sudo dnf install xdotool\n"+
			"Ubuntu/Debian: sudo apt-get install xdotool\n"+
			"Arch Linux: sudo pacman -S xdotool", ErrNotInstalled)
	}
	return nil
}

// CheckWmctrl verifies that wmctrl is installed. Only minimize, maximize
// and move/resize need it.
func CheckWmctrl() error {
	if _, err := exec.LookPath("wmctrl"); err != nil {
		return fmt.Errorf("%w: wmctrl is needed to minimize and resize windows", ErrNotInstalled)
	}
	return nil
}

// ParseIDs reads one decimal window id per line. Blank and malformed lines
// are skipped.
func ParseIDs(out []byte) []types.WindowID {
	var ids []types.WindowID
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		n, err := strconv.ParseUint(line, 10, 32)
		if err != nil {
			logger.Debugf("Skipping malformed window id %q", line)
			continue
		}
		ids = append(ids, types.WindowID(n))
	}
	return ids
}

// ParseID reads a single decimal window id.
func ParseID(out []byte) (types.WindowID, error) {
	s := strings.TrimSpace(string(out))
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return types.NoWindow, fmt.Errorf("invalid window id %q: %w", s, err)
	}
	return types.WindowID(n), nil
}
