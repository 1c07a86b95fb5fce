// Package inject synthesises keystrokes with an external utility.
package inject

import (
	"fmt"

	"github.com/dooshek/multiboxer/internal/broadcast"
	"github.com/dooshek/multiboxer/internal/types"
	"github.com/dooshek/multiboxer/internal/xdotool"
)

// New creates the injector selected in config.
func New(kind types.InjectorKind, run xdotool.Runner) (broadcast.Injector, error) {
	switch kind {
	case types.InjectorXdotool, "":
		return NewXdotool(run), nil
	case types.InjectorRobotgo:
		return NewRobotgo(), nil
	}
	return nil, fmt.Errorf("unknown injector %q", kind)
}

// Xdotool injects with `xdotool key` and `xdotool type`. Focus-addressed
// calls wait for xdotool to exit so a sweep never moves on before the key
// has been delivered. Window-addressed calls are not waited for.
type Xdotool struct {
	run xdotool.Runner
}

func NewXdotool(run xdotool.Runner) *Xdotool {
	if run == nil {
		run = xdotool.ExecRunner{}
	}
	return &Xdotool{run: run}
}

func (x *Xdotool) InjectKey(sequence string, target types.WindowID) error {
	return x.inject("key", sequence, target)
}

func (x *Xdotool) InjectLiteral(char string, target types.WindowID) error {
	return x.inject("type", char, target)
}

func (x *Xdotool) inject(command, payload string, target types.WindowID) error {
	args := []string{command, "--clearmodifiers"}
	if target != types.NoWindow {
		args = append(args, "--window", target.String())
	}
	args = append(args, "--delay", "0", "--", payload)

	if target == types.NoWindow {
		if err := x.run.Run("xdotool", args...); err != nil {
			return fmt.Errorf("xdotool %s %q failed: %w", command, payload, err)
		}
		return nil
	}
	if err := x.run.Spawn("xdotool", args...); err != nil {
		return fmt.Errorf("failed to start xdotool %s for window %s: %w", command, target, err)
	}
	return nil
}
