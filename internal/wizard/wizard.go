// Package wizard captures shortcut bindings interactively and saves them to
// the configuration file.
package wizard

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/dooshek/multiboxer/internal/config"
	"github.com/dooshek/multiboxer/internal/keys"
	"github.com/dooshek/multiboxer/internal/logger"
	"github.com/dooshek/multiboxer/internal/types"
	"github.com/fatih/color"
)

// ErrCancelled is returned when input ends before the wizard finishes.
var ErrCancelled = errors.New("wizard cancelled")

// Source delivers raw key events. Implemented by the keyboard sources.
type Source interface {
	Start(ctx context.Context, sink func(keys.RawEvent)) error
	Stop()
}

// KeyPress is a captured binding.
type KeyPress struct {
	Key     string
	Alt     bool
	Control bool
	Shift   bool
}

// Binding formats the key press the way the config file spells it.
func (kp KeyPress) Binding() string {
	var parts []string
	if kp.Alt {
		parts = append(parts, "Alt")
	}
	if kp.Control {
		parts = append(parts, "Ctrl")
	}
	if kp.Shift {
		parts = append(parts, "Shift")
	}
	return strings.Join(append(parts, kp.Key), "+")
}

// tracker follows modifier state until a non-modifier key goes down.
type tracker struct {
	held map[string]bool
}

func newTracker() *tracker {
	return &tracker{held: make(map[string]bool)}
}

func (t *tracker) feed(raw keys.RawEvent) (KeyPress, bool) {
	key, err := keys.Decode(raw)
	if err != nil {
		return KeyPress{}, false
	}
	if keys.IsModifier(key.Name) {
		t.held[key.Name] = raw.Down
		return KeyPress{}, false
	}
	// "+" separates tokens in a binding and cannot be bound itself.
	if !raw.Down || key.Name == "+" {
		return KeyPress{}, false
	}
	kp := KeyPress{Key: key.Name}
	for name, down := range t.held {
		if !down {
			continue
		}
		switch keys.ModifierOf(name) {
		case "alt":
			kp.Alt = true
		case "control":
			kp.Control = true
		case "shift":
			kp.Shift = true
		}
	}
	return kp, true
}

type step struct {
	label string
	get   func(*types.Shortcuts) *string
}

var steps = []step{
	{"focus previous window", func(s *types.Shortcuts) *string { return &s.Prev }},
	{"focus next window", func(s *types.Shortcuts) *string { return &s.Next }},
	{"minimize all windows", func(s *types.Shortcuts) *string { return &s.MinimizeAll }},
	{"close all windows", func(s *types.Shortcuts) *string { return &s.CloseAll }},
	{"toggle broadcasting", func(s *types.Shortcuts) *string { return &s.ToggleBroadcast }},
	{"toggle the overlay", func(s *types.Shortcuts) *string { return &s.ToggleOverlay }},
}

// Wizard walks the user through the window pattern and every shortcut.
type Wizard struct {
	path   string
	source Source
	in     *bufio.Reader
	out    io.Writer
}

func New(path string, source Source, in io.Reader, out io.Writer) *Wizard {
	return &Wizard{path: path, source: source, in: bufio.NewReader(in), out: out}
}

func (w *Wizard) Run(ctx context.Context) error {
	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)

	cfg, err := config.LoadConfig(w.path)
	if err != nil {
		return err
	}

	bold.Fprintln(w.out, "\n🎮 Welcome to the multiboxer configuration wizard!")
	fmt.Fprintln(w.out, "\nPress Enter to keep the current value, s to skip a shortcut.")

	fmt.Fprintf(w.out, "\nWindow title pattern [%s]: ", cfg.Pattern)
	answer, err := w.readLine()
	if err != nil {
		return err
	}
	if answer != "" {
		cfg.Pattern = answer
	}

	for _, st := range steps {
		if err := w.bind(ctx, st.label, st.get(&cfg.Shortcuts)); err != nil {
			return err
		}
	}
	for i := range cfg.Shortcuts.WindowKeys {
		label := fmt.Sprintf("focus window %d", i+1)
		if err := w.bind(ctx, label, &cfg.Shortcuts.WindowKeys[i]); err != nil {
			return err
		}
	}

	if err := config.SaveConfig(w.path, cfg); err != nil {
		logger.Error("Failed to save config", err)
		return err
	}
	green.Fprintln(w.out, "\n✅ Configuration saved successfully!")
	fmt.Fprintf(w.out, "Config file: %s\n", w.path)
	return nil
}

// bind asks for one shortcut until it is accepted or skipped.
func (w *Wizard) bind(ctx context.Context, label string, binding *string) error {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	for {
		cyan.Fprintf(w.out, "\nShortcut to %s (current: %s)\n", label, *binding)
		fmt.Fprint(w.out, "Press Enter to keep it, s to skip, or c to capture a new one: ")
		answer, err := w.readLine()
		if err != nil {
			return err
		}
		switch strings.ToLower(answer) {
		case "", "s", "skip":
			return nil
		case "c":
		default:
			fmt.Fprintln(w.out, "Please answer Enter, s or c.")
			continue
		}

		fmt.Fprintln(w.out, "Press your key combination (Alt, Ctrl, Shift + key)...")
		kp, err := w.capture(ctx)
		if err != nil {
			logger.Error("Failed to capture key", err)
			return err
		}
		yellow.Fprint(w.out, "Selected shortcut is: ")
		fmt.Fprintln(w.out, kp.Binding())

		fmt.Fprint(w.out, "Do you want to use this shortcut? [Y/n]: ")
		answer, err = w.readLine()
		if err != nil {
			return err
		}
		if answer = strings.ToLower(answer); answer == "" || answer == "y" || answer == "yes" {
			*binding = kp.Binding()
			return nil
		}
		fmt.Fprintln(w.out, "OK, let's try again.")
	}
}

// capture runs the source until one combination has been pressed.
func (w *Wizard) capture(ctx context.Context) (KeyPress, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	t := newTracker()
	result := make(chan KeyPress, 1)
	var once sync.Once
	sink := func(raw keys.RawEvent) {
		if kp, ok := t.feed(raw); ok {
			once.Do(func() { result <- kp })
		}
	}

	errc := make(chan error, 1)
	go func() { errc <- w.source.Start(ctx, sink) }()

	select {
	case kp := <-result:
		w.source.Stop()
		<-errc
		return kp, nil
	case err := <-errc:
		if err == nil {
			err = ErrCancelled
		}
		return KeyPress{}, err
	case <-ctx.Done():
		w.source.Stop()
		<-errc
		return KeyPress{}, ctx.Err()
	}
}

func (w *Wizard) readLine() (string, error) {
	line, err := w.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		if err == io.EOF {
			return "", ErrCancelled
		}
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	// Drop control characters left by terminals.
	line = strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, line)
	return strings.TrimSpace(line), nil
}
