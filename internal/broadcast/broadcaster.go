// Package broadcast replays keystrokes into the managed windows, either
// addressed at each window in the background or by sweeping focus across
// them.
package broadcast

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dooshek/multiboxer/internal/logger"
	"github.com/dooshek/multiboxer/internal/stats"
	"github.com/dooshek/multiboxer/internal/types"
	"github.com/rs/zerolog"
)

// ErrWindowTargetUnsupported is returned by injectors that can only type
// into the focused window.
var ErrWindowTargetUnsupported = errors.New("injector cannot address an unfocused window")

// Injector types into a window. target NoWindow means "whatever has focus".
type Injector interface {
	InjectKey(sequence string, target types.WindowID) error
	InjectLiteral(char string, target types.WindowID) error
}

// WindowControl focuses windows.
type WindowControl interface {
	Activate(id types.WindowID) error
}

// TitleSource lists window titles for diagnostics.
type TitleSource interface {
	Titles() (map[types.WindowID]string, error)
}

// Options configures a Broadcaster.
type Options struct {
	Injector Injector
	Windows  WindowControl
	Titles   TitleSource
	// Active returns the focused window as last observed by the focus
	// tracker. The focus sweep restores it when done.
	Active func() types.WindowID
	Guard  *Guard
	Stats  *stats.StatsManager

	Mode          types.BroadcastMode
	Enabled       bool
	FocusSettle   time.Duration
	RestoreSettle time.Duration
}

// Broadcaster delivers one payload to a set of windows. Sends are
// serialized: a sweep runs to completion, restore included, before the
// next one starts.
type Broadcaster struct {
	injector Injector
	windows  WindowControl
	titles   TitleSource
	active   func() types.WindowID
	guard    *Guard
	stats    *stats.StatsManager
	log      zerolog.Logger

	enabled atomic.Bool

	sendMu        sync.Mutex
	settingsMu    sync.RWMutex
	mode          types.BroadcastMode
	focusSettle   time.Duration
	restoreSettle time.Duration
}

func New(opts Options) *Broadcaster {
	b := &Broadcaster{
		injector:      opts.Injector,
		windows:       opts.Windows,
		titles:        opts.Titles,
		active:        opts.Active,
		guard:         opts.Guard,
		stats:         opts.Stats,
		log:           logger.With("broadcast"),
		mode:          opts.Mode,
		focusSettle:   opts.FocusSettle,
		restoreSettle: opts.RestoreSettle,
	}
	if !b.mode.Valid() {
		b.mode = types.ModeFocusSweep
	}
	if b.guard == nil {
		b.guard = NewGuard()
	}
	if b.active == nil {
		b.active = func() types.WindowID { return types.NoWindow }
	}
	b.enabled.Store(opts.Enabled)
	return b
}

func (b *Broadcaster) SetEnabled(on bool) {
	b.enabled.Store(on)
}

func (b *Broadcaster) Enabled() bool {
	return b.enabled.Load()
}

// SetMode switches strategy. Unknown modes are ignored.
func (b *Broadcaster) SetMode(mode types.BroadcastMode) {
	if !mode.Valid() {
		b.log.Warn().Str("mode", string(mode)).Msg("Ignoring unknown broadcast mode")
		return
	}
	b.settingsMu.Lock()
	b.mode = mode
	b.settingsMu.Unlock()
}

func (b *Broadcaster) Mode() types.BroadcastMode {
	b.settingsMu.RLock()
	defer b.settingsMu.RUnlock()
	return b.mode
}

// SetSettle changes the focus and restore settle delays.
func (b *Broadcaster) SetSettle(focus, restore time.Duration) {
	b.settingsMu.Lock()
	b.focusSettle = focus
	b.restoreSettle = restore
	b.settingsMu.Unlock()
}

func (b *Broadcaster) settings() (types.BroadcastMode, time.Duration, time.Duration) {
	b.settingsMu.RLock()
	defer b.settingsMu.RUnlock()
	return b.mode, b.focusSettle, b.restoreSettle
}

// Burst runs fn, which may forward a key and then broadcast it, as one
// injection burst. In focus-sweep mode the guard is held across both, so
// grabs are lifted and restored once per keystroke rather than per step.
func (b *Broadcaster) Burst(fn func()) {
	if b.Mode() != types.ModeFocusSweep {
		fn()
		return
	}
	release := b.guard.Acquire()
	defer release()
	fn()
}

// SendKey replays a key sequence such as "ctrl+shift+F1" into targets,
// skipping exclude.
func (b *Broadcaster) SendKey(sequence string, targets types.WindowSet, exclude types.WindowID) {
	if sequence == "" {
		return
	}
	b.send("key", sequence, targets, exclude, func(id types.WindowID) error {
		return b.injector.InjectKey(sequence, id)
	})
}

// SendLiteral types one character into targets, skipping exclude.
func (b *Broadcaster) SendLiteral(char string, targets types.WindowSet, exclude types.WindowID) {
	if char == "" {
		return
	}
	b.send("literal", char, targets, exclude, func(id types.WindowID) error {
		return b.injector.InjectLiteral(char, id)
	})
}

// ForwardKey delivers a key sequence to the active window only. It is used
// when the input source withheld the key from that window, and it works
// whether broadcasting is on or off.
func (b *Broadcaster) ForwardKey(sequence string, active types.WindowID) {
	if sequence == "" {
		return
	}
	b.forward(active, func(id types.WindowID) error {
		return b.injector.InjectKey(sequence, id)
	})
}

// ForwardLiteral is ForwardKey for a literal character.
func (b *Broadcaster) ForwardLiteral(char string, active types.WindowID) {
	if char == "" {
		return
	}
	b.forward(active, func(id types.WindowID) error {
		return b.injector.InjectLiteral(char, id)
	})
}

func (b *Broadcaster) send(kind, payload string, targets types.WindowSet, exclude types.WindowID, deliver func(types.WindowID) error) {
	if !b.enabled.Load() {
		return
	}

	ids := make([]types.WindowID, 0, targets.Len())
	for _, id := range targets.IDs() {
		if id != exclude {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return
	}

	b.sendMu.Lock()
	defer b.sendMu.Unlock()

	mode, settle, restore := b.settings()
	titles := b.lookupTitles()
	start := time.Now()

	var failures int
	if mode == types.ModeBackground {
		failures = b.background(ids, titles, deliver)
	} else {
		failures = b.sweep(ids, titles, settle, restore, deliver)
	}

	elapsed := time.Since(start)
	b.stats.AddBurst(string(mode), len(ids), failures, elapsed)
	b.log.Debug().
		Str("mode", string(mode)).
		Str("kind", kind).
		Str("payload", payload).
		Int("windows", len(ids)).
		Int("failures", failures).
		Dur("elapsed", elapsed).
		Msg("Broadcast done")
}

// background addresses each window directly without touching focus. Some
// applications ignore input sent to a window that does not have focus, so
// delivery is best effort.
func (b *Broadcaster) background(ids []types.WindowID, titles map[types.WindowID]string, deliver func(types.WindowID) error) int {
	failures := 0
	for _, id := range ids {
		if err := deliver(id); err != nil {
			failures++
			b.log.Warn().Err(err).
				Uint32("window", uint32(id)).
				Str("title", titles[id]).
				Msg("Background injection failed")
		}
	}
	return failures
}

// sweep focuses each target in order, injects at focus and restores the
// original focus afterwards on every exit path. The guard is held for the
// whole burst, restore included.
func (b *Broadcaster) sweep(ids []types.WindowID, titles map[types.WindowID]string, settle, restore time.Duration, deliver func(types.WindowID) error) (failures int) {
	original := b.active()
	release := b.guard.Acquire()
	defer func() {
		if original != types.NoWindow {
			if err := b.windows.Activate(original); err != nil {
				b.log.Warn().Err(err).
					Uint32("window", uint32(original)).
					Str("title", titles[original]).
					Msg("Failed to restore focus")
			}
		}
		time.Sleep(restore)
		release()
	}()

	for _, id := range ids {
		if err := b.windows.Activate(id); err != nil {
			failures++
			b.log.Warn().Err(err).
				Uint32("window", uint32(id)).
				Str("title", titles[id]).
				Msg("Failed to focus window")
			continue
		}
		time.Sleep(settle)
		if err := deliver(types.NoWindow); err != nil {
			failures++
			b.log.Warn().Err(err).
				Uint32("window", uint32(id)).
				Str("title", titles[id]).
				Msg("Focus-sweep injection failed")
		}
	}
	return failures
}

func (b *Broadcaster) forward(active types.WindowID, deliver func(types.WindowID) error) {
	if active == types.NoWindow {
		return
	}

	b.sendMu.Lock()
	defer b.sendMu.Unlock()

	target := types.NoWindow
	if b.Mode() == types.ModeBackground {
		target = active
	}

	err := func() error {
		if target != types.NoWindow {
			err := deliver(target)
			if !errors.Is(err, ErrWindowTargetUnsupported) {
				return err
			}
		}
		// Grabs are lifted while the guard is held so the synthetic event
		// reaches the focused window instead of coming back to us.
		release := b.guard.Acquire()
		defer release()
		return deliver(types.NoWindow)
	}()
	if err != nil {
		b.log.Warn().Err(err).Uint32("window", uint32(active)).Msg("Failed to forward key to active window")
	}
}

// lookupTitles never fails: a failed lookup yields no titles.
func (b *Broadcaster) lookupTitles() map[types.WindowID]string {
	if b.titles == nil {
		return nil
	}
	titles, err := b.titles.Titles()
	if err != nil {
		b.log.Debug().Err(err).Msg("Title lookup failed")
		return nil
	}
	return titles
}
