// Package core wires the focus tracker, grab manager, interceptor and
// broadcaster together and exposes the control surface used by the CLI and
// the D-Bus service.
package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dooshek/multiboxer/internal/broadcast"
	"github.com/dooshek/multiboxer/internal/focus"
	"github.com/dooshek/multiboxer/internal/grab"
	"github.com/dooshek/multiboxer/internal/interceptor"
	"github.com/dooshek/multiboxer/internal/keys"
	"github.com/dooshek/multiboxer/internal/logger"
	"github.com/dooshek/multiboxer/internal/notification"
	"github.com/dooshek/multiboxer/internal/shortcut"
	"github.com/dooshek/multiboxer/internal/state"
	"github.com/dooshek/multiboxer/internal/stats"
	"github.com/dooshek/multiboxer/internal/types"
	"github.com/dooshek/multiboxer/internal/windowctl"
	"github.com/rs/zerolog"
)

// ErrAlreadyRunning is returned by Start on a running controller.
var ErrAlreadyRunning = errors.New("controller already running")

// KeySource produces raw key events. Implemented by the keyboard sources.
type KeySource interface {
	Start(ctx context.Context, sink func(keys.RawEvent)) error
	Stop()
	Suppresses() bool
}

// WindowFinder discovers the managed windows.
type WindowFinder interface {
	Search(pattern string) ([]types.WindowID, error)
	Title(id types.WindowID) (string, error)
}

// WindowControl manipulates top-level windows.
type WindowControl interface {
	Activate(id types.WindowID) error
	Minimize(id types.WindowID) error
	Maximize(id types.WindowID) error
	MoveResize(id types.WindowID, g windowctl.Geometry) error
	SetTitle(id types.WindowID, title string) error
	Close(id types.WindowID) error
}

// Screen reports the size layouts are computed for.
type Screen interface {
	ScreenSize() (width, height int, err error)
}

// WindowStore remembers the last discovered group for status queries.
type WindowStore interface {
	SaveWindows(ids []types.WindowID) error
}

// Deps are the external collaborators.
type Deps struct {
	Source   KeySource
	Finder   WindowFinder
	Windows  WindowControl
	Focus    focus.Querier
	Titles   broadcast.TitleSource
	Injector broadcast.Injector
	// Grabber is nil when the input source does not use OS grabs.
	Grabber  grab.Grabber
	GrabMods uint16
	Notifier notification.Notifier
	Stats    *stats.StatsManager
	// Store and Screen are optional.
	Store  WindowStore
	Screen Screen
}

// VisibilityFunc is called on every focus change and whenever the overlay
// is toggled.
type VisibilityFunc func(active types.WindowID, managed, overlay bool)

// Status is a point-in-time view for diagnostics.
type Status struct {
	Broadcast    bool
	Overlay      bool
	Mode         types.BroadcastMode
	Active       types.WindowID
	Windows      []types.WindowID
	Intercepting bool
	Pressed      []string
}

type Controller struct {
	deps    Deps
	state   *state.AppState
	matcher *shortcut.Matcher
	tracker *focus.Tracker
	grabs   *grab.Manager
	guard   *broadcast.Guard
	bc      *broadcast.Broadcaster
	ic      *interceptor.Interceptor
	log     zerolog.Logger

	runMu   sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool

	titleMu sync.Mutex
	// titles holds the names windows had before they were renumbered.
	titles map[types.WindowID]string

	cbMu         sync.RWMutex
	onVisibility []VisibilityFunc
	onBroadcast  []func(bool)
}

// New builds a controller from the configuration. Nothing runs until Start.
func New(cfg *types.Config, deps Deps) *Controller {
	if cfg == nil {
		cfg = types.DefaultConfig()
	}
	if deps.Notifier == nil {
		deps.Notifier = notification.NewSilent()
	}

	c := &Controller{
		deps:   deps,
		state:  state.New(cfg),
		guard:  broadcast.NewGuard(),
		titles: make(map[types.WindowID]string),
		log:    logger.With("core"),
	}

	timings := cfg.GetTimings()
	c.tracker = focus.NewTracker(deps.Focus, time.Duration(timings.FocusPollMs)*time.Millisecond)
	c.tracker.PauseWhile(c.guard.Held)
	c.tracker.OnChange(c.onFocusChange)

	if deps.Grabber != nil {
		c.grabs = grab.NewManager(deps.Grabber, deps.GrabMods)
		c.guard.OnEdges(c.grabs.Suspend, c.grabs.Resume)
	}

	c.bc = broadcast.New(broadcast.Options{
		Injector:      deps.Injector,
		Windows:       deps.Windows,
		Titles:        deps.Titles,
		Active:        c.tracker.Active,
		Guard:         c.guard,
		Stats:         deps.Stats,
		Mode:          effectiveMode(cfg),
		Enabled:       cfg.BroadcastEnabled,
		FocusSettle:   time.Duration(timings.FocusSettleMs) * time.Millisecond,
		RestoreSettle: time.Duration(timings.RestoreSettleMs) * time.Millisecond,
	})

	var invalid []string
	c.matcher, invalid = shortcut.NewMatcher(cfg.Shortcuts)
	c.reportInvalid(invalid)
	if c.grabs != nil {
		c.grabs.SetExtraKeys(c.matcher.Table().Keys())
	}

	c.ic = interceptor.New(interceptor.Options{
		Matcher: c.matcher,
		State:   c.state,
		Active:  c.tracker.Active,
		Sender:  c.bc,
		Actions: c,
		Guard:   c.guard,
		Forward: deps.Source != nil && deps.Source.Suppresses(),
	})
	return c
}

// effectiveMode falls back to the focus sweep when the injector cannot
// address unfocused windows.
func effectiveMode(cfg *types.Config) types.BroadcastMode {
	mode := cfg.GetBroadcastMode()
	if mode == types.ModeBackground && cfg.Injector == types.InjectorRobotgo {
		logger.Warnf("The robotgo injector can only type into the focused window, using %s mode", types.ModeFocusSweep)
		return types.ModeFocusSweep
	}
	return mode
}

// Start discovers the windows and launches the focus loop, the key loop and
// the input source.
func (c *Controller) Start(ctx context.Context) error {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	if c.running {
		return ErrAlreadyRunning
	}

	if c.grabs != nil {
		c.grabs.Open()
	}
	cfg := c.state.Config()
	ids, err := c.RefreshWindows(cfg.Pattern)
	if err != nil {
		c.log.Warn().Err(err).Str("pattern", cfg.Pattern).Msg("Initial window discovery failed")
	}
	_ = c.deps.Notifier.NotifyStarted(len(ids))

	ctx, c.cancel = context.WithCancel(ctx)
	c.running = true

	// Record the current focus before any key can arrive.
	c.tracker.Poll()

	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		c.tracker.Run(ctx)
	}()
	go func() {
		defer c.wg.Done()
		c.ic.Run(ctx)
	}()

	if c.deps.Source != nil {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			if err := c.deps.Source.Start(ctx, c.ic.Submit); err != nil {
				logger.Error("Input source stopped", err)
			}
		}()
	}

	c.log.Info().
		Str("mode", string(c.bc.Mode())).
		Bool("broadcast", c.bc.Enabled()).
		Int("windows", len(ids)).
		Msg("Controller started")
	return nil
}

// Stop halts the background tasks, releases every grab and clears the
// pressed-key set. Safe to call more than once.
func (c *Controller) Stop() {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	if !c.running {
		return
	}
	c.running = false

	c.cancel()
	if c.deps.Source != nil {
		c.deps.Source.Stop()
	}
	c.wg.Wait()

	if c.grabs != nil {
		c.grabs.Close()
	}
	c.ic.Reset()
	c.restoreTitles()
	c.log.Info().Msg("Controller stopped")
}

func (c *Controller) onFocusChange(prev, cur types.WindowID) {
	windows := c.state.Windows()
	managed := windows.Contains(cur)

	if c.grabs != nil {
		if c.grabs.Update(cur, windows) == grab.Passthrough && c.deps.Source != nil && c.deps.Source.Suppresses() {
			// Releases of keys held while leaving are not delivered to us.
			c.ic.ReleaseKeys()
		}
	}

	c.log.Debug().
		Uint32("prev", uint32(prev)).
		Uint32("active", uint32(cur)).
		Bool("managed", managed).
		Msg("Focus changed")
	c.fireVisibility(cur, managed)
}

// RefreshWindows rediscovers the managed windows by title pattern, plus
// windows already renamed with the title prefix, and replaces the set
// wholesale. Windows are numbered by ascending id so "window N" does not
// move when the stacking order changes.
func (c *Controller) RefreshWindows(pattern string) ([]types.WindowID, error) {
	if c.deps.Finder == nil {
		return nil, fmt.Errorf("no window finder configured")
	}
	ids, err := c.deps.Finder.Search(pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to search windows matching %q: %w", pattern, err)
	}
	prefix := c.state.Config().TitlePrefix
	if prefix != "" && prefix != pattern {
		renamed, err := c.deps.Finder.Search(prefix)
		if err != nil {
			return nil, fmt.Errorf("failed to search windows named %q: %w", prefix, err)
		}
		ids = append(ids, renamed...)
	}
	sorted := append([]types.WindowID(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	set := types.NewWindowSet(sorted)
	c.state.SetWindows(set)
	c.state.Update(func(cfg *types.Config) { cfg.Pattern = pattern })
	c.renumber(set, prefix)
	if c.deps.Store != nil {
		if err := c.deps.Store.SaveWindows(set.IDs()); err != nil {
			c.log.Warn().Err(err).Msg("Failed to record window list")
		}
	}

	active := c.tracker.Active()
	if c.grabs != nil {
		c.grabs.Update(active, set)
	}
	c.log.Info().Str("pattern", pattern).Int("windows", set.Len()).Msg("Windows refreshed")
	c.fireVisibility(active, set.Contains(active))
	return set.IDs(), nil
}

// renumber renames every window to "<prefix> N", remembering the name it
// had the first time it was seen.
func (c *Controller) renumber(set types.WindowSet, prefix string) {
	if prefix == "" || c.deps.Windows == nil {
		return
	}
	c.titleMu.Lock()
	defer c.titleMu.Unlock()
	for idx, id := range set.IDs() {
		if _, ok := c.titles[id]; !ok {
			title, err := c.deps.Finder.Title(id)
			if err != nil {
				c.log.Debug().Err(err).Uint32("window", uint32(id)).Msg("Could not read window title")
			} else if !strings.HasPrefix(title, prefix) {
				c.titles[id] = title
			}
		}
		if err := c.deps.Windows.SetTitle(id, fmt.Sprintf("%s %d", prefix, idx+1)); err != nil {
			c.log.Warn().Err(err).Uint32("window", uint32(id)).Msg("Failed to rename window")
		}
	}
}

// restoreTitles gives renamed windows their original names back. Windows
// that have closed in the meantime just fail.
func (c *Controller) restoreTitles() {
	c.titleMu.Lock()
	defer c.titleMu.Unlock()
	for id, title := range c.titles {
		if title == "" {
			continue
		}
		if err := c.deps.Windows.SetTitle(id, title); err != nil {
			c.log.Debug().Err(err).Uint32("window", uint32(id)).Msg("Failed to restore window title")
		}
	}
	c.titles = make(map[types.WindowID]string)
}

func (c *Controller) SetBroadcastEnabled(on bool) {
	c.bc.SetEnabled(on)
	c.state.Update(func(cfg *types.Config) { cfg.BroadcastEnabled = on })
	c.log.Info().Bool("broadcast", on).Msg("Broadcast toggled")
	_ = c.deps.Notifier.NotifyBroadcastChanged(on)
	// Fullscreen clients hide notifications.
	_ = c.deps.Notifier.Beep()

	c.cbMu.RLock()
	cbs := make([]func(bool), len(c.onBroadcast))
	copy(cbs, c.onBroadcast)
	c.cbMu.RUnlock()
	for _, fn := range cbs {
		fn(on)
	}
}

func (c *Controller) BroadcastEnabled() bool {
	return c.bc.Enabled()
}

func (c *Controller) SetOverlayEnabled(on bool) {
	c.state.SetOverlayEnabled(on)
	active := c.tracker.Active()
	c.fireVisibility(active, c.state.Windows().Contains(active))
}

// SetInhibitKeys replaces the set of keys never broadcast.
func (c *Controller) SetInhibitKeys(list []string) {
	c.state.SetInhibitKeys(list)
	c.log.Debug().Strs("inhibit", list).Msg("Inhibit keys updated")
}

// ReparseShortcuts rebuilds the shortcut table from the stored
// configuration and regrabs the keys it references. It returns the
// bindings that could not be parsed.
func (c *Controller) ReparseShortcuts() []string {
	invalid := c.matcher.Rebuild(c.state.Config().Shortcuts)
	c.reportInvalid(invalid)
	if c.grabs != nil {
		c.grabs.SetExtraKeys(c.matcher.Table().Keys())
	}
	return invalid
}

// SetShortcuts stores new bindings and reparses them.
func (c *Controller) SetShortcuts(sc types.Shortcuts) []string {
	c.state.Update(func(cfg *types.Config) {
		cfg.Shortcuts = sc
		cfg.Shortcuts.WindowKeys = append([]string(nil), sc.WindowKeys...)
	})
	return c.ReparseShortcuts()
}

func (c *Controller) reportInvalid(invalid []string) {
	if len(invalid) == 0 {
		return
	}
	c.log.Warn().Strs("shortcuts", invalid).Msg("Ignoring shortcuts that could not be parsed")
	_ = c.deps.Notifier.NotifyInvalidShortcuts(invalid)
}

// ApplyConfig republishes everything derived from a new configuration.
// Used by the config file watcher.
func (c *Controller) ApplyConfig(cfg *types.Config) {
	prev := c.state.Config()
	c.state.Replace(cfg)

	if cfg.BroadcastEnabled != c.bc.Enabled() {
		c.SetBroadcastEnabled(cfg.BroadcastEnabled)
	}
	c.bc.SetMode(effectiveMode(cfg))
	timings := cfg.GetTimings()
	c.bc.SetSettle(
		time.Duration(timings.FocusSettleMs)*time.Millisecond,
		time.Duration(timings.RestoreSettleMs)*time.Millisecond,
	)
	c.ReparseShortcuts()

	if cfg.Pattern != prev.Pattern || cfg.TitlePrefix != prev.TitlePrefix {
		if _, err := c.RefreshWindows(cfg.Pattern); err != nil {
			c.log.Warn().Err(err).Msg("Window refresh after config change failed")
		}
	}
	if cfg.OverlayEnabled != prev.OverlayEnabled {
		c.SetOverlayEnabled(cfg.OverlayEnabled)
	}
	c.log.Info().Msg("Configuration applied")
}

// Config returns a snapshot of the live configuration.
func (c *Controller) Config() *types.Config {
	return c.state.Config()
}

func (c *Controller) Status() Status {
	active := c.tracker.Active()
	st := Status{
		Broadcast: c.bc.Enabled(),
		Overlay:   c.state.OverlayEnabled(),
		Mode:      c.bc.Mode(),
		Active:    active,
		Windows:   c.state.Windows().IDs(),
		Pressed:   c.ic.Pressed(),
	}
	if c.grabs != nil {
		st.Intercepting = c.grabs.Intercepting()
	}
	return st
}

// OnVisibility registers a callback fired on every focus change.
func (c *Controller) OnVisibility(fn VisibilityFunc) {
	c.cbMu.Lock()
	c.onVisibility = append(c.onVisibility, fn)
	c.cbMu.Unlock()
}

// OnBroadcastChanged registers a callback fired when broadcast is toggled.
func (c *Controller) OnBroadcastChanged(fn func(bool)) {
	c.cbMu.Lock()
	c.onBroadcast = append(c.onBroadcast, fn)
	c.cbMu.Unlock()
}

func (c *Controller) fireVisibility(active types.WindowID, managed bool) {
	overlay := c.state.OverlayEnabled()
	c.cbMu.RLock()
	cbs := append([]VisibilityFunc(nil), c.onVisibility...)
	c.cbMu.RUnlock()
	for _, fn := range cbs {
		fn(active, managed, overlay)
	}
}
