// Package interceptor decides, for every key transition, whether it is a
// private shortcut, input to broadcast, or noise.
package interceptor

import (
	"context"
	"sort"
	"sync"

	"github.com/dooshek/multiboxer/internal/keys"
	"github.com/dooshek/multiboxer/internal/logger"
	"github.com/dooshek/multiboxer/internal/shortcut"
	"github.com/dooshek/multiboxer/internal/state"
	"github.com/dooshek/multiboxer/internal/types"
	"github.com/rs/zerolog"
)

const defaultQueueSize = 256

// Sender replays keystrokes. Implemented by broadcast.Broadcaster.
type Sender interface {
	SendKey(sequence string, targets types.WindowSet, exclude types.WindowID)
	SendLiteral(char string, targets types.WindowSet, exclude types.WindowID)
	ForwardKey(sequence string, active types.WindowID)
	ForwardLiteral(char string, active types.WindowID)
	// Burst runs a forward and the following broadcast as one injection.
	Burst(fn func())
	Enabled() bool
}

// Actions executes matched shortcuts. Implemented by core.Controller.
type Actions interface {
	RunAction(a shortcut.Action)
	FocusIndex(index int)
}

// Guard reports whether an injection burst is in progress.
type Guard interface {
	Held() bool
}

type Options struct {
	Matcher *shortcut.Matcher
	State   *state.AppState
	// Active returns the focused window as seen by the focus tracker.
	Active  func() types.WindowID
	Sender  Sender
	Actions Actions
	Guard   Guard
	// Forward delivers non-shortcut keys to the active window explicitly.
	// Set it when the input source withholds keys from the focused window.
	Forward   bool
	QueueSize int
}

// Interceptor owns the pressed-key set. Events are queued by Submit from
// the source goroutines and processed one at a time by Run.
type Interceptor struct {
	matcher *shortcut.Matcher
	state   *state.AppState
	active  func() types.WindowID
	sender  Sender
	actions Actions
	guard   Guard
	forward bool
	log     zerolog.Logger

	queue    chan queued
	done     chan struct{}
	doneOnce sync.Once

	mu      sync.Mutex
	pressed map[string]struct{}
	// injected is the key most recently replayed by the sender. Global
	// listeners see our own synthetic release of it.
	injected string
}

// queued is a raw event plus whether the injection guard was held when the
// source reported it.
type queued struct {
	raw     keys.RawEvent
	guarded bool
}

func New(opts Options) *Interceptor {
	size := opts.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	return &Interceptor{
		matcher: opts.Matcher,
		state:   opts.State,
		active:  opts.Active,
		sender:  opts.Sender,
		actions: opts.Actions,
		guard:   opts.Guard,
		forward: opts.Forward,
		log:     logger.With("interceptor"),
		queue:   make(chan queued, size),
		done:    make(chan struct{}),
		pressed: make(map[string]struct{}),
	}
}

// Submit queues a raw event. Key-downs arriving while the injection guard
// is held are dropped here, on the source goroutine, so they can never be
// confused with later genuine input. Key-ups are always queued, tagged with
// the guard state, so the pressed set cannot get stuck.
func (i *Interceptor) Submit(raw keys.RawEvent) {
	guarded := i.guarded()
	if raw.Down && guarded {
		i.log.Debug().Uint32("code", raw.Code).Msg("Dropping key press during injection")
		return
	}
	q := queued{raw: raw, guarded: guarded}
	if raw.Down {
		select {
		case i.queue <- q:
		case <-i.done:
		default:
			i.log.Warn().Uint32("code", raw.Code).Msg("Key queue full, dropping key press")
		}
		return
	}
	select {
	case i.queue <- q:
	case <-i.done:
	}
}

// Run processes queued events until ctx is cancelled.
func (i *Interceptor) Run(ctx context.Context) {
	defer i.doneOnce.Do(func() { close(i.done) })
	for {
		select {
		case <-ctx.Done():
			return
		case q := <-i.queue:
			i.handle(q.raw, q.guarded)
		}
	}
}

func (i *Interceptor) guarded() bool {
	return i.guard != nil && i.guard.Held()
}

// decision is what a key press resolved to once the pressed set has been
// updated. It is carried out without holding the lock.
type decision struct {
	match     shortcut.Match
	key       keys.Key
	combo     string
	sequence  string
	literal   bool
	active    types.WindowID
	windows   types.WindowSet
	forward   bool
	broadcast bool
}

// Handle runs the pipeline for one raw event. A decode failure drops that
// event only.
func (i *Interceptor) Handle(raw keys.RawEvent) {
	i.handle(raw, i.guarded())
}

func (i *Interceptor) handle(raw keys.RawEvent, guarded bool) {
	if raw.Down && guarded {
		return
	}

	key, err := keys.Decode(raw)
	if err != nil {
		i.log.Debug().Err(err).Msg("Dropping undecodable key event")
		return
	}

	d, ok := i.press(key, raw.Down, guarded)
	if !ok {
		return
	}
	i.dispatch(d)
}

// press updates the pressed set and decides what to do. ok is false when
// the event ends here.
func (i *Interceptor) press(key keys.Key, down, guarded bool) (decision, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if !down {
		// xdotool releases the replayed key and, with --clearmodifiers,
		// every held modifier. Those releases are ours, not the user's.
		if guarded && (keys.IsModifier(key.Name) || key.Name == i.injected) {
			i.log.Debug().Str("key", key.Name).Msg("Ignoring release during injection")
			return decision{}, false
		}
		delete(i.pressed, key.Name)
		return decision{}, false
	}

	if keys.IsModifier(key.Name) {
		i.pressed[key.Name] = struct{}{}
		return decision{}, false
	}

	// Auto-repeat: only the first press of a held key acts.
	if _, held := i.pressed[key.Name]; held {
		return decision{}, false
	}
	i.pressed[key.Name] = struct{}{}

	active := i.active()
	windows := i.state.Windows()
	if !windows.Contains(active) {
		return decision{}, false
	}

	alt, control, shift := i.modifiersLocked()
	combo := shortcut.Combo(alt, control, shift, key.Name)
	d := decision{
		match:   i.matcher.Match(combo),
		key:     key,
		combo:   combo,
		active:  active,
		windows: windows,
		forward: i.forward,
	}
	if d.match.Kind != shortcut.NoMatch {
		return d, true
	}

	// A shifted glyph from the source ("G", "!") is still typed literally.
	// Without one, shift has to travel in the key sequence.
	d.literal = !alt && !control && key.IsLiteral() && (!shift || key.Text != key.Name)
	if !d.literal {
		d.sequence = keys.Sequence(alt, control, shift, key.Name)
	}
	d.broadcast = i.sender.Enabled() && !i.state.Inhibit().Contains(key.Name, combo)
	if d.forward || d.broadcast {
		i.injected = key.Name
	}
	return d, true
}

func (i *Interceptor) dispatch(d decision) {
	switch d.match.Kind {
	case shortcut.MatchAction:
		i.log.Debug().Str("combo", d.combo).Str("action", string(d.match.Action)).Msg("Shortcut")
		i.actions.RunAction(d.match.Action)
		return
	case shortcut.MatchWindow:
		i.log.Debug().Str("combo", d.combo).Int("index", d.match.Index).Msg("Window shortcut")
		i.actions.FocusIndex(d.match.Index)
		return
	}

	if d.forward && d.broadcast {
		i.sender.Burst(func() {
			i.deliver(d)
		})
		return
	}
	i.deliver(d)
}

func (i *Interceptor) deliver(d decision) {
	if d.forward {
		if d.literal {
			i.sender.ForwardLiteral(d.key.Text, d.active)
		} else {
			i.sender.ForwardKey(d.sequence, d.active)
		}
	}

	if !d.broadcast {
		i.log.Debug().Str("combo", d.combo).Msg("Not broadcasting key")
		return
	}
	if d.literal {
		i.sender.SendLiteral(d.key.Text, d.windows, d.active)
	} else {
		i.sender.SendKey(d.sequence, d.windows, d.active)
	}
}

// modifiersLocked derives the modifier state from the pressed set: a
// modifier is held when any of its variants is down.
func (i *Interceptor) modifiersLocked() (alt, control, shift bool) {
	for name := range i.pressed {
		switch keys.ModifierOf(name) {
		case "alt":
			alt = true
		case "control":
			control = true
		case "shift":
			shift = true
		}
	}
	return alt, control, shift
}

// Pressed returns a sorted snapshot of the pressed set.
func (i *Interceptor) Pressed() []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]string, 0, len(i.pressed))
	for k := range i.pressed {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ReleaseKeys forgets every pressed key except modifiers. Used when grabs
// are dropped while keys may still be held: their releases go to another
// window. Modifier state is corrected by the source from later events.
func (i *Interceptor) ReleaseKeys() {
	i.mu.Lock()
	defer i.mu.Unlock()
	for name := range i.pressed {
		if !keys.IsModifier(name) {
			delete(i.pressed, name)
		}
	}
}

// Reset forgets every pressed key. Called on shutdown.
func (i *Interceptor) Reset() {
	i.mu.Lock()
	i.pressed = make(map[string]struct{})
	i.mu.Unlock()
}
