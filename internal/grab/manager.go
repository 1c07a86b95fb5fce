// Package grab turns OS-level key interception on while a managed window has
// focus and off otherwise.
package grab

import (
	"sort"
	"strings"
	"sync"

	"github.com/dooshek/multiboxer/internal/keys"
	"github.com/dooshek/multiboxer/internal/logger"
	"github.com/dooshek/multiboxer/internal/types"
)

// Grabber is the OS interface for passive key grabs on the display root.
type Grabber interface {
	Keycodes(name string) []uint32
	GrabKey(code uint32, mods uint16) error
	UngrabKey(code uint32, mods uint16) error
}

// State of the manager.
type State int

const (
	Passthrough State = iota
	Intercepting
)

func (s State) String() string {
	if s == Intercepting {
		return "INTERCEPTING"
	}
	return "PASSTHROUGH"
}

type grabKey struct {
	code uint32
	mods uint16
}

// Manager owns the set of grabs currently held. All transitions happen under
// one lock, so the held set and the state never disagree: nothing is held
// in Passthrough.
type Manager struct {
	grabber Grabber
	mods    uint16

	mu        sync.Mutex
	state     State
	suspended int
	want      bool
	closed    bool
	keys      []string
	held      map[grabKey]struct{}
}

// NewManager creates a manager grabbing with the given modifier mask
// (normally "any modifier").
func NewManager(g Grabber, mods uint16) *Manager {
	m := &Manager{
		grabber: g,
		mods:    mods,
		held:    make(map[grabKey]struct{}),
	}
	m.keys = mergeKeys(nil)
	return m
}

// mergeKeys returns the base table plus the keysym names for the given
// shortcut key tokens, without duplicates.
func mergeKeys(extra []string) []string {
	seen := make(map[string]struct{}, len(keys.GrabBaseKeys)+len(extra))
	out := make([]string, 0, len(keys.GrabBaseKeys)+len(extra))
	add := func(k string) {
		if k == "" {
			return
		}
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	for _, k := range keys.GrabBaseKeys {
		add(k)
	}
	for _, k := range extra {
		add(keys.SequenceToken(strings.ToLower(strings.TrimSpace(k))))
	}
	return out
}

// SetExtraKeys recomputes the grab table from the shortcut key tokens. If
// grabs are held they are replaced with the new table.
func (m *Manager) SetExtraKeys(extra []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.keys = mergeKeys(extra)
	if m.state == Intercepting {
		m.releaseLocked()
		m.acquireLocked()
	}
}

// Keys returns the current grab table.
func (m *Manager) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.keys...)
}

// Update decides the state from the focused window and the managed set.
func (m *Manager) Update(active types.WindowID, windows types.WindowSet) State {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.want = !m.closed && windows.Len() > 0 && windows.Contains(active)
	m.applyLocked()
	return m.state
}

// keyboardReleaser is implemented by grabbers that can end an active
// keyboard grab.
type keyboardReleaser interface {
	UngrabKeyboard() error
}

// Suspend releases grabs for the duration of an injection sweep so that
// synthetic key events reach the focused window. Calls nest.
func (m *Manager) Suspend() {
	m.mu.Lock()
	defer m.mu.Unlock()
	wasIntercepting := m.state == Intercepting
	m.suspended++
	m.applyLocked()

	// The key that triggered the sweep is usually still held, which keeps
	// its passive grab active.
	if r, ok := m.grabber.(keyboardReleaser); ok && wasIntercepting {
		if err := r.UngrabKeyboard(); err != nil {
			logger.Warnf("Failed to end active keyboard grab: %v", err)
		}
	}
}

// Resume undoes one Suspend and restores the state Update last asked for.
func (m *Manager) Resume() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.suspended > 0 {
		m.suspended--
	}
	m.applyLocked()
}

// Release drops every grab and returns to Passthrough until the next
// Update. Safe to call when nothing is held.
func (m *Manager) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.want = false
	m.releaseLocked()
}

// Close releases every grab and ignores Update until Open. Requests that
// race with shutdown cannot grab the keyboard again.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.want = false
	m.releaseLocked()
}

// Open undoes Close.
func (m *Manager) Open() {
	m.mu.Lock()
	m.closed = false
	m.mu.Unlock()
}

func (m *Manager) applyLocked() {
	target := Passthrough
	if m.want && m.suspended == 0 {
		target = Intercepting
	}
	if target == m.state {
		return
	}
	if target == Intercepting {
		m.acquireLocked()
	} else {
		m.releaseLocked()
	}
}

func (m *Manager) acquireLocked() {
	failed := 0
	for _, name := range m.keys {
		codes := m.grabber.Keycodes(name)
		if len(codes) == 0 {
			logger.Debugf("No keycode for %q, not grabbing it", name)
			failed++
			continue
		}
		for _, code := range codes {
			k := grabKey{code: code, mods: m.mods}
			if _, ok := m.held[k]; ok {
				continue
			}
			if err := m.grabber.GrabKey(code, m.mods); err != nil {
				logger.Warnf("Failed to grab %q (keycode %d): %v", name, code, err)
				failed++
				// A failed request may still have left part of the grab in
				// place on the server.
				if err := m.grabber.UngrabKey(code, m.mods); err != nil {
					logger.Debugf("Cleanup ungrab of keycode %d failed: %v", code, err)
				}
				continue
			}
			m.held[k] = struct{}{}
		}
	}
	m.state = Intercepting
	logger.Debugf("Grabbed %d keycodes (%d failures)", len(m.held), failed)
}

func (m *Manager) releaseLocked() {
	for k := range m.held {
		if err := m.grabber.UngrabKey(k.code, k.mods); err != nil {
			logger.Warnf("Failed to ungrab keycode %d: %v", k.code, err)
		}
	}
	if len(m.held) > 0 {
		logger.Debugf("Released %d keycodes", len(m.held))
	}
	m.held = make(map[grabKey]struct{})
	m.state = Passthrough
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Intercepting reports whether grabs are active.
func (m *Manager) Intercepting() bool {
	return m.State() == Intercepting
}

// Held returns the keycodes currently grabbed, sorted.
func (m *Manager) Held() []uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]uint32, 0, len(m.held))
	for k := range m.held {
		out = append(out, k.code)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
