package state

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/dooshek/multiboxer/internal/shortcut"
	"github.com/dooshek/multiboxer/internal/types"
)

// InhibitSet holds key names and combos that are never broadcast. It is
// immutable once built.
type InhibitSet struct {
	entries map[string]struct{}
}

// NewInhibitSet builds the set from config entries. Plain entries are key
// names ("Escape", "Alt_L"); entries with a "+" are combos and are
// normalised the same way shortcuts are.
func NewInhibitSet(list []string) *InhibitSet {
	s := &InhibitSet{entries: make(map[string]struct{}, len(list))}
	for _, e := range list {
		e = strings.TrimSpace(e)
		if strings.Contains(e, "+") && len(e) > 1 {
			e = shortcut.Normalize(e)
		} else {
			e = strings.ToLower(e)
		}
		if e != "" {
			s.entries[e] = struct{}{}
		}
	}
	return s
}

// Contains reports whether the key name or its combo is inhibited.
func (s *InhibitSet) Contains(name, combo string) bool {
	if s == nil {
		return false
	}
	if _, ok := s.entries[name]; ok {
		return true
	}
	_, ok := s.entries[combo]
	return ok
}

func (s *InhibitSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.entries)
}

// AppState is the state shared between the focus loop, the key loop and
// control callers. Every field is published atomically; readers may see a
// slightly stale value but never a half-built one.
type AppState struct {
	windows atomic.Pointer[types.WindowSet]
	inhibit atomic.Pointer[InhibitSet]
	overlay atomic.Bool

	mu     sync.RWMutex
	config *types.Config
}

func New(cfg *types.Config) *AppState {
	if cfg == nil {
		cfg = types.DefaultConfig()
	}
	s := &AppState{config: cfg.Clone()}
	s.SetWindows(types.NewWindowSet(nil))
	s.inhibit.Store(NewInhibitSet(cfg.InhibitKeys))
	s.overlay.Store(cfg.OverlayEnabled)
	return s
}

// Windows returns the managed window set.
func (s *AppState) Windows() types.WindowSet {
	return *s.windows.Load()
}

// SetWindows replaces the managed window set wholesale.
func (s *AppState) SetWindows(ws types.WindowSet) {
	s.windows.Store(&ws)
}

func (s *AppState) Inhibit() *InhibitSet {
	return s.inhibit.Load()
}

// SetInhibitKeys republishes the inhibit set and records it in the config.
func (s *AppState) SetInhibitKeys(list []string) {
	s.inhibit.Store(NewInhibitSet(list))
	s.Update(func(c *types.Config) {
		c.InhibitKeys = append([]string(nil), list...)
	})
}

func (s *AppState) OverlayEnabled() bool {
	return s.overlay.Load()
}

func (s *AppState) SetOverlayEnabled(on bool) {
	s.overlay.Store(on)
	s.Update(func(c *types.Config) { c.OverlayEnabled = on })
}

// Config returns a copy of the current configuration.
func (s *AppState) Config() *types.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config.Clone()
}

// Update applies fn to the stored configuration under the lock.
func (s *AppState) Update(fn func(*types.Config)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.config)
}

// Replace swaps in a new configuration and republishes the derived state.
func (s *AppState) Replace(cfg *types.Config) {
	s.mu.Lock()
	s.config = cfg.Clone()
	s.mu.Unlock()
	s.inhibit.Store(NewInhibitSet(cfg.InhibitKeys))
	s.overlay.Store(cfg.OverlayEnabled)
}
