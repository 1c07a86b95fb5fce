// Package focus polls the window system for the focused window and reports
// focus changes once per edge.
package focus

import (
	"context"
	"sync"
	"time"

	"github.com/dooshek/multiboxer/internal/logger"
	"github.com/dooshek/multiboxer/internal/types"
)

// Querier asks the window system which window has focus.
type Querier interface {
	ActiveWindow() (types.WindowID, error)
}

// ChangeFunc is called with the previous and the new focused window.
type ChangeFunc func(prev, cur types.WindowID)

// Tracker holds the last observed focused window.
type Tracker struct {
	querier  Querier
	interval time.Duration

	mu       sync.RWMutex
	current  types.WindowID
	onChange ChangeFunc
	paused   func() bool
}

// NewTracker creates a tracker polling every interval.
func NewTracker(q Querier, interval time.Duration) *Tracker {
	return &Tracker{querier: q, interval: interval}
}

// OnChange registers the edge callback. It runs on the polling goroutine.
func (t *Tracker) OnChange(fn ChangeFunc) {
	t.mu.Lock()
	t.onChange = fn
	t.mu.Unlock()
}

// PauseWhile makes Run skip polling while fn returns true. Used so focus
// changes caused by our own injection sweeps are never recorded.
func (t *Tracker) PauseWhile(fn func() bool) {
	t.mu.Lock()
	t.paused = fn
	t.mu.Unlock()
}

// Active returns the last observed focused window.
func (t *Tracker) Active() types.WindowID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current
}

// Poll queries the focused window once. A failed query returns the
// previous value, and so does a query that raced with a pause: the answer
// may be a window visited by a sweep. changed reports whether the value
// moved.
func (t *Tracker) Poll() (cur types.WindowID, changed bool) {
	id, err := t.querier.ActiveWindow()

	t.mu.Lock()
	prev := t.current
	if err != nil {
		t.mu.Unlock()
		logger.Debugf("Focus query failed, keeping %s: %v", prev, err)
		return prev, false
	}
	if t.paused != nil && t.paused() {
		t.mu.Unlock()
		return prev, false
	}
	if id == prev {
		t.mu.Unlock()
		return id, false
	}
	t.current = id
	fn := t.onChange
	t.mu.Unlock()

	logger.Debugf("Active window changed: %s -> %s", prev, id)
	if fn != nil {
		fn(prev, id)
	}
	return id, true
}

// Run polls until ctx is cancelled.
func (t *Tracker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if t.isPaused() {
				continue
			}
			t.Poll()
		}
	}
}

func (t *Tracker) isPaused() bool {
	t.mu.RLock()
	paused := t.paused
	t.mu.RUnlock()
	return paused != nil && paused()
}
