package broadcast

import (
	"sync"
	"sync/atomic"
)

// Guard is the injection guard: while it is held, key events may be
// artifacts of our own injection and are ignored. Acquisitions nest.
type Guard struct {
	count atomic.Int32

	mu      sync.Mutex
	onFirst func()
	onLast  func()
}

func NewGuard() *Guard {
	return &Guard{}
}

// OnEdges registers hooks run when the guard goes from free to held and
// back. The free-to-held hook runs after the counter is raised, the
// held-to-free hook after it drops to zero.
func (g *Guard) OnEdges(first, last func()) {
	g.mu.Lock()
	g.onFirst = first
	g.onLast = last
	g.mu.Unlock()
}

// Acquire raises the counter and returns the function that lowers it.
// Calling the release function more than once has no further effect.
func (g *Guard) Acquire() (release func()) {
	g.mu.Lock()
	if g.count.Add(1) == 1 && g.onFirst != nil {
		g.onFirst()
	}
	g.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			if g.count.Add(-1) == 0 && g.onLast != nil {
				g.onLast()
			}
			g.mu.Unlock()
		})
	}
}

// Held reports whether any acquisition is outstanding.
func (g *Guard) Held() bool {
	return g.count.Load() > 0
}
