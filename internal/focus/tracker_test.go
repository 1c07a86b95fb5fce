package focus

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dooshek/multiboxer/internal/logger"
	"github.com/dooshek/multiboxer/internal/types"
)

func TestMain(m *testing.M) {
	logger.SetOutput(io.Discard)
	os.Exit(m.Run())
}

type scriptedQuerier struct {
	mu      sync.Mutex
	results []result
	calls   int
}

type result struct {
	id  types.WindowID
	err error
}

func (q *scriptedQuerier) ActiveWindow() (types.WindowID, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	r := q.results[min(q.calls, len(q.results)-1)]
	q.calls++
	return r.id, r.err
}

func TestPollIsEdgeTriggered(t *testing.T) {
	q := &scriptedQuerier{results: []result{
		{id: 1}, {id: 1}, {id: 2}, {err: errors.New("BadWindow")}, {id: 2}, {id: 0},
	}}
	tr := NewTracker(q, 20*time.Millisecond)

	var edges [][2]types.WindowID
	tr.OnChange(func(prev, cur types.WindowID) {
		edges = append(edges, [2]types.WindowID{prev, cur})
	})

	wantCur := []types.WindowID{1, 1, 2, 2, 2, 0}
	for i, want := range wantCur {
		if got, _ := tr.Poll(); got != want {
			t.Errorf("poll %d = %d, want %d", i, got, want)
		}
	}

	wantEdges := [][2]types.WindowID{{0, 1}, {1, 2}, {2, 0}}
	if len(edges) != len(wantEdges) {
		t.Fatalf("edges = %v, want %v", edges, wantEdges)
	}
	for i := range wantEdges {
		if edges[i] != wantEdges[i] {
			t.Errorf("edge %d = %v, want %v", i, edges[i], wantEdges[i])
		}
	}
}

func TestPollFailureKeepsPrevious(t *testing.T) {
	q := &scriptedQuerier{results: []result{{id: 7}, {err: errors.New("no display")}}}
	tr := NewTracker(q, 20*time.Millisecond)
	tr.Poll()

	cur, changed := tr.Poll()
	if cur != 7 || changed {
		t.Errorf("Poll() after failure = (%d, %v), want (7, false)", cur, changed)
	}
	if tr.Active() != 7 {
		t.Errorf("Active() = %d, want 7", tr.Active())
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	q := &scriptedQuerier{results: []result{{id: 3}}}
	tr := NewTracker(q, 5*time.Millisecond)

	var fired atomic.Int32
	tr.OnChange(func(_, _ types.WindowID) { fired.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		tr.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for tr.Active() != 3 {
		select {
		case <-deadline:
			t.Fatal("tracker never observed focus")
		case <-time.After(time.Millisecond):
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if fired.Load() != 1 {
		t.Errorf("callback fired %d times, want 1", fired.Load())
	}
}

func TestRunSkipsWhilePaused(t *testing.T) {
	q := &scriptedQuerier{results: []result{{id: 9}}}
	tr := NewTracker(q, 2*time.Millisecond)
	var paused atomic.Bool
	paused.Store(true)
	tr.PauseWhile(paused.Load)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	tr.Run(ctx)

	if tr.Active() != types.NoWindow {
		t.Errorf("Active() = %d while paused, want NoWindow", tr.Active())
	}
}

// pausingQuerier reports a sweep's transient window and starts the pause
// while answering, as a sweep that begins mid-query would.
type pausingQuerier struct {
	paused *atomic.Bool
}

func (q pausingQuerier) ActiveWindow() (types.WindowID, error) {
	q.paused.Store(true)
	return 7, nil
}

func TestPollDiscardsAnswerRacingPause(t *testing.T) {
	var paused atomic.Bool
	tr := NewTracker(pausingQuerier{paused: &paused}, 20*time.Millisecond)
	tr.PauseWhile(paused.Load)
	fired := false
	tr.OnChange(func(prev, cur types.WindowID) { fired = true })

	cur, changed := tr.Poll()
	if changed || cur != types.NoWindow || tr.Active() != types.NoWindow {
		t.Errorf("Poll() = %d, %v; Active() = %d, want the previous window kept", cur, changed, tr.Active())
	}
	if fired {
		t.Error("OnChange fired for a window seen during a sweep")
	}
}
