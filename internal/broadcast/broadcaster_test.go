package broadcast

import (
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"sync"
	"testing"

	"github.com/dooshek/multiboxer/internal/logger"
	"github.com/dooshek/multiboxer/internal/stats"
	"github.com/dooshek/multiboxer/internal/types"
)

func TestMain(m *testing.M) {
	logger.SetOutput(io.Discard)
	os.Exit(m.Run())
}

// desktop fakes the window system: it tracks focus and records every call.
type desktop struct {
	mu     sync.Mutex
	focus  types.WindowID
	calls  []string
	failAt types.WindowID
	guard  *Guard
	// focusOnly makes addressed injection unsupported, like robotgo.
	focusOnly bool
	titleErr  error
}

func (d *desktop) Activate(id types.WindowID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.focus = id
	d.calls = append(d.calls, fmt.Sprintf("activate %d", id))
	return nil
}

func (d *desktop) inject(kind, payload string, target types.WindowID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if target == types.NoWindow {
		held := d.guard != nil && d.guard.Held()
		d.calls = append(d.calls, fmt.Sprintf("%s %s at focus %d guard=%v", kind, payload, d.focus, held))
		if d.failAt != types.NoWindow && d.focus == d.failAt {
			return errors.New("xdotool: exit status 1")
		}
		return nil
	}
	if d.focusOnly {
		return ErrWindowTargetUnsupported
	}
	d.calls = append(d.calls, fmt.Sprintf("%s %s to %d", kind, payload, target))
	return nil
}

func (d *desktop) InjectKey(seq string, target types.WindowID) error {
	return d.inject("key", seq, target)
}

func (d *desktop) InjectLiteral(ch string, target types.WindowID) error {
	return d.inject("literal", ch, target)
}

func (d *desktop) Titles() (map[types.WindowID]string, error) {
	if d.titleErr != nil {
		return nil, d.titleErr
	}
	return map[types.WindowID]string{1: "World of Warcraft", 2: "World of Warcraft"}, nil
}

func (d *desktop) Active() types.WindowID {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.focus
}

func (d *desktop) log() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

func newBroadcaster(d *desktop, mode types.BroadcastMode) (*Broadcaster, *stats.StatsManager) {
	g := NewGuard()
	d.guard = g
	sm := stats.NewStatsManager()
	b := New(Options{
		Injector: d,
		Windows:  d,
		Titles:   d,
		Active:   d.Active,
		Guard:    g,
		Stats:    sm,
		Mode:     mode,
		Enabled:  true,
	})
	return b, sm
}

func windows(ids ...types.WindowID) types.WindowSet {
	return types.NewWindowSet(ids)
}

func TestFocusSweepOrderAndRestore(t *testing.T) {
	d := &desktop{focus: 1}
	b, _ := newBroadcaster(d, types.ModeFocusSweep)

	b.SendLiteral("g", windows(1, 2, 3), 1)

	want := []string{
		"activate 2",
		"literal g at focus 2 guard=true",
		"activate 3",
		"literal g at focus 3 guard=true",
		"activate 1",
	}
	if got := d.log(); !reflect.DeepEqual(got, want) {
		t.Errorf("calls:\n got %q\nwant %q", got, want)
	}
	if b.guard.Held() {
		t.Error("guard still held after sweep")
	}
}

func TestFocusSweepRestoresAfterFault(t *testing.T) {
	d := &desktop{focus: 1, failAt: 3}
	b, sm := newBroadcaster(d, types.ModeFocusSweep)

	b.SendKey("ctrl+F1", windows(1, 2, 3, 4), 1)

	want := []string{
		"activate 2",
		"key ctrl+F1 at focus 2 guard=true",
		"activate 3",
		"key ctrl+F1 at focus 3 guard=true",
		"activate 4",
		"key ctrl+F1 at focus 4 guard=true",
		"activate 1",
	}
	if got := d.log(); !reflect.DeepEqual(got, want) {
		t.Errorf("calls:\n got %q\nwant %q", got, want)
	}
	if d.Active() != 1 {
		t.Errorf("final focus = %d, want the snapshot 1", d.Active())
	}
	fs := sm.GetStats().Modes["focus_sweep"]
	if fs == nil || fs.Failures != 1 || fs.Deliveries != 2 {
		t.Errorf("stats = %+v, want 1 failure and 2 deliveries", fs)
	}
}

func TestFocusSweepOrderIsStable(t *testing.T) {
	d := &desktop{focus: 5}
	b, _ := newBroadcaster(d, types.ModeFocusSweep)
	set := windows(9, 5, 7)

	b.SendLiteral("x", set, 5)
	first := d.log()
	d.calls = nil
	b.SendLiteral("x", set, 5)

	if !reflect.DeepEqual(first, d.log()) {
		t.Errorf("two identical sweeps differ:\n%q\n%q", first, d.log())
	}
	if first[0] != "activate 9" || first[2] != "activate 7" {
		t.Errorf("targets not visited in set order: %q", first)
	}
}

func TestBackgroundNeverChangesFocus(t *testing.T) {
	d := &desktop{focus: 1}
	b, _ := newBroadcaster(d, types.ModeBackground)

	b.SendKey("Return", windows(1, 2, 3), 1)

	want := []string{"key Return to 2", "key Return to 3"}
	if got := d.log(); !reflect.DeepEqual(got, want) {
		t.Errorf("calls = %q, want %q", got, want)
	}
	if d.Active() != 1 {
		t.Errorf("focus moved to %d", d.Active())
	}
}

func TestSendNoOps(t *testing.T) {
	tests := []struct {
		name    string
		enabled bool
		payload string
		set     types.WindowSet
	}{
		{name: "disabled", enabled: false, payload: "g", set: windows(1, 2)},
		{name: "empty payload", enabled: true, payload: "", set: windows(1, 2)},
		{name: "only the excluded window", enabled: true, payload: "g", set: windows(1)},
		{name: "empty set", enabled: true, payload: "g", set: windows()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, mode := range []types.BroadcastMode{types.ModeFocusSweep, types.ModeBackground} {
				d := &desktop{focus: 1}
				b, _ := newBroadcaster(d, mode)
				b.SetEnabled(tt.enabled)
				b.SendLiteral(tt.payload, tt.set, 1)
				b.SendKey(tt.payload, tt.set, 1)
				if got := d.log(); len(got) != 0 {
					t.Errorf("%s: calls = %q, want none", mode, got)
				}
			}
		})
	}
}

func TestTitleLookupFailureStillSends(t *testing.T) {
	d := &desktop{focus: 1, titleErr: errors.New("BadWindow")}
	b, _ := newBroadcaster(d, types.ModeBackground)

	b.SendLiteral("q", windows(1, 2), 1)

	if got := d.log(); len(got) != 1 || got[0] != "literal q to 2" {
		t.Errorf("calls = %q", got)
	}
}

func TestForward(t *testing.T) {
	tests := []struct {
		name      string
		mode      types.BroadcastMode
		focusOnly bool
		want      []string
	}{
		{
			name: "focus sweep injects at focus under the guard",
			mode: types.ModeFocusSweep,
			want: []string{"key Escape at focus 1 guard=true"},
		},
		{
			name: "background addresses the active window",
			mode: types.ModeBackground,
			want: []string{"key Escape to 1"},
		},
		{
			name:      "focus-only injector falls back to focus",
			mode:      types.ModeBackground,
			focusOnly: true,
			want:      []string{"key Escape at focus 1 guard=true"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &desktop{focus: 1, focusOnly: tt.focusOnly}
			b, _ := newBroadcaster(d, tt.mode)
			// Forwarding is independent of the broadcast flag.
			b.SetEnabled(false)

			b.ForwardKey("Escape", 1)

			if got := d.log(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("calls = %q, want %q", got, tt.want)
			}
			if b.guard.Held() {
				t.Error("guard left held")
			}
		})
	}
}

func TestForwardWithoutActiveWindow(t *testing.T) {
	d := &desktop{}
	b, _ := newBroadcaster(d, types.ModeFocusSweep)
	b.ForwardLiteral("a", types.NoWindow)
	if got := d.log(); len(got) != 0 {
		t.Errorf("calls = %q, want none", got)
	}
}

func TestSetMode(t *testing.T) {
	b := New(Options{Mode: "bogus"})
	if b.Mode() != types.ModeFocusSweep {
		t.Errorf("default mode = %q", b.Mode())
	}
	b.SetMode(types.ModeBackground)
	b.SetMode("teleport")
	if b.Mode() != types.ModeBackground {
		t.Errorf("mode = %q, want background", b.Mode())
	}
}

func TestGuardEdges(t *testing.T) {
	g := NewGuard()
	var firsts, lasts int
	g.OnEdges(func() { firsts++ }, func() { lasts++ })

	r1 := g.Acquire()
	r2 := g.Acquire()
	if g.count.Load() != 2 || !g.Held() {
		t.Fatalf("count = %d, want 2", g.count.Load())
	}
	r2()
	r2()
	if g.count.Load() != 1 {
		t.Errorf("double release dropped the count to %d", g.count.Load())
	}
	r1()
	if g.Held() {
		t.Error("guard held after all releases")
	}
	if firsts != 1 || lasts != 1 {
		t.Errorf("edge hooks ran %d/%d times, want 1/1", firsts, lasts)
	}
}

func TestSweepSuspendsThroughGuardHooks(t *testing.T) {
	d := &desktop{focus: 1}
	b, _ := newBroadcaster(d, types.ModeFocusSweep)
	var events []string
	b.guard.OnEdges(
		func() { events = append(events, "suspend") },
		func() { events = append(events, "resume") },
	)

	b.SendLiteral("g", windows(1, 2, 3), 1)

	if !reflect.DeepEqual(events, []string{"suspend", "resume"}) {
		t.Errorf("guard edges = %q, want one suspend and one resume per sweep", events)
	}
}

func TestBurstHoldsOneGuardScope(t *testing.T) {
	tests := []struct {
		name  string
		mode  types.BroadcastMode
		edges []string
	}{
		{"focus sweep suspends once", types.ModeFocusSweep, []string{"suspend", "resume"}},
		{"background never suspends", types.ModeBackground, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &desktop{focus: 1}
			b, _ := newBroadcaster(d, tt.mode)
			var edges []string
			b.guard.OnEdges(
				func() { edges = append(edges, "suspend") },
				func() { edges = append(edges, "resume") },
			)

			b.Burst(func() {
				b.ForwardLiteral("g", 1)
				b.SendLiteral("g", windows(1, 2, 3), 1)
			})

			if !reflect.DeepEqual(edges, tt.edges) {
				t.Errorf("guard edges = %q, want %q", edges, tt.edges)
			}
			if b.guard.Held() {
				t.Error("guard left held")
			}
		})
	}
}
