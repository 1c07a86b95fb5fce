package keyboard

import (
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/dooshek/multiboxer/internal/keys"
)

const (
	codeOne xproto.Keycode = 10
	codeA   xproto.Keycode = 38
)

// usKeysyms is a two-column slice of a US keyboard mapping.
type usKeysyms map[xproto.Keycode][2]uint32

func (m usKeysyms) Keysym(code xproto.Keycode, col byte) uint32 {
	return m[code][col]
}

var testKeysyms = usKeysyms{
	codeOne: {'1', '!'},
	codeA:   {'a', 'A'},
}

type recorder struct {
	mu     sync.Mutex
	events []keys.RawEvent
}

func (r *recorder) sink(ev keys.RawEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) snapshot() []keys.RawEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]keys.RawEvent(nil), r.events...)
}

func newTestX11Source(window time.Duration) (*X11Source, *recorder) {
	rec := &recorder{}
	x := &X11Source{keysyms: testKeysyms, pairWindow: window}
	x.sink = rec.sink
	return x, rec
}

type x11Step struct {
	code  xproto.Keycode
	state uint16
	time  xproto.Timestamp
	down  bool
}

func sym(code uint32, text string, down bool) keys.RawEvent {
	return keys.RawEvent{Origin: keys.OriginKeysym, Code: code, Text: text, Down: down}
}

func TestX11SourceEvents(t *testing.T) {
	shift := uint16(xproto.ModMaskShift)
	tests := []struct {
		name  string
		steps []x11Step
		want  []keys.RawEvent
	}{
		{
			name: "autorepeat pair folds into a press",
			steps: []x11Step{
				{codeA, 0, 100, true},
				{codeA, 0, 130, false},
				{codeA, 0, 130, true},
			},
			want: []keys.RawEvent{sym('a', "a", true), sym('a', "a", true)},
		},
		{
			name: "release and press at different times stay apart",
			steps: []x11Step{
				{codeA, 0, 100, true},
				{codeA, 0, 130, false},
				{codeA, 0, 131, true},
			},
			want: []keys.RawEvent{sym('a', "a", true), sym('a', "a", false), sym('a', "a", true)},
		},
		{
			name: "same timestamp on another key is not a repeat",
			steps: []x11Step{
				{codeA, 0, 100, true},
				{codeA, 0, 130, false},
				{codeOne, 0, 130, true},
			},
			want: []keys.RawEvent{sym('a', "a", true), sym('a', "a", false), sym('1', "1", true)},
		},
		{
			name:  "shifted glyph",
			steps: []x11Step{{codeA, shift, 100, true}},
			want:  []keys.RawEvent{sym(keys.X11LeftShift, "", true), sym('a', "A", true)},
		},
		{
			name: "shift appears and disappears in the state mask",
			steps: []x11Step{
				{codeOne, shift, 100, true},
				{codeOne, shift, 120, false},
				{codeA, 0, 140, true},
			},
			want: []keys.RawEvent{
				sym(keys.X11LeftShift, "", true),
				sym('1', "!", true),
				sym('1', "!", false),
				sym(keys.X11LeftShift, "", false),
				sym('a', "a", true),
			},
		},
		{
			name:  "control and alt from one mask",
			steps: []x11Step{{codeOne, xproto.ModMaskControl | xproto.ModMask1, 100, true}},
			want: []keys.RawEvent{
				sym(keys.X11LeftControl, "", true),
				sym(keys.X11LeftAlt, "", true),
				sym('1', "1", true),
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// A long window keeps the timer out of the way.
			x, rec := newTestX11Source(time.Hour)
			for _, s := range tt.steps {
				x.handle(s.code, s.state, s.time, s.down)
			}
			if got := rec.snapshot(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("events = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestX11LoneReleaseFlushed(t *testing.T) {
	x, rec := newTestX11Source(repeatPairWindow)
	x.handle(codeA, 0, 100, true)
	start := time.Now()
	x.handle(codeA, 0, 130, false)

	want := []keys.RawEvent{sym('a', "a", true), sym('a', "a", false)}
	deadline := start.Add(time.Second)
	for time.Now().Before(deadline) {
		if got := rec.snapshot(); reflect.DeepEqual(got, want) {
			if elapsed := time.Since(start); elapsed < repeatPairWindow {
				t.Errorf("release delivered after %v, before the pairing window", elapsed)
			}
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Errorf("events = %v, want %v", rec.snapshot(), want)
}

func TestX11StopFlushesPendingRelease(t *testing.T) {
	x, rec := newTestX11Source(time.Hour)
	x.handle(codeOne, 0, 100, true)
	x.handle(codeOne, 0, 110, false)
	x.Stop()

	want := []keys.RawEvent{sym('1', "1", true), sym('1', "1", false)}
	if got := rec.snapshot(); !reflect.DeepEqual(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}

	x.handle(codeA, 0, 200, true)
	if got := rec.snapshot(); len(got) != len(want) {
		t.Errorf("events after Stop = %v", got)
	}
}
