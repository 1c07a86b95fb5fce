package keyboard

import (
	"context"
	"sync"
	"time"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/xevent"
	"github.com/dooshek/multiboxer/internal/keys"
	"github.com/dooshek/multiboxer/internal/logger"
	"github.com/dooshek/multiboxer/internal/x11"
)

// modifier bits of the X11 key event state mask
var stateModifiers = []struct {
	mask   uint16
	keysym uint32
}{
	{xproto.ModMaskShift, keys.X11LeftShift},
	{xproto.ModMaskControl, keys.X11LeftControl},
	{xproto.ModMask1, keys.X11LeftAlt},
}

// X server auto-repeat arrives as a release immediately followed by a press
// with the same timestamp. Releases are held back this long to pair them.
const repeatPairWindow = 5 * time.Millisecond

// keysymTable maps a keycode and keyboard mapping column to a keysym.
type keysymTable interface {
	Keysym(code xproto.Keycode, col byte) uint32
}

type heldRelease struct {
	code  xproto.Keycode
	time  xproto.Timestamp
	raw   keys.RawEvent
	timer *time.Timer
}

// X11Source receives the key events produced by the root window passive
// grabs. Only grabbed keys are delivered, so modifier transitions are
// synthesised from the state mask carried by each event.
type X11Source struct {
	conn       *x11.Conn
	keysyms    keysymTable
	pairWindow time.Duration

	mu      sync.Mutex
	mods    uint16
	sink    Sink
	stop    context.CancelFunc
	pending *heldRelease
}

func NewX11Source(conn *x11.Conn) *X11Source {
	return &X11Source{conn: conn, keysyms: conn, pairWindow: repeatPairWindow}
}

func (x *X11Source) Suppresses() bool { return true }

func (x *X11Source) Start(ctx context.Context, sink Sink) error {
	ctx, cancel := context.WithCancel(ctx)
	x.mu.Lock()
	x.sink = sink
	x.stop = cancel
	x.mu.Unlock()

	xu := x.conn.XUtil()
	root := x.conn.RootWindow()

	xevent.KeyPressFun(func(_ *xgbutil.XUtil, ev xevent.KeyPressEvent) {
		x.handle(ev.Detail, ev.State, ev.Time, true)
	}).Connect(xu, root)
	xevent.KeyReleaseFun(func(_ *xgbutil.XUtil, ev xevent.KeyReleaseEvent) {
		x.handle(ev.Detail, ev.State, ev.Time, false)
	}).Connect(xu, root)

	logger.Debug("X11 input source listening for grabbed keys")

	done := make(chan struct{})
	go func() {
		defer close(done)
		x.conn.Loop()
	}()

	select {
	case <-ctx.Done():
		x.conn.Quit()
		<-done
	case <-done:
	}
	xevent.Detach(xu, root)
	return nil
}

func (x *X11Source) handle(code xproto.Keycode, state uint16, at xproto.Timestamp, down bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.sink == nil {
		return
	}

	if p := x.pending; p != nil {
		x.pending = nil
		p.timer.Stop()
		if down && p.code == code && p.time == at {
			// Auto-repeat pair: the key never went up.
			x.sink(x.decode(code, state, true))
			return
		}
		x.sink(p.raw)
	}

	// The state mask describes modifiers held before this event.
	for _, m := range stateModifiers {
		was := x.mods&m.mask != 0
		is := state&m.mask != 0
		if was != is {
			x.sink(keys.RawEvent{Origin: keys.OriginKeysym, Code: m.keysym, Down: is})
		}
	}
	x.mods = state

	raw := x.decode(code, state, down)
	if down {
		x.sink(raw)
		return
	}

	p := &heldRelease{code: code, time: at, raw: raw}
	p.timer = time.AfterFunc(x.pairWindow, func() { x.flush(p) })
	x.pending = p
}

func (x *X11Source) decode(code xproto.Keycode, state uint16, down bool) keys.RawEvent {
	base := x.keysyms.Keysym(code, 0)
	col := byte(0)
	if state&xproto.ModMaskShift != 0 {
		col = 1
	}
	text := keys.KeysymText(x.keysyms.Keysym(code, col))
	return keys.RawEvent{Origin: keys.OriginKeysym, Code: base, Text: text, Down: down}
}

// flush delivers a held-back release once no repeat press followed it.
func (x *X11Source) flush(p *heldRelease) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.pending != p || x.sink == nil {
		return
	}
	x.pending = nil
	x.sink(p.raw)
}

func (x *X11Source) Stop() {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.stop != nil {
		x.stop()
	}
	if x.pending != nil {
		x.pending.timer.Stop()
		x.sink(x.pending.raw)
		x.pending = nil
	}
	x.sink = nil
	x.mods = 0
}
