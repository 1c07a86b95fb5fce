package keyboard

import (
	"context"
	"sync"

	"github.com/dooshek/multiboxer/internal/keys"
	"github.com/dooshek/multiboxer/internal/logger"
	hook "github.com/robotn/gohook"
)

// HookSource is a global listener: it sees every keystroke on the desktop
// without withholding any, so the interceptor applies its own focus check.
type HookSource struct {
	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
}

func NewHookSource() *HookSource {
	return &HookSource{}
}

func (h *HookSource) Suppresses() bool { return false }

func (h *HookSource) Start(ctx context.Context, sink Sink) error {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return nil
	}
	ctx, h.cancel = context.WithCancel(ctx)
	h.running = true
	h.mu.Unlock()

	evChan := hook.Start()
	defer hook.End()
	logger.Debug("Global keyboard hook started")

	for {
		select {
		case <-ctx.Done():
			logger.Debug("Global keyboard hook stopped")
			return nil
		case ev, ok := <-evChan:
			if !ok {
				return nil
			}
			var down bool
			switch ev.Kind {
			case hook.KeyHold, hook.KeyDown:
				// Both kinds may fire for one press; the interceptor's
				// pressed set collapses them into one edge.
				down = true
			case hook.KeyUp:
				down = false
			default:
				continue
			}
			raw := keys.RawEvent{Origin: keys.OriginKeysym, Code: uint32(ev.Rawcode), Down: down}
			// Decode drops the undefined-char marker and control characters.
			if ev.Keychar > 0 {
				raw.Text = string(ev.Keychar)
			}
			sink(raw)
		}
	}
}

func (h *HookSource) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		h.cancel()
		h.running = false
	}
}
