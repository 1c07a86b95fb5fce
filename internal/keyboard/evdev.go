package keyboard

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/MarinX/keylogger"
	"github.com/dooshek/multiboxer/internal/keys"
	"github.com/dooshek/multiboxer/internal/logger"
)

// EvdevSource reads the kernel input device directly. It needs read access
// to /dev/input (the input group) and never withholds keys.
type EvdevSource struct {
	mu     sync.Mutex
	cancel context.CancelFunc
}

func NewEvdevSource() *EvdevSource {
	return &EvdevSource{}
}

func (e *EvdevSource) Suppresses() bool { return false }

func (e *EvdevSource) Start(ctx context.Context, sink Sink) error {
	device := keylogger.FindKeyboardDevice()
	if device == "" {
		return fmt.Errorf("no keyboard devices found - check permissions (input group)")
	}
	logger.Debugf("Found keyboard device: %s", device)

	kbd, err := keylogger.New(device)
	if err != nil {
		if strings.Contains(err.Error(), "permission denied") {
			fmt.Printf("Cannot access keyboard device.\n" +
				"Solution: \n" +
				"1. Add yourself to the input group: sudo usermod -aG input $USER \n" +
				"2. Log out and log back in (or restart your system) \n" +
				"3. Run the program again \n\n")
		}
		return fmt.Errorf("error initializing keylogger: %w", err)
	}
	e.mu.Lock()
	ctx, e.cancel = context.WithCancel(ctx)
	e.mu.Unlock()
	defer kbd.Close()

	events := kbd.Read()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				logger.Debug("Keyboard event channel closed")
				return nil
			}
			if ev.Type != keylogger.EvKey {
				continue
			}
			// Kernel auto-repeat (value 2) is neither press nor release.
			switch {
			case ev.KeyPress():
				sink(keys.RawEvent{Origin: keys.OriginEvdev, Code: uint32(ev.Code), Down: true})
			case ev.KeyRelease():
				sink(keys.RawEvent{Origin: keys.OriginEvdev, Code: uint32(ev.Code), Down: false})
			}
		}
	}
}

func (e *EvdevSource) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		e.cancel()
	}
}
