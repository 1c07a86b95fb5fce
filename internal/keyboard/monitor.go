package keyboard

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/dooshek/multiboxer/internal/keys"
	"github.com/dooshek/multiboxer/internal/types"
	"github.com/dooshek/multiboxer/internal/x11"
)

// Sink receives raw key transitions from a source. It is called from the
// source's own goroutine and must not block for long.
type Sink = func(keys.RawEvent)

// Source is a provider of raw key events.
type Source interface {
	// Start delivers events to sink until ctx is cancelled or Stop is called.
	Start(ctx context.Context, sink Sink) error
	Stop()
	// Suppresses reports whether keys seen by this source are withheld from
	// the focused application. Sources that only listen leave delivery to
	// the OS.
	Suppresses() bool
}

// CreateSource creates the source selected in config. conn may be nil for
// the hook and evdev sources.
func CreateSource(kind types.InputSource, conn *x11.Conn) (Source, error) {
	switch kind {
	case types.SourceX11, "":
		if conn == nil {
			return nil, fmt.Errorf("x11 input source needs an X connection: %w", x11.ErrNoDisplay)
		}
		return NewX11Source(conn), nil
	case types.SourceHook:
		return NewHookSource(), nil
	case types.SourceEvdev:
		return NewEvdevSource(), nil
	}
	return nil, fmt.Errorf("unknown input source %q", kind)
}

// DefaultSourceKind picks x11 grabs on an X11 session and evdev elsewhere.
func DefaultSourceKind() types.InputSource {
	if isX11() {
		return types.SourceX11
	}
	return types.SourceEvdev
}

// isX11 checks if the current session is running X11
func isX11() bool {
	session := os.Getenv("XDG_SESSION_TYPE")
	return strings.ToLower(session) == "x11" || (session == "" && os.Getenv("DISPLAY") != "")
}
