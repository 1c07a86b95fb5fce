package wizard

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/dooshek/multiboxer/internal/config"
	"github.com/dooshek/multiboxer/internal/keys"
	"github.com/dooshek/multiboxer/internal/logger"
	"github.com/dooshek/multiboxer/internal/types"
)

func TestMain(m *testing.M) {
	logger.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func sym(code uint32, down bool) keys.RawEvent {
	return keys.RawEvent{Origin: keys.OriginKeysym, Code: code, Down: down}
}

// scriptedSource replays one batch of events per Start call.
type scriptedSource struct {
	mu      sync.Mutex
	batches [][]keys.RawEvent
	starts  int
	stops   int
}

func (s *scriptedSource) Start(ctx context.Context, sink func(keys.RawEvent)) error {
	s.mu.Lock()
	if s.starts >= len(s.batches) {
		s.mu.Unlock()
		return errors.New("no more input")
	}
	batch := s.batches[s.starts]
	s.starts++
	s.mu.Unlock()

	for _, ev := range batch {
		sink(ev)
	}
	<-ctx.Done()
	return nil
}

func (s *scriptedSource) Stop() {
	s.mu.Lock()
	s.stops++
	s.mu.Unlock()
}

func TestTrackerFeed(t *testing.T) {
	tests := []struct {
		name   string
		events []keys.RawEvent
		want   KeyPress
		ok     bool
	}{
		{"plain key", []keys.RawEvent{sym('a', true)}, KeyPress{Key: "a"}, true},
		{"alt combo", []keys.RawEvent{sym(keys.X11LeftAlt, true), sym(0xffbe, true)}, KeyPress{Key: "f1", Alt: true}, true},
		{"released modifier", []keys.RawEvent{
			sym(keys.X11LeftControl, true), sym(keys.X11LeftControl, false), sym('x', true),
		}, KeyPress{Key: "x"}, true},
		{"all modifiers", []keys.RawEvent{
			sym(keys.X11RightAlt, true), sym(keys.X11LeftControl, true), sym(keys.X11LeftShift, true), sym('z', true),
		}, KeyPress{Key: "z", Alt: true, Control: true, Shift: true}, true},
		{"super is ignored", []keys.RawEvent{sym(keys.X11LeftSuper, true), sym('k', true)}, KeyPress{Key: "k"}, true},
		{"modifiers only", []keys.RawEvent{sym(keys.X11LeftAlt, true)}, KeyPress{}, false},
		{"key up only", []keys.RawEvent{sym('a', false)}, KeyPress{}, false},
		{"plus cannot be bound", []keys.RawEvent{sym('+', true)}, KeyPress{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newTracker()
			var got KeyPress
			var ok bool
			for _, ev := range tt.events {
				if got, ok = tr.feed(ev); ok {
					break
				}
			}
			if ok != tt.ok || got != tt.want {
				t.Errorf("feed() = %+v, %v; want %+v, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestBinding(t *testing.T) {
	tests := []struct {
		kp   KeyPress
		want string
	}{
		{KeyPress{Key: "d", Alt: true}, "Alt+d"},
		{KeyPress{Key: "f1", Control: true, Shift: true}, "Ctrl+Shift+f1"},
		{KeyPress{Key: "escape"}, "escape"},
	}
	for _, tt := range tests {
		if got := tt.kp.Binding(); got != tt.want {
			t.Errorf("Binding() = %q, want %q", got, tt.want)
		}
	}
}

func TestRunSavesAcceptedBindings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "multiboxer.yaml")
	src := &scriptedSource{batches: [][]keys.RawEvent{
		{sym(keys.X11LeftAlt, true), sym('q', true)},
		{sym(keys.X11LeftControl, true), sym(0xffbe, true)},
	}}

	answers := []string{
		"EverQuest", // pattern
		"c", "y",    // prev: capture alt+q and accept
		"c", "n", "s", // next: capture ctrl+f1, reject, skip
	}
	// Keep every remaining shortcut.
	for i := 0; i < 4+len(types.DefaultConfig().Shortcuts.WindowKeys); i++ {
		answers = append(answers, "")
	}
	in := strings.NewReader(strings.Join(answers, "\n") + "\n")
	var out bytes.Buffer

	if err := New(path, src, in, &out).Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v\n%s", err, out.String())
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	defaults := types.DefaultConfig()
	if cfg.Pattern != "EverQuest" {
		t.Errorf("Pattern = %q", cfg.Pattern)
	}
	if cfg.Shortcuts.Prev != "Alt+q" {
		t.Errorf("Prev = %q, want Alt+q", cfg.Shortcuts.Prev)
	}
	if cfg.Shortcuts.Next != defaults.Shortcuts.Next {
		t.Errorf("Next = %q, want unchanged %q", cfg.Shortcuts.Next, defaults.Shortcuts.Next)
	}
	if src.starts != 2 || src.stops != 2 {
		t.Errorf("source started %d and stopped %d times, want 2 each", src.starts, src.stops)
	}
	if !strings.Contains(out.String(), "Ctrl+f1") {
		t.Errorf("rejected capture not shown:\n%s", out.String())
	}
}

func TestRunStopsWhenInputEnds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "multiboxer.yaml")
	err := New(path, &scriptedSource{}, strings.NewReader("WoW\n"), io.Discard).Run(context.Background())
	if !errors.Is(err, ErrCancelled) {
		t.Errorf("Run() error = %v, want ErrCancelled", err)
	}
}

func TestCaptureReportsSourceFailure(t *testing.T) {
	w := New("", &scriptedSource{}, strings.NewReader(""), io.Discard)
	if _, err := w.capture(context.Background()); err == nil {
		t.Error("capture() should fail when the source cannot start")
	}
}
