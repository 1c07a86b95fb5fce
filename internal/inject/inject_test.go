package inject

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/dooshek/multiboxer/internal/broadcast"
	"github.com/dooshek/multiboxer/internal/types"
)

type recorder struct {
	calls []string
	err   error
}

func (r *recorder) Output(name string, args ...string) ([]byte, error) {
	return nil, errors.New("unexpected Output")
}

func (r *recorder) Run(name string, args ...string) error {
	r.calls = append(r.calls, "run "+name+" "+strings.Join(args, " "))
	return r.err
}

func (r *recorder) Spawn(name string, args ...string) error {
	r.calls = append(r.calls, "spawn "+name+" "+strings.Join(args, " "))
	return r.err
}

func TestXdotoolCommands(t *testing.T) {
	tests := []struct {
		name string
		op   func(x *Xdotool) error
		want string
	}{
		{"key at focus", func(x *Xdotool) error { return x.InjectKey("alt+Return", types.NoWindow) },
			"run xdotool key --clearmodifiers --delay 0 -- alt+Return"},
		{"literal at focus", func(x *Xdotool) error { return x.InjectLiteral("-", types.NoWindow) },
			"run xdotool type --clearmodifiers --delay 0 -- -"},
		{"key to window", func(x *Xdotool) error { return x.InjectKey("F5", 12) },
			"spawn xdotool key --clearmodifiers --window 12 --delay 0 -- F5"},
		{"literal to window", func(x *Xdotool) error { return x.InjectLiteral("a", 12) },
			"spawn xdotool type --clearmodifiers --window 12 --delay 0 -- a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &recorder{}
			if err := tt.op(NewXdotool(r)); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(r.calls, []string{tt.want}) {
				t.Errorf("calls = %q, want %q", r.calls, tt.want)
			}
		})
	}
}

func TestXdotoolFailure(t *testing.T) {
	boom := errors.New("boom")
	x := NewXdotool(&recorder{err: boom})
	if err := x.InjectKey("a", types.NoWindow); !errors.Is(err, boom) {
		t.Errorf("InjectKey() error = %v, want wrapped %v", err, boom)
	}
	if err := x.InjectLiteral("a", 3); !errors.Is(err, boom) {
		t.Errorf("InjectLiteral() error = %v, want wrapped %v", err, boom)
	}
}

func TestRobotgoKey(t *testing.T) {
	tests := []struct {
		seq      string
		wantKey  string
		wantMods []string
	}{
		{"a", "a", nil},
		{"Return", "enter", nil},
		{"alt+ctrl+Return", "enter", []string{"alt", "ctrl"}},
		{"shift+F5", "f5", []string{"shift"}},
		{"ctrl+minus", "-", []string{"ctrl"}},
		{"alt+plus", "+", []string{"alt"}},
		{"Prior", "pageup", nil},
	}
	for _, tt := range tests {
		t.Run(tt.seq, func(t *testing.T) {
			key, mods := robotgoKey(tt.seq)
			if key != tt.wantKey || !reflect.DeepEqual(mods, tt.wantMods) {
				t.Errorf("robotgoKey(%q) = %q %v, want %q %v", tt.seq, key, mods, tt.wantKey, tt.wantMods)
			}
		})
	}
}

func TestRobotgoRejectsWindowTargets(t *testing.T) {
	var taps []string
	r := &Robotgo{
		tap:  func(key string, mods []string) error { taps = append(taps, key); return nil },
		text: func(s string) { taps = append(taps, "type "+s) },
	}

	if err := r.InjectKey("a", 5); !errors.Is(err, broadcast.ErrWindowTargetUnsupported) {
		t.Errorf("InjectKey() error = %v", err)
	}
	if err := r.InjectLiteral("a", 5); !errors.Is(err, broadcast.ErrWindowTargetUnsupported) {
		t.Errorf("InjectLiteral() error = %v", err)
	}
	if len(taps) != 0 {
		t.Fatalf("window-addressed calls injected %v", taps)
	}

	_ = r.InjectKey("Escape", types.NoWindow)
	_ = r.InjectLiteral("x", types.NoWindow)
	if want := []string{"esc", "type x"}; !reflect.DeepEqual(taps, want) {
		t.Errorf("taps = %v, want %v", taps, want)
	}
}

func TestNewSelectsInjector(t *testing.T) {
	if inj, err := New(types.InjectorXdotool, &recorder{}); err != nil {
		t.Errorf("New(xdotool) error = %v", err)
	} else if _, ok := inj.(*Xdotool); !ok {
		t.Errorf("New(xdotool) = %T", inj)
	}
	if _, err := New("wtype", nil); err == nil {
		t.Error("New(unknown) should fail")
	}
}
