package shortcut

import (
	"sort"
	"sync"
	"testing"

	"github.com/dooshek/multiboxer/internal/types"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Alt+Shift+F1", "alt+shift+f1"},
		{"shift+alt+f1", "alt+shift+f1"},
		{"  Control + Alt + X ", "alt+control+x"},
		{"ctrl+a", "control+a"},
		{"Shift+Shift+a", "shift+a"},
		{"Escape", "escape"},
		{"", ""},
		{"   ", ""},
		{"alt+", ""},
		{"+a", ""},
		{"alt++a", ""},
		{"hyper+a", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestComboMatchesNormalize(t *testing.T) {
	if got, want := Combo(true, false, true, "F1"), Normalize("Shift+Alt+F1"); got != want {
		t.Errorf("Combo() = %q, want %q", got, want)
	}
	if got := Combo(false, false, false, "g"); got != "g" {
		t.Errorf("Combo(g) = %q, want g", got)
	}
	if got := Combo(true, true, true, ""); got != "" {
		t.Errorf("Combo with empty key = %q, want empty", got)
	}
}

func testShortcuts() types.Shortcuts {
	return types.Shortcuts{
		Prev:            "Alt+a",
		Next:            "Alt+d",
		MinimizeAll:     "Alt+m",
		CloseAll:        "Alt+Delete",
		ToggleBroadcast: "Alt+b",
		ToggleOverlay:   "Alt+o",
		WindowKeys:      []string{"Alt+F1", "Alt+F2", "Alt+F1", "Alt+F3"},
	}
}

func TestTableMatch(t *testing.T) {
	table, invalid := NewTable(testShortcuts())
	if len(invalid) != 0 {
		t.Fatalf("unexpected invalid bindings: %v", invalid)
	}

	tests := []struct {
		combo string
		want  Match
	}{
		{"alt+d", Match{Kind: MatchAction, Action: ActionNext}},
		{"alt+a", Match{Kind: MatchAction, Action: ActionPrev}},
		{"alt+delete", Match{Kind: MatchAction, Action: ActionCloseAll}},
		{"alt+f2", Match{Kind: MatchWindow, Index: 1}},
		// duplicate binding resolves to the earliest declaration
		{"alt+f1", Match{Kind: MatchWindow, Index: 0}},
		{"alt+f3", Match{Kind: MatchWindow, Index: 3}},
		{"d", Match{}},
		{"", Match{}},
	}

	for _, tt := range tests {
		t.Run(tt.combo, func(t *testing.T) {
			if got := table.Match(tt.combo); got != tt.want {
				t.Errorf("Match(%q) = %+v, want %+v", tt.combo, got, tt.want)
			}
		})
	}
}

func TestActionBeatsWindowBinding(t *testing.T) {
	sc := testShortcuts()
	sc.WindowKeys = []string{"Alt+d"}
	table, _ := NewTable(sc)
	if got := table.Match("alt+d"); got.Kind != MatchAction || got.Action != ActionNext {
		t.Errorf("Match(alt+d) = %+v, want action next", got)
	}
}

func TestNewTableReportsInvalid(t *testing.T) {
	sc := types.Shortcuts{
		Prev:       "Alt+",
		Next:       "",
		WindowKeys: []string{"Super+1", "Alt+2"},
	}
	table, invalid := NewTable(sc)

	sort.Strings(invalid)
	if len(invalid) != 2 || invalid[0] != "Alt+" || invalid[1] != "Super+1" {
		t.Errorf("invalid = %v, want [Alt+ Super+1]", invalid)
	}
	if got := table.Match("alt+2"); got.Kind != MatchWindow || got.Index != 1 {
		t.Errorf("Match(alt+2) = %+v, want window index 1", got)
	}
}

func TestTableKeys(t *testing.T) {
	table, _ := NewTable(testShortcuts())
	keys := table.Keys()
	sort.Strings(keys)

	want := []string{"a", "b", "d", "delete", "f1", "f2", "f3", "m", "o"}
	if len(keys) != len(want) {
		t.Fatalf("Keys() = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("Keys()[%d] = %q, want %q", i, keys[i], want[i])
		}
	}
}

func TestMatcherRebuildIsAtomic(t *testing.T) {
	m, _ := NewMatcher(testShortcuts())
	alt := testShortcuts()
	alt.Next = "Alt+x"

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			// Either table binds prev to alt+a; a half-built table would not.
			if got := m.Match("alt+a"); got.Kind != MatchAction {
				t.Errorf("Match(alt+a) during rebuild = %+v", got)
				return
			}
		}
	}()

	for i := 0; i < 200; i++ {
		if i%2 == 0 {
			m.Rebuild(alt)
		} else {
			m.Rebuild(testShortcuts())
		}
	}
	close(stop)
	wg.Wait()

	m.Rebuild(alt)
	if got := m.Match("alt+x"); got.Action != ActionNext {
		t.Errorf("after rebuild Match(alt+x) = %+v, want next", got)
	}
	if got := m.Match("alt+d"); got.Kind != NoMatch {
		t.Errorf("after rebuild Match(alt+d) = %+v, want no match", got)
	}
}
