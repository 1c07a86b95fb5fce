// Package shortcut normalises modifier+key combos and matches them against
// the configured action and window-index bindings.
package shortcut

import (
	"strings"
	"sync/atomic"

	"github.com/dooshek/multiboxer/internal/types"
)

// Action is a named internal command bound to a shortcut.
type Action string

const (
	ActionPrev            Action = "prev"
	ActionNext            Action = "next"
	ActionMinimizeAll     Action = "minimize_all"
	ActionCloseAll        Action = "close_all"
	ActionToggleBroadcast Action = "toggle_broadcast"
	ActionToggleOverlay   Action = "toggle_overlay"
)

// Modifiers in canonical order.
var canonOrder = []string{"alt", "control", "shift"}

var modifierAliases = map[string]string{
	"alt":     "alt",
	"control": "control",
	"ctrl":    "control",
	"shift":   "shift",
}

// Normalize turns "Shift+Alt+F1" into "alt+shift+f1". Empty input, empty
// tokens and unknown modifiers yield "", which never matches anything.
func Normalize(spec string) string {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return ""
	}

	parts := strings.Split(spec, "+")
	for i, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			return ""
		}
		parts[i] = p
	}

	key := parts[len(parts)-1]
	held := make(map[string]bool, len(parts)-1)
	for _, m := range parts[:len(parts)-1] {
		canon, ok := modifierAliases[m]
		if !ok {
			return ""
		}
		held[canon] = true
	}

	out := make([]string, 0, len(parts))
	for _, m := range canonOrder {
		if held[m] {
			out = append(out, m)
		}
	}
	return strings.Join(append(out, key), "+")
}

// Combo builds the canonical combo for a key pressed with the given
// modifiers.
func Combo(alt, control, shift bool, key string) string {
	key = strings.ToLower(key)
	if key == "" {
		return ""
	}
	var b strings.Builder
	if alt {
		b.WriteString("alt+")
	}
	if control {
		b.WriteString("control+")
	}
	if shift {
		b.WriteString("shift+")
	}
	b.WriteString(key)
	return b.String()
}

// KeyOf returns the key token of a normalised combo.
func KeyOf(combo string) string {
	if i := strings.LastIndexByte(combo, '+'); i >= 0 {
		return combo[i+1:]
	}
	return combo
}

// Kind tells what a combo resolved to.
type Kind int

const (
	NoMatch Kind = iota
	MatchAction
	MatchWindow
)

// Match is the outcome of a table lookup.
type Match struct {
	Kind   Kind
	Action Action
	Index  int
}

type windowBinding struct {
	combo string
	index int
}

// Table is an immutable snapshot of the configured bindings.
type Table struct {
	actions map[string]Action
	windows []windowBinding
}

// NewTable builds a table from config. The second return value lists the
// configured strings that could not be parsed; those bindings are disabled.
func NewTable(sc types.Shortcuts) (*Table, []string) {
	t := &Table{actions: make(map[string]Action)}
	var invalid []string

	pairs := []struct {
		action Action
		spec   string
	}{
		{ActionPrev, sc.Prev},
		{ActionNext, sc.Next},
		{ActionMinimizeAll, sc.MinimizeAll},
		{ActionCloseAll, sc.CloseAll},
		{ActionToggleBroadcast, sc.ToggleBroadcast},
		{ActionToggleOverlay, sc.ToggleOverlay},
	}
	for _, p := range pairs {
		combo := Normalize(p.spec)
		if combo == "" {
			if strings.TrimSpace(p.spec) != "" {
				invalid = append(invalid, p.spec)
			}
			continue
		}
		// First declaration wins.
		if _, taken := t.actions[combo]; !taken {
			t.actions[combo] = p.action
		}
	}

	for idx, spec := range sc.WindowKeys {
		combo := Normalize(spec)
		if combo == "" {
			if strings.TrimSpace(spec) != "" {
				invalid = append(invalid, spec)
			}
			continue
		}
		t.windows = append(t.windows, windowBinding{combo: combo, index: idx})
	}

	return t, invalid
}

// Match looks combo up in the action table, then in the window bindings in
// config order.
func (t *Table) Match(combo string) Match {
	if t == nil || combo == "" {
		return Match{}
	}
	if a, ok := t.actions[combo]; ok {
		return Match{Kind: MatchAction, Action: a}
	}
	for _, w := range t.windows {
		if w.combo == combo {
			return Match{Kind: MatchWindow, Index: w.index}
		}
	}
	return Match{}
}

// Combos returns every bound combo.
func (t *Table) Combos() []string {
	if t == nil {
		return nil
	}
	out := make([]string, 0, len(t.actions)+len(t.windows))
	for c := range t.actions {
		out = append(out, c)
	}
	for _, w := range t.windows {
		out = append(out, w.combo)
	}
	return out
}

// Keys returns the distinct key tokens referenced by any binding.
func (t *Table) Keys() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, c := range t.Combos() {
		k := KeyOf(c)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

// Matcher publishes tables atomically: a concurrent Match sees either the
// old table or the new one, never a partial rebuild.
type Matcher struct {
	table atomic.Pointer[Table]
}

func NewMatcher(sc types.Shortcuts) (*Matcher, []string) {
	m := &Matcher{}
	invalid := m.Rebuild(sc)
	return m, invalid
}

// Rebuild replaces the table and returns the unparseable bindings.
func (m *Matcher) Rebuild(sc types.Shortcuts) []string {
	t, invalid := NewTable(sc)
	m.table.Store(t)
	return invalid
}

func (m *Matcher) Match(combo string) Match {
	return m.table.Load().Match(combo)
}

func (m *Matcher) Table() *Table {
	return m.table.Load()
}
