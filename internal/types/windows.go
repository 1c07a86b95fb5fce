package types

// WindowSet is the ordered group of managed windows. Position is the
// user-visible "window N" identity; it is recomputed on every rescan, so a
// WindowSet is never mutated, only replaced.
type WindowSet struct {
	ids []WindowID
}

// NewWindowSet builds a set from ids, dropping NoWindow and duplicates while
// keeping first-seen order.
func NewWindowSet(ids []WindowID) WindowSet {
	seen := make(map[WindowID]struct{}, len(ids))
	out := make([]WindowID, 0, len(ids))
	for _, id := range ids {
		if id == NoWindow {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return WindowSet{ids: out}
}

func (s WindowSet) Len() int { return len(s.ids) }

// IDs returns a copy of the ordered ids.
func (s WindowSet) IDs() []WindowID {
	out := make([]WindowID, len(s.ids))
	copy(out, s.ids)
	return out
}

// At returns the window at position i, or NoWindow when out of range.
func (s WindowSet) At(i int) WindowID {
	if i < 0 || i >= len(s.ids) {
		return NoWindow
	}
	return s.ids[i]
}

// Index returns the position of id, or -1.
func (s WindowSet) Index(id WindowID) int {
	if id == NoWindow {
		return -1
	}
	for i, w := range s.ids {
		if w == id {
			return i
		}
	}
	return -1
}

func (s WindowSet) Contains(id WindowID) bool {
	return s.Index(id) >= 0
}
