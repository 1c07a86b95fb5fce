package types

import (
	"reflect"
	"testing"
)

func TestNewWindowSet(t *testing.T) {
	tests := []struct {
		name string
		in   []WindowID
		want []WindowID
	}{
		{"empty", nil, []WindowID{}},
		{"keeps order", []WindowID{3, 1, 2}, []WindowID{3, 1, 2}},
		{"drops duplicates", []WindowID{5, 6, 5, 7, 6}, []WindowID{5, 6, 7}},
		{"drops no window", []WindowID{0, 9, 0}, []WindowID{9}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewWindowSet(tt.in).IDs()
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("NewWindowSet(%v).IDs() = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestWindowSetLookup(t *testing.T) {
	s := NewWindowSet([]WindowID{10, 20, 30})

	if got := s.Index(20); got != 1 {
		t.Errorf("Index(20) = %d, want 1", got)
	}
	if got := s.Index(40); got != -1 {
		t.Errorf("Index(40) = %d, want -1", got)
	}
	if s.Contains(NoWindow) {
		t.Error("Contains(NoWindow) = true, want false")
	}
	if got := s.At(2); got != 30 {
		t.Errorf("At(2) = %d, want 30", got)
	}
	if got := s.At(3); got != NoWindow {
		t.Errorf("At(3) = %d, want NoWindow", got)
	}

	ids := s.IDs()
	ids[0] = 99
	if s.At(0) != 10 {
		t.Error("IDs() must return a copy")
	}
}

func TestGetTimingsClamp(t *testing.T) {
	tests := []struct {
		poll int
		want int
	}{
		{0, 50},
		{5, 20},
		{35, 35},
		{500, 50},
	}

	for _, tt := range tests {
		c := &Config{Timings: Timings{FocusPollMs: tt.poll}}
		got := c.GetTimings()
		if got.FocusPollMs != tt.want {
			t.Errorf("poll %d: FocusPollMs = %d, want %d", tt.poll, got.FocusPollMs, tt.want)
		}
		if got.FocusSettleMs != 10 || got.RestoreSettleMs != 6 {
			t.Errorf("poll %d: settle defaults = %d/%d, want 10/6", tt.poll, got.FocusSettleMs, got.RestoreSettleMs)
		}
	}
}
