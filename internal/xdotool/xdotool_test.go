package xdotool

import (
	"io"
	"os"
	"reflect"
	"testing"

	"github.com/dooshek/multiboxer/internal/logger"
	"github.com/dooshek/multiboxer/internal/types"
)

func TestMain(m *testing.M) {
	logger.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func TestParseIDs(t *testing.T) {
	tests := []struct {
		name string
		out  string
		want []types.WindowID
	}{
		{"empty", "", nil},
		{"single", "12345\n", []types.WindowID{12345}},
		{"several keep order", "30\n10\n20\n", []types.WindowID{30, 10, 20}},
		{"blank and malformed lines", "\n  7 \nabc\n-1\n99999999999\n8", []types.WindowID{7, 8}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseIDs([]byte(tt.out))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseIDs(%q) = %v, want %v", tt.out, got, tt.want)
			}
		})
	}
}

func TestParseID(t *testing.T) {
	id, err := ParseID([]byte(" 62914561\n"))
	if err != nil {
		t.Fatalf("ParseID: %v", err)
	}
	if id != 62914561 {
		t.Errorf("ParseID = %d, want 62914561", id)
	}

	if _, err := ParseID([]byte("")); err == nil {
		t.Error("ParseID of empty output should fail")
	}
	if _, err := ParseID([]byte("window")); err == nil {
		t.Error("ParseID of text should fail")
	}
}
