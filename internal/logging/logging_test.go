package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want slog.Level
	}{
		{"", slog.LevelInfo},
		{"info", slog.LevelInfo},
		{" DEBUG ", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := parseLevel(tt.in)
		if err != nil {
			t.Fatalf("parseLevel(%q) error = %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	if _, err := parseLevel("verbose"); err == nil {
		t.Fatal("parseLevel(verbose) expected error")
	}
}

func TestNewHandlerJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	h, err := NewHandler(&buf, LevelInfo, FormatJSON)
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	slog.New(h).Info("rotated", "server", "koth-reforged-2-1")

	if !strings.Contains(buf.String(), `"server":"koth-reforged-2-1"`) {
		t.Fatalf("json output = %q, missing server attribute", buf.String())
	}
}

func TestNewHandlerRejectsUnknownFormat(t *testing.T) {
	t.Parallel()

	if _, err := NewHandler(&bytes.Buffer{}, LevelInfo, "xml"); err == nil {
		t.Fatal("NewHandler(xml) expected error")
	}
}
