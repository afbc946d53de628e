package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"DEBUG": slog.LevelDebug,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"info":  slog.LevelInfo,
		"":      slog.LevelInfo,
		"loud":  slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, Options{Level: "warn", Format: "json"})
	logger.Info("hidden")
	logger.Warn("shown", "group_id", "trip")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line should be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, `"group_id":"trip"`) {
		t.Errorf("expected JSON attrs, got %s", out)
	}

	buf.Reset()
	New(&buf, Options{Format: "text", NoColor: true}).Info("hello", "k", "v")
	if !strings.Contains(buf.String(), "hello k=v") {
		t.Errorf("expected tint text output, got %q", buf.String())
	}
}

func TestValidateFormat(t *testing.T) {
	for _, f := range []string{"", "text", "JSON"} {
		if err := ValidateFormat(f); err != nil {
			t.Errorf("ValidateFormat(%q) failed: %v", f, err)
		}
	}
	if err := ValidateFormat("xml"); err == nil {
		t.Error("expected error for xml")
	}
}
