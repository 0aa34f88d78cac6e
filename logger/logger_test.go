package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestInitWritesToFile(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	path := filepath.Join(t.TempDir(), "relay.log")

	log, err := Init(path, false)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	log.Debug().Str("component", "test").Msg("hello")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, "Logger initialized") {
		t.Errorf("missing init line: %q", out)
	}
	if !strings.Contains(out, `"component":"test"`) {
		t.Errorf("missing debug line: %q", out)
	}
}

func TestInitBadPath(t *testing.T) {
	if _, err := Init(filepath.Join(t.TempDir(), "missing", "relay.log"), false); err == nil {
		t.Error("expected error for unwritable path")
	}
}

func TestParseLogLevel(t *testing.T) {
	cases := []struct {
		in   string
		want zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"DEBUG", zerolog.DebugLevel},
		{" warn ", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"bogus", zerolog.InfoLevel},
	}
	for _, c := range cases {
		if got := parseLogLevel(c.in); got != c.want {
			t.Errorf("parseLogLevel(%q) = %s, want %s", c.in, got, c.want)
		}
	}
}
