package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	l, err := New("warn", "json", &buf)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	l.Info().Msg("hidden")
	l.Warn().Str("component", "crud").Msg("shown")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, `"component":"crud"`) {
		t.Fatalf("unexpected output: %s", out)
	}
}

func TestNew_Console(t *testing.T) {
	var buf bytes.Buffer
	l, err := New("debug", "console", &buf)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	l.Debug().Msg("hello")
	if !strings.Contains(buf.String(), "hello") || strings.HasPrefix(buf.String(), "{") {
		t.Fatalf("unexpected output: %s", buf.String())
	}
}

func TestNew_Errors(t *testing.T) {
	if _, err := New("loud", "json", &bytes.Buffer{}); err == nil {
		t.Fatalf("expected level error")
	}
	if _, err := New("info", "xml", &bytes.Buffer{}); err == nil {
		t.Fatalf("expected format error")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{"": zerolog.InfoLevel, "off": zerolog.Disabled, "DEBUG": zerolog.DebugLevel, "error": zerolog.ErrorLevel}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Fatalf("ParseLevel(%q) = %v, %v", in, got, err)
		}
	}
}
