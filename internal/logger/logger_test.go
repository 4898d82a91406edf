package logger

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	pkgerrors "github.com/pkg/errors"
)

// captureStdout runs f with os.Stdout redirected to a pipe and returns the output.
func captureStdout(t *testing.T, f func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	orig := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = orig }()

	f()

	_ = w.Close()
	b, _ := io.ReadAll(r)
	_ = r.Close()
	return string(b)
}

func lastNonEmptyLine(s string) string {
	lines := strings.Split(s, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.TrimSpace(lines[i]) != "" {
			return lines[i]
		}
	}
	return ""
}

func TestLogger_IncludesStackAndServiceOnError(t *testing.T) {
	out := captureStdout(t, func() {
		log := New("vcon-store", "info")
		err := errors.New("boom")
		log.Error().Stack().Err(err).Msg("something failed")
	})

	line := lastNonEmptyLine(out)
	if line == "" {
		t.Fatalf("no output captured")
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(line), &payload); err != nil {
		t.Fatalf("invalid json log: %v\n%s", err, line)
	}

	if svc, ok := payload["service"].(string); !ok || svc != "vcon-store" {
		t.Fatalf("expected service=\"vcon-store\", got %v", payload["service"])
	}
	if lvl, ok := payload["level"].(string); !ok || lvl != "error" {
		t.Fatalf("expected level=\"error\", got %v", payload["level"])
	}
	if _, ok := payload["stack"]; !ok {
		t.Fatalf("expected stack field in error log: %s", line)
	}
}

func TestLogger_LevelFiltersOutput(t *testing.T) {
	out := captureStdout(t, func() {
		log := New("vcon-store", "warn")
		log.Info().Msg("cache miss")
		log.Warn().Msg("index upsert failed")
	})

	if strings.Contains(out, "cache miss") {
		t.Fatalf("info line emitted at warn level: %s", out)
	}
	if !strings.Contains(out, "index upsert failed") {
		t.Fatalf("warn line missing: %s", out)
	}

	// unknown levels fall back to info
	out = captureStdout(t, func() {
		log := New("vcon-store", "chatty")
		log.Info().Msg("still visible")
	})
	if !strings.Contains(out, "still visible") {
		t.Fatalf("expected info fallback for unknown level: %s", out)
	}
}

func TestLogger_WrappedErrorKeepsExistingStack(t *testing.T) {
	out := captureStdout(t, func() {
		log := New("vcon-store", "")
		err := pkgerrors.Wrap(errors.New("connection refused"), "redis ping")
		log.Error().Stack().Err(err).Msg("cache unavailable")
	})

	line := lastNonEmptyLine(out)
	var payload map[string]any
	if err := json.Unmarshal([]byte(line), &payload); err != nil {
		t.Fatalf("invalid json log: %v\n%s", err, line)
	}

	msg, _ := payload["error"].(string)
	if !strings.Contains(msg, "redis ping") || !strings.Contains(msg, "connection refused") {
		t.Fatalf("expected wrapped error message, got %v", payload["error"])
	}
	if _, ok := payload["stack"]; !ok {
		t.Fatalf("expected stack field for wrapped error: %s", line)
	}
}
