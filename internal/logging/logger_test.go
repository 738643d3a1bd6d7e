package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func newBufferLogger(level string) (*Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	l := New(&Config{Level: level, Writer: buf, JSONFormat: true, Component: "test"})
	return l, buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]interface{}
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("invalid JSON log line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":    DEBUG,
		"INFO":     INFO,
		"warning":  WARN,
		"error":    ERROR,
		"critical": CRITICAL,
		"bogus":    INFO,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoggerKeyValueFields(t *testing.T) {
	l, buf := newBufferLogger("DEBUG")

	l.WithField("symbol", "BTCUSDT").Info("analysis finished", "signals", 1, "error", errors.New("boom"))

	lines := decodeLines(t, buf)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	entry := lines[0]
	if entry["message"] != "analysis finished" {
		t.Errorf("unexpected message: %v", entry["message"])
	}
	if entry["component"] != "test" {
		t.Errorf("expected component field, got %v", entry["component"])
	}
	if entry["symbol"] != "BTCUSDT" {
		t.Errorf("expected symbol field, got %v", entry["symbol"])
	}
	if entry["signals"] != float64(1) {
		t.Errorf("expected signals=1, got %v", entry["signals"])
	}
	if entry["error"] != "boom" {
		t.Errorf("expected error string, got %v", entry["error"])
	}
}

func TestLoggerPrintfStyle(t *testing.T) {
	l, buf := newBufferLogger("INFO")
	l.Warn("fetched %d candles", 42)

	lines := decodeLines(t, buf)
	if len(lines) != 1 || lines[0]["message"] != "fetched 42 candles" {
		t.Fatalf("unexpected output: %v", lines)
	}
	if lines[0]["level"] != "warn" {
		t.Errorf("expected warn level, got %v", lines[0]["level"])
	}
}

func TestLoggerLevelFilter(t *testing.T) {
	l, buf := newBufferLogger("ERROR")
	l.Info("dropped")
	l.Debug("dropped")
	l.Critical("kept")

	lines := decodeLines(t, buf)
	if len(lines) != 1 {
		t.Fatalf("expected only the critical line, got %d", len(lines))
	}
	if lines[0]["severity"] != "CRITICAL" {
		t.Errorf("expected severity=CRITICAL, got %v", lines[0]["severity"])
	}
}

func TestWithTraceContext(t *testing.T) {
	base, buf := newBufferLogger("INFO")
	ctx := NewContext(context.Background(), base)

	ctx, l := WithTraceContext(ctx)
	id := TraceIDFromContext(ctx)
	if id == "" {
		t.Fatal("expected trace id in context")
	}
	if FromContext(ctx) != l {
		t.Error("expected traced logger to be stored in context")
	}

	l.Info("traced")
	lines := decodeLines(t, buf)
	if len(lines) != 1 || lines[0]["trace_id"] != id {
		t.Errorf("expected trace_id %s in output, got %v", id, lines)
	}
}

func TestNopLogger(t *testing.T) {
	l := Nop()
	l.Error("nothing")
	l.WithField("a", 1).Critical("nothing")
}
