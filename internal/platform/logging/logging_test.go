package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestLoggerLevelsAndFields(t *testing.T) {
	var buf bytes.Buffer
	logger := New("info", &buf)

	logger.Debug("hidden %d", 1)
	logger.Info("AttemptPair: paired %s with %s", "alice", "bob")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("Expected debug to be filtered, got %q", out)
	}
	if !strings.Contains(out, "AttemptPair: paired alice with bob") || !strings.Contains(out, "level=INFO") {
		t.Fatalf("Expected a formatted info line, got %q", out)
	}

	buf.Reset()
	scoped := logger.WithField("session", "s1").WithFields(map[string]interface{}{"user": "alice"})
	scoped.Warn("stale view")
	if line := buf.String(); !strings.Contains(line, "session=s1") || !strings.Contains(line, "user=alice") {
		t.Fatalf("Expected fields on the line, got %q", line)
	}
	if f := scoped.Fields(); f["session"] != "s1" || f["user"] != "alice" {
		t.Fatalf("Expected merged fields, got %v", f)
	}
	if len(logger.Fields()) != 0 {
		t.Fatal("Expected the parent logger to stay unscoped")
	}
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]string{"debug": "DEBUG", "WARN": "WARN", "error": "ERROR", "": "INFO", "loud": "INFO"} {
		if got := ParseLevel(in).String(); got != want {
			t.Errorf("ParseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}
