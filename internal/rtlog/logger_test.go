package rtlog

import (
	"bytes"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelWarn)

	l.Debugf("should not appear")
	l.Infof("should not appear either")
	l.Warnf("watch out %d", 1)
	l.Errorf("boom %s", "here")

	out := buf.String()
	if strings.Contains(out, "should not appear") {
		t.Fatalf("level filtering failed, got: %q", out)
	}
	if !strings.Contains(out, "[WARN]") || !strings.Contains(out, "watch out 1") {
		t.Fatalf("missing expected warn line: %q", out)
	}
	if !strings.Contains(out, "[ERROR]") || !strings.Contains(out, "boom here") {
		t.Fatalf("missing expected error line: %q", out)
	}
}

func TestDiscardLogsNothing(t *testing.T) {
	// Discard must not panic and must accept the Logger interface.
	var l Logger = Discard
	l.Debugf("x")
	l.Infof("x")
	l.Warnf("x")
	l.Errorf("x")
}
