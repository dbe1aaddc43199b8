package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestRedactPhone(t *testing.T) {
	cases := map[string]string{
		"+242061234567": "***********67",
		"12":            "**",
		"":              "",
	}
	for in, want := range cases {
		if got := RedactPhone(in); got != want {
			t.Fatalf("RedactPhone(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFingerprintIsStableAndOpaque(t *testing.T) {
	a := Fingerprint("+242061234567")
	if a != Fingerprint("+242061234567") {
		t.Fatalf("fingerprint not stable")
	}
	if strings.Contains(a, "061234567") {
		t.Fatalf("fingerprint leaks input")
	}
	if len(a) != 12 {
		t.Fatalf("expected 12 hex chars, got %d", len(a))
	}
}

func TestNewWithWriterFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "nonsense")
	logger.Debug("hidden")
	logger.Info("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("unexpected output: %s", buf.String())
	}
}
