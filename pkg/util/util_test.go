package util

import (
	"bytes"
	"strings"
	"testing"
)

func captureStderr(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	old := Stderr
	Stderr = &buf
	t.Cleanup(func() { Stderr = old })
	return &buf
}

func TestErrorExits(t *testing.T) {
	buf := captureStderr(t)
	code := -1
	oldExit := exit
	exit = func(c int) { code = c }
	defer func() { exit = oldExit }()

	Error("cannot open %q", "prog.yaml")

	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if got, want := buf.String(), "decafc: error: cannot open \"prog.yaml\"\n"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestWarnAndInfoHaveNoColorOffTerminal(t *testing.T) {
	buf := captureStderr(t)
	Warn("slow path")
	Info("done")
	out := buf.String()
	if strings.Contains(out, "\033[") {
		t.Errorf("unexpected escape codes in %q", out)
	}
	if !strings.Contains(out, "warning: slow path") || !strings.Contains(out, "info: done") {
		t.Errorf("missing messages in %q", out)
	}
}

func TestAlignUp(t *testing.T) {
	tests := []struct{ n, align, want int64 }{
		{0, 8, 0},
		{1, 8, 8},
		{8, 8, 8},
		{17, 16, 32},
		{5, 0, 5},
	}
	for _, tt := range tests {
		if got := AlignUp(tt.n, tt.align); got != tt.want {
			t.Errorf("AlignUp(%d, %d) = %d, want %d", tt.n, tt.align, got, tt.want)
		}
	}
}
