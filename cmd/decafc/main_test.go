package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/atrim11/decafc/pkg/regalloc"
)

func TestPrintStatsShowsOverflow(t *testing.T) {
	var buf bytes.Buffer
	printStats(&buf, regalloc.Stats{Functions: []regalloc.FunctionStats{
		{Name: "main", Slots: 2, Stores: 2, Reloads: 3, Overflow: 1, FrameSize: 16},
	}})
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("want a header and one row, got:\n%s", buf.String())
	}
	if got := strings.Fields(lines[0]); got[4] != "overflow" {
		t.Errorf("header %q lacks the overflow column", lines[0])
	}
	if got, want := strings.Fields(lines[1]), []string{"main", "2", "2", "3", "1", "16"}; strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("row = %q, want %q", got, want)
	}
}
