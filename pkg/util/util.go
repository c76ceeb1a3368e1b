// Package util prints compiler diagnostics to standard error, in colour when
// stderr is a terminal, and holds small layout helpers.
package util

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// Stderr is where diagnostics go. Tests swap it for a buffer.
var Stderr io.Writer = os.Stderr

// exit is replaced in tests so Error does not terminate the process.
var exit = os.Exit

const (
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorReset  = "\033[0m"
)

// Program is the prefix printed in front of every diagnostic.
var Program = "decafc"

func useColor() bool {
	f, ok := Stderr.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func emit(color, kind, format string, args ...interface{}) {
	if useColor() {
		fmt.Fprintf(Stderr, "%s: %s%s:%s ", Program, color, kind, colorReset)
	} else {
		fmt.Fprintf(Stderr, "%s: %s: ", Program, kind)
	}
	fmt.Fprintf(Stderr, format, args...)
	fmt.Fprintln(Stderr)
}

// Error prints a formatted error message and exits the program
func Error(format string, args ...interface{}) {
	emit(colorRed, "error", format, args...)
	exit(1)
}

// Warn prints a formatted warning message
func Warn(format string, args ...interface{}) {
	emit(colorYellow, "warning", format, args...)
}

// Info prints a progress message
func Info(format string, args ...interface{}) {
	emit(colorCyan, "info", format, args...)
}

// AlignUp rounds n up to the next multiple of align.
func AlignUp(n, align int64) int64 {
	if align <= 0 {
		return n
	}
	return (n + align - 1) &^ (align - 1)
}
