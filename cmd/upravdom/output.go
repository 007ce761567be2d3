package main

import (
	"fmt"
	"io"
	"os"
)

// ANSI escape sequences for terminal output. Suppressed by --no-color.
const (
	ansiReset = "\033[0m"
	ansiRed   = "\033[31m"
	ansiGreen = "\033[32m"
	ansiCyan  = "\033[36m"
	ansiBold  = "\033[1m"
)

// cliOut is swapped for a buffer in tests.
var cliOut io.Writer = os.Stderr

func paint(color, text string) string {
	if noColor {
		return text
	}
	return color + text + ansiReset
}

// note prints one marked status line, e.g. `✓ Corpus written`.
func note(color, mark, format string, args ...any) {
	fmt.Fprintln(cliOut, paint(color, mark+" "+fmt.Sprintf(format, args...)))
}

func printSuccess(format string, args ...any) { note(ansiGreen, "✓", format, args...) }
func printError(format string, args ...any)   { note(ansiRed, "✗", format, args...) }
func printStep(format string, args ...any)    { note(ansiCyan, "→", format, args...) }

// printStatus prints an indented "Label: value" line for the status command.
func printStatus(label, format string, args ...any) {
	fmt.Fprintf(cliOut, "  %s %s\n", paint(ansiBold, label+":"), fmt.Sprintf(format, args...))
}
