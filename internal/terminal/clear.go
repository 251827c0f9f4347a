// Package terminal provides utilities for terminal operations such as prompting
// for credentials and clearing text that was previously printed.
package terminal

import (
	"math"
	"os"

	"atomicgo.dev/cursor"
	"golang.org/x/term"
)

// Width returns the current terminal width, or 80 when it cannot be determined.
func Width() int {
	if width, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && width > 0 {
		return width
	}
	return 80
}

// LinesFor returns how many terminal rows textLength characters occupy at the given width.
func LinesFor(textLength, width int) int {
	if width <= 0 {
		width = 80
	}
	lines := int(math.Ceil(float64(textLength) / float64(width)))
	if lines < 1 {
		return 1
	}
	return lines
}

// ClearPreviousLines clears text from the terminal that was previously printed.
// It calculates how many lines were used by the provided text based on the current
// terminal width, then moves up and clears each line.
//
// This is useful for cleaning up user input prompts after they've been entered.
func ClearPreviousLines(textLength int) {
	// After Enter, cursor is on a NEW line below the input; clear that one too.
	cursor.ClearLinesUp(LinesFor(textLength, Width()))
	cursor.StartOfLine()
}
