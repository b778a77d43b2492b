// Copyright (c) 2025 Rowscope
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package terminal provides utilities for terminal operations such as sizing
// and clearing text.
package terminal

import (
	"fmt"
	"io"
	"math"
	"os"

	"golang.org/x/term"
)

// Fallback dimensions when the output is not a terminal.
const (
	DefaultWidth  = 80
	DefaultHeight = 24
)

// Size returns the width and height of stdout, or the defaults when stdout is
// not a terminal.
func Size() (width, height int) {
	w, h, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 || h <= 0 {
		return DefaultWidth, DefaultHeight
	}
	return w, h
}

// IsInteractive reports whether both stdin and stdout are terminals.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// LinesFor returns how many terminal lines text of textLength characters
// occupies at the given width.
func LinesFor(textLength, width int) int {
	if width <= 0 {
		width = DefaultWidth
	}
	return max(int(math.Ceil(float64(textLength)/float64(width))), 1)
}

// ClearPreviousLines clears text from the terminal that was previously printed.
// The extra line created when the user pressed Enter is cleared as well.
func ClearPreviousLines(textLength int) {
	width, _ := Size()
	clearLines(os.Stdout, LinesFor(textLength, width)+1)
}

func clearLines(w io.Writer, n int) {
	for i := 0; i < n; i++ {
		fmt.Fprint(w, "\r\x1b[2K")
		if i < n-1 {
			fmt.Fprint(w, "\x1b[1A")
		}
	}
}
