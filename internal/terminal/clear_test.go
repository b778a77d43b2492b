package terminal

import (
	"bytes"
	"strings"
	"testing"
)

func TestLinesFor(t *testing.T) {
	tests := []struct {
		length, width, want int
	}{
		{0, 80, 1},
		{80, 80, 1},
		{81, 80, 2},
		{200, 0, 3},
	}
	for _, tt := range tests {
		if got := LinesFor(tt.length, tt.width); got != tt.want {
			t.Errorf("LinesFor(%d, %d) = %d, want %d", tt.length, tt.width, got, tt.want)
		}
	}
}

func TestClearLines(t *testing.T) {
	var buf bytes.Buffer
	clearLines(&buf, 3)
	if got := strings.Count(buf.String(), "\x1b[2K"); got != 3 {
		t.Errorf("cleared %d lines, want 3", got)
	}
	if got := strings.Count(buf.String(), "\x1b[1A"); got != 2 {
		t.Errorf("moved up %d lines, want 2", got)
	}
}
