package main

import (
	"strings"
	"testing"
)

func TestRenderFretboardShowsEveryString(t *testing.T) {
	out, err := renderFretboard(5)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 7 {
		t.Fatalf("got %d lines, want header plus 6 strings", len(lines))
	}
	// High E on top, low E at the bottom; fret 5 on the low E is A2.
	if !strings.Contains(lines[1], "E4") || !strings.Contains(lines[6], "E2") || !strings.Contains(lines[6], "A2") {
		t.Fatalf("unexpected fretboard:\n%s", out)
	}
}

func TestRenderFretboardRejectsTooManyFrets(t *testing.T) {
	if _, err := renderFretboard(30); err == nil {
		t.Fatalf("30 frets accepted")
	}
}

func TestMeterClampsMarker(t *testing.T) {
	for _, cents := range []int{-500, -3, 0, 17, 500} {
		if got := strings.Count(meter(cents), "▲"); got != 1 {
			t.Fatalf("meter(%d) has %d markers", cents, got)
		}
	}
}
