package sequencer

import (
	"math"
	"time"
)

const (
	MinTapInterval = 300 * time.Millisecond
	MaxTapInterval = 2000 * time.Millisecond
	tapHistory     = 4
	minTapsForBPM  = 2
)

// TapTempo turns the gaps between user taps into a smoothed tempo.
type TapTempo struct {
	last      time.Time
	hasLast   bool
	intervals []time.Duration // oldest first
}

func NewTapTempo() *TapTempo {
	return &TapTempo{intervals: make([]time.Duration, 0, tapHistory)}
}

// Tap records a tap at the given instant. It returns the new tempo and true
// once at least two accepted intervals are held.
func (tt *TapTempo) Tap(at time.Time) (float64, bool) {
	if !tt.hasLast {
		tt.last, tt.hasLast = at, true
		return 0, false
	}
	interval := at.Sub(tt.last)
	tt.last = at

	// A long pause abandons the sequence; this tap starts a new one.
	if interval > MaxTapInterval {
		tt.intervals = tt.intervals[:0]
		return 0, false
	}
	if interval < MinTapInterval {
		return 0, false
	}

	if len(tt.intervals) == tapHistory {
		copy(tt.intervals, tt.intervals[1:])
		tt.intervals = tt.intervals[:tapHistory-1]
	}
	tt.intervals = append(tt.intervals, interval)
	if len(tt.intervals) < minTapsForBPM {
		return 0, false
	}
	return tt.estimate(), true
}

func (tt *TapTempo) estimate() float64 {
	var sum time.Duration
	for _, iv := range tt.intervals {
		sum += iv
	}
	meanMs := float64(sum) / float64(len(tt.intervals)) / float64(time.Millisecond)
	return ClampTempo(math.Round(60000 / meanMs))
}

// Intervals returns a copy of the accepted intervals, oldest first.
func (tt *TapTempo) Intervals() []time.Duration {
	out := make([]time.Duration, len(tt.intervals))
	copy(out, tt.intervals)
	return out
}

func (tt *TapTempo) Reset() {
	tt.hasLast = false
	tt.intervals = tt.intervals[:0]
}
