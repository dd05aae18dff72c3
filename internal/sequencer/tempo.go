package sequencer

import (
	"errors"
	"fmt"

	"golang.org/x/exp/constraints"

	"github.com/cbegin/practice-go/internal/failure"
)

const (
	MinTempo     = 40.0
	MaxTempo     = 208.0
	DefaultTempo = 100.0
)

var ErrInvalidTempo = errors.New("invalid tempo")

// ValidateTempo rejects tempos outside [MinTempo, MaxTempo].
func ValidateTempo(bpm float64) error {
	if bpm != bpm || bpm < MinTempo || bpm > MaxTempo {
		return failure.New(ErrInvalidTempo, failure.InvalidArgument,
			fmt.Sprintf("tempo %.2f outside [%g, %g] BPM", bpm, MinTempo, MaxTempo))
	}
	return nil
}

// SecondsPerBeat is the inter-beat duration for a tempo.
func SecondsPerBeat(bpm float64) float64 {
	return 60.0 / bpm
}

// ClampTempo pins bpm into the accepted range.
func ClampTempo(bpm float64) float64 {
	return clamp(bpm, MinTempo, MaxTempo)
}

func clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
