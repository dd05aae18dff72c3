package sequencer

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/cbegin/practice-go/internal/failure"
)

var ErrInvalidTimeSignature = errors.New("invalid time signature")

// TimeSignature is replaced wholesale on change; it is never mutated in place.
type TimeSignature struct {
	BeatsPerMeasure int
	BeatUnit        int
}

var (
	DefaultTimeSignature = TimeSignature{BeatsPerMeasure: 4, BeatUnit: 4}

	// CommonSignatures are the quick picks offered by the UI.
	CommonSignatures = []TimeSignature{
		{BeatsPerMeasure: 2, BeatUnit: 4},
		{BeatsPerMeasure: 3, BeatUnit: 4},
		{BeatsPerMeasure: 4, BeatUnit: 4},
		{BeatsPerMeasure: 6, BeatUnit: 8},
	}
)

func (ts TimeSignature) Validate() error {
	if ts.BeatsPerMeasure <= 0 {
		return failure.New(ErrInvalidTimeSignature, failure.InvalidArgument,
			fmt.Sprintf("beats per measure must be positive, got %d", ts.BeatsPerMeasure))
	}
	switch ts.BeatUnit {
	case 2, 4, 8, 16:
		return nil
	default:
		return failure.New(ErrInvalidTimeSignature, failure.InvalidArgument,
			fmt.Sprintf("beat unit must be one of 2, 4, 8, 16, got %d", ts.BeatUnit))
	}
}

func (ts TimeSignature) String() string {
	return strconv.Itoa(ts.BeatsPerMeasure) + "/" + strconv.Itoa(ts.BeatUnit)
}

// ParseTimeSignature reads "b/v" notation, e.g. "6/8".
func ParseTimeSignature(s string) (TimeSignature, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 2 {
		return TimeSignature{}, failure.New(ErrInvalidTimeSignature, failure.InvalidArgument,
			fmt.Sprintf("time signature %q is not of the form beats/unit", s))
	}
	beats, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return TimeSignature{}, failure.New(ErrInvalidTimeSignature, failure.InvalidArgument,
			fmt.Sprintf("beats per measure %q is not a number", parts[0]))
	}
	unit, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return TimeSignature{}, failure.New(ErrInvalidTimeSignature, failure.InvalidArgument,
			fmt.Sprintf("beat unit %q is not a number", parts[1]))
	}
	ts := TimeSignature{BeatsPerMeasure: beats, BeatUnit: unit}
	if err := ts.Validate(); err != nil {
		return TimeSignature{}, err
	}
	return ts, nil
}
