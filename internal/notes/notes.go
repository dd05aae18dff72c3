// Package notes maps frequencies onto equal-tempered notes (A4 = 440 Hz) and
// onto the strings of a guitar in standard tuning.
package notes

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
)

const (
	A4Frequency = 440.0
	A4MIDI      = 69
	// InTuneCents is the half-width of the in-tune band.
	InTuneCents = 5
	MaxFret     = 24
)

var (
	ErrUnknownString = errors.New("unknown guitar string")
	ErrInvalidFret   = errors.New("fret position out of range")
)

var pitchClasses = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// Note is an equal-tempered note identified by its MIDI number.
type Note struct {
	MIDI int
}

// FromFrequency returns the nearest note to f. It reports false for
// frequencies that are not positive and finite.
func FromFrequency(f float64) (Note, bool) {
	if !(f > 0) || math.IsInf(f, 0) {
		return Note{}, false
	}
	return Note{MIDI: int(math.Round(12*math.Log2(f/A4Frequency))) + A4MIDI}, true
}

// Frequency returns the equal-tempered frequency of a MIDI note.
func Frequency(midi int) float64 {
	return A4Frequency * math.Pow(2, float64(midi-A4MIDI)/12)
}

func (n Note) Name() string {
	return pitchClasses[((n.MIDI%12)+12)%12]
}

func (n Note) Octave() int {
	return floorDiv(n.MIDI, 12) - 1
}

func (n Note) Frequency() float64 { return Frequency(n.MIDI) }

func (n Note) String() string {
	return fmt.Sprintf("%s%d", n.Name(), n.Octave())
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// String is an open guitar string. Number follows guitar convention: 6 is the
// low E, 1 the high E.
type String struct {
	Name      string
	Number    int
	Frequency float64
}

func (s String) Note() Note {
	n, _ := FromFrequency(s.Frequency)
	return n
}

// StandardTuning lists the strings from lowest to highest.
var StandardTuning = [6]String{
	{Name: "E2", Number: 6, Frequency: 82.41},
	{Name: "A2", Number: 5, Frequency: 110.00},
	{Name: "D3", Number: 4, Frequency: 146.83},
	{Name: "G3", Number: 3, Frequency: 196.00},
	{Name: "B3", Number: 2, Frequency: 246.94},
	{Name: "E4", Number: 1, Frequency: 329.63},
}

// LookupString finds a string by note name ("A2", case-insensitive) or by
// string number ("5").
func LookupString(name string) (String, error) {
	key := strings.TrimSpace(name)
	for _, s := range StandardTuning {
		if strings.EqualFold(s.Name, key) || fmt.Sprint(s.Number) == key {
			return s, nil
		}
	}
	return String{}, fault.Wrap(ErrUnknownString,
		fmsg.With(fmt.Sprintf("%q is not a standard tuning string", name)),
		ftag.With(ftag.InvalidArgument))
}

// NearestString returns the string closest to f in pitch (log-frequency) distance.
func NearestString(f float64) String {
	best := StandardTuning[0]
	bestDist := math.Inf(1)
	for _, s := range StandardTuning {
		if d := math.Abs(math.Log2(f / s.Frequency)); d < bestDist {
			best, bestDist = s, d
		}
	}
	return best
}

// Cents is the signed deviation of actual from target, rounded to whole cents.
func Cents(actual, target float64) int {
	return int(math.Round(1200 * math.Log2(actual/target)))
}

type Status int

const (
	InTune Status = iota
	TooLow
	TooHigh
)

func (s Status) String() string {
	switch s {
	case InTune:
		return "in tune"
	case TooLow:
		return "too low"
	case TooHigh:
		return "too high"
	}
	return "unknown"
}

func StatusOf(cents int) Status {
	switch {
	case cents >= InTuneCents:
		return TooHigh
	case cents <= -InTuneCents:
		return TooLow
	}
	return InTune
}

// AtFret returns the note and frequency at a fret of a string, with strings
// indexed from the low E (0) to the high E (5).
func AtFret(stringIndex, fret int) (Note, float64, error) {
	if stringIndex < 0 || stringIndex >= len(StandardTuning) {
		return Note{}, 0, fault.Wrap(ErrUnknownString,
			fmsg.With(fmt.Sprintf("string index %d outside 0..%d", stringIndex, len(StandardTuning)-1)),
			ftag.With(ftag.InvalidArgument))
	}
	if fret < 0 || fret > MaxFret {
		return Note{}, 0, fault.Wrap(ErrInvalidFret,
			fmsg.With(fmt.Sprintf("fret %d outside 0..%d", fret, MaxFret)),
			ftag.With(ftag.InvalidArgument))
	}
	open := StandardTuning[stringIndex]
	n := Note{MIDI: open.Note().MIDI + fret}
	return n, open.Frequency * math.Pow(2, float64(fret)/12), nil
}
