package practice

import (
	"github.com/Southclaws/fault/ftag"

	"github.com/cbegin/practice-go/internal/capture"
	"github.com/cbegin/practice-go/internal/clock"
	"github.com/cbegin/practice-go/internal/failure"
	"github.com/cbegin/practice-go/internal/notes"
	"github.com/cbegin/practice-go/internal/pitch"
	"github.com/cbegin/practice-go/internal/sequencer"
)

// Sentinel errors. Every error returned by this package wraps one of these
// (match with errors.Is) and carries a kind (see ErrorKind).
var (
	ErrNoSource             = clock.ErrNoSource
	ErrClosed               = clock.ErrClosed
	ErrInvalidTempo         = sequencer.ErrInvalidTempo
	ErrInvalidTimeSignature = sequencer.ErrInvalidTimeSignature
	ErrUnknownString        = notes.ErrUnknownString
	ErrFrameTooShort        = pitch.ErrFrameTooShort
	ErrCaptureFailed        = capture.ErrCaptureFailed
)

const (
	KindPrecondition    = failure.Precondition
	KindInvalidArgument = failure.InvalidArgument
	KindCaptureFailed   = failure.Capture
)

// ErrorKind returns the kind attached to err, or "" for nil.
func ErrorKind(err error) ftag.Kind {
	return failure.Kind(err)
}
