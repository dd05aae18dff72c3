// Package failure holds the error kinds shared by the metronome and tuner packages.
package failure

import (
	"errors"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
)

const (
	// Precondition marks a missing, closed or unopenable clock/capture source.
	Precondition ftag.Kind = "PRECONDITION"
	// Capture marks a capture device that failed while a session was listening.
	Capture ftag.Kind = "CAPTURE_FAILED"
	// InvalidArgument marks configuration rejected at the boundary.
	InvalidArgument = ftag.InvalidArgument
)

// New builds a tagged error around a sentinel so errors.Is keeps working.
func New(sentinel error, kind ftag.Kind, msg string) error {
	return fault.Wrap(sentinel, fmsg.With(msg), ftag.With(kind))
}

// Wrap tags an error from a collaborator (device driver, FFT) with a kind.
func Wrap(err error, kind ftag.Kind, msg string) error {
	if err == nil {
		return nil
	}
	return fault.Wrap(err, fmsg.With(msg), ftag.With(kind))
}

// Kind returns the tag attached to err, or "" when err is nil.
func Kind(err error) ftag.Kind {
	if err == nil {
		return ""
	}
	return ftag.Get(err)
}

// Is reports whether err carries the given kind.
func Is(err error, kind ftag.Kind) bool {
	return err != nil && Kind(err) == kind
}

// Join keeps both errors matchable; used when a release fails after a capture error.
func Join(errs ...error) error {
	return errors.Join(errs...)
}
