// Package clock models the audio-hardware clock shared by the metronome and
// the tuner. Time is always seconds of audio time, never wall time.
package clock

import (
	"errors"
	"sync"

	"github.com/cbegin/practice-go/internal/failure"
)

var (
	ErrNoSource = errors.New("no audio clock source")
	ErrClosed   = errors.New("audio clock source closed")
)

// Source is a monotonically increasing sample clock.
type Source interface {
	Now() float64
	SampleRate() int
	Closed() bool
}

// Device is a Source that owns an open audio resource.
type Device interface {
	Source
	Close() error
}

// Check returns a Precondition error when src is missing or closed.
func Check(src Source) error {
	if src == nil {
		return failure.New(ErrNoSource, failure.Precondition, "clock source is required")
	}
	if src.Closed() {
		return failure.New(ErrClosed, failure.Precondition, "clock source is closed")
	}
	return nil
}

// Handle owns a single Device on behalf of several consumers. The first
// Acquire opens the device, later ones reuse it, and the last Release closes it.
type Handle[D Device] struct {
	mu   sync.Mutex
	open func() (D, error)
	dev  D
	refs int
}

func NewHandle[D Device](open func() (D, error)) *Handle[D] {
	return &Handle[D]{open: open}
}

func (h *Handle[D]) Acquire() (D, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var zero D
	if h.open == nil {
		return zero, failure.New(ErrNoSource, failure.Precondition, "no device opener configured")
	}
	if h.refs > 0 {
		if h.dev.Closed() {
			return zero, failure.New(ErrClosed, failure.Precondition, "shared device was closed underneath its consumers")
		}
		h.refs++
		return h.dev, nil
	}
	dev, err := h.open()
	if err != nil {
		if failure.Kind(err) == "" {
			err = failure.Wrap(err, failure.Precondition, "open audio device")
		}
		return zero, err
	}
	h.dev = dev
	h.refs = 1
	return dev, nil
}

// Release drops one reference; the device is closed when none remain.
// Releasing an unheld handle is a no-op.
func (h *Handle[D]) Release() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.refs == 0 {
		return nil
	}
	h.refs--
	if h.refs > 0 {
		return nil
	}
	dev := h.dev
	var zero D
	h.dev = zero
	return dev.Close()
}

func (h *Handle[D]) Refs() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.refs
}
