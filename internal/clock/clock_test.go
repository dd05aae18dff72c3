package clock

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cbegin/practice-go/internal/failure"
)

func TestHandleOpensOnceAndClosesOnLastRelease(t *testing.T) {
	opens := 0
	var dev *Manual
	h := NewHandle(func() (*Manual, error) {
		opens++
		dev = NewManual(48000)
		return dev, nil
	})

	a, err := h.Acquire()
	require.NoError(t, err)
	b, err := h.Acquire()
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, 1, opens)
	assert.Equal(t, 2, h.Refs())

	require.NoError(t, h.Release())
	assert.False(t, dev.Closed(), "device closed while a consumer still holds it")
	require.NoError(t, h.Release())
	assert.True(t, dev.Closed())
	assert.Equal(t, 0, h.Refs())

	// Extra release is harmless.
	require.NoError(t, h.Release())
}

func TestHandleOpenFailureIsPrecondition(t *testing.T) {
	h := NewHandle(func() (*Manual, error) {
		return nil, errors.New("permission denied")
	})
	_, err := h.Acquire()
	require.Error(t, err)
	assert.Equal(t, failure.Precondition, failure.Kind(err))
	assert.Equal(t, 0, h.Refs())
}

func TestCheckRejectsMissingAndClosedSources(t *testing.T) {
	err := Check(nil)
	assert.True(t, errors.Is(err, ErrNoSource))
	assert.Equal(t, failure.Precondition, failure.Kind(err))

	m := NewManual(44100)
	require.NoError(t, Check(m))
	m.Close()
	assert.True(t, errors.Is(Check(m), ErrClosed))
}

func TestManualAdvance(t *testing.T) {
	m := NewManual(48000)
	m.Advance(0.25)
	m.Advance(0.25)
	assert.InDelta(t, 0.5, m.Now(), 1e-12)
	m.Set(2)
	assert.Equal(t, 2.0, m.Now())
}
