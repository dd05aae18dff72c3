package practice

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cbegin/practice-go/internal/audio"
	"github.com/cbegin/practice-go/internal/click"
	"github.com/cbegin/practice-go/internal/failure"
	"github.com/cbegin/practice-go/internal/scheduler"
	"github.com/cbegin/practice-go/internal/sequencer"
)

// MaxRenderSeconds bounds a single offline render.
const MaxRenderSeconds = 3600

var ErrInvalidDuration = errors.New("invalid render duration")

// RenderClickTrack renders seconds of interleaved stereo metronome clicks.
// It runs the same look-ahead scheduler as live playback against a clock that
// advances only as samples are rendered, so beat n starts exactly on frame
// round(n * 60/bpm * sampleRate).
func RenderClickTrack(bpm float64, sig TimeSignature, sampleRate int, seconds float64) ([]float32, error) {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	// Also rejects NaN.
	if !(seconds >= 0 && seconds <= MaxRenderSeconds) {
		return nil, failure.New(ErrInvalidDuration, failure.InvalidArgument,
			fmt.Sprintf("render length %v s outside [0, %d]", seconds, MaxRenderSeconds))
	}
	seq, err := sequencer.New(bpm, sig)
	if err != nil {
		return nil, err
	}
	dev := audio.NewOffline(sampleRate, click.DefaultParams())
	log := logrus.New()
	log.SetOutput(io.Discard)
	sched, err := scheduler.New(dev, seq, dev, scheduler.Options{
		// Polling is driven below, one call per rendered chunk.
		Interval: time.Hour,
		Ahead:    scheduler.DefaultAhead,
		Logger:   log,
	})
	if err != nil {
		return nil, err
	}
	if err := sched.Start(); err != nil {
		return nil, err
	}
	defer sched.Stop()

	frames := int(float64(sampleRate) * seconds)
	out := make([]float32, frames*2)
	chunk := sampleRate / 100
	if chunk < 1 {
		chunk = 1
	}
	for pos := 0; pos < frames; pos += chunk {
		end := pos + chunk
		if end > frames {
			end = frames
		}
		sched.Poll()
		dev.Render(out[pos*2 : end*2])
	}
	return out, nil
}
