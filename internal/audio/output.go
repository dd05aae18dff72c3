// Package audio drives the speaker side of the metronome. The number of frames
// the audio backend has pulled from the click renderer is the output clock.
package audio

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"

	"github.com/cbegin/practice-go/internal/click"
	"github.com/cbegin/practice-go/internal/clock"
	"github.com/cbegin/practice-go/internal/failure"
	"github.com/cbegin/practice-go/internal/scheduler"
	"github.com/cbegin/practice-go/internal/sequencer"
)

// DefaultBufferSize keeps the pull-ahead of the backend well inside the
// scheduler's look-ahead window.
const DefaultBufferSize = 20 * time.Millisecond

var ErrSampleRateMismatch = errors.New("audio context already running at another sample rate")

// Device is what a metronome needs from an output: a clock plus a beat sink.
type Device interface {
	clock.Device
	scheduler.Sink
}

var (
	audioContextOnce sync.Once
	audioContext     *ebitaudio.Context
	audioSampleRate  int
)

// The backend allows a single context per process, so every Output shares it.
func sharedAudioContext(sampleRate int) (*ebitaudio.Context, error) {
	audioContextOnce.Do(func() {
		audioSampleRate = sampleRate
		audioContext = ebitaudio.NewContext(sampleRate)
	})
	if audioSampleRate != sampleRate {
		return nil, fault.Wrap(ErrSampleRateMismatch,
			fmsg.With(fmt.Sprintf("audio context already initialized at %d Hz (requested %d Hz)", audioSampleRate, sampleRate)),
			ftag.With(failure.Precondition))
	}
	return audioContext, nil
}

// Output plays scheduled clicks through the system audio device.
type Output struct {
	mu     sync.Mutex
	engine *click.Engine
	player *ebitaudio.Player
	reader *StreamReader
	closed bool
}

func Open(sampleRate int, params click.Params) (*Output, error) {
	ctx, err := sharedAudioContext(sampleRate)
	if err != nil {
		return nil, err
	}
	engine := click.New(sampleRate, params)
	reader := NewStreamReader(engine)
	pl, err := ctx.NewPlayerF32(reader)
	if err != nil {
		return nil, failure.Wrap(err, failure.Precondition, "open audio output")
	}
	pl.SetBufferSize(DefaultBufferSize)
	// The clock only runs while the player pulls, so it plays from the start.
	pl.Play()
	return &Output{
		engine: engine,
		player: pl,
		reader: reader,
	}, nil
}

func (o *Output) Now() float64    { return o.engine.Now() }
func (o *Output) SampleRate() int { return o.engine.SampleRate() }

func (o *Output) Closed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

func (o *Output) Schedule(b sequencer.Beat) {
	if o.Closed() {
		return
	}
	o.engine.Schedule(b.Time, b.Accented)
}

func (o *Output) Cancel() { o.engine.Cancel() }

func (o *Output) Close() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	o.mu.Unlock()

	o.engine.Cancel()
	o.player.Pause()
	o.player.Close()
	return o.reader.Close()
}
