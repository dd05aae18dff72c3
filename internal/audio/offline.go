package audio

import (
	"github.com/cbegin/practice-go/internal/click"
	"github.com/cbegin/practice-go/internal/sequencer"
)

// Offline is an output device whose clock only advances when Render is
// called. It shares the click renderer with Output, so offline and live
// clicks land on the same frames.
type Offline struct {
	engine *click.Engine
}

func NewOffline(sampleRate int, params click.Params) *Offline {
	return &Offline{engine: click.New(sampleRate, params)}
}

func (o *Offline) Now() float64              { return o.engine.Now() }
func (o *Offline) SampleRate() int           { return o.engine.SampleRate() }
func (o *Offline) Closed() bool              { return false }
func (o *Offline) Close() error              { return nil }
func (o *Offline) Schedule(b sequencer.Beat) { o.engine.Schedule(b.Time, b.Accented) }
func (o *Offline) Cancel()                   { o.engine.Cancel() }

// Render fills dst with interleaved stereo and advances the clock.
func (o *Offline) Render(dst []float32) { o.engine.Process(dst) }

func (o *Offline) Reader() *StreamReader { return NewStreamReader(o.engine) }
