package practice

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cbegin/practice-go/internal/audio"
	"github.com/cbegin/practice-go/internal/capture"
	"github.com/cbegin/practice-go/internal/click"
	"github.com/cbegin/practice-go/internal/clock"
	"github.com/cbegin/practice-go/internal/pitch"
	"github.com/cbegin/practice-go/internal/tuning"
)

const DefaultSampleRate = 48000

// Output is the shared speaker device. Every Metronome built on the same
// Output plays through one open device; it is opened on the first Start and
// closed when the last user stops.
type Output struct {
	sampleRate int
	handle     *clock.Handle[audio.Device]
}

func NewOutput(sampleRate int) *Output {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	return newOutput(sampleRate, func() (audio.Device, error) {
		out, err := audio.Open(sampleRate, click.DefaultParams())
		if err != nil {
			return nil, err
		}
		return out, nil
	})
}

func newOutput(sampleRate int, open func() (audio.Device, error)) *Output {
	return &Output{sampleRate: sampleRate, handle: clock.NewHandle(open)}
}

func (o *Output) SampleRate() int { return o.sampleRate }

// InUse reports how many metronomes currently hold the device.
func (o *Output) InUse() int { return o.handle.Refs() }

type InputOption func(*capture.Config)

func WithInputSampleRate(rate int) InputOption {
	return func(cfg *capture.Config) { cfg.SampleRate = rate }
}

// WithFrameSize sets the analysis frame length in samples.
func WithFrameSize(n int) InputOption {
	return func(cfg *capture.Config) { cfg.FrameSize = n }
}

// WithStallTimeout sets how long the driver may go silent before capture is
// declared failed.
func WithStallTimeout(d time.Duration) InputOption {
	return func(cfg *capture.Config) { cfg.StallTimeout = d }
}

// WithHighPass sets the input high-pass cutoff in Hz. Zero disables it.
func WithHighPass(hz float64) InputOption {
	return func(cfg *capture.Config) { cfg.HighPass = hz }
}

func WithInputLogger(log logrus.FieldLogger) InputOption {
	return func(cfg *capture.Config) { cfg.Logger = log }
}

func defaultInputConfig() capture.Config {
	cfg := capture.DefaultConfig()
	cfg.SampleRate = DefaultSampleRate
	cfg.FrameSize = pitch.DefaultFrameSize
	return cfg
}

// Input is the shared microphone device, reference-counted like Output.
type Input struct {
	cfg    capture.Config
	handle *clock.Handle[tuning.Device]
}

func NewInput(opts ...InputOption) *Input {
	cfg := defaultInputConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg = cfg.WithDefaults()
	return newInput(cfg, func() (tuning.Device, error) {
		s, err := capture.Open(cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	})
}

func newInput(cfg capture.Config, open func() (tuning.Device, error)) *Input {
	return &Input{cfg: cfg, handle: clock.NewHandle(open)}
}

func (i *Input) SampleRate() int { return i.cfg.SampleRate }
func (i *Input) FrameSize() int  { return i.cfg.FrameSize }

// InUse reports how many tuners currently hold the device.
func (i *Input) InUse() int { return i.handle.Refs() }
