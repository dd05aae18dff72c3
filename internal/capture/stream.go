// Package capture reads mono microphone input into a circular buffer. The number
// of captured frames is the input clock.
package capture

import (
	"errors"
	"sync"
	"time"

	"github.com/andrepxx/go-dsp-guitar/circular"
	"github.com/gordonklaus/portaudio"
	"github.com/sirupsen/logrus"

	"github.com/cbegin/practice-go/internal/failure"
)

var (
	ErrCaptureFailed = errors.New("capture device failed")
	ErrFrameTooLarge = errors.New("frame larger than capture buffer")
)

type Config struct {
	SampleRate   int
	FrameSize    int           // samples handed to the analyser per read
	BufferFrames int           // frames per driver callback
	StallTimeout time.Duration // silence from the driver after which capture is considered dead
	HighPass     float64       // cutoff in Hz; 0 disables the filter
	Logger       logrus.FieldLogger
}

func DefaultConfig() Config {
	return Config{
		SampleRate:   48000,
		FrameSize:    4096,
		BufferFrames: 256,
		StallTimeout: time.Second,
		HighPass:     10,
	}
}

// WithDefaults fills unset fields from DefaultConfig. HighPass is left alone
// since zero means no filter.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.SampleRate <= 0 {
		c.SampleRate = def.SampleRate
	}
	if c.FrameSize <= 0 {
		c.FrameSize = def.FrameSize
	}
	if c.BufferFrames <= 0 {
		c.BufferFrames = def.BufferFrames
	}
	if c.StallTimeout <= 0 {
		c.StallTimeout = def.StallTimeout
	}
	if c.Logger == nil {
		c.Logger = logrus.StandardLogger()
	}
	return c
}

// backend is the driver stream; portaudio in production, a stub in tests.
type backend interface {
	Stop() error
	Close() error
}

type Stream struct {
	cfg     Config
	log     logrus.FieldLogger
	samples circular.Buffer
	scratch []float64
	block   []float64 // driver callback conversion, reused
	filter  *highPass
	now     func() time.Time

	mu           sync.Mutex
	written      int64
	backend      backend
	terminate    func() error
	lastCallback time.Time
	lastRead     int64
	closed       bool
	failed       bool
}

func newStream(cfg Config) *Stream {
	cfg = cfg.WithDefaults()
	s := &Stream{
		cfg:     cfg,
		log:     cfg.Logger.WithField("component", "capture"),
		samples: circular.CreateBuffer(cfg.FrameSize * 2),
		scratch: make([]float64, cfg.FrameSize*2),
		block:   make([]float64, cfg.BufferFrames),
		now:     time.Now,
	}
	if cfg.HighPass > 0 {
		s.filter = newHighPass(cfg.SampleRate, cfg.HighPass)
	}
	s.lastCallback = s.now()
	return s
}

// Open starts the default input device. Any driver failure is a Precondition
// error: no device, no permission, unsupported rate.
func Open(cfg Config) (*Stream, error) {
	s := newStream(cfg)
	if err := portaudio.Initialize(); err != nil {
		return nil, failure.Wrap(err, failure.Precondition, "initialize audio input")
	}
	pa, err := portaudio.OpenDefaultStream(1, 0, float64(s.cfg.SampleRate), s.cfg.BufferFrames, s.process)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, failure.Wrap(err, failure.Precondition, "open default input stream")
	}
	if err := pa.Start(); err != nil {
		_ = pa.Close()
		_ = portaudio.Terminate()
		return nil, failure.Wrap(err, failure.Precondition, "start input stream")
	}

	s.mu.Lock()
	s.backend = pa
	s.terminate = portaudio.Terminate
	s.lastCallback = s.now()
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{
		"sample_rate": s.cfg.SampleRate,
		"frame_size":  s.cfg.FrameSize,
	}).Info("capture opened")
	return s, nil
}

// process is the driver callback.
func (s *Stream) process(in []float32) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.lastCallback = s.now()
	if cap(s.block) < len(in) {
		s.block = make([]float64, len(in))
	}
	buf := s.block[:len(in)]
	for i, v := range in {
		buf[i] = float64(v)
	}
	if s.filter != nil {
		s.filter.process(buf)
	}
	s.samples.Enqueue(buf...)
	s.written += int64(len(in))
	s.mu.Unlock()
}

func (s *Stream) Now() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return float64(s.written) / float64(s.cfg.SampleRate)
}

func (s *Stream) SampleRate() int { return s.cfg.SampleRate }
func (s *Stream) FrameSize() int  { return s.cfg.FrameSize }

func (s *Stream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed || s.failed
}

// ReadFrame copies the newest len(dst) samples into dst. It returns false
// when nothing new was captured since the previous read or when fewer than
// len(dst) samples exist yet.
func (s *Stream) ReadFrame(dst []float64) (bool, error) {
	if len(dst) > s.samples.Length() {
		return false, failure.New(ErrFrameTooLarge, failure.InvalidArgument, "read capture frame")
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false, failure.New(ErrCaptureFailed, failure.Capture, "capture stream closed")
	}
	if s.failed || s.now().Sub(s.lastCallback) > s.cfg.StallTimeout {
		if !s.failed {
			s.failed = true
			s.log.WithField("stall_timeout", s.cfg.StallTimeout).Warn("capture stalled")
		}
		s.mu.Unlock()
		return false, failure.New(ErrCaptureFailed, failure.Capture, "capture device stopped delivering samples")
	}
	if s.written == s.lastRead || s.written < int64(len(dst)) {
		s.mu.Unlock()
		return false, nil
	}
	s.lastRead = s.written
	err := s.samples.Retrieve(s.scratch)
	s.mu.Unlock()

	if err != nil {
		return false, failure.Wrap(err, failure.Capture, "read capture buffer")
	}
	copy(dst, s.scratch[len(s.scratch)-len(dst):])
	return true, nil
}

func (s *Stream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	b, term := s.backend, s.terminate
	s.mu.Unlock()

	var errs []error
	if b != nil {
		errs = append(errs, b.Stop(), b.Close())
	}
	if term != nil {
		errs = append(errs, term())
	}
	s.log.Info("capture closed")
	return failure.Join(errs...)
}
