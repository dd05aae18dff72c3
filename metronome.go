// Package practice is the core of a musician's practice tool: a sample
// accurate metronome and a guitar tuner, both driven by the audio hardware
// clock.
package practice

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gitlab.com/gomidi/midi/v2"

	"github.com/cbegin/practice-go/internal/failure"
	"github.com/cbegin/practice-go/internal/midiout"
	"github.com/cbegin/practice-go/internal/scheduler"
	"github.com/cbegin/practice-go/internal/sequencer"
)

const (
	MinTempo     = sequencer.MinTempo
	MaxTempo     = sequencer.MaxTempo
	DefaultTempo = sequencer.DefaultTempo
)

type TimeSignature = sequencer.TimeSignature

var (
	DefaultTimeSignature = sequencer.DefaultTimeSignature
	CommonSignatures     = sequencer.CommonSignatures
)

func ParseTimeSignature(s string) (TimeSignature, error) {
	return sequencer.ParseTimeSignature(s)
}

// BeatEvent is sent from Watch() when a beat is queued. Time is on the audio
// clock and lies slightly in the future.
type BeatEvent struct {
	Time     float64
	Index    int
	Measure  int
	Accented bool
}

type MetronomeOption func(*metronomeConfig)

type metronomeConfig struct {
	tempo     float64
	signature TimeSignature
	interval  time.Duration
	ahead     time.Duration
	midi      func(midi.Message) error
	logger    logrus.FieldLogger
}

func defaultMetronomeConfig() metronomeConfig {
	return metronomeConfig{
		tempo:     DefaultTempo,
		signature: DefaultTimeSignature,
		interval:  scheduler.DefaultInterval,
		ahead:     time.Duration(scheduler.DefaultAhead * float64(time.Second)),
		logger:    logrus.StandardLogger(),
	}
}

func WithTempo(bpm float64) MetronomeOption {
	return func(cfg *metronomeConfig) { cfg.tempo = bpm }
}

func WithTimeSignature(ts TimeSignature) MetronomeOption {
	return func(cfg *metronomeConfig) { cfg.signature = ts }
}

// WithLookAhead sets the scheduler poll interval and how far ahead of the
// audio clock beats are queued. ahead should exceed interval.
func WithLookAhead(interval, ahead time.Duration) MetronomeOption {
	return func(cfg *metronomeConfig) {
		cfg.interval = interval
		cfg.ahead = ahead
	}
}

// WithMIDI mirrors every beat to a MIDI output, e.g. the func returned by
// midi.SendTo.
func WithMIDI(send func(midi.Message) error) MetronomeOption {
	return func(cfg *metronomeConfig) { cfg.midi = send }
}

func WithLogger(log logrus.FieldLogger) MetronomeOption {
	return func(cfg *metronomeConfig) { cfg.logger = log }
}

type Metronome struct {
	mu     sync.Mutex
	out    *Output
	cfg    metronomeConfig
	seq    *sequencer.Sequencer
	tap    *sequencer.TapTempo
	log    logrus.FieldLogger
	runLog logrus.FieldLogger
	sched  *scheduler.Scheduler
	runID  uuid.UUID
	nowFn  func() time.Time

	eventCh   chan BeatEvent
	eventChMu sync.Mutex
}

// NewMetronome validates the configuration before anything is opened.
func NewMetronome(out *Output, opts ...MetronomeOption) (*Metronome, error) {
	if out == nil {
		return nil, failure.New(ErrNoSource, failure.Precondition, "metronome needs an audio output")
	}
	cfg := defaultMetronomeConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logrus.StandardLogger()
	}
	seq, err := sequencer.New(cfg.tempo, cfg.signature)
	if err != nil {
		return nil, err
	}
	return &Metronome{
		out:   out,
		cfg:   cfg,
		seq:   seq,
		tap:   sequencer.NewTapTempo(),
		log:   cfg.logger.WithField("component", "metronome"),
		nowFn: time.Now,
	}, nil
}

// Start acquires the output and begins scheduling from the current audio
// clock time. Starting a playing metronome is a no-op.
func (m *Metronome) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sched != nil {
		return nil
	}
	dev, err := m.out.handle.Acquire()
	if err != nil {
		m.log.WithError(err).Warn("metronome could not acquire output")
		return err
	}
	runID := uuid.New()
	log := m.cfg.logger.WithFields(logrus.Fields{"component": "metronome", "run": runID.String()})

	sinks := scheduler.Fanout{dev, scheduler.SinkFunc(m.emit)}
	if m.cfg.midi != nil {
		sinks = append(sinks, midiout.New(m.cfg.midi, dev, log))
	}
	sched, err := scheduler.New(dev, m.seq, sinks, scheduler.Options{
		Interval: m.cfg.interval,
		Ahead:    m.cfg.ahead.Seconds(),
		Logger:   log,
	})
	if err == nil {
		err = sched.Start()
	}
	if err != nil {
		m.release(log)
		return err
	}
	m.sched, m.runID, m.runLog = sched, runID, log
	return nil
}

// Stop halts scheduling, silences unplayed clicks and releases the output.
// No BeatEvent is sent after Stop returns.
func (m *Metronome) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sched == nil {
		return nil
	}
	m.sched.Stop()
	m.sched = nil
	return m.release(m.runLog)
}

func (m *Metronome) release(log logrus.FieldLogger) error {
	if err := m.out.handle.Release(); err != nil {
		log.WithError(err).Warn("release audio output")
		return failure.Wrap(err, failure.Precondition, "release audio output")
	}
	return nil
}

func (m *Metronome) Playing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sched != nil
}

// RunID identifies the current or last run in logs.
func (m *Metronome) RunID() uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runID
}

// SetTempo changes the tempo from the next scheduled interval on. Beats
// already queued keep their time. An invalid tempo leaves the current one.
func (m *Metronome) SetTempo(bpm float64) error {
	if err := m.seq.SetTempo(bpm); err != nil {
		m.log.WithField("tempo", bpm).Debug("tempo rejected")
		return err
	}
	return nil
}

func (m *Metronome) Tempo() float64 { return m.seq.Tempo() }

func (m *Metronome) SetTimeSignature(ts TimeSignature) error {
	if err := m.seq.SetTimeSignature(ts); err != nil {
		m.log.WithField("signature", ts).Debug("time signature rejected")
		return err
	}
	return nil
}

func (m *Metronome) TimeSignature() TimeSignature { return m.seq.TimeSignature() }

// Tap registers a tap now. Once enough taps are in, it sets and returns the
// new tempo.
func (m *Metronome) Tap() (float64, bool) {
	return m.TapAt(m.nowFn())
}

func (m *Metronome) TapAt(at time.Time) (float64, bool) {
	m.mu.Lock()
	bpm, ok := m.tap.Tap(at)
	m.mu.Unlock()
	if !ok {
		return m.seq.Tempo(), false
	}
	if err := m.seq.SetTempo(bpm); err != nil {
		return m.seq.Tempo(), false
	}
	m.log.WithField("tempo", bpm).Debug("tap tempo")
	return bpm, true
}

// Watch returns a channel that receives a BeatEvent for each queued beat.
// The channel is buffered (cap 16); events are dropped when it is full. Only
// the most recent Watch channel receives events.
func (m *Metronome) Watch() <-chan BeatEvent {
	ch := make(chan BeatEvent, 16)
	m.eventChMu.Lock()
	m.eventCh = ch
	m.eventChMu.Unlock()
	return ch
}

func (m *Metronome) emit(b sequencer.Beat) {
	m.eventChMu.Lock()
	ch := m.eventCh
	m.eventChMu.Unlock()
	if ch == nil {
		return
	}
	select {
	case ch <- BeatEvent{Time: b.Time, Index: b.Index, Measure: b.Measure, Accented: b.Accented}:
	default:
		// Channel full; drop event
	}
}
