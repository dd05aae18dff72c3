package practice

import (
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cbegin/practice-go/internal/failure"
	"github.com/cbegin/practice-go/internal/notes"
	"github.com/cbegin/practice-go/internal/pitch"
	"github.com/cbegin/practice-go/internal/tuning"
)

type (
	Note           = notes.Note
	GuitarString   = notes.String
	TuningStatus   = notes.Status
	Reference      = notes.Reference
	TunerState     = tuning.State
	TunerUpdate    = tuning.Update
	TunerEvent     = tuning.Event
	TunerEventKind = tuning.EventKind
)

const (
	InTune  = notes.InTune
	TooLow  = notes.TooLow
	TooHigh = notes.TooHigh

	GuitarReference    = notes.Guitar
	ChromaticReference = notes.Chromatic

	TunerIdle      = tuning.Idle
	TunerListening = tuning.Listening

	TunerEventUpdate = tuning.EventUpdate
	TunerEventTarget = tuning.EventTarget
	TunerEventState  = tuning.EventState
	TunerEventError  = tuning.EventError
)

// StandardTuning lists the open strings from low E to high E.
var StandardTuning = notes.StandardTuning

// NoteAt returns the note and frequency at a fret, strings indexed from the
// low E (0).
func NoteAt(stringIndex, fret int) (Note, float64, error) {
	return notes.AtFret(stringIndex, fret)
}

type TunerOption func(*tunerConfig)

type tunerConfig struct {
	clarity   float64
	minFreq   float64
	maxFreq   float64
	interval  time.Duration
	reference Reference
	logger    logrus.FieldLogger
}

func defaultTunerConfig() tunerConfig {
	return tunerConfig{
		clarity:   pitch.DefaultClarityThreshold,
		minFreq:   pitch.DefaultMinFrequency,
		maxFreq:   pitch.DefaultMaxFrequency,
		interval:  tuning.DefaultInterval,
		reference: GuitarReference,
		logger:    logrus.StandardLogger(),
	}
}

// WithClarityThreshold sets the minimum NSDF clarity (0..1) for a reading
// to be published.
func WithClarityThreshold(v float64) TunerOption {
	return func(cfg *tunerConfig) { cfg.clarity = v }
}

func WithFrequencyRange(min, max float64) TunerOption {
	return func(cfg *tunerConfig) {
		cfg.minFreq = min
		cfg.maxFreq = max
	}
}

func WithAnalysisInterval(d time.Duration) TunerOption {
	return func(cfg *tunerConfig) { cfg.interval = d }
}

func WithReference(ref Reference) TunerOption {
	return func(cfg *tunerConfig) { cfg.reference = ref }
}

func WithTunerLogger(log logrus.FieldLogger) TunerOption {
	return func(cfg *tunerConfig) { cfg.logger = log }
}

// Tuner listens to an Input and reports the played note against its target.
type Tuner struct {
	session *tuning.Session
}

func NewTuner(in *Input, opts ...TunerOption) (*Tuner, error) {
	if in == nil {
		return nil, failure.New(ErrNoSource, failure.Precondition, "tuner needs an audio input")
	}
	cfg := defaultTunerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logrus.StandardLogger()
	}
	det, err := pitch.NewDetector(in.FrameSize(), in.SampleRate(),
		pitch.WithClarityThreshold(cfg.clarity),
		pitch.WithFrequencyRange(cfg.minFreq, cfg.maxFreq))
	if err != nil {
		return nil, err
	}
	return &Tuner{session: tuning.New(in.handle, det, tuning.Options{
		Interval:  cfg.interval,
		Reference: cfg.reference,
		Logger:    cfg.logger,
	})}, nil
}

// Start opens (or shares) the input and begins listening. On failure the
// tuner stays idle.
func (t *Tuner) Start() error { return t.session.Start() }

// Stop is synchronous and idempotent; nothing is published after it returns.
func (t *Tuner) Stop() error { return t.session.Stop() }

func (t *Tuner) State() TunerState { return t.session.State() }

func (t *Tuner) ID() uuid.UUID { return t.session.ID() }

// SelectString pins the target to a string by name ("A2") or number ("5").
func (t *Tuner) SelectString(name string) error { return t.session.SelectString(name) }

// ClearString returns to automatic targeting.
func (t *Tuner) ClearString() { t.session.ClearString() }

// SelectedString reports the manually selected string, if any.
func (t *Tuner) SelectedString() (GuitarString, bool) {
	return t.session.Target().Selected()
}

func (t *Tuner) Latest() (TunerUpdate, bool) { return t.session.Latest() }

// Watch returns a buffered channel of tuner events. Updates are dropped when
// it is full; an error event always gets through. Only the most recent Watch
// channel receives events.
func (t *Tuner) Watch() <-chan TunerEvent { return t.session.Watch() }

// Step runs one analysis cycle immediately.
func (t *Tuner) Step() (TunerUpdate, bool, error) { return t.session.Step() }
