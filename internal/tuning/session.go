// Package tuning runs the listening loop of the tuner: read the newest
// capture frame, estimate its pitch, map it to a note and publish the result.
package tuning

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cbegin/practice-go/internal/clock"
	"github.com/cbegin/practice-go/internal/failure"
	"github.com/cbegin/practice-go/internal/notes"
	"github.com/cbegin/practice-go/internal/pitch"
)

const (
	DefaultInterval = 16 * time.Millisecond
	watchBuffer     = 16
)

// Device is a capture source: a sample clock that can hand out its newest frame.
type Device interface {
	clock.Device
	ReadFrame(dst []float64) (bool, error)
}

type State int

const (
	Idle State = iota
	Listening
)

func (s State) String() string {
	if s == Listening {
		return "listening"
	}
	return "idle"
}

// Update is one accepted pitch reading.
type Update struct {
	Note       notes.Note
	Frequency  float64
	Cents      int
	Status     notes.Status
	Target     string
	TargetFreq float64
	Manual     bool
	Clarity    float64
	Time       float64 // capture clock, seconds
}

type EventKind int

const (
	EventUpdate EventKind = iota
	// EventTarget previews a newly selected string at 0 cents.
	EventTarget
	EventState
	EventError
)

type Event struct {
	Kind   EventKind
	Update Update
	State  State
	Err    error
}

type Options struct {
	Interval  time.Duration
	Reference notes.Reference
	Logger    logrus.FieldLogger
}

func (o Options) withDefaults() Options {
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	if o.Logger == nil {
		o.Logger = logrus.StandardLogger()
	}
	return o
}

type Session struct {
	handle   *clock.Handle[Device]
	detector *pitch.Detector
	mapper   *notes.Mapper
	opts     Options
	id       uuid.UUID
	log      logrus.FieldLogger

	stepMu sync.Mutex // serializes analysis cycles; guards frame
	frame  []float64

	mu        sync.Mutex
	state     State
	dev       Device
	gen       uint64
	cancel    context.CancelFunc
	done      chan struct{}
	latest    Update
	hasLatest bool

	eventChMu sync.Mutex
	eventCh   chan Event
}

func New(handle *clock.Handle[Device], detector *pitch.Detector, opts Options) *Session {
	opts = opts.withDefaults()
	id := uuid.New()
	return &Session{
		handle:   handle,
		detector: detector,
		mapper:   notes.NewMapper(opts.Reference),
		opts:     opts,
		id:       id,
		log:      opts.Logger.WithFields(logrus.Fields{"component": "tuner", "run": id.String()}),
		frame:    make([]float64, detector.FrameSize()),
	}
}

func (s *Session) ID() uuid.UUID { return s.id }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Latest returns the most recent accepted update, if any.
func (s *Session) Latest() (Update, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest, s.hasLatest
}

// Start acquires the capture device and begins listening. If the device
// cannot be acquired the session stays Idle and the Precondition error is
// returned. Starting a listening session is a no-op.
func (s *Session) Start() error {
	s.mu.Lock()
	if s.state == Listening {
		s.mu.Unlock()
		return nil
	}
	dev, err := s.handle.Acquire()
	if err != nil {
		s.mu.Unlock()
		s.log.WithError(err).Warn("tuner could not acquire capture device")
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.dev = dev
	s.state = Listening
	s.gen++
	gen := s.gen
	s.cancel = cancel
	s.done = make(chan struct{})
	done := s.done
	s.publishLocked(Event{Kind: EventState, State: Listening})
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{
		"sample_rate": dev.SampleRate(),
		"frame_size":  s.detector.FrameSize(),
		"interval":    s.opts.Interval,
	}).Info("tuner listening")
	go s.run(ctx, gen, done)
	return nil
}

func (s *Session) run(ctx context.Context, gen uint64, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, _, err := s.step(gen); err != nil {
				return
			}
		}
	}
}

// Step runs one analysis cycle against the current listening run. It
// reports whether an update was published. A capture error ends the run.
func (s *Session) Step() (Update, bool, error) {
	s.mu.Lock()
	gen := s.gen
	s.mu.Unlock()
	return s.step(gen)
}

func (s *Session) step(gen uint64) (Update, bool, error) {
	s.stepMu.Lock()
	defer s.stepMu.Unlock()

	s.mu.Lock()
	if s.state != Listening || s.gen != gen {
		s.mu.Unlock()
		return Update{}, false, nil
	}
	dev := s.dev
	s.mu.Unlock()

	ok, err := dev.ReadFrame(s.frame)
	if err != nil {
		return Update{}, false, s.fail(gen, err)
	}
	if !ok {
		return Update{}, false, nil
	}
	est, err := s.detector.Estimate(s.frame, dev.SampleRate())
	if err != nil {
		s.log.WithError(err).Warn("pitch estimate failed")
		return Update{}, false, nil
	}
	if !est.Valid() {
		// Keep showing the previous reading.
		return Update{}, false, nil
	}
	r, ok := s.mapper.Map(est.Frequency)
	if !ok {
		return Update{}, false, nil
	}
	u := Update{
		Note:       r.Note,
		Frequency:  r.Frequency,
		Cents:      r.Cents,
		Status:     r.Status,
		Target:     r.TargetName,
		TargetFreq: r.TargetFreq,
		Manual:     r.Manual,
		Clarity:    est.Clarity,
		Time:       dev.Now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Listening || s.gen != gen {
		return Update{}, false, nil
	}
	s.latest, s.hasLatest = u, true
	s.publishLocked(Event{Kind: EventUpdate, Update: u})
	return u, true, nil
}

// fail ends the listening run after a capture error. Only the first failure
// of a run is reported.
func (s *Session) fail(gen uint64, cause error) error {
	err := cause
	if !failure.Is(err, failure.Capture) {
		err = failure.Wrap(cause, failure.Capture, "capture failed while listening")
	}

	s.mu.Lock()
	if s.state != Listening || s.gen != gen {
		s.mu.Unlock()
		return err
	}
	s.state = Idle
	s.gen++
	cancel := s.cancel
	s.cancel, s.done, s.dev = nil, nil, nil
	s.publishErrorLocked(err)
	s.publishLocked(Event{Kind: EventState, State: Idle})
	s.mu.Unlock()

	// The loop may be the caller, so it is cancelled but not waited for.
	cancel()
	s.log.WithError(err).Warn("capture failed, tuner stopped")
	if rerr := s.handle.Release(); rerr != nil {
		s.log.WithError(rerr).Warn("release capture device")
	}
	return err
}

// Stop ends listening and releases the capture device. No update is
// published after Stop returns. Stop is idempotent.
func (s *Session) Stop() error {
	s.mu.Lock()
	if s.state != Listening {
		s.mu.Unlock()
		return nil
	}
	s.state = Idle
	s.gen++
	cancel, done := s.cancel, s.done
	s.cancel, s.done, s.dev = nil, nil, nil
	s.publishLocked(Event{Kind: EventState, State: Idle})
	s.mu.Unlock()

	cancel()
	<-done
	s.log.Info("tuner stopped")
	return s.handle.Release()
}

// SelectString pins the target to a guitar string and previews it.
func (s *Session) SelectString(name string) error {
	str, err := s.mapper.Select(name)
	if err != nil {
		s.log.WithError(err).Debug("string selection rejected")
		return err
	}
	n := str.Note()
	s.mu.Lock()
	s.publishLocked(Event{Kind: EventTarget, Update: Update{
		Note:       n,
		Frequency:  str.Frequency,
		Status:     notes.InTune,
		Target:     str.Name,
		TargetFreq: str.Frequency,
		Manual:     true,
	}})
	s.mu.Unlock()
	return nil
}

func (s *Session) ClearString() { s.mapper.Clear() }

func (s *Session) Target() notes.Target { return s.mapper.Target() }

// Watch returns a channel receiving session events. The channel is buffered;
// updates are dropped when it is full. Only the most recent Watch channel
// receives events.
func (s *Session) Watch() <-chan Event {
	ch := make(chan Event, watchBuffer)
	s.eventChMu.Lock()
	s.eventCh = ch
	s.eventChMu.Unlock()
	return ch
}

func (s *Session) publishLocked(ev Event) {
	s.eventChMu.Lock()
	ch := s.eventCh
	s.eventChMu.Unlock()
	if ch == nil {
		return
	}
	select {
	case ch <- ev:
	default:
		s.log.WithField("kind", ev.Kind).Debug("watch channel full, event dropped")
	}
}

// publishErrorLocked makes room for the error by evicting the oldest queued event.
func (s *Session) publishErrorLocked(err error) {
	s.eventChMu.Lock()
	ch := s.eventCh
	s.eventChMu.Unlock()
	if ch == nil {
		return
	}
	ev := Event{Kind: EventError, State: Idle, Err: err}
	for {
		select {
		case ch <- ev:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
