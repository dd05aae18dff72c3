// Package scheduler implements look-ahead beat scheduling: a coarse poll loop
// queues beats at exact clock times slightly ahead of real time, so host timer
// jitter never reaches the audio output.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cbegin/practice-go/internal/clock"
	"github.com/cbegin/practice-go/internal/sequencer"
)

const (
	DefaultInterval = 100 * time.Millisecond
	DefaultAhead    = 0.1 // seconds
)

// Sink receives beats before they are due. Cancel must drop every beat that
// has not fired yet.
type Sink interface {
	Schedule(b sequencer.Beat)
	Cancel()
}

type Options struct {
	Interval time.Duration // poll cadence
	Ahead    float64       // schedule-ahead window, seconds
	Logger   logrus.FieldLogger
}

func (o Options) withDefaults() Options {
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	if o.Ahead <= 0 {
		o.Ahead = DefaultAhead
	}
	if o.Logger == nil {
		o.Logger = logrus.StandardLogger()
	}
	return o
}

type Scheduler struct {
	mu      sync.Mutex
	src     clock.Source
	seq     *sequencer.Sequencer
	sink    Sink
	opts    Options
	log     logrus.FieldLogger
	next    float64
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func New(src clock.Source, seq *sequencer.Sequencer, sink Sink, opts Options) (*Scheduler, error) {
	if err := clock.Check(src); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()
	return &Scheduler{
		src:  src,
		seq:  seq,
		sink: sink,
		opts: opts,
		log:  opts.Logger.WithField("component", "scheduler"),
	}, nil
}

// Start anchors the first beat at the current clock time, schedules whatever
// falls inside the look-ahead window right away and then keeps polling.
// Starting a running scheduler is a no-op.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	if err := clock.Check(s.src); err != nil {
		s.mu.Unlock()
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.seq.Reset()
	s.next = s.src.Now()
	s.running = true
	s.cancel = cancel
	s.done = make(chan struct{})
	s.pollLocked()
	done := s.done
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{
		"tempo":     s.seq.Tempo(),
		"signature": s.seq.TimeSignature().String(),
		"interval":  s.opts.Interval,
	}).Info("scheduler started")
	go s.run(ctx, done)
	return nil
}

func (s *Scheduler) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Poll()
		}
	}
}

// Poll is one pass of the look-ahead loop. It returns the beats it emitted.
func (s *Scheduler) Poll() []sequencer.Beat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pollLocked()
}

func (s *Scheduler) pollLocked() []sequencer.Beat {
	if !s.running {
		return nil
	}
	if s.src.Closed() {
		// Nothing can be heard any more; the owner will Stop us.
		return nil
	}
	now := s.src.Now()
	horizon := now + s.opts.Ahead
	var emitted []sequencer.Beat
	for s.next < horizon {
		b := s.seq.Next(s.next)
		if b.Time < now {
			s.log.WithFields(logrus.Fields{"beat_time": b.Time, "now": now}).Debug("beat scheduled late")
		}
		s.sink.Schedule(b)
		emitted = append(emitted, b)
		// Tempo is read per beat so changes apply from the next interval on.
		s.next += s.seq.SecondsPerBeat()
	}
	return emitted
}

// NextBeatTime is the clock time of the next beat not yet emitted.
func (s *Scheduler) NextBeatTime() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Stop halts polling and cancels unfired beats. When it returns no further
// beat reaches the sink. Stop is idempotent.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	cancel()
	<-done
	s.sink.Cancel()
	s.log.WithField("emitted", s.seq.Emitted()).Info("scheduler stopped")
}
