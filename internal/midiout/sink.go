// Package midiout mirrors metronome beats to a MIDI output as percussion notes.
package midiout

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gitlab.com/gomidi/midi/v2"

	"github.com/cbegin/practice-go/internal/clock"
	"github.com/cbegin/practice-go/internal/sequencer"
)

const (
	// General MIDI percussion: high and low wood block.
	AccentKey      uint8 = 76
	BeatKey        uint8 = 77
	AccentVelocity uint8 = 127
	BeatVelocity   uint8 = 90
	Channel        uint8 = 9
	NoteLength           = 50 * time.Millisecond
)

type stopper interface {
	Stop() bool
}

type afterFunc func(d time.Duration, f func()) stopper

func realAfter(d time.Duration, f func()) stopper { return time.AfterFunc(d, f) }

// Sink turns scheduled beats into timed note-on/note-off pairs.
type Sink struct {
	send  func(midi.Message) error
	src   clock.Source
	log   logrus.FieldLogger
	after afterFunc

	// sendMu is held from the pending check to the end of a send, and by
	// Cancel, so no note-on can reach the port after Cancel returns.
	// Lock order: sendMu, then mu.
	sendMu sync.Mutex

	mu       sync.Mutex
	nextID   uint64
	pending  map[uint64]stopper // note-ons not yet sent
	sounding map[uint64]stopper // note-offs not yet sent
	keys     map[uint64]uint8
}

func New(send func(midi.Message) error, src clock.Source, log logrus.FieldLogger) *Sink {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Sink{
		send:     send,
		src:      src,
		log:      log.WithField("component", "midi"),
		after:    realAfter,
		pending:  make(map[uint64]stopper),
		sounding: make(map[uint64]stopper),
		keys:     make(map[uint64]uint8),
	}
}

// Schedule arms a timer for the beat relative to the audio clock. Late beats
// fire immediately.
func (s *Sink) Schedule(b sequencer.Beat) {
	delay := time.Duration((b.Time - s.src.Now()) * float64(time.Second))
	if delay < 0 {
		delay = 0
	}
	key, vel := BeatKey, BeatVelocity
	if b.Accented {
		key, vel = AccentKey, AccentVelocity
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.keys[id] = key
	s.pending[id] = s.after(delay, func() { s.noteOn(id, key, vel) })
}

func (s *Sink) noteOn(id uint64, key, vel uint8) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	s.mu.Lock()
	if _, ok := s.pending[id]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.pending, id)
	s.sounding[id] = s.after(NoteLength, func() { s.noteOff(id) })
	s.mu.Unlock()

	if err := s.send(midi.NoteOn(Channel, key, vel)); err != nil {
		s.log.WithError(err).Warn("send note on")
	}
}

func (s *Sink) noteOff(id uint64) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	s.mu.Lock()
	if _, ok := s.sounding[id]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.sounding, id)
	key := s.keys[id]
	delete(s.keys, id)
	s.mu.Unlock()

	if err := s.send(midi.NoteOff(Channel, key)); err != nil {
		s.log.WithError(err).Warn("send note off")
	}
}

// Cancel drops every beat that has not sounded and ends any note still
// sounding so nothing hangs. A note-on already being sent finishes first and
// is then ended like any other sounding note.
func (s *Sink) Cancel() {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	s.mu.Lock()
	for id, t := range s.pending {
		t.Stop()
		delete(s.pending, id)
		delete(s.keys, id)
	}
	var offs []uint8
	for id, t := range s.sounding {
		t.Stop()
		offs = append(offs, s.keys[id])
		delete(s.sounding, id)
		delete(s.keys, id)
	}
	s.mu.Unlock()

	for _, key := range offs {
		if err := s.send(midi.NoteOff(Channel, key)); err != nil {
			s.log.WithError(err).Warn("send note off")
		}
	}
}

// Pending returns the number of beats waiting for their note-on.
func (s *Sink) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}
