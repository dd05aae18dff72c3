// Package sequencer tracks tempo, meter and position within the measure for
// the metronome. It knows nothing about clocks; the scheduler asks it for the
// next beat at a time of its choosing.
package sequencer

import "sync"

// Beat is one scheduled metronome click. Time is absolute clock time.
type Beat struct {
	Time     float64
	Index    int // position within the measure, 0-based
	Measure  int
	Accented bool
}

type Sequencer struct {
	mu        sync.Mutex
	tempo     float64
	signature TimeSignature
	emitted   int
	measure   int
}

func New(tempo float64, ts TimeSignature) (*Sequencer, error) {
	if err := ValidateTempo(tempo); err != nil {
		return nil, err
	}
	if err := ts.Validate(); err != nil {
		return nil, err
	}
	return &Sequencer{tempo: tempo, signature: ts}, nil
}

// SetTempo validates bpm before touching state. The new tempo applies to the
// interval computed after the next emitted beat; queued beats keep their time.
func (s *Sequencer) SetTempo(bpm float64) error {
	if err := ValidateTempo(bpm); err != nil {
		return err
	}
	s.mu.Lock()
	s.tempo = bpm
	s.mu.Unlock()
	return nil
}

func (s *Sequencer) Tempo() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tempo
}

func (s *Sequencer) SecondsPerBeat() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SecondsPerBeat(s.tempo)
}

// SetTimeSignature replaces the meter. It takes effect on the next beat handed
// out by Next, never on one already emitted. The position in the bar stays
// emitted mod BeatsPerMeasure, so a change mid-bar can put the next downbeat
// (and the Measure increment) early or late rather than restarting the bar.
func (s *Sequencer) SetTimeSignature(ts TimeSignature) error {
	if err := ts.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.signature = ts
	s.mu.Unlock()
	return nil
}

func (s *Sequencer) TimeSignature() TimeSignature {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.signature
}

// Next emits the beat at time t and advances the beat counter.
func (s *Sequencer) Next(t float64) Beat {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.emitted % s.signature.BeatsPerMeasure
	if idx == 0 && s.emitted > 0 {
		s.measure++
	}
	s.emitted++
	return Beat{
		Time:     t,
		Index:    idx,
		Measure:  s.measure,
		Accented: idx == 0,
	}
}

// Emitted is the number of beats handed out since the last Reset.
func (s *Sequencer) Emitted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.emitted
}

func (s *Sequencer) Reset() {
	s.mu.Lock()
	s.emitted = 0
	s.measure = 0
	s.mu.Unlock()
}
