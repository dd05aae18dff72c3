package scheduler

import "github.com/cbegin/practice-go/internal/sequencer"

// Fanout forwards every beat to each of its sinks in order.
type Fanout []Sink

func (f Fanout) Schedule(b sequencer.Beat) {
	for _, s := range f {
		s.Schedule(b)
	}
}

func (f Fanout) Cancel() {
	for _, s := range f {
		s.Cancel()
	}
}

// SinkFunc adapts a callback into a Sink with nothing to cancel.
type SinkFunc func(sequencer.Beat)

func (fn SinkFunc) Schedule(b sequencer.Beat) { fn(b) }
func (fn SinkFunc) Cancel()                   {}
