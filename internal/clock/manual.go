package clock

import "sync"

// Manual is a hand-driven clock used for offline rendering and tests.
type Manual struct {
	mu         sync.Mutex
	now        float64
	sampleRate int
	closed     bool
}

func NewManual(sampleRate int) *Manual {
	return &Manual{sampleRate: sampleRate}
}

func (m *Manual) Now() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) SampleRate() int { return m.sampleRate }

func (m *Manual) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *Manual) Set(t float64) {
	m.mu.Lock()
	m.now = t
	m.mu.Unlock()
}

func (m *Manual) Advance(seconds float64) {
	m.mu.Lock()
	m.now += seconds
	m.mu.Unlock()
}

func (m *Manual) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}
