// Package click synthesizes metronome clicks and places each one on an exact
// sample frame of the output clock.
package click

import (
	"math"
	"sort"
	"sync"
)

const twoPi = math.Pi * 2

type Params struct {
	AccentFreq float64
	BeatFreq   float64
	AccentGain float64
	BeatGain   float64
	FloorGain  float64 // envelope target at the end of the click
	Duration   float64 // seconds
	MasterGain float64
}

func DefaultParams() Params {
	return Params{
		AccentFreq: 800,
		BeatFreq:   600,
		AccentGain: 0.6,
		BeatGain:   0.3,
		FloorGain:  0.001,
		Duration:   0.1,
		MasterGain: 1,
	}
}

type voice struct {
	start int64
	freq  float64
	gain  float64
	decay float64 // per-frame envelope multiplier
	phase float64
	left  int64 // frames until the voice stops
}

// Engine is a SampleSource for the audio output. Schedule and Process may be
// called from different goroutines.
type Engine struct {
	mu         sync.Mutex
	sampleRate float64
	params     Params
	length     int64
	pending    []voice // sorted by start frame
	active     []voice
	pos        int64
	started    int64
}

func New(sampleRate int, params Params) *Engine {
	def := DefaultParams()
	if params.Duration <= 0 {
		params.Duration = def.Duration
	}
	if params.FloorGain <= 0 {
		params.FloorGain = def.FloorGain
	}
	if params.MasterGain <= 0 {
		params.MasterGain = def.MasterGain
	}
	length := int64(math.Round(params.Duration * float64(sampleRate)))
	if length < 1 {
		length = 1
	}
	return &Engine{
		sampleRate: float64(sampleRate),
		params:     params,
		length:     length,
	}
}

func (e *Engine) SampleRate() int { return int(e.sampleRate) }

// Frame converts a clock time in seconds to the nearest sample frame.
func (e *Engine) Frame(at float64) int64 {
	return int64(math.Round(at * e.sampleRate))
}

// Schedule queues a click at the given clock time. A click whose frame has
// already been rendered starts on the next rendered frame.
func (e *Engine) Schedule(at float64, accented bool) {
	freq, gain := e.params.BeatFreq, e.params.BeatGain
	if accented {
		freq, gain = e.params.AccentFreq, e.params.AccentGain
	}
	if gain <= 0 {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	start := e.Frame(at)
	if start < e.pos {
		start = e.pos
	}
	v := voice{
		start: start,
		freq:  freq,
		gain:  gain,
		decay: math.Pow(e.params.FloorGain/gain, 1/float64(e.length)),
		left:  e.length,
	}
	i := sort.Search(len(e.pending), func(i int) bool { return e.pending[i].start > start })
	e.pending = append(e.pending, voice{})
	copy(e.pending[i+1:], e.pending[i:])
	e.pending[i] = v
}

// Cancel drops every click that has not started sounding.
func (e *Engine) Cancel() {
	e.mu.Lock()
	e.pending = e.pending[:0]
	e.mu.Unlock()
}

// Pending returns the number of clicks waiting for their start frame.
func (e *Engine) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}

// Started returns how many clicks have begun sounding.
func (e *Engine) Started() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.started
}

// Position is the number of frames rendered so far.
func (e *Engine) Position() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pos
}

// Now is the output clock in seconds.
func (e *Engine) Now() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return float64(e.pos) / e.sampleRate
}

// Process renders interleaved stereo into dst and advances the clock.
func (e *Engine) Process(dst []float32) {
	e.mu.Lock()
	defer e.mu.Unlock()

	frames := len(dst) / 2
	for i := 0; i < frames; i++ {
		frame := e.pos + int64(i)
		for len(e.pending) > 0 && e.pending[0].start <= frame {
			e.active = append(e.active, e.pending[0])
			e.pending = e.pending[1:]
			e.started++
		}

		var s float64
		live := e.active[:0]
		for _, v := range e.active {
			s += v.gain * math.Sin(v.phase)
			v.phase += twoPi * v.freq / e.sampleRate
			if v.phase >= twoPi {
				v.phase -= twoPi
			}
			v.gain *= v.decay
			v.left--
			if v.left > 0 {
				live = append(live, v)
			}
		}
		e.active = live

		out := float32(clampSample(s * e.params.MasterGain))
		dst[i*2] = out
		dst[i*2+1] = out
	}
	e.pos += int64(frames)
}

func clampSample(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
