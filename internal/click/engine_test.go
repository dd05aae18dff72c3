package click

import (
	"math"
	"testing"
)

func render(e *Engine, frames int) []float32 {
	buf := make([]float32, frames*2)
	e.Process(buf)
	return buf
}

func firstSound(buf []float32) int {
	for i := 0; i < len(buf)/2; i++ {
		if buf[i*2] != 0 {
			return i
		}
	}
	return -1
}

func TestClickStartsOnExactFrame(t *testing.T) {
	e := New(48000, DefaultParams())
	e.Schedule(0.5, false)
	buf := render(e, 48000)

	// sin(0) is silent, so the first audible frame is one past the onset.
	if got := firstSound(buf); got != 24001 {
		t.Fatalf("first audible frame = %d, want 24001", got)
	}
	if buf[24000*2] != 0 || buf[24000*2+1] != 0 {
		t.Fatalf("onset frame not at phase zero")
	}
	if e.Started() != 1 {
		t.Fatalf("started = %d, want 1", e.Started())
	}
}

func TestClickEnvelopeDecaysAndStops(t *testing.T) {
	p := DefaultParams()
	e := New(48000, p)
	e.Schedule(0, true)
	buf := render(e, 9600)

	var peak float64
	for i := 0; i < 480; i++ {
		peak = math.Max(peak, math.Abs(float64(buf[i*2])))
	}
	if math.Abs(peak-p.AccentGain) > 0.05 {
		t.Fatalf("accent peak = %v, want about %v", peak, p.AccentGain)
	}
	var tail float64
	for i := 4700; i < 4800; i++ {
		tail = math.Max(tail, math.Abs(float64(buf[i*2])))
	}
	if tail > 0.002 {
		t.Fatalf("envelope tail = %v, want near %v", tail, p.FloorGain)
	}
	for i := 4800; i < 9600; i++ {
		if buf[i*2] != 0 {
			t.Fatalf("click still sounding at frame %d", i)
		}
	}
}

func TestAccentIsLouderThanBeat(t *testing.T) {
	peakOf := func(accented bool) float64 {
		e := New(48000, DefaultParams())
		e.Schedule(0, accented)
		buf := render(e, 480)
		var peak float64
		for _, s := range buf {
			peak = math.Max(peak, math.Abs(float64(s)))
		}
		return peak
	}
	if a, b := peakOf(true), peakOf(false); a <= b {
		t.Fatalf("accent peak %v not above beat peak %v", a, b)
	}
}

func TestLateClickStartsOnNextRenderedFrame(t *testing.T) {
	e := New(48000, DefaultParams())
	render(e, 1000)
	e.Schedule(0.001, false) // frame 48, already rendered
	buf := render(e, 100)
	if got := firstSound(buf); got != 1 {
		t.Fatalf("late click first audible frame = %d, want 1", got)
	}
}

func TestCancelDropsPendingClicksOnly(t *testing.T) {
	e := New(48000, DefaultParams())
	e.Schedule(0, true)
	e.Schedule(0.5, false)
	e.Schedule(1.0, false)
	render(e, 100)
	if e.Pending() != 2 {
		t.Fatalf("pending = %d, want 2", e.Pending())
	}
	e.Cancel()
	if e.Pending() != 0 {
		t.Fatalf("pending after cancel = %d", e.Pending())
	}
	buf := render(e, 96000)
	if got := firstSound(buf); got != 0 {
		t.Fatalf("ringing click cut off by cancel (first sound %d)", got)
	}
	for i := 24000; i < len(buf)/2; i++ {
		if buf[i*2] != 0 {
			t.Fatalf("cancelled click sounded at frame %d", i+100)
		}
	}
}

func TestClockAdvancesWithRenderedFrames(t *testing.T) {
	e := New(44100, DefaultParams())
	render(e, 22050)
	if e.Position() != 22050 {
		t.Fatalf("position = %d", e.Position())
	}
	if e.Now() != 0.5 {
		t.Fatalf("now = %v, want 0.5", e.Now())
	}
}

func TestSchedulingOrderDoesNotMatter(t *testing.T) {
	e := New(48000, DefaultParams())
	e.Schedule(0.2, false)
	e.Schedule(0.1, true)
	buf := render(e, 48000)
	if got := firstSound(buf); got != 4801 {
		t.Fatalf("first audible frame = %d, want 4801", got)
	}
	if e.Started() != 2 {
		t.Fatalf("started = %d, want 2", e.Started())
	}
}
