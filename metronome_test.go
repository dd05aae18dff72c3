package practice

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"gitlab.com/gomidi/midi/v2"

	"github.com/cbegin/practice-go/internal/audio"
	"github.com/cbegin/practice-go/internal/clock"
	"github.com/cbegin/practice-go/internal/sequencer"
)

type fakeOutput struct {
	*clock.Manual
	mu      sync.Mutex
	beats   []sequencer.Beat
	cancels int
}

func (f *fakeOutput) Schedule(b sequencer.Beat) {
	f.mu.Lock()
	f.beats = append(f.beats, b)
	f.mu.Unlock()
}

func (f *fakeOutput) Cancel() {
	f.mu.Lock()
	f.cancels++
	f.mu.Unlock()
}

type outputOpener struct {
	mu    sync.Mutex
	opens int
	last  *fakeOutput
	err   error
	start float64
}

func (o *outputOpener) open() (audio.Device, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return nil, o.err
	}
	o.opens++
	o.last = &fakeOutput{Manual: clock.NewManual(DefaultSampleRate)}
	o.last.Set(o.start)
	return o.last, nil
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func newFakeOutput(start float64) (*Output, *outputOpener) {
	op := &outputOpener{start: start}
	return newOutput(DefaultSampleRate, op.open), op
}

func TestNewMetronomeValidatesBeforeOpening(t *testing.T) {
	out, op := newFakeOutput(0)
	_, err := NewMetronome(out, WithTempo(300))
	if !errors.Is(err, ErrInvalidTempo) || ErrorKind(err) != KindInvalidArgument {
		t.Fatalf("tempo 300: %v", err)
	}
	_, err = NewMetronome(out, WithTimeSignature(TimeSignature{BeatsPerMeasure: 4, BeatUnit: 5}))
	if !errors.Is(err, ErrInvalidTimeSignature) {
		t.Fatalf("4/5: %v", err)
	}
	if op.opens != 0 {
		t.Fatalf("device opened during construction")
	}
	_, err = NewMetronome(nil)
	if !errors.Is(err, ErrNoSource) || ErrorKind(err) != KindPrecondition {
		t.Fatalf("nil output: %v", err)
	}
}

func TestMetronomeStartQueuesFirstBeatAtClockTime(t *testing.T) {
	out, op := newFakeOutput(12.5)
	m, err := NewMetronome(out, WithTempo(120), WithLogger(quietLogger()))
	if err != nil {
		t.Fatal(err)
	}
	events := m.Watch()
	if err := m.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !m.Playing() || out.InUse() != 1 {
		t.Fatalf("playing = %v, in use = %d", m.Playing(), out.InUse())
	}

	select {
	case ev := <-events:
		if ev.Time != 12.5 || ev.Index != 0 || !ev.Accented {
			t.Fatalf("first beat = %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatalf("no beat event")
	}
	op.last.mu.Lock()
	queued := len(op.last.beats)
	op.last.mu.Unlock()
	if queued != 1 {
		t.Fatalf("output received %d beats, want 1", queued)
	}

	if err := m.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := m.Stop(); err != nil {
		t.Fatalf("second stop: %v", err)
	}
	if m.Playing() || out.InUse() != 0 || !op.last.Closed() {
		t.Fatalf("output not released after stop")
	}
	if op.last.cancels != 1 {
		t.Fatalf("pending clicks cancelled %d times, want 1", op.last.cancels)
	}
}

func TestMetronomeRejectsBadTempoKeepsCurrent(t *testing.T) {
	out, _ := newFakeOutput(0)
	m, _ := NewMetronome(out, WithLogger(quietLogger()))
	if err := m.SetTempo(39); !errors.Is(err, ErrInvalidTempo) {
		t.Fatalf("set 39: %v", err)
	}
	if m.Tempo() != DefaultTempo {
		t.Fatalf("tempo = %v, want %v", m.Tempo(), DefaultTempo)
	}
	if err := m.SetTempo(208); err != nil || m.Tempo() != 208 {
		t.Fatalf("set 208: %v (tempo %v)", err, m.Tempo())
	}
	if err := m.SetTimeSignature(TimeSignature{BeatsPerMeasure: 0, BeatUnit: 4}); err == nil {
		t.Fatalf("0/4 accepted")
	}
	if m.TimeSignature() != DefaultTimeSignature {
		t.Fatalf("signature = %v", m.TimeSignature())
	}
}

func TestMetronomeTapSetsTempo(t *testing.T) {
	out, _ := newFakeOutput(0)
	m, _ := NewMetronome(out, WithLogger(quietLogger()))
	base := time.Unix(1000, 0)
	var bpm float64
	var ok bool
	for i := 0; i < 4; i++ {
		bpm, ok = m.TapAt(base.Add(time.Duration(i) * 500 * time.Millisecond))
	}
	if !ok || bpm != 120 || m.Tempo() != 120 {
		t.Fatalf("tap tempo = %v (ok=%v), metronome at %v", bpm, ok, m.Tempo())
	}
	if bpm, ok := m.TapAt(base.Add(10 * time.Second)); ok || bpm != 120 {
		t.Fatalf("tap after long pause = %v, %v", bpm, ok)
	}
}

func TestMetronomesShareOneOutput(t *testing.T) {
	out, op := newFakeOutput(0)
	a, _ := NewMetronome(out, WithLogger(quietLogger()))
	b, _ := NewMetronome(out, WithLogger(quietLogger()))
	if err := a.Start(); err != nil {
		t.Fatal(err)
	}
	if err := b.Start(); err != nil {
		t.Fatal(err)
	}
	if op.opens != 1 || out.InUse() != 2 {
		t.Fatalf("opens = %d, in use = %d", op.opens, out.InUse())
	}
	_ = a.Stop()
	if op.last.Closed() {
		t.Fatalf("shared output closed while still in use")
	}
	_ = b.Stop()
	if !op.last.Closed() {
		t.Fatalf("output left open")
	}
}

func TestMetronomeStartFailsWhenOutputUnavailable(t *testing.T) {
	out, op := newFakeOutput(0)
	op.err = errors.New("no audio device")
	m, _ := NewMetronome(out, WithLogger(quietLogger()))
	err := m.Start()
	if ErrorKind(err) != KindPrecondition {
		t.Fatalf("start error = %v (kind %q)", err, ErrorKind(err))
	}
	if m.Playing() || out.InUse() != 0 {
		t.Fatalf("metronome running without output")
	}
}

func TestMetronomeMirrorsBeatsToMIDI(t *testing.T) {
	out, _ := newFakeOutput(0)
	sent := make(chan midi.Message, 8)
	m, _ := NewMetronome(out, WithLogger(quietLogger()), WithMIDI(func(msg midi.Message) error {
		sent <- msg
		return nil
	}))
	if err := m.Start(); err != nil {
		t.Fatal(err)
	}
	defer m.Stop()

	select {
	case msg := <-sent:
		var ch, key, vel uint8
		if !msg.GetNoteStart(&ch, &key, &vel) || key != 76 || vel != 127 {
			t.Fatalf("first MIDI message = %v", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no MIDI note for the downbeat")
	}
}

func TestNoBeatEventsAfterStop(t *testing.T) {
	out, op := newFakeOutput(0)
	m, _ := NewMetronome(out, WithTempo(208), WithLogger(quietLogger()),
		WithLookAhead(time.Millisecond, 100*time.Millisecond))
	events := m.Watch()
	if err := m.Start(); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 20; i++ {
		op.last.Advance(0.05)
		time.Sleep(2 * time.Millisecond)
	}
	if err := m.Stop(); err != nil {
		t.Fatal(err)
	}
	for len(events) > 0 {
		<-events
	}
	op.last.Advance(5)
	time.Sleep(10 * time.Millisecond)
	if len(events) != 0 {
		t.Fatalf("%d beat events after stop", len(events))
	}
}
