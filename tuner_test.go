package practice

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/cbegin/practice-go/internal/capture"
	"github.com/cbegin/practice-go/internal/tuning"
)

type fakeInput struct {
	mu     sync.Mutex
	rate   int
	signal []float64
	err    error
	closed bool
}

func (f *fakeInput) Now() float64    { return 0 }
func (f *fakeInput) SampleRate() int { return f.rate }

func (f *fakeInput) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeInput) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeInput) ReadFrame(dst []float64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	if f.signal == nil {
		return false, nil
	}
	copy(dst, f.signal)
	return true, nil
}

func (f *fakeInput) play(freq float64, n int) {
	sig := make([]float64, n)
	for i := range sig {
		sig[i] = 0.4 * math.Sin(2*math.Pi*freq*float64(i)/float64(f.rate))
	}
	f.mu.Lock()
	f.signal = sig
	f.mu.Unlock()
}

type inputOpener struct {
	mu    sync.Mutex
	rate  int
	dev   *fakeInput
	opens int
	err   error
}

func (o *inputOpener) open() (tuning.Device, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return nil, o.err
	}
	o.opens++
	o.dev = &fakeInput{rate: o.rate}
	return o.dev, nil
}

func newFakeInput(opts ...InputOption) (*Input, *inputOpener) {
	cfg := defaultInputConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg = cfg.WithDefaults()
	op := &inputOpener{rate: cfg.SampleRate}
	return newInput(cfg, op.open), op
}

func TestNewTunerRejectsShortFrame(t *testing.T) {
	in, op := newFakeInput(WithFrameSize(512))
	_, err := NewTuner(in)
	if !errors.Is(err, ErrFrameTooShort) || ErrorKind(err) != KindInvalidArgument {
		t.Fatalf("512-sample frame: %v", err)
	}
	if op.opens != 0 {
		t.Fatalf("input opened during construction")
	}
	if _, err := NewTuner(nil); !errors.Is(err, ErrNoSource) {
		t.Fatalf("nil input: %v", err)
	}
}

func TestTunerReportsPlayedString(t *testing.T) {
	in, op := newFakeInput()
	tu, err := NewTuner(in, WithAnalysisInterval(time.Hour), WithTunerLogger(quietLogger()))
	if err != nil {
		t.Fatal(err)
	}
	if err := tu.Start(); err != nil {
		t.Fatal(err)
	}
	defer tu.Stop()
	if tu.State() != TunerListening || in.InUse() != 1 {
		t.Fatalf("state = %v, in use = %d", tu.State(), in.InUse())
	}

	// Low E played 20 cents flat.
	op.dev.play(82.41*math.Pow(2, -20.0/1200), in.FrameSize())
	u, ok, err := tu.Step()
	if err != nil || !ok {
		t.Fatalf("step = %v, %v", ok, err)
	}
	if u.Target != "E2" || u.Status != TooLow || u.Cents > -15 || u.Cents < -25 {
		t.Fatalf("update = %+v", u)
	}
	if latest, ok := tu.Latest(); !ok || latest != u {
		t.Fatalf("latest = %+v", latest)
	}
}

func TestTunerManualStringSelection(t *testing.T) {
	in, op := newFakeInput()
	tu, _ := NewTuner(in, WithAnalysisInterval(time.Hour), WithTunerLogger(quietLogger()))
	if err := tu.SelectString("bogus"); !errors.Is(err, ErrUnknownString) || ErrorKind(err) != KindInvalidArgument {
		t.Fatalf("select bogus: %v", err)
	}
	if err := tu.SelectString("5"); err != nil {
		t.Fatal(err)
	}
	if s, ok := tu.SelectedString(); !ok || s.Name != "A2" {
		t.Fatalf("selected = %+v, %v", s, ok)
	}
	if err := tu.Start(); err != nil {
		t.Fatal(err)
	}
	defer tu.Stop()

	op.dev.play(112, in.FrameSize())
	u, ok, _ := tu.Step()
	if !ok || u.Target != "A2" || !u.Manual || u.Status != TooHigh {
		t.Fatalf("update = %+v", u)
	}

	tu.ClearString()
	if _, ok := tu.SelectedString(); ok {
		t.Fatalf("selection kept after clear")
	}
}

func TestTunerStartFailsWithoutInput(t *testing.T) {
	in, op := newFakeInput()
	op.err = errors.New("no microphone")
	tu, _ := NewTuner(in, WithTunerLogger(quietLogger()))
	if err := tu.Start(); ErrorKind(err) != KindPrecondition {
		t.Fatalf("start = %v", err)
	}
	if tu.State() != TunerIdle {
		t.Fatalf("state = %v", tu.State())
	}
}

func TestTunerCaptureFailureIsReported(t *testing.T) {
	in, op := newFakeInput()
	tu, _ := NewTuner(in, WithAnalysisInterval(time.Hour), WithTunerLogger(quietLogger()))
	events := tu.Watch()
	if err := tu.Start(); err != nil {
		t.Fatal(err)
	}
	op.dev.mu.Lock()
	op.dev.err = capture.ErrCaptureFailed
	op.dev.mu.Unlock()

	_, _, err := tu.Step()
	if ErrorKind(err) != KindCaptureFailed || !errors.Is(err, ErrCaptureFailed) {
		t.Fatalf("step = %v (kind %q)", err, ErrorKind(err))
	}
	if tu.State() != TunerIdle || in.InUse() != 0 {
		t.Fatalf("tuner still holds the input")
	}
	var sawError bool
	for len(events) > 0 {
		if ev := <-events; ev.Kind == TunerEventError {
			sawError = true
		}
	}
	if !sawError {
		t.Fatalf("no error event")
	}
}
