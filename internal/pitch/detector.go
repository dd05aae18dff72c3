// Package pitch estimates the fundamental frequency of a mono frame with the
// McLeod pitch method: a normalized square difference function (NSDF) built
// on an FFT autocorrelation, followed by key-maximum peak picking.
package pitch

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"sync"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/andrepxx/go-dsp-guitar/fft"
)

const (
	DefaultFrameSize        = 4096
	DefaultSampleRate       = 48000
	DefaultClarityThreshold = 0.6
	DefaultMinFrequency     = 20.0
	DefaultMaxFrequency     = 1500.0
	// DefaultPeakCutoff picks the first key maximum within 93% of the best
	// one, which keeps the detector off sub-octaves.
	DefaultPeakCutoff = 0.93
	// DefaultSilenceRMS is the level below which a frame counts as silence.
	DefaultSilenceRMS = 1e-4
)

var (
	ErrFrameTooShort = errors.New("frame too short for lowest detectable frequency")
	ErrInvalidConfig = errors.New("invalid pitch detector configuration")
)

// Estimate is the outcome of one analysis. A rejected frame has Frequency 0.
type Estimate struct {
	Frequency float64 // Hz
	Clarity   float64 // 0..1
}

func (e Estimate) Valid() bool { return e.Frequency > 0 }

type config struct {
	clarityThreshold float64
	minFrequency     float64
	maxFrequency     float64
	peakCutoff       float64
	silenceRMS       float64
}

func defaultConfig() config {
	return config{
		clarityThreshold: DefaultClarityThreshold,
		minFrequency:     DefaultMinFrequency,
		maxFrequency:     DefaultMaxFrequency,
		peakCutoff:       DefaultPeakCutoff,
		silenceRMS:       DefaultSilenceRMS,
	}
}

type Option func(*config)

func WithClarityThreshold(v float64) Option {
	return func(c *config) { c.clarityThreshold = v }
}

func WithFrequencyRange(min, max float64) Option {
	return func(c *config) {
		c.minFrequency = min
		c.maxFrequency = max
	}
}

func WithPeakCutoff(v float64) Option {
	return func(c *config) { c.peakCutoff = v }
}

func WithSilenceRMS(v float64) Option {
	return func(c *config) { c.silenceRMS = v }
}

// Detector holds FFT scratch buffers sized for one frame length. It is safe
// for concurrent use; analyses are serialized.
type Detector struct {
	mu         sync.Mutex
	cfg        config
	frameSize  int
	sampleRate int
	ft         fft.FourierTransform
	bufCorr    []float64
	bufFFT     []complex128
	nsdf       []float64
}

// MinFrameSize is the shortest frame that holds one period of minFrequency.
func MinFrameSize(sampleRate int, minFrequency float64) int {
	return int(math.Ceil(float64(sampleRate) / minFrequency))
}

func NewDetector(frameSize, sampleRate int, opts ...Option) (*Detector, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.validate(sampleRate); err != nil {
		return nil, err
	}
	if need := MinFrameSize(sampleRate, cfg.minFrequency); frameSize < need {
		return nil, fault.Wrap(ErrFrameTooShort,
			fmsg.With(fmt.Sprintf("frame of %d samples cannot hold %.1f Hz at %d Hz (need %d)", frameSize, cfg.minFrequency, sampleRate, need)),
			ftag.With(ftag.InvalidArgument))
	}
	fftSize, _ := fft.NextPowerOfTwo(uint64(2 * frameSize))
	return &Detector{
		cfg:        cfg,
		frameSize:  frameSize,
		sampleRate: sampleRate,
		ft:         fft.CreateFourierTransform(),
		bufCorr:    make([]float64, fftSize),
		bufFFT:     make([]complex128, fftSize),
		nsdf:       make([]float64, frameSize),
	}, nil
}

func (c config) validate(sampleRate int) error {
	invalid := func(msg string) error {
		return fault.Wrap(ErrInvalidConfig, fmsg.With(msg), ftag.With(ftag.InvalidArgument))
	}
	switch {
	case sampleRate <= 0:
		return invalid("sample rate must be positive")
	case !(c.minFrequency > 0) || !(c.maxFrequency > c.minFrequency):
		return invalid("frequency range must satisfy 0 < min < max")
	case c.clarityThreshold < 0 || c.clarityThreshold > 1:
		return invalid("clarity threshold must be within [0, 1]")
	case !(c.peakCutoff > 0) || c.peakCutoff > 1:
		return invalid("peak cutoff must be within (0, 1]")
	}
	return nil
}

func (d *Detector) FrameSize() int  { return d.frameSize }
func (d *Detector) SampleRate() int { return d.sampleRate }

// Estimate analyses frame, which must be exactly FrameSize samples long.
// Silence, low clarity and out-of-range pitch yield a rejected Estimate and a
// nil error.
func (d *Detector) Estimate(frame []float64, sampleRate int) (Estimate, error) {
	if len(frame) != d.frameSize {
		return Estimate{}, fault.Wrap(ErrInvalidConfig,
			fmsg.With(fmt.Sprintf("frame has %d samples, detector expects %d", len(frame), d.frameSize)),
			ftag.With(ftag.InvalidArgument))
	}
	if sampleRate <= 0 {
		return Estimate{}, fault.Wrap(ErrInvalidConfig, fmsg.With("sample rate must be positive"), ftag.With(ftag.InvalidArgument))
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	n := len(frame)
	energy := 0.0
	for _, x := range frame {
		energy += x * x
	}
	if math.Sqrt(energy/float64(n)) < d.cfg.silenceRMS {
		return Estimate{}, nil
	}

	r, err := d.autocorrelate(frame, energy)
	if err != nil {
		return Estimate{}, err
	}

	// NSDF: n(τ) = 2 r(τ) / m(τ), with m(τ) = Σ x[j]² + x[j+τ]² over the overlap.
	nsdf := d.nsdf
	m := 2 * energy
	nsdf[0] = 1
	for tau := 1; tau < n; tau++ {
		m -= frame[tau-1]*frame[tau-1] + frame[n-tau]*frame[n-tau]
		if m > 1e-12 {
			nsdf[tau] = 2 * r[tau] / m
		} else {
			nsdf[tau] = 0
		}
	}

	lag, clarity, ok := d.pickPeak(nsdf[:d.maxLag(sampleRate, n)])
	if !ok {
		return Estimate{}, nil
	}
	est := Estimate{Frequency: float64(sampleRate) / lag, Clarity: clarity}
	if est.Clarity < d.cfg.clarityThreshold || est.Frequency < d.cfg.minFrequency || est.Frequency > d.cfg.maxFrequency {
		return Estimate{Clarity: clarity}, nil
	}
	return est, nil
}

// autocorrelate returns r(τ) for τ in [0, n), scaled so that r(0) equals the
// frame energy.
func (d *Detector) autocorrelate(frame []float64, energy float64) ([]float64, error) {
	n := len(frame)
	copy(d.bufCorr, frame)
	fft.ZeroFloat(d.bufCorr[n:])
	if err := d.ft.RealFourier(d.bufCorr, d.bufFFT, fft.SCALING_DEFAULT); err != nil {
		return nil, fault.Wrap(err, fmsg.With("forward FFT"))
	}
	for i, elem := range d.bufFFT {
		d.bufFFT[i] = elem * cmplx.Conj(elem)
	}
	if err := d.ft.RealInverseFourier(d.bufFFT, d.bufCorr, fft.SCALING_DEFAULT); err != nil {
		return nil, fault.Wrap(err, fmsg.With("inverse FFT"))
	}
	r := d.bufCorr[:n]
	if r[0] <= 0 {
		return nil, fault.New("autocorrelation lost the frame energy")
	}
	scale := energy / r[0]
	for i := range r {
		r[i] *= scale
	}
	return r, nil
}

// maxLag keeps the search to lags a little beyond the lowest frequency.
func (d *Detector) maxLag(sampleRate, n int) int {
	lag := int(math.Ceil(float64(sampleRate)/d.cfg.minFrequency)) + 2
	if lag > n {
		lag = n
	}
	return lag
}

// pickPeak finds the key maxima of nsdf (the highest point of each positive
// lobe after the first negative crossing) and returns the refined lag and
// value of the first one within peakCutoff of the highest.
func (d *Detector) pickPeak(nsdf []float64) (float64, float64, bool) {
	var keys []int
	start := 1
	for start < len(nsdf) && nsdf[start] > 0 {
		start++
	}
	best := -1
	for tau := start; tau < len(nsdf); tau++ {
		if nsdf[tau] > 0 {
			if best < 0 || nsdf[tau] > nsdf[best] {
				best = tau
			}
			continue
		}
		if best >= 0 {
			keys = append(keys, best)
			best = -1
		}
	}
	// A lobe still open at the end of the window only counts if it peaked inside it.
	if best >= 0 && best < len(nsdf)-1 {
		keys = append(keys, best)
	}
	if len(keys) == 0 {
		return 0, 0, false
	}

	highest := 0.0
	for _, k := range keys {
		highest = math.Max(highest, nsdf[k])
	}
	threshold := d.cfg.peakCutoff * highest
	chosen := keys[len(keys)-1]
	for _, k := range keys {
		if nsdf[k] >= threshold {
			chosen = k
			break
		}
	}

	lag, value := parabolic(nsdf, chosen)
	return lag, math.Max(0, math.Min(1, value)), true
}

// parabolic fits a parabola through the peak and its neighbours and returns
// the vertex position and height.
func parabolic(y []float64, i int) (float64, float64) {
	if i <= 0 || i >= len(y)-1 {
		return float64(i), y[i]
	}
	a, b, c := y[i-1], y[i], y[i+1]
	denom := a - 2*b + c
	if denom == 0 {
		return float64(i), b
	}
	delta := 0.5 * (a - c) / denom
	return float64(i) + delta, b - 0.25*(a-c)*delta
}
