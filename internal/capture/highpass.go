package capture

import "math"

// highPass is a one-pole high-pass: the input minus a low-passed copy of
// itself. It strips microphone DC offset and handling rumble, which otherwise
// bias the autocorrelation toward long lags.
type highPass struct {
	alpha float64
	lp    float64
}

func newHighPass(sampleRate int, cutoff float64) *highPass {
	rc := 1.0 / (2.0 * math.Pi * cutoff)
	dt := 1.0 / float64(sampleRate)
	return &highPass{alpha: dt / (rc + dt)}
}

func (h *highPass) process(buf []float64) {
	for i, x := range buf {
		h.lp += h.alpha * (x - h.lp)
		buf[i] = x - h.lp
	}
}
