package audio

import (
	"encoding/binary"
	"io"
	"math"
	"sync"
)

// SampleSource renders interleaved stereo float32 and advances its own clock
// by len(dst)/2 frames.
type SampleSource interface {
	Process(dst []float32)
}

const bytesPerFrame = 8 // two float32 channels

// StreamReader exposes a SampleSource as little-endian float32 stereo bytes,
// the layout the backend's float32 player pulls. Only whole frames are
// rendered, so the source clock never drifts from what was handed out.
type StreamReader struct {
	mu     sync.Mutex
	source SampleSource
	buf    []float32
	closed bool
}

func NewStreamReader(source SampleSource) *StreamReader {
	return &StreamReader{source: source}
}

func (r *StreamReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return 0, io.EOF
	}
	frames := len(p) / bytesPerFrame
	if frames == 0 {
		return 0, nil
	}
	if need := frames * 2; cap(r.buf) < need {
		r.buf = make([]float32, need)
	} else {
		r.buf = r.buf[:need]
	}
	r.source.Process(r.buf)
	for i, v := range r.buf {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(v))
	}
	return frames * bytesPerFrame, nil
}

// Close makes further reads return io.EOF without touching the source.
func (r *StreamReader) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return nil
}
