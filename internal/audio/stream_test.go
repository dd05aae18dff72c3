package audio

import (
	"encoding/binary"
	"io"
	"math"
	"testing"

	"github.com/cbegin/practice-go/internal/click"
	"github.com/cbegin/practice-go/internal/sequencer"
)

type constSource struct {
	frames int
}

func (c *constSource) Process(dst []float32) {
	for i := range dst {
		dst[i] = 0.25
	}
	c.frames += len(dst) / 2
}

func TestStreamReaderEncodesFloat32LittleEndian(t *testing.T) {
	src := &constSource{}
	r := NewStreamReader(src)
	p := make([]byte, 8*4+3) // trailing partial frame is ignored
	n, err := r.Read(p)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if n != 32 || src.frames != 4 {
		t.Fatalf("n = %d, frames rendered = %d, want 32 and 4", n, src.frames)
	}
	for i := 0; i < 8; i++ {
		if v := math.Float32frombits(binary.LittleEndian.Uint32(p[i*4:])); v != 0.25 {
			t.Fatalf("sample %d = %v, want 0.25", i, v)
		}
	}
}

func TestStreamReaderSkipsShortBuffer(t *testing.T) {
	src := &constSource{}
	if n, err := NewStreamReader(src).Read(make([]byte, 7)); n != 0 || err != nil || src.frames != 0 {
		t.Fatalf("read of a partial frame = %d, %v (rendered %d)", n, err, src.frames)
	}
}

func TestStreamReaderClose(t *testing.T) {
	r := NewStreamReader(&constSource{})
	_ = r.Close()
	if n, err := r.Read(make([]byte, 64)); n != 0 || err != io.EOF {
		t.Fatalf("read after close = %d, %v", n, err)
	}
}

func TestOfflineDeviceClockFollowsRenderedFrames(t *testing.T) {
	off := NewOffline(48000, click.DefaultParams())
	off.Schedule(sequencer.Beat{Time: 0.01, Accented: true})
	buf := make([]float32, 960)
	off.Render(buf)
	if off.Now() != 0.01 {
		t.Fatalf("now = %v, want 0.01", off.Now())
	}
	for i, v := range buf {
		if v != 0 {
			t.Fatalf("click sounded early at sample %d", i)
		}
	}

	// Reading through the stream advances the same clock.
	if _, err := off.Reader().Read(make([]byte, 480*8)); err != nil {
		t.Fatal(err)
	}
	if off.Now() != 0.02 {
		t.Fatalf("now after stream read = %v, want 0.02", off.Now())
	}
}
