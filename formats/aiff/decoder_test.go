// SPDX-License-Identifier: EPL-2.0

package aiff

import (
	"bytes"
	"errors"
	"io"
	"testing"

	goaudio "github.com/go-audio/audio"
)

// mockAiffReader hands out ints the way aiff.Decoder.PCMBuffer does.
type mockAiffReader struct {
	data []int
	err  error
}

func (m *mockAiffReader) PCMBuffer(buf *goaudio.IntBuffer) (int, error) {
	if m.err != nil {
		return 0, m.err
	}
	n := copy(buf.Data, m.data)
	m.data = m.data[n:]
	return n, nil
}

func newSource(depth, channels int, data ...int) *source {
	return &source{
		dec:        &mockAiffReader{data: data},
		sampleRate: 44100,
		channels:   channels,
		bitDepth:   depth,
		intBuf:     &goaudio.IntBuffer{Data: make([]int, 4)},
	}
}

func TestSource_BitDepthNormalization(t *testing.T) {
	t.Parallel()

	tests := []struct {
		depth int
		in    int
		want  float32
	}{
		{8, -128, -1},
		{8, 64, 0.5},
		{16, 16384, 0.5},
		{24, -4194304, -0.5},
		{32, 1 << 30, 0.5},
	}

	for _, tt := range tests {
		s := newSource(tt.depth, 1, tt.in)
		buf := make([]float32, 1)
		n, err := s.ReadSamples(buf)
		if n != 1 || (err != nil && err != io.EOF) {
			t.Fatalf("%d bit: ReadSamples() = (%d, %v)", tt.depth, n, err)
		}
		if buf[0] != tt.want {
			t.Errorf("%d bit: %d -> %v, want %v", tt.depth, tt.in, buf[0], tt.want)
		}
	}
}

func TestSource_ReadSamples(t *testing.T) {
	t.Parallel()

	s := newSource(16, 2, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10)
	buf := make([]float32, 8)

	n, err := s.ReadSamples(buf)
	if n != 8 || err != nil {
		t.Fatalf("first read = (%d, %v), want (8, nil)", n, err)
	}
	if cap(s.intBuf.Data) < 8 {
		t.Errorf("int buffer not grown: cap %d", cap(s.intBuf.Data))
	}

	n, err = s.ReadSamples(buf)
	if n != 2 || err != io.EOF {
		t.Errorf("short read = (%d, %v), want (2, EOF)", n, err)
	}

	n, err = s.ReadSamples(buf)
	if n != 0 || err != io.EOF {
		t.Errorf("read at end = (%d, %v), want (0, EOF)", n, err)
	}
}

func TestSource_Error(t *testing.T) {
	t.Parallel()

	bad := errors.New("truncated SSND chunk")
	s := newSource(16, 1)
	s.dec = &mockAiffReader{err: bad}

	if _, err := s.ReadSamples(make([]float32, 4)); !errors.Is(err, bad) {
		t.Errorf("ReadSamples() error = %v, want %v", err, bad)
	}
}

func TestDecoder_InvalidInput(t *testing.T) {
	t.Parallel()

	_, err := (Decoder{}).Decode(io.MultiReader(bytes.NewReader([]byte("FORM....not aiff"))))
	if !errors.Is(err, ErrNotAiffFile) {
		t.Errorf("Decode() error = %v, want %v", err, ErrNotAiffFile)
	}
}
