// SPDX-License-Identifier: EPL-2.0

package mp3

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"
)

// mockMP3Reader serves 16-bit little-endian PCM, at most chunk bytes per
// read when chunk > 0.
type mockMP3Reader struct {
	sampleRate int
	data       []byte
	chunk      int
	err        error
}

func newMockReader(rate int, samples ...int16) *mockMP3Reader {
	data := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(data[2*i:], uint16(s))
	}
	return &mockMP3Reader{sampleRate: rate, data: data}
}

func (m *mockMP3Reader) SampleRate() int { return m.sampleRate }

func (m *mockMP3Reader) Read(buf []byte) (int, error) {
	if m.err != nil {
		return 0, m.err
	}
	if len(m.data) == 0 {
		return 0, io.EOF
	}
	n := len(buf)
	if m.chunk > 0 {
		n = min(n, m.chunk)
	}
	n = copy(buf[:n], m.data)
	m.data = m.data[n:]
	if len(m.data) == 0 {
		return n, io.EOF
	}
	return n, nil
}

func readAll(t *testing.T, s *source, size int) []float32 {
	t.Helper()

	var out []float32
	buf := make([]float32, size)
	for range 1000 {
		n, err := s.ReadSamples(buf)
		out = append(out, buf[:n]...)
		if err == io.EOF {
			return out
		}
		if err != nil {
			t.Fatalf("ReadSamples() error = %v", err)
		}
	}
	t.Fatal("source never reached EOF")
	return nil
}

func TestSource_ReadSamples(t *testing.T) {
	t.Parallel()

	s := &source{dec: newMockReader(44100, 0, 16384, -16384, -32768), sampleRate: 44100}

	got := readAll(t, s, 16)
	want := []float32{0, 0.5, -0.5, -1}
	if len(got) != len(want) {
		t.Fatalf("got %d samples, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %v, want %v", i, got[i], want[i])
		}
	}
	if s.Channels() != 2 || s.SampleRate() != 44100 {
		t.Errorf("metadata = %d ch %d Hz", s.Channels(), s.SampleRate())
	}
}

func TestSource_OddByteReads(t *testing.T) {
	t.Parallel()

	samples := []int16{1000, -1000, 2000, -2000, 3000, -3000, 4000}
	dec := newMockReader(22050, samples...)
	dec.chunk = 3
	s := &source{dec: dec, sampleRate: 22050}

	got := readAll(t, s, 4)
	if len(got) != len(samples) {
		t.Fatalf("got %d samples, want %d", len(got), len(samples))
	}
	for i, v := range samples {
		if want := float32(v) / 32768; got[i] != want {
			t.Errorf("sample %d = %v, want %v", i, got[i], want)
		}
	}
}

func TestSource_ReadError(t *testing.T) {
	t.Parallel()

	dec := newMockReader(44100, 1, 2)
	dec.err = io.ErrUnexpectedEOF
	s := &source{dec: dec}

	if _, err := s.ReadSamples(make([]float32, 4)); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("ReadSamples() error = %v, want %v", err, io.ErrUnexpectedEOF)
	}
}

func TestSource_EmptyBuffer(t *testing.T) {
	t.Parallel()

	s := &source{dec: newMockReader(44100, 1)}
	if n, err := s.ReadSamples(nil); n != 0 || err != nil {
		t.Errorf("ReadSamples(nil) = (%d, %v), want (0, nil)", n, err)
	}
}

func TestDecoder_InvalidInput(t *testing.T) {
	t.Parallel()

	if _, err := (Decoder{}).Decode(bytes.NewReader([]byte("This is not MP3 data"))); err == nil {
		t.Error("Decode() error = nil, want error for invalid data")
	}
}

func BenchmarkSource_ReadSamples(b *testing.B) {
	samples := make([]int16, 8192)
	buf := make([]float32, 4096)

	b.ReportAllocs()
	for range b.N {
		s := &source{dec: newMockReader(44100, samples...), buf: make([]byte, 8192)}
		for {
			if _, err := s.ReadSamples(buf); err != nil {
				break
			}
		}
	}
}
