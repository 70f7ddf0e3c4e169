// SPDX-License-Identifier: EPL-2.0

// Package audiotest provides synthetic audio.Source implementations for
// tests.
package audiotest

import (
	"errors"
	"io"
	"math"
)

// MockSource generates frames from a waveform function. It satisfies
// audio.Source without importing it.
type MockSource struct {
	sampleRate int
	channels   int
	frames     int // total frames to generate
	generated  int
	waveform   func(frame, channel int) float32

	// Chunk caps the frames returned per read, 0 for no cap.
	Chunk int
	// FailAt makes the read that would pass frame FailAt return Err.
	FailAt int
	Err    error

	Closed bool
}

// NewMockSource creates a source of frames frames. waveform yields the
// value of a frame's channel.
func NewMockSource(sampleRate, channels, frames int, waveform func(frame, channel int) float32) *MockSource {
	return &MockSource{
		sampleRate: sampleRate,
		channels:   channels,
		frames:     frames,
		waveform:   waveform,
		FailAt:     -1,
	}
}

func NewSilentSource(sampleRate, channels, frames int) *MockSource {
	return NewConstantSource(sampleRate, channels, frames, 0)
}

// NewSineSource yields the same sine on every channel.
func NewSineSource(sampleRate, channels, frames int, frequency float64) *MockSource {
	return NewMockSource(sampleRate, channels, frames, func(frame, _ int) float32 {
		t := float64(frame) / float64(sampleRate)
		return float32(math.Sin(2 * math.Pi * frequency * t))
	})
}

func NewConstantSource(sampleRate, channels, frames int, value float32) *MockSource {
	return NewMockSource(sampleRate, channels, frames, func(int, int) float32 {
		return value
	})
}

// NewRampSource yields frame/frames on channel 0 and its negation on the
// others.
func NewRampSource(sampleRate, channels, frames int) *MockSource {
	return NewMockSource(sampleRate, channels, frames, func(frame, channel int) float32 {
		v := float32(frame) / float32(frames)
		if channel > 0 {
			return -v
		}
		return v
	})
}

// ErrInjected is the default failure of FailAt.
var ErrInjected = errors.New("injected source failure")

func (m *MockSource) SampleRate() int { return m.sampleRate }
func (m *MockSource) Channels() int   { return m.channels }

func (m *MockSource) Close() error {
	m.Closed = true
	return nil
}

// Reset rewinds the source.
func (m *MockSource) Reset() {
	m.generated = 0
}

// Generated is the number of frames produced so far.
func (m *MockSource) Generated() int { return m.generated }

func (m *MockSource) ReadSamples(dst []float32) (int, error) {
	if m.generated >= m.frames {
		return 0, io.EOF
	}

	n := min(len(dst)/m.channels, m.frames-m.generated)
	if m.Chunk > 0 {
		n = min(n, m.Chunk)
	}
	if m.FailAt >= 0 && m.generated+n > m.FailAt {
		err := m.Err
		if err == nil {
			err = ErrInjected
		}
		return 0, err
	}

	for f := range n {
		for ch := range m.channels {
			dst[f*m.channels+ch] = m.waveform(m.generated+f, ch)
		}
	}
	m.generated += n

	if m.generated >= m.frames {
		return n * m.channels, io.EOF
	}
	return n * m.channels, nil
}
