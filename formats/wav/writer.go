// SPDX-License-Identifier: EPL-2.0

package wav

import (
	"fmt"
	"io"
	"math"
	"os"

	goaudio "github.com/go-audio/audio"
	gowav "github.com/go-audio/wav"

	"github.com/ik5/funcgen/sample"
	"github.com/ik5/funcgen/utils"
)

// Writer streams interleaved frames into a WAV file. Close must be called
// for the header sizes to be valid.
type Writer struct {
	enc      *gowav.Encoder
	buf      *goaudio.IntBuffer
	bitDepth int
	float    bool
	channels int
	frames   int
}

// NewWriter starts a PCM WAV of bitDepth (8, 16, 24 or 32) bits, or a 32-bit
// IEEE float WAV when float is set.
func NewWriter(w io.WriteSeeker, rate, bitDepth, channels int, float bool) (*Writer, error) {
	if rate <= 0 || channels <= 0 {
		return nil, fmt.Errorf("%w: rate %d, channels %d", ErrInvalidLayout, rate, channels)
	}

	tag := formatPCM
	switch {
	case float && bitDepth == 32:
		tag = formatFloat
	case float:
		return nil, fmt.Errorf("%w: %d bit float", ErrUnsupportedBitDepth, bitDepth)
	case bitDepth != 8 && bitDepth != 16 && bitDepth != 24 && bitDepth != 32:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedBitDepth, bitDepth)
	}

	return &Writer{
		enc: gowav.NewEncoder(w, rate, bitDepth, channels, tag),
		buf: &goaudio.IntBuffer{
			Format:         &goaudio.Format{NumChannels: channels, SampleRate: rate},
			SourceBitDepth: bitDepth,
		},
		bitDepth: bitDepth,
		float:    float,
		channels: channels,
	}, nil
}

// NewFormatWriter picks the WAV encoding that stores samples of f without
// loss. Unsigned formats other than U8 are stored signed.
func NewFormatWriter(w io.WriteSeeker, f sample.Format, rate, channels int) (*Writer, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return NewWriter(w, rate, f.Bits, channels, f.IsFloat())
}

func (w *Writer) Channels() int { return w.channels }

// Frames is the number of frames written so far.
func (w *Writer) Frames() int { return w.frames }

func (w *Writer) write(n int) error {
	if n%w.channels != 0 {
		return fmt.Errorf("%w: %d samples for %d channels", ErrInvalidLayout, n, w.channels)
	}
	if err := w.enc.Write(w.buf); err != nil {
		return fmt.Errorf("writing wav frames: %w", err)
	}
	w.frames += n / w.channels
	return nil
}

func (w *Writer) grow(n int) []int {
	if cap(w.buf.Data) < n {
		w.buf.Data = make([]int, n)
	}
	w.buf.Data = w.buf.Data[:n]
	return w.buf.Data
}

// WriteInts writes signed integer samples. For 8-bit files the unsigned
// bias is applied here. On a float file the values are taken as raw
// float32 bit patterns.
func (w *Writer) WriteInts(samples []int64) error {
	data := w.grow(len(samples))
	for i, v := range samples {
		if w.bitDepth == 8 && !w.float {
			v += 128
		}
		data[i] = int(v)
	}
	return w.write(len(samples))
}

// WriteFloats writes samples in [-1,1], scaled to the file's bit depth.
func (w *Writer) WriteFloats(samples []float32) error {
	data := w.grow(len(samples))
	peak := int64(1)<<(w.bitDepth-1) - 1
	for i, x := range samples {
		switch {
		case w.float:
			data[i] = int(math.Float32bits(x))
		case w.bitDepth == 8:
			data[i] = int(utils.FloatToInt(x, peak) + 128)
		default:
			data[i] = int(utils.FloatToInt(x, peak))
		}
	}
	return w.write(len(samples))
}

// Close finalizes the header. The underlying writer is not closed.
func (w *Writer) Close() error {
	if w.frames == 0 {
		// the encoder only emits headers alongside data
		if err := w.enc.Write(&goaudio.IntBuffer{Format: w.buf.Format}); err != nil {
			return fmt.Errorf("writing wav header: %w", err)
		}
	}
	if err := w.enc.Close(); err != nil {
		return fmt.Errorf("finalizing wav: %w", err)
	}
	return nil
}

// WriteFile writes interleaved signed samples of format f to path.
func WriteFile(path string, f sample.Format, rate, channels int, samples []int64) (err error) {
	fh, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w", err)
	}
	defer func() {
		if cerr := fh.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	w, err := NewFormatWriter(fh, f, rate, channels)
	if err != nil {
		return err
	}
	if err := w.WriteInts(samples); err != nil {
		return err
	}
	return w.Close()
}
