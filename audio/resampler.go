// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"errors"
	"fmt"
	"io"

	"github.com/ik5/funcgen/utils"
)

// maxEmptyReads bounds how many (0, nil) reads a source may return in a row.
const maxEmptyReads = 100

// Resampler streams from src to a target sample rate using cubic
// interpolation. It works on interleaved samples and preserves the channel
// count. When downsampling, incoming frames pass through a one-pole
// low-pass filter first. When the rates already match it reads straight
// through.
type Resampler struct {
	src      Source
	rate     int
	ratio    float64 // source frames per output frame
	channels int

	// hist[0..3] hold frames t-1, t0, t+1, t+2 around the output position.
	hist   [4][]float32
	valid  [4]bool
	primed bool
	pos    float64

	in      []float32
	inPos   int
	inLen   int
	srcDone bool

	lowpass bool
	alpha   float32
	lp      []float32
}

func NewResampler(src Source, dstRate int) *Resampler {
	channels := src.Channels()
	ratio := float64(src.SampleRate()) / float64(dstRate)

	r := &Resampler{
		src:      src,
		rate:     dstRate,
		ratio:    ratio,
		channels: channels,
		in:       make([]float32, 1024*channels),
		lowpass:  ratio > 1,
		alpha:    0.5,
		lp:       make([]float32, channels),
	}
	for i := range r.hist {
		r.hist[i] = make([]float32, channels)
	}
	return r
}

func (r *Resampler) SampleRate() int { return r.rate }
func (r *Resampler) Channels() int   { return r.channels }

// Passthrough reports whether samples are forwarded unchanged.
func (r *Resampler) Passthrough() bool { return r.src.SampleRate() == r.rate }

func (r *Resampler) Close() error {
	if err := r.src.Close(); err != nil {
		return fmt.Errorf("%w", err)
	}
	return nil
}

// readFrame copies the next source frame into dst.
func (r *Resampler) readFrame(dst []float32) error {
	empty := 0
	for r.inPos >= r.inLen {
		if r.srcDone {
			return io.EOF
		}

		n, err := r.src.ReadSamples(r.in)
		n -= n % r.channels
		r.inPos, r.inLen = 0, n

		switch {
		case errors.Is(err, io.EOF):
			r.srcDone = true
		case err != nil:
			return fmt.Errorf("%w", err)
		case n == 0:
			empty++
			if empty >= maxEmptyReads {
				return io.ErrNoProgress
			}
		}
	}

	copy(dst, r.in[r.inPos:r.inPos+r.channels])
	r.inPos += r.channels

	if r.lowpass {
		for c, v := range dst {
			// y[n] = a*x[n] + (1-a)*y[n-1]
			dst[c] = r.alpha*v + (1-r.alpha)*r.lp[c]
			r.lp[c] = dst[c]
		}
	}
	return nil
}

// fill loads hist[i], duplicating the previous frame past the end of the
// source.
func (r *Resampler) fill(i int) error {
	err := r.readFrame(r.hist[i])
	switch {
	case err == nil:
		r.valid[i] = true
	case errors.Is(err, io.EOF):
		r.valid[i] = false
		copy(r.hist[i], r.hist[i-1])
	default:
		return err
	}
	return nil
}

func (r *Resampler) prime() error {
	if r.lowpass {
		// seed the filter with the first frame to avoid a warm-up ramp
		r.lowpass = false
		err := r.readFrame(r.hist[1])
		r.lowpass = true
		if err != nil {
			return err
		}
		copy(r.lp, r.hist[1])
	} else if err := r.readFrame(r.hist[1]); err != nil {
		return err
	}

	r.valid[1] = true
	copy(r.hist[0], r.hist[1])
	r.valid[0] = true

	for i := 2; i < 4; i++ {
		if err := r.fill(i); err != nil {
			return err
		}
	}
	r.primed = true
	return nil
}

func (r *Resampler) advance() error {
	first := r.hist[0]
	copy(r.hist[:], r.hist[1:])
	r.hist[3] = first
	copy(r.valid[:], r.valid[1:])
	return r.fill(3)
}

// ReadSamples produces samples at the target rate. len(dst) must be a
// multiple of the channel count.
func (r *Resampler) ReadSamples(dst []float32) (int, error) {
	if r.Passthrough() {
		return r.src.ReadSamples(dst)
	}
	if len(dst)%r.channels != 0 {
		return 0, ErrInvalidDstSize
	}

	if !r.primed {
		if err := r.prime(); err != nil {
			return 0, err
		}
	}

	frames := len(dst) / r.channels
	written := 0
	for written < frames {
		for r.pos >= 1 {
			r.pos--
			if err := r.advance(); err != nil {
				return written * r.channels, err
			}
		}

		if !r.valid[1] || !r.valid[2] {
			return written * r.channels, io.EOF
		}

		x := float32(r.pos)
		out := dst[written*r.channels : (written+1)*r.channels]
		for c := range out {
			out[c] = utils.CubicInterpolate(r.hist[0][c], r.hist[1][c], r.hist[2][c], r.hist[3][c], x)
		}

		written++
		r.pos += r.ratio
	}

	return written * r.channels, nil
}
