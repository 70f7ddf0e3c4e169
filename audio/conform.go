// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"errors"
	"fmt"
	"io"
)

// Conform builds the pipeline that brings src to rate and channels:
// mix down to mono, resample, then duplicate the mono signal to every
// channel. Stages that would not change anything are skipped.
func Conform(src Source, rate, channels int) (Source, error) {
	if rate <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRate, rate)
	}
	if channels <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidChannels, channels)
	}

	var (
		out Source = src
		err error
	)
	if out.Channels() != 1 {
		if out, err = NewRemixer(out, 1); err != nil {
			return nil, err
		}
	}
	if out.SampleRate() != rate {
		out = NewResampler(out, rate)
	}
	if channels != 1 {
		if out, err = NewRemixer(out, channels); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ReadAll drains src in chunks of chunk frames and returns every sample it
// produced. io.EOF ends the stream and is not reported.
func ReadAll(src Source, chunk int) ([]float32, error) {
	buf := make([]float32, max(chunk, 1)*src.Channels())
	var out []float32

	empty := 0
	for {
		n, err := src.ReadSamples(buf)
		out = append(out, buf[:n]...)

		switch {
		case errors.Is(err, io.EOF):
			return out, nil
		case err != nil:
			return out, fmt.Errorf("%w", err)
		case n == 0:
			empty++
			if empty >= maxEmptyReads {
				return out, io.ErrNoProgress
			}
		default:
			empty = 0
		}
	}
}
