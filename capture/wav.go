// SPDX-License-Identifier: EPL-2.0

package capture

import (
	"fmt"
	"io"
	"os"

	"github.com/ik5/funcgen/formats/wav"
	"github.com/ik5/funcgen/sample"
)

// Interleaved decodes every record back into channels interleaved signed
// samples of format f.
func (b *Buffer) Interleaved(f sample.Format, channels int) ([]int64, error) {
	chans, err := b.Channels(f, channels)
	if err != nil {
		return nil, err
	}

	out := make([]int64, len(b.Records)*channels)
	for i := range b.Records {
		for c := range channels {
			out[i*channels+c] = chans[c][i]
		}
	}
	return out, nil
}

// WriteWAV stores the capture as a WAV file of format f. Every slot is
// written, so lost batches show up as silence at their place in time.
func (b *Buffer) WriteWAV(w io.WriteSeeker, f sample.Format, rate, channels int) error {
	samples, err := b.Interleaved(f, channels)
	if err != nil {
		return err
	}
	if f.IsFloat() {
		// Decode yields the float bit pattern for float formats
		for i, v := range samples {
			samples[i] = int64(uint32(v))
		}
	}

	ww, err := wav.NewFormatWriter(w, f, rate, channels)
	if err != nil {
		return fmt.Errorf("capture wav: %w", err)
	}
	if err := ww.WriteInts(samples); err != nil {
		return fmt.Errorf("capture wav: %w", err)
	}
	return ww.Close()
}

// WriteWAVFile creates path and stores the capture in it as WAV.
func WriteWAVFile(path string, b *Buffer, f sample.Format, rate, channels int) error {
	fh, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating wav file %s: %w", path, err)
	}

	if err := b.WriteWAV(fh, f, rate, channels); err != nil {
		fh.Close()
		return err
	}
	return fh.Close()
}
