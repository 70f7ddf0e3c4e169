// SPDX-License-Identifier: EPL-2.0

package capture

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/ik5/funcgen/sample"
)

// Bytes serializes every record as a little-endian signed integer of
// b.Width bits. There is no header.
func (b *Buffer) Bytes() []byte {
	size := b.Width / 8
	out := make([]byte, len(b.Records)*size)
	for i, r := range b.Records {
		dst := out[i*size:]
		switch b.Width {
		case 16:
			binary.LittleEndian.PutUint16(dst, uint16(r))
		case 32:
			binary.LittleEndian.PutUint32(dst, uint32(r))
		default:
			binary.LittleEndian.PutUint64(dst, uint64(r))
		}
	}
	return out
}

// WriteTo writes the whole buffer with a single Write call.
func (b *Buffer) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(b.Bytes())
	if err != nil {
		return int64(n), fmt.Errorf("writing capture records: %w", err)
	}
	return int64(n), nil
}

// WriteFile creates path and stores the buffer in it.
func WriteFile(path string, b *Buffer) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating record file %s: %w", path, err)
	}

	if _, err := b.WriteTo(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadRecords parses a record file written by WriteTo. Values come back
// sign-extended from width bits.
func ReadRecords(r io.Reader, width int) ([]int64, error) {
	switch width {
	case 16, 32, 64:
	default:
		return nil, fmt.Errorf("%w: %d", ErrInvalidWidth, width)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading capture records: %w", err)
	}
	size := width / 8
	if len(data)%size != 0 {
		return nil, fmt.Errorf("%w: %d bytes, %d-bit records", ErrTruncatedFile, len(data), width)
	}

	out := make([]int64, len(data)/size)
	for i := range out {
		src := data[i*size:]
		switch width {
		case 16:
			out[i] = int64(int16(binary.LittleEndian.Uint16(src)))
		case 32:
			out[i] = int64(int32(binary.LittleEndian.Uint32(src)))
		default:
			out[i] = int64(binary.LittleEndian.Uint64(src))
		}
	}
	return out, nil
}

// SplitChannels decodes records holding interleaved frames of format f
// into one slice of sample values per channel.
func SplitChannels(records []int64, f sample.Format, channels int) ([][]int64, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	frameBytes := f.FrameBytes(channels)
	if frameBytes > 8 {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooWide, frameBytes)
	}

	out := make([][]int64, channels)
	for c := range out {
		out[c] = make([]int64, len(records))
	}

	var frame [8]byte
	for i, r := range records {
		binary.LittleEndian.PutUint64(frame[:], uint64(r))
		for c := range channels {
			slot := frame[c*f.Physical : (c+1)*f.Physical]
			out[c][i] = sample.Decode(f, slot)
		}
	}
	return out, nil
}

// Channels decodes the buffer per channel.
func (b *Buffer) Channels(f sample.Format, channels int) ([][]int64, error) {
	return SplitChannels(b.Records, f, channels)
}
