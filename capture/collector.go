// SPDX-License-Identifier: EPL-2.0

// Package capture accumulates captured periods into one preallocated
// buffer of fixed-width records and persists it.
//
// A record holds one frame: the frame's raw bytes read little-endian and
// zero-extended to the record width. A stereo S16 frame becomes a 32-bit
// record, a stereo S24_LE frame a 64-bit one. Batch i always lands at
// record offset i*BatchSize, so a short or failed read leaves the rest of
// its slot at zero and never shifts later batches.
package capture

import (
	"fmt"
)

// RecordWidth is the smallest record width in bits that holds a frame of
// frameBytes bytes.
func RecordWidth(frameBytes int) (int, error) {
	switch {
	case frameBytes <= 0:
		return 0, fmt.Errorf("%w: %d bytes", ErrInvalidLayout, frameBytes)
	case frameBytes <= 2:
		return 16, nil
	case frameBytes <= 4:
		return 32, nil
	case frameBytes <= 8:
		return 64, nil
	}
	return 0, fmt.Errorf("%w: %d bytes", ErrFrameTooWide, frameBytes)
}

// RecordOf packs a frame's bytes little-endian into a record.
func RecordOf(frame []byte) int64 {
	var u uint64
	for i, b := range frame {
		u |= uint64(b) << (8 * i)
	}
	return int64(u)
}

// Buffer is the whole capture: BatchSize*BatchCount records.
type Buffer struct {
	Records    []int64
	Width      int
	BatchSize  int
	BatchCount int
	// Filled holds how many records each batch actually received.
	Filled []int
}

func NewBuffer(width, batchSize, batchCount int) (*Buffer, error) {
	switch width {
	case 16, 32, 64:
	default:
		return nil, fmt.Errorf("%w: %d", ErrInvalidWidth, width)
	}
	if batchSize <= 0 || batchCount <= 0 {
		return nil, fmt.Errorf("%w: size %d, count %d", ErrInvalidLayout, batchSize, batchCount)
	}

	return &Buffer{
		Records:    make([]int64, batchSize*batchCount),
		Width:      width,
		BatchSize:  batchSize,
		BatchCount: batchCount,
		Filled:     make([]int, batchCount),
	}, nil
}

// Slot returns the records reserved for batch i.
func (b *Buffer) Slot(i int) []int64 {
	return b.Records[i*b.BatchSize : (i+1)*b.BatchSize]
}

// Store copies records into the slot of batch i and returns how many were
// kept. Anything beyond BatchSize is dropped.
func (b *Buffer) Store(i int, records []int64) (int, error) {
	if i < 0 || i >= b.BatchCount {
		return 0, fmt.Errorf("%w: %d of %d", ErrBatchOutOfRange, i, b.BatchCount)
	}
	n := copy(b.Slot(i), records)
	b.Filled[i] = n
	return n, nil
}

// Frames is the total number of records actually captured.
func (b *Buffer) Frames() int {
	total := 0
	for _, n := range b.Filled {
		total += n
	}
	return total
}

// ReadFunc reads up to len(dst) records of one batch into dst.
type ReadFunc func(dst []int64) (int, error)

// Collect calls read once per batch, batchCount times, writing each batch
// at its fixed slot. It stops at the first error and returns the buffer
// collected so far with that error; callers that want to skip a bad batch
// return (0, nil) from read instead.
func Collect(read ReadFunc, width, batchSize, batchCount int) (*Buffer, error) {
	buf, err := NewBuffer(width, batchSize, batchCount)
	if err != nil {
		return nil, err
	}

	for i := range batchCount {
		slot := buf.Slot(i)
		n, err := read(slot)
		n = max(0, min(n, batchSize))
		buf.Filled[i] = n
		// a reader may have scribbled past what it reports
		clear(slot[n:])
		if err != nil {
			return buf, fmt.Errorf("batch %d: %w", i, err)
		}
	}

	return buf, nil
}
