// SPDX-License-Identifier: EPL-2.0

package sample

import "fmt"

// ChannelArea locates one channel inside a shared buffer. Both fields are
// in bits: First is the offset of frame 0, Step the distance between frames.
type ChannelArea struct {
	First int
	Step  int
}

// ByteOffset returns the byte offset of the given frame. It assumes First
// and Step are byte aligned.
func (a ChannelArea) ByteOffset(frame int) int {
	return (a.First + frame*a.Step) / 8
}

// InterleavedAreas returns the areas of an interleaved layout where all
// channels of a frame are adjacent.
func InterleavedAreas(f Format, channels int) []ChannelArea {
	areas := make([]ChannelArea, channels)
	step := f.FrameBytes(channels) * 8
	for c := range areas {
		areas[c] = ChannelArea{First: c * f.Physical * 8, Step: step}
	}
	return areas
}

// Interleaved is one period worth of interleaved frames. The transfer loop
// allocates it once per session and reuses it for every batch.
type Interleaved struct {
	Format   Format
	Channels int
	Frames   int
	Data     []byte
	Areas    []ChannelArea
}

func NewInterleaved(f Format, channels, frames int) (*Interleaved, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if channels <= 0 {
		return nil, ErrInvalidChannels
	}
	if frames < 0 {
		return nil, fmt.Errorf("negative frame count %d", frames)
	}

	return &Interleaved{
		Format:   f,
		Channels: channels,
		Frames:   frames,
		Data:     make([]byte, f.FrameBytes(channels)*frames),
		Areas:    InterleavedAreas(f, channels),
	}, nil
}

// FrameBytes is the size of one frame of b.
func (b *Interleaved) FrameBytes() int { return b.Format.FrameBytes(b.Channels) }

// From returns the bytes starting at the given frame, which is what a
// device write of the remaining frames consumes.
func (b *Interleaved) From(frame int) []byte {
	return b.Data[frame*b.FrameBytes():]
}

// Slot returns the physical slot of one channel in one frame.
func (b *Interleaved) Slot(frame, channel int) []byte {
	off := b.Areas[channel].ByteOffset(frame)
	return b.Data[off : off+b.Format.Physical]
}

// Clear zeroes the whole buffer.
func (b *Interleaved) Clear() {
	clear(b.Data)
}
