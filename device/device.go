// SPDX-License-Identifier: EPL-2.0

package device

import (
	"fmt"
	"strings"
	"time"

	"github.com/ik5/funcgen/sample"
)

// Direction of a stream.
type Direction uint8

const (
	Playback Direction = iota
	Capture
)

func (d Direction) String() string {
	if d == Capture {
		return "capture"
	}
	return "playback"
}

// Access is the transfer method. Only read/write interleaved transfers are
// implemented.
type Access uint8

const (
	AccessRWInterleaved Access = iota
)

// ParseAccess accepts the method names of the player's -m flag.
func ParseAccess(s string) (Access, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "write", "rw", "rw_interleaved":
		return AccessRWInterleaved, nil
	}
	return 0, fmt.Errorf("%w: access method %q", ErrInvalidRequest, s)
}

// Request is what the caller asks the device for.
type Request struct {
	Direction   Direction
	Rate        int
	Channels    int
	Format      sample.Format
	BufferTime  time.Duration
	PeriodTime  time.Duration
	Resample    bool // allow the device to resample
	PeriodEvent bool // wake on period boundaries
	Access      Access
}

// Validate checks the request before it reaches a backend.
func (r Request) Validate() error {
	if r.Rate <= 0 {
		return fmt.Errorf("%w: rate %d", ErrInvalidRequest, r.Rate)
	}
	if r.Channels <= 0 {
		return fmt.Errorf("%w: channels %d", ErrInvalidRequest, r.Channels)
	}
	if err := r.Format.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if r.PeriodTime <= 0 || r.BufferTime < r.PeriodTime {
		return fmt.Errorf("%w: buffer time %v, period time %v", ErrInvalidRequest, r.BufferTime, r.PeriodTime)
	}
	return nil
}

// PeriodFrames converts the requested period time into frames at rate.
func (r Request) PeriodFrames() int { return DurationFrames(r.PeriodTime, r.Rate) }

// BufferFrames converts the requested buffer time into frames at rate.
func (r Request) BufferFrames() int { return DurationFrames(r.BufferTime, r.Rate) }

// DurationFrames is the number of frames d covers at rate, at least one.
func DurationFrames(d time.Duration, rate int) int {
	n := int(int64(d) * int64(rate) / int64(time.Second))
	return max(n, 1)
}

// FramesDuration is the shortest duration DurationFrames maps back to
// frames at rate.
func FramesDuration(frames, rate int) time.Duration {
	if rate <= 0 {
		return 0
	}
	ns := int64(frames) * int64(time.Second)
	return time.Duration((ns + int64(rate) - 1) / int64(rate))
}

// Params is what the device actually granted. Sizes are in frames.
type Params struct {
	Rate       int
	Channels   int
	Format     sample.Format
	PeriodSize int
	BufferSize int
}

// FrameBytes is the size of one interleaved frame.
func (p Params) FrameBytes() int { return p.Format.FrameBytes(p.Channels) }

// PeriodBytes is the size of one period.
func (p Params) PeriodBytes() int { return p.PeriodSize * p.FrameBytes() }

// Device is a fixed-rate, fixed-channel streaming endpoint.
//
// Write and Read transfer whole interleaved frames and return how many
// were moved. A short count with a nil error is a partial transfer.
type Device interface {
	Negotiate(req Request) (Params, error)
	Write(buf []byte, frames int) (int, error)
	Read(buf []byte, frames int) (int, error)
	Recover(err error) error
	Drain() error
	Close() error
}

// CheckGranted compares what a backend granted with what was requested and
// reports the mismatches the loop cannot tolerate.
func CheckGranted(req Request, got Params) error {
	if got.Rate != req.Rate {
		return &NegotiationError{Param: "rate", Requested: req.Rate, Got: got.Rate}
	}
	if got.Channels != req.Channels {
		return &NegotiationError{Param: "channels", Requested: req.Channels, Got: got.Channels}
	}
	if got.Format != req.Format {
		return &NegotiationError{Param: "format", Requested: req.Format, Got: got.Format}
	}
	if got.PeriodSize <= 0 || got.BufferSize < got.PeriodSize {
		return &NegotiationError{Param: "period size", Requested: req.PeriodFrames(), Got: got.PeriodSize}
	}
	return nil
}
