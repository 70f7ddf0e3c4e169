// SPDX-License-Identifier: EPL-2.0

// Package devicetest provides a scripted device.Device for tests.
package devicetest

import (
	"sync"

	"github.com/ik5/funcgen/device"
)

// All accepts every frame offered to a Write or Read.
const All = -1

// Result scripts the outcome of one Write or Read call.
type Result struct {
	Frames int // frames transferred, All for everything asked
	Err    error
}

// Mock is a device whose Write/Read outcomes follow a script. Once a
// script is exhausted every call transfers all frames. It records every
// byte written and counts each call.
type Mock struct {
	mu sync.Mutex

	// Grant overrides the negotiated parameters. Zero fields are filled
	// from the request, PeriodSize from the request's period time.
	Grant        device.Params
	NegotiateErr error

	Writes      []Result
	Reads       []Result
	RecoverErrs []error
	DrainErr    error

	// ReadFill produces the bytes of one captured frame. The default
	// repeats the frame index little-endian across the frame.
	ReadFill func(frame int, dst []byte)

	// OnWrite runs before each Write with the 1-based call number.
	OnWrite func(call int)
	OnRead  func(call int)

	Requested  device.Request
	Negotiated device.Params
	Written    []byte

	WriteCalls   int
	ReadCalls    int
	RecoverCalls int
	DrainCalls   int
	Recovered    []error
	Closed       bool

	framesRead int
}

func New() *Mock { return &Mock{} }

func (m *Mock) Negotiate(req device.Request) (device.Params, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Requested = req
	if m.NegotiateErr != nil {
		return device.Params{}, m.NegotiateErr
	}

	p := m.Grant
	if p.Rate == 0 {
		p.Rate = req.Rate
	}
	if p.Channels == 0 {
		p.Channels = req.Channels
	}
	if p.Format.Bits == 0 {
		p.Format = req.Format
	}
	if p.PeriodSize == 0 {
		p.PeriodSize = req.PeriodFrames()
	}
	if p.BufferSize == 0 {
		p.BufferSize = max(req.BufferFrames(), p.PeriodSize)
	}
	m.Negotiated = p
	return p, nil
}

func next(script *[]Result) (Result, bool) {
	if len(*script) == 0 {
		return Result{}, false
	}
	r := (*script)[0]
	*script = (*script)[1:]
	return r, true
}

func (m *Mock) Write(buf []byte, frames int) (int, error) {
	m.mu.Lock()
	m.WriteCalls++
	call, hook := m.WriteCalls, m.OnWrite
	m.mu.Unlock()

	if hook != nil {
		hook(call)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Closed {
		return 0, device.ErrClosed
	}
	n := frames
	if r, ok := next(&m.Writes); ok {
		if r.Err != nil {
			return max(r.Frames, 0), r.Err
		}
		if r.Frames != All {
			n = min(r.Frames, frames)
		}
	}

	fb := m.Negotiated.FrameBytes()
	m.Written = append(m.Written, buf[:n*fb]...)
	return n, nil
}

func (m *Mock) Read(buf []byte, frames int) (int, error) {
	m.mu.Lock()
	m.ReadCalls++
	call, hook := m.ReadCalls, m.OnRead
	m.mu.Unlock()

	if hook != nil {
		hook(call)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Closed {
		return 0, device.ErrClosed
	}
	n := frames
	if r, ok := next(&m.Reads); ok {
		if r.Err != nil {
			return max(r.Frames, 0), r.Err
		}
		if r.Frames != All {
			n = min(r.Frames, frames)
		}
	}

	fb := m.Negotiated.FrameBytes()
	for i := range n {
		frame := buf[i*fb : (i+1)*fb]
		if m.ReadFill != nil {
			m.ReadFill(m.framesRead, frame)
		} else {
			fillIndex(m.framesRead, frame)
		}
		m.framesRead++
	}
	return n, nil
}

func fillIndex(frame int, dst []byte) {
	for i := range dst {
		dst[i] = byte(frame >> (8 * (i % 4)))
	}
}

func (m *Mock) Recover(err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.RecoverCalls++
	m.Recovered = append(m.Recovered, err)
	if len(m.RecoverErrs) == 0 {
		return nil
	}
	e := m.RecoverErrs[0]
	m.RecoverErrs = m.RecoverErrs[1:]
	return e
}

func (m *Mock) Drain() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.DrainCalls++
	return m.DrainErr
}

func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Closed = true
	return nil
}

// WrittenFrames is the number of whole frames accepted so far.
func (m *Mock) WrittenFrames() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	fb := m.Negotiated.FrameBytes()
	if fb == 0 {
		return 0
	}
	return len(m.Written) / fb
}
