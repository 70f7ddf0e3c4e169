// SPDX-License-Identifier: EPL-2.0

package wave

import (
	"fmt"
	"math"

	"github.com/ik5/funcgen/sample"
)

// Signal is everything needed to turn a phase into encoded samples.
type Signal struct {
	Kind      Kind
	Frequency float64 // Hz
	Rate      int     // frames per second
	Amplitude int64   // peak, in sample units
	Offset    int64   // dc offset, in sample units
	Format    sample.Format
}

// Validate checks the parameters that would make Fill meaningless.
// Range checks against the format are done by the caller's configuration.
func (s Signal) Validate() error {
	if s.Rate <= 0 {
		return fmt.Errorf("%w: rate %d", ErrInvalidSignal, s.Rate)
	}
	if s.Frequency <= 0 || math.IsNaN(s.Frequency) || math.IsInf(s.Frequency, 0) {
		return fmt.Errorf("%w: frequency %v", ErrInvalidSignal, s.Frequency)
	}
	if s.Kind > Constant {
		return fmt.Errorf("%w: %v", ErrUnknownKind, s.Kind)
	}
	if err := s.Format.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSignal, err)
	}
	return nil
}

// At returns the unencoded value at phase, dc offset included.
func (s Signal) At(phase float64) float64 {
	return s.Kind.Value(phase, float64(s.Amplitude)) + float64(s.Offset)
}

// Fill writes frames samples starting at frame offset into buf through the
// given channel areas, advancing phase once per frame. Every channel gets
// the same value.
//
// Areas must start on a byte boundary, step by a positive multiple of 16
// bits, and stay inside buf; otherwise a *GeometryError is returned and
// nothing is written.
func Fill(buf []byte, areas []sample.ChannelArea, offset, frames int, phase *Phase, sig Signal) error {
	if frames <= 0 {
		return nil
	}
	if len(areas) == 0 {
		return ErrNoChannelAreas
	}
	if err := sig.Validate(); err != nil {
		return err
	}
	if err := checkAreas(len(buf), areas, offset, frames, sig.Format.Physical); err != nil {
		return err
	}

	step := Step(sig.Frequency, sig.Rate)
	f := sig.Format
	var scratch [8]byte
	slot := scratch[:f.Physical]
	maxAmp := float64(f.MaxAmplitude())

	for i := range frames {
		v := sig.At(phase.Value())
		if f.IsFloat() {
			sample.EncodeFloat(f, float32(v/maxAmp), slot)
		} else {
			sample.Encode(f, int64(math.Round(v)), slot)
		}

		frame := offset + i
		for _, a := range areas {
			off := a.ByteOffset(frame)
			// only the significant bytes, padding stays as it was
			writeSignificant(buf[off:off+f.Physical], slot, f)
		}
		phase.Advance(step)
	}

	return nil
}

func writeSignificant(dst, src []byte, f sample.Format) {
	n := f.Bits / 8
	if f.Order == sample.BigEndian {
		copy(dst[f.Physical-n:], src[f.Physical-n:])
		return
	}
	copy(dst[:n], src[:n])
}

func checkAreas(bufLen int, areas []sample.ChannelArea, offset, frames, physical int) error {
	last := offset + frames - 1
	for c, a := range areas {
		if a.First%8 != 0 || a.First < 0 {
			return &GeometryError{Channel: c, First: a.First, Step: a.Step, Reason: "first bit offset not byte aligned"}
		}
		if a.Step <= 0 || a.Step%16 != 0 {
			return &GeometryError{Channel: c, First: a.First, Step: a.Step, Reason: "step not a multiple of 16 bits"}
		}
		if offset < 0 || a.ByteOffset(last)+physical > bufLen {
			return &GeometryError{Channel: c, First: a.First, Step: a.Step, Reason: "area runs past end of buffer"}
		}
	}
	return nil
}

// Generator pairs a Signal with its own phase accumulator.
type Generator struct {
	sig   Signal
	phase *Phase
}

func NewGenerator(sig Signal) (*Generator, error) {
	if err := sig.Validate(); err != nil {
		return nil, err
	}
	return &Generator{sig: sig, phase: NewPhase(0)}, nil
}

func (g *Generator) Signal() Signal { return g.sig }

// Phase returns the angle the next sample will be generated at.
func (g *Generator) Phase() float64 { return g.phase.Value() }

// Fill generates one full buffer.
func (g *Generator) Fill(buf *sample.Interleaved) error {
	if buf.Format != g.sig.Format {
		return fmt.Errorf("%w: buffer format %s, signal format %s", ErrInvalidSignal, buf.Format, g.sig.Format)
	}
	return Fill(buf.Data, buf.Areas, 0, buf.Frames, g.phase, g.sig)
}

// FillAreas generates frames samples at offset through arbitrary areas.
func (g *Generator) FillAreas(buf []byte, areas []sample.ChannelArea, offset, frames int) error {
	return Fill(buf, areas, offset, frames, g.phase, g.sig)
}
