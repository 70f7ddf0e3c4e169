// SPDX-License-Identifier: EPL-2.0

package wave

import "math"

const twoPi = 2 * math.Pi

// Phase accumulates a waveform angle in [0, 2π). It is owned by a single
// generator and is not safe for concurrent use.
type Phase struct {
	value float64
	comp  float64 // low-order bits lost by the last additions
}

// NewPhase starts an accumulator at the given angle, reduced into [0, 2π).
func NewPhase(start float64) *Phase {
	return &Phase{value: normalize(start)}
}

func (p *Phase) Value() float64 { return p.value }

func (p *Phase) Reset() { p.value, p.comp = 0, 0 }

// Advance adds step, which must already be in [0, 2π), and wraps once.
// The sum is compensated so rounding does not build up over long runs;
// the wrap itself is exact since the pre-wrap value is below 4π.
func (p *Phase) Advance(step float64) {
	y := step - p.comp
	t := p.value + y
	p.comp = (t - p.value) - y
	p.value = t

	switch {
	case p.value >= twoPi:
		p.value -= twoPi
	case p.value < 0:
		p.value = 0
		p.comp = 0
	}
}

// Step is the per-sample increment 2π·freq/rate reduced into [0, 2π).
// Frequencies above the rate would otherwise need more than one wrap.
func Step(freq float64, rate int) float64 {
	return normalize(twoPi * freq / float64(rate))
}

func normalize(x float64) float64 {
	x = math.Mod(x, twoPi)
	if x < 0 {
		x += twoPi
	}
	if x >= twoPi {
		x = 0
	}
	return x
}
