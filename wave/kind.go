// SPDX-License-Identifier: EPL-2.0

package wave

import (
	"fmt"
	"math"
	"strings"
)

// Kind is a periodic shape.
type Kind uint8

const (
	Sine Kind = iota
	Triangle
	Square
	Constant
)

var kindNames = [...]string{"sine", "triangle", "square", "constant"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// SCPI returns the short mnemonic used by the instrument protocol.
func (k Kind) SCPI() string {
	switch k {
	case Triangle:
		return "TRIA"
	case Square:
		return "SQUA"
	case Constant:
		return "CONST"
	default:
		return "SIN"
	}
}

// ParseKind accepts the single-letter CLI codes (s, t, q, c), the SCPI
// mnemonics (SIN, TRIA, SQUA, CONST) and the full names.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "s", "sin", "sine":
		return Sine, nil
	case "t", "tria", "triangle", "triangular":
		return Triangle, nil
	case "q", "squa", "square":
		return Square, nil
	case "c", "const", "constant", "dc":
		return Constant, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Shape evaluates the unit-amplitude waveform at phase, which must be in
// [0, 2π).
func (k Kind) Shape(phase float64) float64 {
	switch k {
	case Triangle:
		return math.Asin(math.Sin(phase)) * 2 / math.Pi
	case Square:
		if phase < math.Pi {
			return 1
		}
		return -1
	case Constant:
		return 1
	default:
		return math.Sin(phase)
	}
}

// Value is Shape scaled by amp.
func (k Kind) Value(phase, amp float64) float64 {
	return k.Shape(phase) * amp
}
