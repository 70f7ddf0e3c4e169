// SPDX-License-Identifier: EPL-2.0

package sample

import (
	"fmt"
	"sort"
	"strings"
)

// ByteOrder selects where byte i of a value lands inside its physical slot.
type ByteOrder uint8

const (
	LittleEndian ByteOrder = iota
	BigEndian
)

func (o ByteOrder) String() string {
	if o == BigEndian {
		return "big"
	}
	return "little"
}

// Encoding tells whether a slot holds an integer or an IEEE-754 float.
type Encoding uint8

const (
	Integer Encoding = iota
	Float
)

// Format describes how one sample is laid out in memory.
type Format struct {
	Name     string
	Bits     int // significant bits: 8, 16, 24 or 32
	Physical int // slot width in bytes
	Order    ByteOrder
	Unsigned bool
	Encoding Encoding
}

var (
	S8        = Format{Name: "S8", Bits: 8, Physical: 1}
	U8        = Format{Name: "U8", Bits: 8, Physical: 1, Unsigned: true}
	S16LE     = Format{Name: "S16_LE", Bits: 16, Physical: 2}
	S16BE     = Format{Name: "S16_BE", Bits: 16, Physical: 2, Order: BigEndian}
	U16LE     = Format{Name: "U16_LE", Bits: 16, Physical: 2, Unsigned: true}
	U16BE     = Format{Name: "U16_BE", Bits: 16, Physical: 2, Order: BigEndian, Unsigned: true}
	S24LE     = Format{Name: "S24_LE", Bits: 24, Physical: 4}
	S24BE     = Format{Name: "S24_BE", Bits: 24, Physical: 4, Order: BigEndian}
	U24LE     = Format{Name: "U24_LE", Bits: 24, Physical: 4, Unsigned: true}
	U24BE     = Format{Name: "U24_BE", Bits: 24, Physical: 4, Order: BigEndian, Unsigned: true}
	S24LE3    = Format{Name: "S24_3LE", Bits: 24, Physical: 3}
	S24BE3    = Format{Name: "S24_3BE", Bits: 24, Physical: 3, Order: BigEndian}
	U24LE3    = Format{Name: "U24_3LE", Bits: 24, Physical: 3, Unsigned: true}
	U24BE3    = Format{Name: "U24_3BE", Bits: 24, Physical: 3, Order: BigEndian, Unsigned: true}
	S32LE     = Format{Name: "S32_LE", Bits: 32, Physical: 4}
	S32BE     = Format{Name: "S32_BE", Bits: 32, Physical: 4, Order: BigEndian}
	U32LE     = Format{Name: "U32_LE", Bits: 32, Physical: 4, Unsigned: true}
	U32BE     = Format{Name: "U32_BE", Bits: 32, Physical: 4, Order: BigEndian, Unsigned: true}
	Float32LE = Format{Name: "FLOAT_LE", Bits: 32, Physical: 4, Encoding: Float}
	Float32BE = Format{Name: "FLOAT_BE", Bits: 32, Physical: 4, Order: BigEndian, Encoding: Float}
)

var named = map[string]Format{}

func init() {
	for _, f := range []Format{
		S8, U8, S16LE, S16BE, U16LE, U16BE,
		S24LE, S24BE, U24LE, U24BE, S24LE3, S24BE3, U24LE3, U24BE3,
		S32LE, S32BE, U32LE, U32BE, Float32LE, Float32BE,
	} {
		named[f.Name] = f
	}
	named["FLOAT"] = Float32LE
}

// ParseFormat resolves an ALSA-style format name, ignoring case.
func ParseFormat(name string) (Format, error) {
	f, ok := named[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return Format{}, fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
	return f, nil
}

// Names lists every format ParseFormat accepts, sorted.
func Names() []string {
	out := make([]string, 0, len(named))
	for k := range named {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Validate reports whether f can be encoded by this package.
func (f Format) Validate() error {
	switch f.Bits {
	case 8, 16, 24, 32:
	default:
		return fmt.Errorf("%w: %d", ErrUnsupportedWidth, f.Bits)
	}
	if f.Physical*8 < f.Bits || f.Physical > 8 {
		return fmt.Errorf("%w: %d bits in %d bytes", ErrPhysicalTooNarrow, f.Bits, f.Physical)
	}
	if f.Encoding == Float && (f.Bits != 32 || f.Unsigned) {
		return ErrFloatWidth
	}
	return nil
}

// MaxAmplitude is the largest positive value of the signed range, 2^(Bits-1)-1.
func (f Format) MaxAmplitude() int64 {
	return int64(1)<<(f.Bits-1) - 1
}

// MinValue is the most negative value of the signed range.
func (f Format) MinValue() int64 {
	return -(int64(1) << (f.Bits - 1))
}

// IsFloat reports whether samples are IEEE-754 floats.
func (f Format) IsFloat() bool { return f.Encoding == Float }

// FrameBytes is the size of one interleaved frame.
func (f Format) FrameBytes(channels int) int { return f.Physical * channels }

func (f Format) String() string {
	if f.Name != "" {
		return f.Name
	}

	sign := "S"
	if f.Unsigned {
		sign = "U"
	}
	if f.Encoding == Float {
		sign = "FLOAT"
	}
	return fmt.Sprintf("%s%d/%dB/%s", sign, f.Bits, f.Physical, f.Order)
}
