// SPDX-License-Identifier: EPL-2.0

package sample

import "math"

// Encode writes the low f.Bits of v into dst in f's byte order. Unsigned
// formats flip the sign bit first. dst must hold at least f.Physical bytes;
// padding bytes are not written.
func Encode(f Format, v int64, dst []byte) {
	u := uint64(v)
	if f.Unsigned {
		u ^= 1 << (f.Bits - 1)
	}
	put(f, u, dst)
}

// EncodeFloat writes the IEEE-754 bit pattern of x. No bias is applied.
func EncodeFloat(f Format, x float32, dst []byte) {
	put(f, uint64(math.Float32bits(x)), dst)
}

// Decode is the inverse of Encode for values that fit the format.
func Decode(f Format, src []byte) int64 {
	u := Raw(f, src)
	if f.Unsigned {
		u ^= 1 << (f.Bits - 1)
	}
	shift := 64 - f.Bits
	return int64(u<<shift) >> shift
}

// DecodeFloat reads a float slot written by EncodeFloat.
func DecodeFloat(f Format, src []byte) float32 {
	return math.Float32frombits(uint32(Raw(f, src)))
}

// Raw returns the significant bytes of a slot as they are stored, without
// bias removal or sign extension.
func Raw(f Format, src []byte) uint64 {
	var u uint64
	n := f.Bits / 8
	for i := range n {
		var b byte
		if f.Order == BigEndian {
			b = src[f.Physical-1-i]
		} else {
			b = src[i]
		}
		u |= uint64(b) << (8 * i)
	}
	return u
}

// Truncate returns what Decode(Encode(v)) yields: v reduced to the low
// f.Bits and sign-extended.
func Truncate(f Format, v int64) int64 {
	shift := 64 - f.Bits
	return (v << shift) >> shift
}

// Fits reports whether v survives Encode without truncation.
func Fits(f Format, v int64) bool {
	return v >= f.MinValue() && v <= f.MaxAmplitude()
}

func put(f Format, u uint64, dst []byte) {
	n := f.Bits / 8
	for i := range n {
		b := byte(u >> (8 * i))
		if f.Order == BigEndian {
			dst[f.Physical-1-i] = b
		} else {
			dst[i] = b
		}
	}
}
