// SPDX-License-Identifier: EPL-2.0

package utils

import "math"

// FloatToInt scales x in [-1,1] to [-peak, peak], rounding to nearest.
// Values outside [-1,1] are clamped.
func FloatToInt(x float32, peak int64) int64 {
	if x > 1 {
		x = 1
	} else if x < -1 {
		x = -1
	}

	return int64(math.Round(float64(x) * float64(peak)))
}

// IntToFloat normalizes a signed sample of bitDepth bits to [-1,1).
// Unknown depths are treated as 16 bit.
func IntToFloat(v int, bitDepth int) float32 {
	if bitDepth <= 0 || bitDepth > 32 {
		bitDepth = 16
	}

	return float32(float64(v) / float64(int64(1)<<(bitDepth-1)))
}
