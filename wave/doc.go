// SPDX-License-Identifier: EPL-2.0

// Package wave synthesizes periodic test signals straight into device
// buffers.
//
// A Generator owns a phase accumulator and a Signal (shape, frequency,
// amplitude, dc offset, sample format). Each Fill call continues exactly
// where the previous one stopped, so consecutive periods join without a
// discontinuity:
//
//	gen, err := wave.NewGenerator(wave.Signal{
//	    Kind:      wave.Sine,
//	    Frequency: 700,
//	    Rate:      192000,
//	    Amplitude: 1 << 20,
//	    Format:    sample.S24LE,
//	})
//	buf, _ := sample.NewInterleaved(sample.S24LE, 2, 1024)
//	err = gen.Fill(buf)
//
// Every channel of a frame receives the same value.
//
// # Shapes
//
// For phase φ in [0, 2π) and amplitude A:
//   - Sine: A·sin φ
//   - Triangle: asin(sin φ)·2A/π
//   - Square: +A on the first half cycle, -A on the second
//   - Constant: A
//
// The dc offset is added afterwards. Integer formats round to the nearest
// integer; float formats receive the value scaled by the format's maximum
// amplitude so that full scale maps to ±1.0.
package wave
