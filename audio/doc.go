// SPDX-License-Identifier: EPL-2.0

// Package audio provides the float32 stream plumbing used to turn decoded
// files into device-ready signals.
//
// A Source yields interleaved float32 samples in [-1,1]. Decoders in the
// formats packages produce Sources; Resampler and Remixer wrap them:
//
//	src, _ := registry.Decode("tone.wav", f)
//	out, _ := audio.Conform(src, 48000, 2)
//	buf := make([]float32, 4096)
//	n, err := out.ReadSamples(buf)
//
// Resampler changes the rate with Catmull-Rom cubic interpolation and a
// one-pole low-pass when downsampling. Remixer averages every frame to one
// value and copies it to each output channel. Conform chains both.
//
// Sources return io.EOF when the stream is finished, possibly together
// with the last samples:
//
//	for {
//	    n, err := src.ReadSamples(buf)
//	    process(buf[:n])
//	    if err == io.EOF {
//	        break
//	    }
//	    if err != nil {
//	        return err
//	    }
//	}
package audio
