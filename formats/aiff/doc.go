// SPDX-License-Identifier: EPL-2.0

// Package aiff decodes AIFF files through github.com/go-audio/aiff.
//
// Signed PCM at 8, 16, 24 and 32 bits is supported, any rate and channel
// count. Samples are normalized to float32 in [-1,1]:
//
//	f, _ := os.Open("sweep.aiff")
//	src, err := aiff.Decoder{}.Decode(f)
//	buf := make([]float32, 4096)
//	n, err := src.ReadSamples(buf)
//
// go-audio needs to seek, so a reader that is not an io.ReadSeeker is read
// into memory first.
package aiff
