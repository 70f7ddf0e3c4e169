// SPDX-License-Identifier: EPL-2.0

// Package mp3 decodes MPEG-1/2 Layer III through github.com/hajimehoshi/go-mp3.
//
// The decoder always produces 16-bit stereo at the stream's sample rate;
// mono files come out with both channels equal. Samples are normalized to
// float32 in [-1,1].
//
//	f, _ := os.Open("tone.mp3")
//	src, err := mp3.Decoder{}.Decode(f)
package mp3
