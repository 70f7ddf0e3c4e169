// SPDX-License-Identifier: EPL-2.0

// Package wav reads and writes WAV files through github.com/go-audio/wav.
//
// Decoder accepts PCM at 8, 16, 24 and 32 bits and 32-bit IEEE float, any
// rate and channel count, and yields an audio.Source of float32 samples in
// [-1,1]:
//
//	f, _ := os.Open("tone.wav")
//	src, err := wav.Decoder{}.Decode(f)
//
// Writer encodes interleaved frames. NewFormatWriter picks the encoding
// for a sample.Format, so a capture or a playback stream can be stored as
// is:
//
//	w, _ := wav.NewFormatWriter(f, sample.S24LE, 48000, 2)
//	w.WriteInts(frames)
//	w.Close()
//
// The target must be an io.WriteSeeker: the header sizes are patched on
// Close.
package wav
