// SPDX-License-Identifier: EPL-2.0

// Package sample describes PCM sample formats and packs single values into
// device-ready bytes.
//
// A Format names a bit width (8, 16, 24 or 32), the physical slot width in
// bytes, the byte order, signedness and whether the payload is an integer or
// an IEEE-754 float. Named formats follow the ALSA vocabulary:
//
//	f, err := sample.ParseFormat("S24_LE") // 24 bits stored in 4 bytes
//	f, err := sample.ParseFormat("S24_3BE") // 24 bits packed in 3 bytes
//
// # Encoding
//
// Encode writes the low Bits of a signed value into a physical slot. Only
// the significant bytes are touched; padding bytes keep whatever the buffer
// held before. Unsigned formats flip the top bit first, which turns the
// signed range into the offset-binary range the hardware expects:
//
//	buf := make([]byte, 2)
//	sample.Encode(sample.S16LE, -2, buf) // buf = fe ff
//	sample.Encode(sample.U16LE, 0, buf)  // buf = 00 80
//
// Values wider than the format are truncated silently. Use Fits or
// Truncate to observe that truncation explicitly.
//
// # Channel Areas
//
// Multi-channel buffers are described by one ChannelArea per channel: the
// bit offset of the first sample and the bit stride between consecutive
// frames. Interleaved builds the common layout where all channels of a
// frame are adjacent.
package sample
