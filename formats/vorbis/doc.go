// SPDX-License-Identifier: EPL-2.0

// Package vorbis decodes Ogg Vorbis through github.com/jfreymuth/oggvorbis.
//
// Vorbis decodes to float32 natively, so samples pass through unchanged,
// interleaved in the stream's channel order.
//
//	f, _ := os.Open("tone.ogg")
//	src, err := vorbis.Decoder{}.Decode(f)
package vorbis
