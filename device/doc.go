// SPDX-License-Identifier: EPL-2.0

// Package device defines the narrow streaming interface the transfer loop
// drives, the errors a backend reports through it, and a registry of
// backends.
//
// A Device is opened for one direction, negotiated once, then written to or
// read from in whole frames. Backends translate their native conditions to
// the sentinel errors of this package:
//
//	ErrWouldBlock  the call would block; retry immediately
//	ErrUnderrun    playback ran dry; Recover then retry
//	ErrSuspended   the stream was suspended; Recover then retry
//	ErrOverrun     capture overflowed; data of this period is lost
//	ErrDisconnect  the source went away; nothing was read
//
// Anything else is fatal for the session.
//
// Backends live in subpackages: filedev (WAV sink, decoded-file source),
// malgodev (miniaudio, real hardware) and otodev (playback through oto).
package device
