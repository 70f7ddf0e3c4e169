// SPDX-License-Identifier: EPL-2.0

package sample

import "errors"

var (
	ErrUnknownFormat     = errors.New("unknown sample format")
	ErrUnsupportedWidth  = errors.New("unsupported sample bit width")
	ErrPhysicalTooNarrow = errors.New("physical width smaller than bit width")
	ErrFloatWidth        = errors.New("float samples must be 32 bits wide")
	ErrInvalidChannels   = errors.New("channel count must be positive")
)
