// SPDX-License-Identifier: EPL-2.0

package funcgen

import "errors"

var (
	ErrInvalidConfig     = errors.New("invalid stream configuration")
	ErrAmplitudeOverflow = errors.New("amplitude plus dc offset exceeds the format range")
	ErrUnknownMode       = errors.New("unknown playback mode")
)
