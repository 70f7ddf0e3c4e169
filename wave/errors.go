// SPDX-License-Identifier: EPL-2.0

package wave

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownKind    = errors.New("unknown waveform")
	ErrGeometry       = errors.New("invalid channel area geometry")
	ErrInvalidSignal  = errors.New("invalid signal parameters")
	ErrNoChannelAreas = errors.New("no channel areas")
)

// GeometryError reports a channel area the generator refuses to write
// through. It matches ErrGeometry with errors.Is.
type GeometryError struct {
	Channel int
	First   int
	Step    int
	Reason  string
}

func (e *GeometryError) Error() string {
	return fmt.Sprintf("channel %d area {first=%d step=%d}: %s", e.Channel, e.First, e.Step, e.Reason)
}

func (e *GeometryError) Unwrap() error { return ErrGeometry }
