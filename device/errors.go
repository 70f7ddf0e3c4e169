// SPDX-License-Identifier: EPL-2.0

package device

import (
	"errors"
	"fmt"
)

var (
	ErrWouldBlock      = errors.New("device would block")
	ErrUnderrun        = errors.New("device underrun")
	ErrOverrun         = errors.New("device overrun")
	ErrSuspended       = errors.New("device suspended")
	ErrDisconnect      = errors.New("device disconnected")
	ErrClosed          = errors.New("device closed")
	ErrNotNegotiated   = errors.New("device not negotiated")
	ErrUnsupported     = errors.New("operation not supported by device")
	ErrUnknownBackend  = errors.New("unknown device backend")
	ErrInvalidRequest  = errors.New("invalid device request")
	ErrRecoveryFailure = errors.New("device recovery failed")
)

// NegotiationError is returned by Negotiate when the device cannot provide
// a requested parameter.
type NegotiationError struct {
	Param     string
	Requested any
	Got       any
	Err       error
}

func (e *NegotiationError) Error() string {
	msg := fmt.Sprintf("negotiating %s: requested %v", e.Param, e.Requested)
	if e.Got != nil {
		msg += fmt.Sprintf(", got %v", e.Got)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *NegotiationError) Unwrap() error { return e.Err }

// IsRecoverable reports whether err is a stream fault Recover can clear.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrUnderrun) || errors.Is(err, ErrSuspended) || errors.Is(err, ErrOverrun)
}

// IsReadFault reports whether err means a capture period was lost but the
// session may continue.
func IsReadFault(err error) bool {
	return errors.Is(err, ErrDisconnect) || errors.Is(err, ErrOverrun) || errors.Is(err, ErrSuspended)
}
