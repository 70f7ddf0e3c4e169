// SPDX-License-Identifier: EPL-2.0

package transfer

import (
	"errors"
	"fmt"
)

var (
	ErrBadState   = errors.New("transfer loop in wrong state")
	ErrNoDuration = errors.New("bounded session needs a positive duration")
)

// FatalError ends a session. Data already written or collected is kept.
type FatalError struct {
	Op    string // "fill", "write", "read", "recover", "drain"
	Batch int
	Err   error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s failed at batch %d: %v", e.Op, e.Batch, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }
