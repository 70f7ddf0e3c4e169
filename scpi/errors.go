// SPDX-License-Identifier: EPL-2.0

package scpi

import "errors"

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrNotQuery       = errors.New("only queries are supported")
	ErrBadValue       = errors.New("invalid value")
	ErrFrameTooLarge  = errors.New("reply frame too large")
	ErrNoDevice       = errors.New("no device configured")
	ErrTooLong        = errors.New("command too long")
)
