// SPDX-License-Identifier: EPL-2.0

package capture

import "errors"

var (
	ErrFrameTooWide    = errors.New("frame wider than 8 bytes cannot be stored as one record")
	ErrInvalidWidth    = errors.New("record width must be 16, 32 or 64 bits")
	ErrInvalidLayout   = errors.New("batch size and count must be positive")
	ErrBatchOutOfRange = errors.New("batch index out of range")
	ErrTruncatedFile   = errors.New("record file length is not a multiple of the record width")
)
