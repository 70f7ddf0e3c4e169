// SPDX-License-Identifier: EPL-2.0

package config

import "errors"

var (
	ErrConfigNotFound   = errors.New("config file not found")
	ErrInvalidSetting   = errors.New("invalid setting")
	ErrUnknownPrecision = errors.New("precision must be 16, 24 or 32")
)
