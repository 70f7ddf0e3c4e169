// SPDX-License-Identifier: EPL-2.0

// Package logging builds the zap logger the commands share.
package logging

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var ErrUnknownLevel = errors.New("unexpected log level")

// Levels are the accepted level names, quietest first.
var Levels = []string{"none", "error", "warn", "info", "debug"}

// ParseLevel maps a level name onto zap. ok is false for "none".
func ParseLevel(name string) (lvl zapcore.Level, ok bool, err error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "none":
		return zapcore.InvalidLevel, false, nil
	case "error":
		return zapcore.ErrorLevel, true, nil
	case "warn":
		return zapcore.WarnLevel, true, nil
	case "info", "":
		return zapcore.InfoLevel, true, nil
	case "debug":
		return zapcore.DebugLevel, true, nil
	}
	return zapcore.InvalidLevel, false, fmt.Errorf("%w: %q (want one of %s)", ErrUnknownLevel, name, strings.Join(Levels, ", "))
}

// New returns a logger at level. With an empty file it writes console
// lines to stderr; otherwise JSON lines to file, truncated on open. The
// returned close func syncs the logger and closes the file.
func New(level, file string) (*zap.Logger, func() error, error) {
	lvl, enabled, err := ParseLevel(level)
	if err != nil {
		return nil, nil, err
	}
	if !enabled {
		return zap.NewNop(), func() error { return nil }, nil
	}

	if file == "" {
		encCfg := zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stderr), lvl)
		logger := zap.New(core)
		return logger, func() error {
			// stderr does not support fsync on every platform
			_ = logger.Sync()
			return nil
		}, nil
	}

	fh, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	core := zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), zapcore.AddSync(fh), lvl)
	logger := zap.New(core, zap.AddCaller())
	return logger, func() error {
		return errors.Join(logger.Sync(), fh.Close())
	}, nil
}
