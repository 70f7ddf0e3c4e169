// SPDX-License-Identifier: EPL-2.0

package funcgen

import (
	"context"
	"fmt"
	"time"

	"github.com/ik5/funcgen/capture"
	"github.com/ik5/funcgen/device"
	"github.com/ik5/funcgen/transfer"
	"github.com/ik5/funcgen/wave"
)

// Play negotiates dev for cfg and plays its waveform. Continuous mode runs
// until ctx is cancelled; Limited mode plays for d and drains the device.
func Play(ctx context.Context, dev device.Device, cfg StreamConfig, mode Mode, d time.Duration, opts ...transfer.Option) (transfer.Stats, error) {
	if err := cfg.Validate(); err != nil {
		return transfer.Stats{}, err
	}
	gen, err := wave.NewGenerator(cfg.Signal())
	if err != nil {
		return transfer.Stats{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	l := transfer.New(dev, opts...)
	if _, err := l.Negotiate(cfg.Request(device.Playback)); err != nil {
		return transfer.Stats{}, err
	}

	switch mode {
	case Continuous:
		return l.PlayContinuous(ctx, gen)
	case Limited:
		return l.PlayFor(ctx, gen, d)
	}
	return transfer.Stats{}, fmt.Errorf("%w: %d", ErrUnknownMode, mode)
}

// Capture negotiates dev for cfg and reads batches periods. Only the
// stream fields of cfg are used.
func Capture(ctx context.Context, dev device.Device, cfg StreamConfig, batches int, opts ...transfer.Option) (*capture.Buffer, transfer.Stats, error) {
	if err := cfg.ValidateStream(); err != nil {
		return nil, transfer.Stats{}, err
	}

	l := transfer.New(dev, opts...)
	if _, err := l.Negotiate(cfg.Request(device.Capture)); err != nil {
		return nil, transfer.Stats{}, err
	}
	return l.Capture(ctx, batches)
}

// CaptureFor is Capture for as many periods as cover d.
func CaptureFor(ctx context.Context, dev device.Device, cfg StreamConfig, d time.Duration, opts ...transfer.Option) (*capture.Buffer, transfer.Stats, error) {
	if err := cfg.ValidateStream(); err != nil {
		return nil, transfer.Stats{}, err
	}

	l := transfer.New(dev, opts...)
	if _, err := l.Negotiate(cfg.Request(device.Capture)); err != nil {
		return nil, transfer.Stats{}, err
	}
	return l.CaptureFor(ctx, d)
}
