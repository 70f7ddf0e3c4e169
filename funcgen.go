// SPDX-License-Identifier: EPL-2.0

package funcgen

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ik5/funcgen/device"
	"github.com/ik5/funcgen/sample"
	"github.com/ik5/funcgen/wave"
)

// Stream limits accepted by the instrument.
const (
	MinRate      = 4000
	MaxRate      = 196000
	MinChannels  = 1
	MaxChannels  = 1024
	MinFrequency = 50.0
	MaxFrequency = 5000.0
	MinTime      = time.Millisecond // buffer and period
	MaxTime      = time.Second
)

// FullScaleVolts is the output voltage of a full scale sample.
const FullScaleVolts = 3.06

// Mode selects how long playback runs.
type Mode uint8

const (
	Continuous Mode = iota // until cancelled
	Limited                // for the configured duration, then drain
)

func (m Mode) String() string {
	if m == Limited {
		return "limited"
	}
	return "continuous"
}

// ParseMode accepts the single letter forms ("c", "l") and the full names.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "c", "continuous", "cont":
		return Continuous, nil
	case "l", "limited", "lim":
		return Limited, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// StreamConfig is everything one playback or capture session needs.
// Amplitude and Offset are in sample units of Format.
type StreamConfig struct {
	Rate        int
	Channels    int
	Format      sample.Format
	Kind        wave.Kind
	Frequency   float64
	Amplitude   int64
	Offset      int64
	BufferTime  time.Duration
	PeriodTime  time.Duration
	Resample    bool
	PeriodEvent bool
	Access      device.Access
}

// ValidateStream checks what the device sees: rate, channels, format and
// buffer geometry.
func (c StreamConfig) ValidateStream() error {
	if err := c.Format.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	switch {
	case c.Rate < MinRate || c.Rate > MaxRate:
		return fmt.Errorf("%w: rate %d outside [%d, %d]", ErrInvalidConfig, c.Rate, MinRate, MaxRate)
	case c.Channels < MinChannels || c.Channels > MaxChannels:
		return fmt.Errorf("%w: channels %d outside [%d, %d]", ErrInvalidConfig, c.Channels, MinChannels, MaxChannels)
	case c.PeriodTime < MinTime || c.BufferTime > MaxTime || c.BufferTime < c.PeriodTime:
		return fmt.Errorf("%w: buffer %v, period %v", ErrInvalidConfig, c.BufferTime, c.PeriodTime)
	}
	return nil
}

// Validate checks the whole playback configuration. The waveform must stay
// inside the format: Amplitude+Offset <= MaxAmplitude.
func (c StreamConfig) Validate() error {
	if err := c.ValidateStream(); err != nil {
		return err
	}
	if c.Frequency < MinFrequency || c.Frequency > MaxFrequency {
		return fmt.Errorf("%w: frequency %v outside [%v, %v]", ErrInvalidConfig, c.Frequency, MinFrequency, MaxFrequency)
	}

	peak := c.Format.MaxAmplitude()
	if c.Amplitude < 1 || c.Amplitude > peak {
		return fmt.Errorf("%w: amplitude %d outside [1, %d]", ErrInvalidConfig, c.Amplitude, peak)
	}
	if c.Offset < 0 {
		return fmt.Errorf("%w: negative dc offset %d", ErrInvalidConfig, c.Offset)
	}
	if c.Amplitude+c.Offset > peak {
		return fmt.Errorf("%w: %d + %d > %d", ErrAmplitudeOverflow, c.Amplitude, c.Offset, peak)
	}
	return nil
}

// Request turns the configuration into a device request.
func (c StreamConfig) Request(dir device.Direction) device.Request {
	return device.Request{
		Direction:   dir,
		Rate:        c.Rate,
		Channels:    c.Channels,
		Format:      c.Format,
		BufferTime:  c.BufferTime,
		PeriodTime:  c.PeriodTime,
		Resample:    c.Resample,
		PeriodEvent: c.PeriodEvent,
		Access:      c.Access,
	}
}

// Signal is the waveform the configuration describes.
func (c StreamConfig) Signal() wave.Signal {
	return wave.Signal{
		Kind:      c.Kind,
		Frequency: c.Frequency,
		Rate:      c.Rate,
		Amplitude: c.Amplitude,
		Offset:    c.Offset,
		Format:    c.Format,
	}
}

// VoltsToUnits converts a voltage to sample units of f, truncating toward
// zero: volts/FullScaleVolts*max.
func VoltsToUnits(volts float64, f sample.Format) int64 {
	if math.IsNaN(volts) {
		return 0
	}
	return int64(volts / FullScaleVolts * float64(f.MaxAmplitude()))
}

// UnitsToVolts is the inverse of VoltsToUnits.
func UnitsToVolts(units int64, f sample.Format) float64 {
	return float64(units) * FullScaleVolts / float64(f.MaxAmplitude())
}
