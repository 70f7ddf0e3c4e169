// SPDX-License-Identifier: EPL-2.0

package config

import (
	"cmp"
	"fmt"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ik5/funcgen"
	"github.com/ik5/funcgen/device"
	"github.com/ik5/funcgen/sample"
	"github.com/ik5/funcgen/wave"
)

// PlayerFlags defines the player's command line, letters included.
func PlayerFlags(fs *pflag.FlagSet) {
	fs.StringP("device", "D", "default", "playback device")
	fs.StringP("waveform", "w", "s", "waveform: s (sine), t (triangle), q (square), c (constant)")
	fs.IntP("rate", "r", 192000, "stream rate in Hz")
	fs.StringP("type", "t", "c", "c for a continuous signal, l for one limited to --duration")
	fs.IntP("channels", "c", 2, "count of channels in stream")
	fs.Float64P("frequency", "f", 700, "wave frequency in Hz")
	fs.Float64P("duration", "d", 2, "duration of a limited signal in seconds")
	fs.Float64P("amplitude", "a", 3.06, "amplitude of the signal in V")
	fs.Float64P("offset", "s", 0, "dc offset of the signal in V")
	fs.IntP("buffer", "b", 500000, "ring buffer size in us")
	fs.IntP("period", "p", 100000, "period size in us")
	fs.StringP("method", "m", "write", "transfer method")
	fs.StringP("format", "o", "S24_LE", "sample format")
	fs.BoolP("verbose", "v", false, "show the negotiated stream parameters")
	fs.BoolP("noresample", "n", false, "do not let the device resample")
	fs.BoolP("pevent", "e", false, "wake on period events")
	fs.String("backend", "malgo", "device backend")
	fs.Int("prefetch", 0, "periods generated ahead of the writer, 0 to generate in line")
}

// Player is the resolved player configuration.
type Player struct {
	Backend  string
	Device   string
	Stream   funcgen.StreamConfig
	Mode     funcgen.Mode
	Duration time.Duration
	Verbose  bool
	Prefetch int

	// as given, before conversion to sample units
	AmplitudeVolts float64
	OffsetVolts    float64
}

func clamp[T cmp.Ordered](v, lo, hi T) T {
	return min(max(v, lo), hi)
}

// Micros clamps a buffer or period size in microseconds to [1ms, 1s].
func Micros(us int) time.Duration {
	d := time.Duration(us) * time.Microsecond
	return clamp(d, funcgen.MinTime, funcgen.MaxTime)
}

// Amplitude converts volts to units of f, clamped to [1, max].
func Amplitude(volts float64, f sample.Format) int64 {
	return clamp(funcgen.VoltsToUnits(volts, f), 1, f.MaxAmplitude())
}

// Offset converts volts to units of f, clamped to [0, max].
func Offset(volts float64, f sample.Format) int64 {
	return clamp(funcgen.VoltsToUnits(volts, f), 0, f.MaxAmplitude())
}

// LoadPlayer resolves and clamps the player section. Out of range numbers
// are clamped; unknown names are errors, as is a waveform that does not
// fit the format.
func LoadPlayer(v *viper.Viper) (Player, error) {
	f, err := sample.ParseFormat(v.GetString("player.format"))
	if err != nil {
		return Player{}, fmt.Errorf("%w: format: %w", ErrInvalidSetting, err)
	}
	kind, err := wave.ParseKind(v.GetString("player.waveform"))
	if err != nil {
		return Player{}, fmt.Errorf("%w: waveform: %w", ErrInvalidSetting, err)
	}
	mode, err := funcgen.ParseMode(v.GetString("player.type"))
	if err != nil {
		return Player{}, fmt.Errorf("%w: type: %w", ErrInvalidSetting, err)
	}
	access, err := device.ParseAccess(v.GetString("player.method"))
	if err != nil {
		return Player{}, fmt.Errorf("%w: method: %w", ErrInvalidSetting, err)
	}

	ampV := v.GetFloat64("player.amplitude")
	offV := v.GetFloat64("player.offset")

	p := Player{
		Backend:        v.GetString("player.backend"),
		Device:         v.GetString("player.device"),
		Mode:           mode,
		Duration:       time.Duration(v.GetFloat64("player.duration") * float64(time.Second)),
		Verbose:        v.GetBool("player.verbose"),
		Prefetch:       max(v.GetInt("player.prefetch"), 0),
		AmplitudeVolts: ampV,
		OffsetVolts:    offV,
		Stream: funcgen.StreamConfig{
			Rate:        clamp(v.GetInt("player.rate"), funcgen.MinRate, funcgen.MaxRate),
			Channels:    clamp(v.GetInt("player.channels"), funcgen.MinChannels, funcgen.MaxChannels),
			Format:      f,
			Kind:        kind,
			Frequency:   clamp(v.GetFloat64("player.frequency"), funcgen.MinFrequency, funcgen.MaxFrequency),
			Amplitude:   Amplitude(ampV, f),
			Offset:      Offset(offV, f),
			BufferTime:  Micros(v.GetInt("player.buffer")),
			PeriodTime:  Micros(v.GetInt("player.period")),
			Resample:    !v.GetBool("player.noresample"),
			PeriodEvent: v.GetBool("player.pevent"),
			Access:      access,
		},
	}

	if mode == funcgen.Limited && p.Duration <= 0 {
		return Player{}, fmt.Errorf("%w: limited playback needs a positive duration", ErrInvalidSetting)
	}
	if err := p.Stream.Validate(); err != nil {
		return Player{}, err
	}
	return p, nil
}
