// SPDX-License-Identifier: EPL-2.0

package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ik5/funcgen"
	"github.com/ik5/funcgen/device"
	"github.com/ik5/funcgen/sample"
)

// ReaderFlags defines the reader's command line.
func ReaderFlags(fs *pflag.FlagSet) {
	fs.StringP("device", "D", "default", "capture device")
	fs.IntP("precision", "P", 24, "bits per sample: 16, 24 or 32")
	fs.IntP("rate", "r", 192000, "stream rate in Hz")
	fs.IntP("channels", "c", 2, "count of channels in stream")
	fs.IntP("loops", "l", 375, "periods to capture")
	fs.Float64P("seconds", "S", 0, "seconds to capture, overrides --loops")
	fs.IntP("period", "p", 512, "period size in frames")
	fs.StringP("output", "O", "data.bin", "flat record file")
	fs.String("wav", "", "also write the capture as a WAV file")
	fs.Bool("abort", false, "stop at the first read fault instead of skipping the period")
	fs.String("backend", "malgo", "device backend")
}

// PrecisionFormat maps the reader's precision onto a capture format.
func PrecisionFormat(bits int) (sample.Format, error) {
	switch bits {
	case 16:
		return sample.S16LE, nil
	case 24:
		return sample.S24LE, nil
	case 32:
		return sample.S32LE, nil
	}
	return sample.Format{}, fmt.Errorf("%w: %d", ErrUnknownPrecision, bits)
}

// Reader is the resolved capture configuration.
type Reader struct {
	Backend      string
	Device       string
	Stream       funcgen.StreamConfig
	PeriodFrames int
	Loops        int
	Duration     time.Duration // wins over Loops when positive
	Output       string
	WAV          string
	Abort        bool
}

func LoadReader(v *viper.Viper) (Reader, error) {
	f, err := PrecisionFormat(v.GetInt("reader.precision"))
	if err != nil {
		return Reader{}, fmt.Errorf("%w: %w", ErrInvalidSetting, err)
	}

	rate := clamp(v.GetInt("reader.rate"), funcgen.MinRate, funcgen.MaxRate)
	period := v.GetInt("reader.period")
	if period <= 0 {
		return Reader{}, fmt.Errorf("%w: period of %d frames", ErrInvalidSetting, period)
	}
	periodTime := device.FramesDuration(period, rate)

	r := Reader{
		Backend:      v.GetString("reader.backend"),
		Device:       v.GetString("reader.device"),
		PeriodFrames: period,
		Loops:        v.GetInt("reader.loops"),
		Duration:     time.Duration(v.GetFloat64("reader.seconds") * float64(time.Second)),
		Output:       v.GetString("reader.output"),
		WAV:          v.GetString("reader.wav"),
		Abort:        v.GetBool("reader.abort"),
		Stream: funcgen.StreamConfig{
			Rate:       rate,
			Channels:   clamp(v.GetInt("reader.channels"), funcgen.MinChannels, funcgen.MaxChannels),
			Format:     f,
			PeriodTime: periodTime,
			BufferTime: min(4*periodTime, funcgen.MaxTime),
			Resample:   true,
			Access:     device.AccessRWInterleaved,
		},
	}

	if r.Duration <= 0 && r.Loops <= 0 {
		return Reader{}, fmt.Errorf("%w: nothing to capture, set loops or seconds", ErrInvalidSetting)
	}
	if r.Output == "" {
		return Reader{}, fmt.Errorf("%w: empty output path", ErrInvalidSetting)
	}
	if err := r.Stream.ValidateStream(); err != nil {
		return Reader{}, err
	}
	return r, nil
}
