// SPDX-License-Identifier: EPL-2.0

package malgodev

import (
	"fmt"

	"github.com/gen2brain/malgo"

	"github.com/ik5/funcgen/device"
	"github.com/ik5/funcgen/sample"
)

var toMalgo = map[sample.Format]malgo.FormatType{
	sample.U8:        malgo.FormatU8,
	sample.S16LE:     malgo.FormatS16,
	sample.S24LE3:    malgo.FormatS24,
	sample.S32LE:     malgo.FormatS32,
	sample.Float32LE: malgo.FormatF32,
}

// FormatOf maps a sample format onto the miniaudio one. Only native
// little-endian layouts without padding exist there.
func FormatOf(f sample.Format) (malgo.FormatType, error) {
	ft, ok := toMalgo[f]
	if !ok {
		return malgo.FormatUnknown, fmt.Errorf("%w: %s on miniaudio", device.ErrUnsupported, f)
	}
	return ft, nil
}

// SampleFormat is the reverse of FormatOf.
func SampleFormat(ft malgo.FormatType) (sample.Format, error) {
	for f, m := range toMalgo {
		if m == ft {
			return f, nil
		}
	}
	return sample.Format{}, fmt.Errorf("%w: miniaudio format %d", device.ErrUnsupported, ft)
}

// silence is the byte a period of quiet is filled with.
func silence(f sample.Format) byte {
	if f.Unsigned && f.Bits == 8 {
		return 0x80
	}
	return 0
}
