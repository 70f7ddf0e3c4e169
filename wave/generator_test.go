// SPDX-License-Identifier: EPL-2.0

package wave

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/ik5/funcgen/sample"
)

func sineSignal(f sample.Format) Signal {
	return Signal{Kind: Sine, Frequency: 700, Rate: 48000, Amplitude: 1000, Format: f}
}

func TestFill_ChannelsCarrySameValue(t *testing.T) {
	t.Parallel()

	for _, f := range []sample.Format{sample.S16LE, sample.U16BE, sample.S24LE, sample.S24BE3, sample.S32LE, sample.Float32LE} {
		t.Run(f.Name, func(t *testing.T) {
			t.Parallel()

			buf, err := sample.NewInterleaved(f, 4, 256)
			if err != nil {
				t.Fatal(err)
			}
			gen, err := NewGenerator(sineSignal(f))
			if err != nil {
				t.Fatal(err)
			}
			if err := gen.Fill(buf); err != nil {
				t.Fatalf("Fill() error = %v", err)
			}

			for fr := range buf.Frames {
				first := buf.Slot(fr, 0)
				for c := 1; c < buf.Channels; c++ {
					if !bytes.Equal(buf.Slot(fr, c), first) {
						t.Fatalf("frame %d channel %d = % x, channel 0 = % x", fr, c, buf.Slot(fr, c), first)
					}
				}
			}
		})
	}
}

func TestFill_MatchesShape(t *testing.T) {
	t.Parallel()

	sig := Signal{Kind: Triangle, Frequency: 1000, Rate: 8000, Amplitude: 8000, Offset: 100, Format: sample.S16BE}
	buf, _ := sample.NewInterleaved(sig.Format, 1, 16)
	phase := NewPhase(0)

	if err := Fill(buf.Data, buf.Areas, 0, buf.Frames, phase, sig); err != nil {
		t.Fatalf("Fill() error = %v", err)
	}

	step := Step(sig.Frequency, sig.Rate)
	for i := range buf.Frames {
		want := int64(math.Round(sig.At(normalize(float64(i) * step))))
		if got := sample.Decode(sig.Format, buf.Slot(i, 0)); got != want {
			t.Errorf("frame %d = %d, want %d", i, got, want)
		}
	}
}

func TestFill_QuarterPeriodSine(t *testing.T) {
	t.Parallel()

	sig := Signal{Kind: Sine, Frequency: 1000, Rate: 48000, Amplitude: 1000, Format: sample.S16LE}
	buf, _ := sample.NewInterleaved(sig.Format, 1, 48)
	if err := Fill(buf.Data, buf.Areas, 0, buf.Frames, NewPhase(0), sig); err != nil {
		t.Fatalf("Fill() error = %v", err)
	}

	if got := sample.Decode(sig.Format, buf.Slot(0, 0)); got != 0 {
		t.Errorf("sample 0 = %d, want 0", got)
	}
	// 12 samples are a quarter of the 48-sample period
	if got := sample.Decode(sig.Format, buf.Slot(12, 0)); got < 999 || got > 1001 {
		t.Errorf("sample 12 = %d, want 1000±1", got)
	}
	if got := sample.Decode(sig.Format, buf.Slot(36, 0)); got < -1001 || got > -999 {
		t.Errorf("sample 36 = %d, want -1000±1", got)
	}
}

func TestFill_SquareHalves(t *testing.T) {
	t.Parallel()

	sig := Signal{Kind: Square, Frequency: 1000, Rate: 48000, Amplitude: 500, Format: sample.S16LE}
	buf, _ := sample.NewInterleaved(sig.Format, 1, 48)
	if err := Fill(buf.Data, buf.Areas, 0, buf.Frames, NewPhase(0), sig); err != nil {
		t.Fatalf("Fill() error = %v", err)
	}

	for _, tt := range []struct {
		frame int
		want  int64
	}{
		{0, 500},
		{1, 500}, // just past 0
		{23, 500},
		{25, -500}, // just past π
		{47, -500},
	} {
		if got := sample.Decode(sig.Format, buf.Slot(tt.frame, 0)); got != tt.want {
			t.Errorf("sample %d = %d, want %d", tt.frame, got, tt.want)
		}
	}
}

func TestFill_ContinuesAcrossCalls(t *testing.T) {
	t.Parallel()

	sig := sineSignal(sample.S32LE)
	whole, _ := sample.NewInterleaved(sig.Format, 2, 300)
	if err := Fill(whole.Data, whole.Areas, 0, 300, NewPhase(0), sig); err != nil {
		t.Fatal(err)
	}

	split, _ := sample.NewInterleaved(sig.Format, 2, 300)
	p := NewPhase(0)
	for _, chunk := range [][2]int{{0, 100}, {100, 150}, {250, 50}} {
		if err := Fill(split.Data, split.Areas, chunk[0], chunk[1], p, sig); err != nil {
			t.Fatal(err)
		}
	}

	if !bytes.Equal(whole.Data, split.Data) {
		t.Error("chunked fills differ from a single fill")
	}
}

func TestFill_PaddingUntouched(t *testing.T) {
	t.Parallel()

	sig := Signal{Kind: Constant, Frequency: 50, Rate: 4000, Amplitude: 0x123456, Format: sample.S24LE}
	buf, _ := sample.NewInterleaved(sig.Format, 2, 4)
	for i := range buf.Data {
		buf.Data[i] = 0xaa
	}

	if err := Fill(buf.Data, buf.Areas, 0, 4, NewPhase(0), sig); err != nil {
		t.Fatal(err)
	}
	for fr := range 4 {
		for c := range 2 {
			slot := buf.Slot(fr, c)
			if want := []byte{0x56, 0x34, 0x12, 0xaa}; !bytes.Equal(slot, want) {
				t.Fatalf("slot(%d,%d) = % x, want % x", fr, c, slot, want)
			}
		}
	}
}

func TestFill_FloatFullScale(t *testing.T) {
	t.Parallel()

	f := sample.Float32LE
	sig := Signal{Kind: Constant, Frequency: 50, Rate: 4000, Amplitude: f.MaxAmplitude(), Format: f}
	buf, _ := sample.NewInterleaved(f, 1, 2)

	if err := Fill(buf.Data, buf.Areas, 0, 2, NewPhase(0), sig); err != nil {
		t.Fatal(err)
	}
	if got := sample.DecodeFloat(f, buf.Slot(1, 0)); got != 1.0 {
		t.Errorf("float constant at full scale = %v, want 1.0", got)
	}
}

func TestFill_GeometryErrors(t *testing.T) {
	t.Parallel()

	sig := sineSignal(sample.S16LE)
	data := make([]byte, 64)

	tests := []struct {
		name  string
		areas []sample.ChannelArea
	}{
		{"unaligned first", []sample.ChannelArea{{First: 4, Step: 32}}},
		{"odd step", []sample.ChannelArea{{First: 0, Step: 24}}},
		{"zero step", []sample.ChannelArea{{First: 0, Step: 0}}},
		{"past end", []sample.ChannelArea{{First: 0, Step: 32}, {First: 16, Step: 32}}},
	}
	for _, tt := range tests {
		before := bytes.Clone(data)
		frames := 8
		if tt.name == "past end" {
			frames = 17
		}

		err := Fill(data, tt.areas, 0, frames, NewPhase(0), sig)
		var ge *GeometryError
		if !errors.As(err, &ge) || !errors.Is(err, ErrGeometry) {
			t.Errorf("%s: Fill() error = %v, want *GeometryError", tt.name, err)
		}
		if !bytes.Equal(before, data) {
			t.Errorf("%s: buffer modified despite geometry error", tt.name)
		}
	}
}

func TestFill_MonoEightBitRejected(t *testing.T) {
	t.Parallel()

	buf, _ := sample.NewInterleaved(sample.U8, 1, 8)
	gen, _ := NewGenerator(sineSignal(sample.U8))
	if err := gen.Fill(buf); !errors.Is(err, ErrGeometry) {
		t.Errorf("mono 8-bit Fill() error = %v, want ErrGeometry", err)
	}

	stereo, _ := sample.NewInterleaved(sample.U8, 2, 8)
	if err := gen.Fill(stereo); err != nil {
		t.Errorf("stereo 8-bit Fill() error = %v", err)
	}
}

func TestNewGenerator_Invalid(t *testing.T) {
	t.Parallel()

	bad := []Signal{
		{Kind: Sine, Frequency: 0, Rate: 48000, Format: sample.S16LE},
		{Kind: Sine, Frequency: 700, Rate: 0, Format: sample.S16LE},
		{Kind: Kind(9), Frequency: 700, Rate: 48000, Format: sample.S16LE},
		{Kind: Sine, Frequency: 700, Rate: 48000, Format: sample.Format{Bits: 20, Physical: 3}},
	}
	for i, sig := range bad {
		if _, err := NewGenerator(sig); err == nil {
			t.Errorf("NewGenerator(bad[%d]) succeeded", i)
		}
	}
}

func TestGenerator_FormatMismatch(t *testing.T) {
	t.Parallel()

	gen, _ := NewGenerator(sineSignal(sample.S16LE))
	buf, _ := sample.NewInterleaved(sample.S32LE, 2, 8)
	if err := gen.Fill(buf); !errors.Is(err, ErrInvalidSignal) {
		t.Errorf("Fill() error = %v, want ErrInvalidSignal", err)
	}
}

func BenchmarkGenerator_Fill(b *testing.B) {
	gen, _ := NewGenerator(Signal{Kind: Sine, Frequency: 700, Rate: 192000, Amplitude: 1 << 20, Format: sample.S24LE})
	buf, _ := sample.NewInterleaved(sample.S24LE, 2, 19200)

	b.ReportAllocs()
	for range b.N {
		_ = gen.Fill(buf)
	}
}
