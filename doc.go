// SPDX-License-Identifier: EPL-2.0

// Package funcgen turns an audio interface into a function generator and a
// two channel sampler.
//
// Playback synthesizes sine, triangle, square or constant waveforms at a
// given frequency, amplitude and dc offset, encodes them in any linear
// sample format and streams them to a device. Capture reads periods from a
// device into fixed-width records that can be dumped to a flat file or a
// WAV.
//
// # Quick Start
//
//	cfg := funcgen.StreamConfig{
//		Rate:       48000,
//		Channels:   2,
//		Format:     sample.S24LE,
//		Kind:       wave.Sine,
//		Frequency:  700,
//		Amplitude:  funcgen.VoltsToUnits(1.0, sample.S24LE),
//		BufferTime: 500 * time.Millisecond,
//		PeriodTime: 100 * time.Millisecond,
//	}
//	dev, _ := malgodev.New("default", device.Playback, logger)
//	defer dev.Close()
//	stats, err := funcgen.Play(ctx, dev, cfg, funcgen.Limited, 2*time.Second)
//
// # Packages
//
// The engine is layered, leaves first:
//   - sample: sample formats and bit-exact encoding
//   - wave: phase accumulators and waveform synthesis into channel areas
//   - transfer: the write and read loops with underrun and overrun recovery
//   - capture: fixed-slot collection of read batches and the dump formats
//
// Devices live under device/: miniaudio (malgodev), oto (otodev, playback
// only) and audio files (filedev). Files are decoded by formats/* and
// brought to the stream rate and channel count by audio.
//
// The commands under cmd/ wrap these into a player, a reader and an
// instrument daemon speaking a small SCPI dialect over TCP (package scpi).
package funcgen
