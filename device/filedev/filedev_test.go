// SPDX-License-Identifier: EPL-2.0

package filedev_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ik5/funcgen/device"
	"github.com/ik5/funcgen/device/filedev"
	"github.com/ik5/funcgen/formats/wav"
	"github.com/ik5/funcgen/sample"
	"github.com/ik5/funcgen/transfer"
	"github.com/ik5/funcgen/wave"
)

func request(dir device.Direction, f sample.Format, rate, channels int) device.Request {
	return device.Request{
		Direction:  dir,
		Rate:       rate,
		Channels:   channels,
		Format:     f,
		BufferTime: 100 * time.Millisecond,
		PeriodTime: 25 * time.Millisecond,
	}
}

func decodeWAV(t *testing.T, path string) ([]float32, int, int) {
	t.Helper()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	src, err := wav.Decoder{}.Decode(f)
	require.NoError(t, err)

	var out []float32
	buf := make([]float32, 256*src.Channels())
	for {
		n, err := src.ReadSamples(buf)
		out = append(out, buf[:n]...)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
	}
	return out, src.SampleRate(), src.Channels()
}

func openDevice(t *testing.T, path string, dir device.Direction, opts ...filedev.Option) *filedev.Device {
	t.Helper()

	d, err := filedev.New(path, dir, zaptest.NewLogger(t), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

func TestPlayback_WritesWAV(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.wav")
	d := openDevice(t, path, device.Playback)

	p, err := d.Negotiate(request(device.Playback, sample.S16LE, 8000, 2))
	require.NoError(t, err)
	assert.Equal(t, 200, p.PeriodSize)
	assert.Equal(t, 800, p.BufferSize)

	buf := make([]byte, 3*p.FrameBytes())
	for i, v := range []int64{16384, -16384, 0, 8192, -32768, 32767} {
		sample.Encode(sample.S16LE, v, buf[2*i:])
	}

	n, err := d.Write(buf, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.NoError(t, d.Drain())

	got, rate, ch := decodeWAV(t, path)
	assert.Equal(t, 8000, rate)
	assert.Equal(t, 2, ch)
	assert.InDeltaSlice(t, []float32{0.5, -0.5, 0, 0.25, -1, 32767.0 / 32768}, got, 1e-7)
}

func TestPlayback_Float(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "float.wav")
	d := openDevice(t, path, device.Playback)

	_, err := d.Negotiate(request(device.Playback, sample.Float32LE, 44100, 1))
	require.NoError(t, err)

	buf := make([]byte, 8)
	sample.EncodeFloat(sample.Float32LE, 0.75, buf)
	sample.EncodeFloat(sample.Float32LE, -0.125, buf[4:])
	_, err = d.Write(buf, 2)
	require.NoError(t, err)
	require.NoError(t, d.Close())

	got, _, _ := decodeWAV(t, path)
	assert.Equal(t, []float32{0.75, -0.125}, got)
}

func TestPlayback_ThroughLoop(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "tone.wav")
	d := openDevice(t, path, device.Playback)

	l := transfer.New(d, transfer.WithLogger(zaptest.NewLogger(t)))
	req := request(device.Playback, sample.S24LE3, 8000, 2)
	_, err := l.Negotiate(req)
	require.NoError(t, err)

	gen, err := wave.NewGenerator(wave.Signal{
		Kind:      wave.Sine,
		Frequency: 1000,
		Rate:      8000,
		Amplitude: 4194304,
		Format:    sample.S24LE3,
	})
	require.NoError(t, err)

	st, err := l.PlayBatches(context.Background(), gen, 4)
	require.NoError(t, err)
	assert.EqualValues(t, 800, st.Frames)

	got, _, ch := decodeWAV(t, path)
	require.Equal(t, 2, ch)
	require.Len(t, got, 1600)
	// 1 kHz at 8 kHz: quarter period is two frames, peak at frame 2
	assert.InDelta(t, 0.5, got[4], 1e-6)
	assert.Equal(t, got[4], got[5], "channels carry the same signal")
	assert.InDelta(t, 0, got[8], 1e-6)
}

func writeMono16(t *testing.T, rate int, values ...int64) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "in.wav")
	require.NoError(t, wav.WriteFile(path, sample.S16LE, rate, 1, values))
	return path
}

func TestCapture_ConvertsToStreamFormat(t *testing.T) {
	t.Parallel()

	path := writeMono16(t, 16000, 16384, -16384, 0, 32767)
	d := openDevice(t, path, device.Capture)

	p, err := d.Negotiate(request(device.Capture, sample.S32LE, 16000, 2))
	require.NoError(t, err)

	buf := make([]byte, 4*p.FrameBytes())
	n, err := d.Read(buf, 4)
	require.NoError(t, err)
	require.Equal(t, 4, n)

	want := []int64{1073741824, -1073741824, 0, 2147418111}
	for i, w := range want {
		left := sample.Decode(sample.S32LE, buf[i*8:])
		right := sample.Decode(sample.S32LE, buf[i*8+4:])
		assert.Equal(t, w, left, "frame %d left", i)
		assert.Equal(t, w, right, "frame %d right", i)
	}
}

func TestCapture_EndOfFile(t *testing.T) {
	t.Parallel()

	values := make([]int64, 10)
	for i := range values {
		values[i] = int64(i+1) * 1000
	}
	d := openDevice(t, writeMono16(t, 8000, values...), device.Capture)

	p, err := d.Negotiate(request(device.Capture, sample.S16LE, 8000, 1))
	require.NoError(t, err)
	buf := make([]byte, 8*p.FrameBytes())

	n, err := d.Read(buf, 8)
	require.NoError(t, err)
	assert.Equal(t, 8, n)

	n, err = d.Read(buf, 8)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "short read at the end of the file")
	assert.EqualValues(t, 10000, sample.Decode(sample.S16LE, buf[2:]))

	_, err = d.Read(buf, 8)
	assert.ErrorIs(t, err, device.ErrDisconnect)
	_, err = d.Read(buf, 8)
	assert.ErrorIs(t, err, device.ErrDisconnect)
}

func TestCapture_Loop(t *testing.T) {
	t.Parallel()

	d := openDevice(t, writeMono16(t, 8000, 100, 200, 300), device.Capture, filedev.WithLoop())

	p, err := d.Negotiate(request(device.Capture, sample.S16LE, 8000, 1))
	require.NoError(t, err)

	buf := make([]byte, 7*p.FrameBytes())
	n, err := d.Read(buf, 7)
	require.NoError(t, err)
	require.Equal(t, 7, n)

	for i, want := range []int64{100, 200, 300, 100, 200, 300, 100} {
		assert.EqualValues(t, want, sample.Decode(sample.S16LE, buf[2*i:]), "frame %d", i)
	}
}

func TestCapture_ThroughLoopKeepsSlots(t *testing.T) {
	t.Parallel()

	values := make([]int64, 1000)
	for i := range values {
		values[i] = 1000
	}
	d := openDevice(t, writeMono16(t, 8000, values...), device.Capture)

	l := transfer.New(d, transfer.WithLogger(zaptest.NewLogger(t)))
	req := request(device.Capture, sample.S16LE, 8000, 2)
	req.PeriodTime = 64 * time.Millisecond // 512 frames
	req.BufferTime = 256 * time.Millisecond
	_, err := l.Negotiate(req)
	require.NoError(t, err)

	buf, st, err := l.Capture(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 1, st.ReadFaults)
	assert.Equal(t, []int{512, 488, 0}, buf.Filled)
	assert.Equal(t, 1000, buf.Frames())
}

func TestDevice_Errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	missing := openDevice(t, filepath.Join(dir, "missing.wav"), device.Capture)
	_, err := missing.Negotiate(request(device.Capture, sample.S16LE, 8000, 1))
	var ne *device.NegotiationError
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, "file", ne.Param)
	assert.ErrorIs(t, err, os.ErrNotExist)

	out := openDevice(t, filepath.Join(dir, "out.wav"), device.Playback)
	_, err = out.Write(make([]byte, 4), 1)
	assert.ErrorIs(t, err, device.ErrNotNegotiated)

	_, err = out.Negotiate(request(device.Capture, sample.S16LE, 8000, 1))
	assert.ErrorAs(t, err, &ne)

	_, err = out.Negotiate(request(device.Playback, sample.S16LE, 8000, 1))
	require.NoError(t, err)
	_, err = out.Read(make([]byte, 4), 1)
	assert.ErrorIs(t, err, device.ErrUnsupported)
	assert.NoError(t, out.Recover(device.ErrUnderrun))

	require.NoError(t, out.Close())
	_, err = out.Write(make([]byte, 4), 1)
	assert.ErrorIs(t, err, device.ErrClosed)
	assert.NoError(t, out.Close(), "second close is a no-op")

	_, err = filedev.New("", device.Playback, nil)
	assert.ErrorIs(t, err, device.ErrInvalidRequest)
}

func TestOpener_Registry(t *testing.T) {
	t.Parallel()

	reg := device.NewRegistry()
	reg.Register("file", filedev.Opener(filedev.WithPacing()))

	path := filepath.Join(t.TempDir(), "paced.wav")
	dev, err := reg.Open("file", path, device.Playback, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer dev.Close()

	p, err := dev.Negotiate(request(device.Playback, sample.U8, 8000, 1))
	require.NoError(t, err)

	start := time.Now()
	buf := make([]byte, 400*p.FrameBytes())
	_, err = dev.Write(buf, 400) // 50ms of audio
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 45*time.Millisecond)
}
