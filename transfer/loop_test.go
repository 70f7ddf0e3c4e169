// SPDX-License-Identifier: EPL-2.0

package transfer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ik5/funcgen/device"
	"github.com/ik5/funcgen/internal/devicetest"
	"github.com/ik5/funcgen/sample"
	"github.com/ik5/funcgen/wave"
)

func request(rate int, f sample.Format) device.Request {
	return device.Request{
		Direction:  device.Playback,
		Rate:       rate,
		Channels:   2,
		Format:     f,
		BufferTime: 500 * time.Millisecond,
		PeriodTime: 100 * time.Millisecond,
	}
}

func generator(t *testing.T, rate int, f sample.Format) *wave.Generator {
	t.Helper()

	gen, err := wave.NewGenerator(wave.Signal{
		Kind:      wave.Sine,
		Frequency: 700,
		Rate:      rate,
		Amplitude: f.MaxAmplitude() / 2,
		Format:    f,
	})
	require.NoError(t, err)
	return gen
}

// reference generates frames contiguous frames with a fresh generator.
func reference(t *testing.T, rate int, f sample.Format, frames int) []byte {
	t.Helper()

	buf, err := sample.NewInterleaved(f, 2, frames)
	require.NoError(t, err)
	require.NoError(t, generator(t, rate, f).Fill(buf))
	return buf.Data
}

func negotiated(t *testing.T, dev *devicetest.Mock, req device.Request, opts ...Option) *Loop {
	t.Helper()

	opts = append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)
	l := New(dev, opts...)
	_, err := l.Negotiate(req)
	require.NoError(t, err)
	require.Equal(t, Negotiated, l.State())
	return l
}

func TestBatchCount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		d      time.Duration
		rate   int
		period int
		want   int
	}{
		{2 * time.Second, 192000, 19200, 20},
		{time.Second, 48000, 1000, 48},
		{1500 * time.Millisecond, 4000, 400, 15},
		{time.Second, 1000, 300, 4},
		{0, 48000, 1000, 0},
		{time.Second, 48000, 0, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, BatchCount(tt.d, tt.rate, tt.period), "BatchCount(%v, %d, %d)", tt.d, tt.rate, tt.period)
	}
}

func TestNegotiate_RateMismatch(t *testing.T) {
	t.Parallel()

	dev := devicetest.New()
	dev.Grant.Rate = 44100
	l := New(dev)

	_, err := l.Negotiate(request(48000, sample.S16LE))
	var ne *device.NegotiationError
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, "rate", ne.Param)
	assert.Equal(t, Idle, l.State())

	_, err = l.PlayBatches(context.Background(), generator(t, 48000, sample.S16LE), 1)
	assert.ErrorIs(t, err, ErrBadState)
}

func TestNegotiate_DeviceError(t *testing.T) {
	t.Parallel()

	dev := devicetest.New()
	dev.NegotiateErr = &device.NegotiationError{Param: "format", Requested: "S24_LE", Err: device.ErrUnsupported}
	_, err := New(dev).Negotiate(request(48000, sample.S24LE))
	assert.ErrorIs(t, err, device.ErrUnsupported)
	assert.ErrorContains(t, err, "negotiating playback device")

	var ne *device.NegotiationError
	assert.ErrorAs(t, err, &ne)
}

// Bounded playback covers duration·rate frames, then drains once.
func TestPlayFor_Bounded(t *testing.T) {
	t.Parallel()

	dev := devicetest.New()
	var transitions []State
	l := negotiated(t, dev, request(192000, sample.S24LE), WithStateHook(func(_, to State) {
		transitions = append(transitions, to)
	}))

	st, err := l.PlayFor(context.Background(), generator(t, 192000, sample.S24LE), 2*time.Second)
	require.NoError(t, err)

	assert.Equal(t, 20, st.Batches)
	assert.EqualValues(t, 384000, st.Frames)
	assert.Equal(t, 384000, dev.WrittenFrames())
	assert.Equal(t, 1, dev.DrainCalls)
	assert.False(t, st.Stopped)
	assert.Equal(t, Idle, l.State())
	assert.Equal(t, []State{Negotiated, Running, Draining, Idle}, transitions)
}

// Short writes and would-block are resumed without losing or
// duplicating frames.
func TestPlay_ShortWriteAndWouldBlock(t *testing.T) {
	t.Parallel()

	dev := devicetest.New()
	dev.Writes = []devicetest.Result{
		{Frames: 300},
		{Err: device.ErrWouldBlock},
		{Err: device.ErrWouldBlock},
		{Frames: 50},
		{Frames: devicetest.All},
	}
	l := negotiated(t, dev, request(4000, sample.S16LE))

	st, err := l.PlayBatches(context.Background(), generator(t, 4000, sample.S16LE), 3)
	require.NoError(t, err)

	assert.Equal(t, 3, st.Batches)
	assert.EqualValues(t, 2, st.WouldBlock)
	assert.Equal(t, 1200, dev.WrittenFrames())
	assert.Equal(t, reference(t, 4000, sample.S16LE, 1200), dev.Written)
	assert.Equal(t, 7, dev.WriteCalls)
}

// An underrun triggers exactly one recovery and the batch is retried.
func TestPlay_UnderrunRecovered(t *testing.T) {
	t.Parallel()

	dev := devicetest.New()
	dev.Writes = []devicetest.Result{
		{Frames: devicetest.All},
		{Frames: 100},
		{Err: device.ErrUnderrun},
	}
	l := negotiated(t, dev, request(4000, sample.S32LE))

	st, err := l.PlayBatches(context.Background(), generator(t, 4000, sample.S32LE), 3)
	require.NoError(t, err)

	assert.Equal(t, 1, dev.RecoverCalls)
	assert.ErrorIs(t, dev.Recovered[0], device.ErrUnderrun)
	assert.Equal(t, 1, st.Recoveries)
	assert.Equal(t, reference(t, 4000, sample.S32LE, 1200), dev.Written)
	assert.Equal(t, Idle, l.State())
}

func TestPlay_SuspendRecovered(t *testing.T) {
	t.Parallel()

	dev := devicetest.New()
	dev.Writes = []devicetest.Result{{Err: device.ErrSuspended}}
	l := negotiated(t, dev, request(4000, sample.S16LE))

	st, err := l.PlayBatches(context.Background(), generator(t, 4000, sample.S16LE), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Recoveries)
	assert.Equal(t, 400, dev.WrittenFrames())
}

func TestPlay_RecoveryFailureAborts(t *testing.T) {
	t.Parallel()

	dev := devicetest.New()
	dev.Writes = []devicetest.Result{{Frames: devicetest.All}, {Err: device.ErrUnderrun}}
	dev.RecoverErrs = []error{errors.New("prepare failed")}
	l := negotiated(t, dev, request(4000, sample.S16LE))

	st, err := l.PlayBatches(context.Background(), generator(t, 4000, sample.S16LE), 5)

	var fe *FatalError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "recover", fe.Op)
	assert.Equal(t, 1, fe.Batch)
	assert.ErrorIs(t, err, device.ErrRecoveryFailure)
	assert.ErrorIs(t, err, device.ErrUnderrun)
	assert.Equal(t, 1, st.Batches, "data written before the fault is kept")
	assert.Equal(t, 400, dev.WrittenFrames())
	assert.Equal(t, 0, dev.DrainCalls)
	assert.Equal(t, Aborted, l.State())
}

func TestPlay_FatalWriteError(t *testing.T) {
	t.Parallel()

	ioErr := errors.New("input/output error")
	dev := devicetest.New()
	dev.Writes = []devicetest.Result{{Err: ioErr}}
	l := negotiated(t, dev, request(4000, sample.S16LE))

	_, err := l.PlayBatches(context.Background(), generator(t, 4000, sample.S16LE), 2)
	require.ErrorIs(t, err, ioErr)
	assert.Equal(t, 0, dev.RecoverCalls)
	assert.Equal(t, Aborted, l.State())

	// an aborted loop can be negotiated again
	_, err = l.Negotiate(request(4000, sample.S16LE))
	assert.NoError(t, err)
}

func TestPlay_DrainError(t *testing.T) {
	t.Parallel()

	dev := devicetest.New()
	dev.DrainErr = errors.New("drain failed")
	l := negotiated(t, dev, request(4000, sample.S16LE))

	_, err := l.PlayBatches(context.Background(), generator(t, 4000, sample.S16LE), 1)
	var fe *FatalError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "drain", fe.Op)
}

func TestPlay_GeometryErrorIsFatal(t *testing.T) {
	t.Parallel()

	dev := devicetest.New()
	req := request(4000, sample.U8)
	req.Channels = 1
	l := negotiated(t, dev, req)

	gen, err := wave.NewGenerator(wave.Signal{Kind: wave.Square, Frequency: 100, Rate: 4000, Amplitude: 100, Format: sample.U8})
	require.NoError(t, err)

	_, err = l.PlayBatches(context.Background(), gen, 1)
	assert.ErrorIs(t, err, wave.ErrGeometry)
	assert.Equal(t, 0, dev.WriteCalls)
}

func TestPlayContinuous_Predicate(t *testing.T) {
	t.Parallel()

	dev := devicetest.New()
	var checks int
	l := negotiated(t, dev, request(4000, sample.S16LE), WithContinue(func() bool {
		checks++
		return checks <= 7
	}))

	st, err := l.PlayContinuous(context.Background(), generator(t, 4000, sample.S16LE))
	require.NoError(t, err)

	assert.True(t, st.Stopped)
	assert.Equal(t, 7, st.Batches)
	assert.Equal(t, 0, dev.DrainCalls)
	assert.Equal(t, Idle, l.State())
}

func TestPlayContinuous_ContextCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dev := devicetest.New()
	dev.OnWrite = func(call int) {
		if call == 4 {
			cancel()
		}
	}
	l := negotiated(t, dev, request(4000, sample.S16LE))

	st, err := l.PlayContinuous(ctx, generator(t, 4000, sample.S16LE))
	require.NoError(t, err)
	assert.True(t, st.Stopped)
	assert.Equal(t, 4, st.Batches, "the batch in flight completes")
}

func TestPlay_Prefetch(t *testing.T) {
	t.Parallel()

	dev := devicetest.New()
	dev.Writes = []devicetest.Result{{Frames: 10}, {Err: device.ErrWouldBlock}, {Err: device.ErrUnderrun}}
	l := negotiated(t, dev, request(4000, sample.S24LE3), WithPrefetch(2))

	st, err := l.PlayBatches(context.Background(), generator(t, 4000, sample.S24LE3), 6)
	require.NoError(t, err)

	assert.Equal(t, 6, st.Batches)
	assert.Equal(t, reference(t, 4000, sample.S24LE3, 2400), dev.Written)
	assert.Equal(t, 1, dev.DrainCalls)
}

func TestPlay_PrefetchStop(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dev := devicetest.New()
	dev.OnWrite = func(call int) {
		if call == 3 {
			cancel()
		}
	}
	l := negotiated(t, dev, request(4000, sample.S16LE), WithPrefetch(1))

	st, err := l.PlayContinuous(ctx, generator(t, 4000, sample.S16LE))
	require.NoError(t, err)
	assert.True(t, st.Stopped)
	assert.LessOrEqual(t, st.Batches, 3)
	assert.Equal(t, Idle, l.State())
}

func TestPlayFor_NoDuration(t *testing.T) {
	t.Parallel()

	l := negotiated(t, devicetest.New(), request(4000, sample.S16LE))
	_, err := l.PlayFor(context.Background(), generator(t, 4000, sample.S16LE), 0)
	assert.ErrorIs(t, err, ErrNoDuration)
}
