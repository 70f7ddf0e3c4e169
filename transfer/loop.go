// SPDX-License-Identifier: EPL-2.0

// Package transfer runs the generate→write and read→collect cycles against
// a device.Device.
//
// A Loop is negotiated once per session, then runs one of three modes:
// continuous playback until cancelled, bounded playback for a number of
// periods followed by a drain, or bounded capture into a capture.Buffer.
// Short writes are resumed with the remaining frames, would-block results
// are retried at once, and underruns or suspends go through
// Device.Recover before the unwritten part of the period is retried.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ik5/funcgen/device"
	"github.com/ik5/funcgen/internal/metrics"
	"github.com/ik5/funcgen/sample"
)

// Filler produces the next period of samples into buf. *wave.Generator
// satisfies it.
type Filler interface {
	Fill(buf *sample.Interleaved) error
}

// Stats summarizes one session.
type Stats struct {
	Batches    int
	Frames     int64
	WouldBlock int64
	Recoveries int
	ReadFaults int
	Stopped    bool // ended by cancellation rather than completion
	Elapsed    time.Duration
}

// Loop drives one device. It is not safe for concurrent sessions.
type Loop struct {
	dev    device.Device
	log    *zap.Logger
	params device.Params

	mu    sync.Mutex
	state State

	keepGoing   func() bool
	prefetch    int
	faultPolicy ReadFaultPolicy
	onState     func(from, to State)
}

func New(dev device.Device, opts ...Option) *Loop {
	l := &Loop{
		dev: dev,
		log: zap.NewNop(),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.state
}

func (l *Loop) setState(to State) {
	l.mu.Lock()
	from := l.state
	l.state = to
	hook := l.onState
	l.mu.Unlock()

	if hook != nil && from != to {
		hook(from, to)
	}
}

func (l *Loop) expect(want ...State) error {
	s := l.State()
	for _, w := range want {
		if s == w {
			return nil
		}
	}
	return fmt.Errorf("%w: %s, want %v", ErrBadState, s, want)
}

// Params returns what the device granted at the last Negotiate.
func (l *Loop) Params() device.Params { return l.params }

// Negotiate configures the device. Any mismatch between the request and
// what the device grants is a configuration error.
func (l *Loop) Negotiate(req device.Request) (device.Params, error) {
	if err := l.expect(Idle, Aborted); err != nil {
		return device.Params{}, err
	}
	if err := req.Validate(); err != nil {
		return device.Params{}, err
	}

	got, err := l.dev.Negotiate(req)
	if err != nil {
		return device.Params{}, fmt.Errorf("negotiating %s device: %w", req.Direction, err)
	}
	if err := device.CheckGranted(req, got); err != nil {
		return device.Params{}, err
	}

	l.params = got
	l.setState(Negotiated)
	l.log.Info("device negotiated",
		zap.Stringer("direction", req.Direction),
		zap.Int("rate", got.Rate),
		zap.Int("channels", got.Channels),
		zap.Stringer("format", got.Format),
		zap.Int("period_frames", got.PeriodSize),
		zap.Int("buffer_frames", got.BufferSize),
	)
	return got, nil
}

// BatchCount is the number of periods covering d: ceil(d·rate/period).
func BatchCount(d time.Duration, rate, period int) int {
	if d <= 0 || rate <= 0 || period <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds() * float64(rate) / float64(period)))
}

func (l *Loop) shouldStop(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	return l.keepGoing != nil && !l.keepGoing()
}

// PlayContinuous writes periods until ctx is cancelled or the continue
// predicate returns false.
func (l *Loop) PlayContinuous(ctx context.Context, gen Filler) (Stats, error) {
	return l.play(ctx, gen, 0)
}

// PlayFor writes ceil(d·rate/period) periods, then drains the device.
func (l *Loop) PlayFor(ctx context.Context, gen Filler, d time.Duration) (Stats, error) {
	n := BatchCount(d, l.params.Rate, l.params.PeriodSize)
	if n <= 0 {
		return Stats{}, fmt.Errorf("%w: %v", ErrNoDuration, d)
	}
	return l.play(ctx, gen, n)
}

// PlayBatches writes exactly n periods, then drains the device.
func (l *Loop) PlayBatches(ctx context.Context, gen Filler, n int) (Stats, error) {
	if n <= 0 {
		return Stats{}, fmt.Errorf("%w: %d batches", ErrNoDuration, n)
	}
	return l.play(ctx, gen, n)
}

// play runs bounded when batches > 0, continuous otherwise.
func (l *Loop) play(ctx context.Context, gen Filler, batches int) (Stats, error) {
	if err := l.expect(Negotiated); err != nil {
		return Stats{}, err
	}

	start := time.Now()
	metrics.ActiveSessions.WithLabelValues(metrics.Playback).Inc()
	defer metrics.ActiveSessions.WithLabelValues(metrics.Playback).Dec()

	l.setState(Running)
	l.log.Info("playback started", zap.Int("batches", batches), zap.Int("prefetch", l.prefetch))

	var (
		st  Stats
		err error
	)
	if l.prefetch > 0 {
		st, err = l.playPrefetch(ctx, gen, batches)
	} else {
		st, err = l.playDirect(ctx, gen, batches)
	}

	if err == nil && batches > 0 && st.Batches == batches {
		l.setState(Draining)
		if derr := l.dev.Drain(); derr != nil {
			err = &FatalError{Op: "drain", Batch: st.Batches, Err: derr}
		}
	}
	st.Elapsed = time.Since(start)

	return st, l.finish(metrics.Playback, st, err)
}

func (l *Loop) finish(direction string, st Stats, err error) error {
	if err != nil {
		l.setState(Aborted)
		metrics.SessionsTotal.WithLabelValues(direction, "aborted").Inc()
		l.log.Error("session aborted",
			zap.String("direction", direction),
			zap.Int("batches", st.Batches),
			zap.Error(err),
		)
		return err
	}

	l.setState(Idle)
	outcome := "completed"
	if st.Stopped {
		outcome = "stopped"
	}
	metrics.SessionsTotal.WithLabelValues(direction, outcome).Inc()
	l.log.Info("session finished",
		zap.String("direction", direction),
		zap.String("outcome", outcome),
		zap.Int("batches", st.Batches),
		zap.Int64("frames", st.Frames),
		zap.Int("recoveries", st.Recoveries),
		zap.Duration("elapsed", st.Elapsed),
	)
	return nil
}

func (l *Loop) newPeriod() (*sample.Interleaved, error) {
	return sample.NewInterleaved(l.params.Format, l.params.Channels, l.params.PeriodSize)
}

func (l *Loop) playDirect(ctx context.Context, gen Filler, batches int) (Stats, error) {
	var st Stats
	buf, err := l.newPeriod()
	if err != nil {
		return st, &FatalError{Op: "fill", Err: err}
	}

	for batches <= 0 || st.Batches < batches {
		if l.shouldStop(ctx) {
			st.Stopped = true
			return st, nil
		}

		t0 := time.Now()
		if err := gen.Fill(buf); err != nil {
			return st, &FatalError{Op: "fill", Batch: st.Batches, Err: err}
		}
		stopped, err := l.writePeriod(ctx, buf, &st)
		if err != nil {
			return st, err
		}
		if stopped {
			st.Stopped = true
			return st, nil
		}
		metrics.BatchLatency.WithLabelValues(metrics.Playback).Observe(float64(time.Since(t0).Microseconds()) / 1000)
	}
	return st, nil
}

// writePeriod flushes one period, resuming short writes with the
// remaining frames. It returns stopped when ctx is cancelled while the
// device keeps reporting would-block.
func (l *Loop) writePeriod(ctx context.Context, buf *sample.Interleaved, st *Stats) (bool, error) {
	written := 0
	for written < buf.Frames {
		n, err := l.dev.Write(buf.From(written), buf.Frames-written)
		if n > 0 {
			written += n
			st.Frames += int64(n)
			metrics.FramesTotal.WithLabelValues(metrics.Playback).Add(float64(n))
		}

		switch {
		case err == nil && n > 0:
			continue
		case err == nil, errors.Is(err, device.ErrWouldBlock):
			st.WouldBlock++
			metrics.WouldBlockTotal.WithLabelValues(metrics.Playback).Inc()
			if ctx.Err() != nil {
				return true, nil
			}
		case errors.Is(err, device.ErrUnderrun), errors.Is(err, device.ErrSuspended):
			if rerr := l.recover(err, st.Batches); rerr != nil {
				return false, rerr
			}
			st.Recoveries++
		default:
			return false, &FatalError{Op: "write", Batch: st.Batches, Err: err}
		}
	}

	st.Batches++
	metrics.BatchesTotal.WithLabelValues(metrics.Playback).Inc()
	return false, nil
}

func (l *Loop) recover(cause error, batch int) error {
	causeLabel := "underrun"
	switch {
	case errors.Is(cause, device.ErrSuspended):
		causeLabel = "suspended"
	case errors.Is(cause, device.ErrOverrun):
		causeLabel = "overrun"
	}

	l.log.Warn("recovering device", zap.String("cause", causeLabel), zap.Int("batch", batch))
	if err := l.dev.Recover(cause); err != nil {
		metrics.RecoveriesTotal.WithLabelValues(causeLabel, "failed").Inc()
		return &FatalError{
			Op:    "recover",
			Batch: batch,
			Err:   fmt.Errorf("%w: %w (after %w)", device.ErrRecoveryFailure, err, cause),
		}
	}
	metrics.RecoveriesTotal.WithLabelValues(causeLabel, "ok").Inc()
	return nil
}
