// SPDX-License-Identifier: EPL-2.0

package transfer

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/ik5/funcgen/capture"
	"github.com/ik5/funcgen/device"
	"github.com/ik5/funcgen/internal/metrics"
)

var errStopped = errors.New("capture stopped")

// CaptureFor reads ceil(d·rate/period) periods.
func (l *Loop) CaptureFor(ctx context.Context, d time.Duration) (*capture.Buffer, Stats, error) {
	n := BatchCount(d, l.params.Rate, l.params.PeriodSize)
	if n <= 0 {
		return nil, Stats{}, ErrNoDuration
	}
	return l.Capture(ctx, n)
}

// Capture reads batches periods, one read per period, into a buffer of
// PeriodSize*batches records. A short read keeps what arrived and leaves
// the rest of its slot at zero. Read faults follow the loop's
// ReadFaultPolicy.
func (l *Loop) Capture(ctx context.Context, batches int) (*capture.Buffer, Stats, error) {
	var st Stats
	if err := l.expect(Negotiated); err != nil {
		return nil, st, err
	}
	if batches <= 0 {
		return nil, st, ErrNoDuration
	}

	fb := l.params.FrameBytes()
	width, err := capture.RecordWidth(fb)
	if err != nil {
		return nil, st, err
	}

	start := time.Now()
	metrics.ActiveSessions.WithLabelValues(metrics.Capture).Inc()
	defer metrics.ActiveSessions.WithLabelValues(metrics.Capture).Dec()

	l.setState(Running)
	l.log.Info("capture started", zap.Int("batches", batches), zap.Int("record_bits", width))

	period := l.params.PeriodSize
	raw := make([]byte, l.params.PeriodBytes())

	read := func(dst []int64) (int, error) {
		if l.shouldStop(ctx) {
			return 0, errStopped
		}

		n, err := l.readPeriod(ctx, raw, period, &st)
		for i := range n {
			dst[i] = capture.RecordOf(raw[i*fb : (i+1)*fb])
		}
		st.Batches++
		metrics.BatchesTotal.WithLabelValues(metrics.Capture).Inc()
		return n, err
	}

	buf, err := capture.Collect(read, width, period, batches)
	if errors.Is(err, errStopped) {
		st.Stopped = true
		err = nil
	}
	st.Elapsed = time.Since(start)

	return buf, st, l.finish(metrics.Capture, st, err)
}

// readPeriod performs the single read of one batch, retrying would-block
// results. Faults the session survives return (n, nil) with whatever was
// read before the fault.
func (l *Loop) readPeriod(ctx context.Context, raw []byte, period int, st *Stats) (int, error) {
	for {
		n, err := l.dev.Read(raw, period)
		if n > 0 {
			st.Frames += int64(n)
			metrics.FramesTotal.WithLabelValues(metrics.Capture).Add(float64(n))
		}

		switch {
		case err == nil:
			return n, nil
		case errors.Is(err, device.ErrWouldBlock):
			st.WouldBlock++
			metrics.WouldBlockTotal.WithLabelValues(metrics.Capture).Inc()
			if ctx.Err() != nil {
				return n, errStopped
			}
		case device.IsReadFault(err):
			return n, l.readFault(err, st)
		default:
			return n, &FatalError{Op: "read", Batch: st.Batches, Err: err}
		}
	}
}

func (l *Loop) readFault(err error, st *Stats) error {
	st.ReadFaults++
	cause := "disconnect"
	switch {
	case errors.Is(err, device.ErrOverrun):
		cause = "overrun"
	case errors.Is(err, device.ErrSuspended):
		cause = "suspended"
	}
	metrics.ReadFaultsTotal.WithLabelValues(cause).Inc()

	if l.faultPolicy == AbortOnReadFault {
		return &FatalError{Op: "read", Batch: st.Batches, Err: err}
	}

	l.log.Warn("capture period lost", zap.String("cause", cause), zap.Int("batch", st.Batches))
	if cause != "disconnect" {
		if rerr := l.recover(err, st.Batches); rerr != nil {
			return rerr
		}
		st.Recoveries++
	}
	return nil
}
