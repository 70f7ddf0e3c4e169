// SPDX-License-Identifier: EPL-2.0

package transfer

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ik5/funcgen/internal/metrics"
	"github.com/ik5/funcgen/sample"
)

// playPrefetch generates periods on one goroutine and writes them on
// another. Buffers cycle through free → full → free, so the writer only
// ever sees completely filled periods and the generator never touches a
// buffer that is being written.
func (l *Loop) playPrefetch(ctx context.Context, gen Filler, batches int) (Stats, error) {
	var st Stats

	free := make(chan *sample.Interleaved, l.prefetch+1)
	full := make(chan *sample.Interleaved, l.prefetch)
	for range l.prefetch + 1 {
		buf, err := l.newPeriod()
		if err != nil {
			return st, &FatalError{Op: "fill", Err: err}
		}
		free <- buf
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(full)

		for produced := 0; batches <= 0 || produced < batches; produced++ {
			if l.shouldStop(gctx) {
				return nil
			}

			var buf *sample.Interleaved
			select {
			case buf = <-free:
			case <-gctx.Done():
				return nil
			}

			if err := gen.Fill(buf); err != nil {
				return &FatalError{Op: "fill", Batch: produced, Err: err}
			}

			select {
			case full <- buf:
			case <-gctx.Done():
				return nil
			}
		}
		return nil
	})

	g.Go(func() error {
		for buf := range full {
			if gctx.Err() != nil {
				return nil
			}
			t0 := time.Now()
			stopped, err := l.writePeriod(gctx, buf, &st)
			if err != nil {
				return err
			}
			if stopped {
				return nil
			}
			metrics.BatchLatency.WithLabelValues(metrics.Playback).Observe(float64(time.Since(t0).Microseconds()) / 1000)
			free <- buf
		}
		return nil
	})

	err := g.Wait()
	if err == nil && (batches <= 0 || st.Batches < batches) {
		st.Stopped = true
	}
	return st, err
}
