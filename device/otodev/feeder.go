// SPDX-License-Identifier: EPL-2.0

package otodev

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/ik5/funcgen/device"
)

// feeder is the io.Reader oto pulls from. It never blocks: an empty queue
// reads as silence.
type feeder struct {
	queue chan []byte
	quiet byte

	mu      sync.Mutex
	pending []byte

	queued   atomic.Int64
	primed   atomic.Bool
	underrun atomic.Bool
}

func newFeeder(depth int, quiet byte) *feeder {
	return &feeder{queue: make(chan []byte, depth), quiet: quiet}
}

// push queues a copy of b, waiting at most wait for room.
func (f *feeder) push(b []byte, wait time.Duration) error {
	chunk := make([]byte, len(b))
	copy(chunk, b)

	timer := time.NewTimer(wait)
	defer timer.Stop()

	f.queued.Add(int64(len(chunk)))
	select {
	case f.queue <- chunk:
		f.primed.Store(true)
		return nil
	case <-timer.C:
		f.queued.Add(-int64(len(chunk)))
		return device.ErrWouldBlock
	}
}

func (f *feeder) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := p
	for len(out) > 0 {
		if len(f.pending) == 0 {
			select {
			case f.pending = <-f.queue:
			default:
				for i := range out {
					out[i] = f.quiet
				}
				if f.primed.Load() {
					f.underrun.Store(true)
				}
				return len(p), nil
			}
		}
		n := copy(out, f.pending)
		f.pending = f.pending[n:]
		out = out[n:]
		f.queued.Add(-int64(n))
	}
	return len(p), nil
}
