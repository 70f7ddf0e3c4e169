// SPDX-License-Identifier: EPL-2.0

package transfer

import "go.uber.org/zap"

// ReadFaultPolicy decides what a capture does when a period is lost to a
// disconnect, overrun or suspend.
type ReadFaultPolicy uint8

const (
	// ContinueOnReadFault logs the fault, leaves the batch slot at zero and
	// moves on to the next batch.
	ContinueOnReadFault ReadFaultPolicy = iota
	// AbortOnReadFault ends the capture with a FatalError.
	AbortOnReadFault
)

type Option func(*Loop)

func WithLogger(l *zap.Logger) Option {
	return func(lp *Loop) {
		if l != nil {
			lp.log = l
		}
	}
}

// WithContinue installs a predicate checked once per batch boundary. The
// session ends cleanly as soon as it returns false.
func WithContinue(fn func() bool) Option {
	return func(lp *Loop) { lp.keepGoing = fn }
}

// WithPrefetch generates up to n periods ahead of the writer on a separate
// goroutine. Zero disables prefetching.
func WithPrefetch(n int) Option {
	return func(lp *Loop) { lp.prefetch = max(n, 0) }
}

func WithReadFaultPolicy(p ReadFaultPolicy) Option {
	return func(lp *Loop) { lp.faultPolicy = p }
}

// WithStateHook is called on every state transition.
func WithStateHook(fn func(from, to State)) Option {
	return func(lp *Loop) { lp.onState = fn }
}
