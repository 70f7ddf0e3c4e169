// SPDX-License-Identifier: EPL-2.0

// Package otodev is a playback-only device.Device on oto.
//
// oto allows one context per process, so the first negotiation fixes the
// rate, channel count and format for every later one.
package otodev

import (
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"go.uber.org/zap"

	"github.com/ik5/funcgen/device"
	"github.com/ik5/funcgen/sample"
)

var toOto = map[sample.Format]oto.Format{
	sample.U8:        oto.FormatUnsignedInt8,
	sample.S16LE:     oto.FormatSignedInt16LE,
	sample.Float32LE: oto.FormatFloat32LE,
}

// FormatOf maps a sample format onto oto's.
func FormatOf(f sample.Format) (oto.Format, error) {
	of, ok := toOto[f]
	if !ok {
		return 0, fmt.Errorf("%w: %s on oto", device.ErrUnsupported, f)
	}
	return of, nil
}

var shared struct {
	sync.Mutex
	ctx  *oto.Context
	opts oto.NewContextOptions
}

// sharedContext returns the process context, creating it for opts the first time.
func sharedContext(opts oto.NewContextOptions) (*oto.Context, error) {
	shared.Lock()
	defer shared.Unlock()

	if shared.ctx != nil {
		switch {
		case shared.opts.SampleRate != opts.SampleRate:
			return nil, &device.NegotiationError{Param: "rate", Requested: opts.SampleRate, Got: shared.opts.SampleRate}
		case shared.opts.ChannelCount != opts.ChannelCount:
			return nil, &device.NegotiationError{Param: "channels", Requested: opts.ChannelCount, Got: shared.opts.ChannelCount}
		case shared.opts.Format != opts.Format:
			return nil, &device.NegotiationError{Param: "format", Requested: opts.Format, Got: shared.opts.Format, Err: device.ErrUnsupported}
		}
		return shared.ctx, nil
	}

	ctx, ready, err := oto.NewContext(&opts)
	if err != nil {
		return nil, fmt.Errorf("creating oto context: %w", err)
	}
	<-ready
	shared.ctx, shared.opts = ctx, opts
	return ctx, nil
}

// sink is the part of *oto.Player the device drives.
type sink interface {
	Play()
	IsPlaying() bool
	BufferedSize() int
	SetBufferSize(bufferSize int)
	Close() error
}

// Device plays through one oto player.
type Device struct {
	log *zap.Logger

	mu     sync.Mutex
	player sink
	feed   *feeder
	params device.Params
	ready  bool
	closed bool
	wait   time.Duration
}

// Opener registers the oto backend. The target is ignored: oto always
// plays on the default output.
func Opener() device.Opener {
	return func(target string, dir device.Direction, logger *zap.Logger) (device.Device, error) {
		return New(dir, logger)
	}
}

func New(dir device.Direction, logger *zap.Logger) (*Device, error) {
	if dir != device.Playback {
		return nil, fmt.Errorf("%w: oto cannot capture", device.ErrUnsupported)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Device{log: logger.With(zap.String("backend", "oto"))}, nil
}

func (d *Device) Negotiate(req device.Request) (device.Params, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return device.Params{}, device.ErrClosed
	}
	if req.Direction != device.Playback {
		return device.Params{}, &device.NegotiationError{Param: "direction", Requested: req.Direction, Got: device.Playback, Err: device.ErrUnsupported}
	}
	if req.Access != device.AccessRWInterleaved {
		return device.Params{}, &device.NegotiationError{Param: "access", Requested: req.Access, Err: device.ErrUnsupported}
	}
	if err := req.Validate(); err != nil {
		return device.Params{}, err
	}
	of, err := FormatOf(req.Format)
	if err != nil {
		return device.Params{}, &device.NegotiationError{Param: "format", Requested: req.Format, Err: err}
	}

	ctx, err := sharedContext(oto.NewContextOptions{
		SampleRate:   req.Rate,
		ChannelCount: req.Channels,
		Format:       of,
		BufferSize:   req.BufferTime,
	})
	if err != nil {
		return device.Params{}, err
	}

	d.closePlayer()

	period := req.PeriodFrames()
	periods := max(req.BufferFrames()/period, 2)
	p := device.Params{
		Rate:       req.Rate,
		Channels:   req.Channels,
		Format:     req.Format,
		PeriodSize: period,
		BufferSize: period * periods,
	}

	d.feed = newFeeder(periods, silence(req.Format))
	pl := ctx.NewPlayer(d.feed)
	pl.SetBufferSize(p.PeriodBytes())
	pl.Play()
	d.player = pl
	d.params = p
	d.wait = 2*req.BufferTime + 100*time.Millisecond
	d.ready = true

	d.log.Info("oto player ready",
		zap.Int("rate", p.Rate),
		zap.Int("channels", p.Channels),
		zap.Stringer("format", p.Format),
		zap.Int("period_frames", period),
	)
	return p, nil
}

func silence(f sample.Format) byte {
	if f == sample.U8 {
		return 0x80
	}
	return 0
}

// session is what Write and Drain need from a negotiated device, copied
// under the lock so a concurrent Close cannot pull it away mid-call.
type session struct {
	feed   *feeder
	out    sink
	frameB int
	wait   time.Duration
}

func (d *Device) check() (session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch {
	case d.closed:
		return session{}, device.ErrClosed
	case !d.ready:
		return session{}, device.ErrNotNegotiated
	}
	return session{
		feed:   d.feed,
		out:    d.player,
		frameB: d.params.FrameBytes(),
		wait:   d.wait,
	}, nil
}

func (d *Device) Write(buf []byte, frames int) (int, error) {
	s, err := d.check()
	if err != nil {
		return 0, err
	}
	if s.feed.underrun.Swap(false) {
		return 0, device.ErrUnderrun
	}

	frames = min(frames, len(buf)/s.frameB)
	if frames <= 0 {
		return 0, nil
	}
	if err := s.feed.push(buf[:frames*s.frameB], s.wait); err != nil {
		return 0, err
	}
	return frames, nil
}

func (d *Device) Read([]byte, int) (int, error) {
	return 0, fmt.Errorf("%w: oto cannot capture", device.ErrUnsupported)
}

// Recover clears the underrun and resumes a player that stopped.
func (d *Device) Recover(cause error) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return device.ErrClosed
	}
	if !d.ready {
		return device.ErrNotNegotiated
	}
	d.feed.underrun.Store(false)
	if !d.player.IsPlaying() {
		d.log.Warn("resuming oto player", zap.Error(cause))
		d.player.Play()
	}
	return nil
}

// Drain waits for everything queued to be pulled by oto and for the
// player's own buffer to empty.
func (d *Device) Drain() error {
	s, err := d.check()
	if err != nil {
		return err
	}

	deadline := time.Now().Add(s.wait)
	for s.feed.queued.Load() > 0 || s.out.BufferedSize() > 0 {
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: drain timed out", device.ErrWouldBlock)
		}
		time.Sleep(5 * time.Millisecond)
	}
	s.feed.primed.Store(false)
	s.feed.underrun.Store(false)
	return nil
}

func (d *Device) closePlayer() {
	if d.player == nil {
		return
	}
	if err := d.player.Close(); err != nil {
		d.log.Debug("closing oto player", zap.Error(err))
	}
	d.player, d.feed = nil, nil
	d.ready = false
}

func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	d.closePlayer()
	return nil
}
