// SPDX-License-Identifier: EPL-2.0

// Package malgodev is a device.Device on top of miniaudio through malgo.
//
// miniaudio pulls and pushes audio from its own thread. Write hands whole
// transfers to that thread over a bounded queue sized to the negotiated
// buffer, and Read takes captured periods off a queue of the same size.
// A callback that finds the playback queue empty plays silence and flags an
// underrun; one that finds the capture queue full drops the period and
// flags an overrun. Both surface on the next transfer.
package malgodev

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/gen2brain/malgo"
	"go.uber.org/zap"

	"github.com/ik5/funcgen/device"
)

const drainPoll = 5 * time.Millisecond

// Device is one miniaudio playback or capture stream.
type Device struct {
	target string
	dir    device.Direction
	log    *zap.Logger

	mu      sync.Mutex
	ctx     *malgo.AllocatedContext
	dev     *malgo.Device
	id      *malgo.DeviceID
	params  device.Params
	ready   bool
	closed  bool
	started bool
	timeout time.Duration
	fb      int
	quiet   byte

	queue   chan []byte
	queued  atomic.Int64 // playback bytes not yet handed to the device
	pending []byte       // playback chunk being consumed by the callback
	partial []byte       // capture chunk being consumed by Read

	primed    atomic.Bool
	underrun  atomic.Bool
	overrun   atomic.Bool
	suspended atomic.Bool
	stopping  atomic.Bool
}

// Opener opens target ("" or "default" for the system default device).
func Opener() device.Opener {
	return func(target string, dir device.Direction, logger *zap.Logger) (device.Device, error) {
		return New(target, dir, logger)
	}
}

func New(target string, dir device.Direction, logger *zap.Logger) (*Device, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	log := logger.With(zap.String("backend", "malgo"), zap.String("target", target))

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(msg string) {
		log.Debug("miniaudio", zap.String("message", strings.TrimSpace(msg)))
	})
	if err != nil {
		return nil, fmt.Errorf("initializing miniaudio: %w", err)
	}

	d := &Device{
		target: target,
		dir:    dir,
		log:    log,
		ctx:    ctx,
	}
	if err := d.lookup(); err != nil {
		d.freeContext()
		return nil, err
	}
	return d, nil
}

func deviceType(dir device.Direction) malgo.DeviceType {
	if dir == device.Capture {
		return malgo.Capture
	}
	return malgo.Playback
}

// lookup resolves the target name to a device id.
func (d *Device) lookup() error {
	if d.target == "" || d.target == "default" {
		return nil
	}
	infos, err := d.ctx.Devices(deviceType(d.dir))
	if err != nil {
		return fmt.Errorf("listing %s devices: %w", d.dir, err)
	}
	for _, info := range infos {
		if info.Name() == d.target {
			id := info.ID
			d.id = &id
			return nil
		}
	}
	return fmt.Errorf("%w: no %s device named %q", device.ErrUnknownBackend, d.dir, d.target)
}

func (d *Device) idPointer() unsafe.Pointer {
	if d.id == nil {
		return nil
	}
	return d.id.Pointer()
}

func (d *Device) Negotiate(req device.Request) (device.Params, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return device.Params{}, device.ErrClosed
	}
	if req.Direction != d.dir {
		return device.Params{}, &device.NegotiationError{Param: "direction", Requested: req.Direction, Got: d.dir}
	}
	if req.Access != device.AccessRWInterleaved {
		return device.Params{}, &device.NegotiationError{Param: "access", Requested: req.Access, Err: device.ErrUnsupported}
	}
	if err := req.Validate(); err != nil {
		return device.Params{}, err
	}
	ft, err := FormatOf(req.Format)
	if err != nil {
		return device.Params{}, &device.NegotiationError{Param: "format", Requested: req.Format, Err: err}
	}

	d.uninitDevice()

	period := req.PeriodFrames()
	periods := max(req.BufferFrames()/period, 2)

	cfg := malgo.DefaultDeviceConfig(deviceType(d.dir))
	cfg.SampleRate = uint32(req.Rate)
	cfg.PeriodSizeInFrames = uint32(period)
	cfg.Periods = uint32(periods)
	cfg.Alsa.NoMMap = 1
	if d.dir == device.Capture {
		cfg.Capture.Format = ft
		cfg.Capture.Channels = uint32(req.Channels)
		cfg.Capture.DeviceID = d.idPointer()
	} else {
		cfg.Playback.Format = ft
		cfg.Playback.Channels = uint32(req.Channels)
		cfg.Playback.DeviceID = d.idPointer()
	}

	cb := malgo.DeviceCallbacks{Stop: d.onStop}
	if d.dir == device.Capture {
		cb.Data = d.onCapture
	} else {
		cb.Data = d.onPlayback
	}

	dev, err := malgo.InitDevice(d.ctx.Context, cfg, cb)
	if err != nil {
		return device.Params{}, &device.NegotiationError{Param: "device", Requested: d.target, Err: err}
	}

	if got := int(dev.SampleRate()); got != req.Rate {
		dev.Uninit()
		return device.Params{}, &device.NegotiationError{Param: "rate", Requested: req.Rate, Got: got}
	}

	d.dev = dev
	d.params = device.Params{
		Rate:       req.Rate,
		Channels:   req.Channels,
		Format:     req.Format,
		PeriodSize: period,
		BufferSize: period * periods,
	}
	d.fb = d.params.FrameBytes()
	d.quiet = silence(req.Format)
	d.timeout = 2*req.BufferTime + 100*time.Millisecond
	d.queue = make(chan []byte, periods)
	d.pending, d.partial = nil, nil
	d.queued.Store(0)
	d.resetFlags()
	d.ready = true

	d.log.Info("miniaudio device ready",
		zap.Stringer("direction", d.dir),
		zap.Int("rate", req.Rate),
		zap.Int("channels", req.Channels),
		zap.Stringer("format", req.Format),
		zap.Int("period_frames", period),
		zap.Int("periods", periods),
	)
	return d.params, nil
}

func (d *Device) resetFlags() {
	d.primed.Store(false)
	d.underrun.Store(false)
	d.overrun.Store(false)
	d.suspended.Store(false)
	d.stopping.Store(false)
}

// onPlayback runs on the miniaudio thread.
func (d *Device) onPlayback(out, _ []byte, _ uint32) {
	for len(out) > 0 {
		if len(d.pending) == 0 {
			select {
			case c := <-d.queue:
				d.pending = c
			default:
				for i := range out {
					out[i] = d.quiet
				}
				if d.primed.Load() {
					d.underrun.Store(true)
				}
				return
			}
		}
		n := copy(out, d.pending)
		d.pending = d.pending[n:]
		out = out[n:]
		d.queued.Add(-int64(n))
	}
}

// onCapture runs on the miniaudio thread.
func (d *Device) onCapture(_, in []byte, _ uint32) {
	c := make([]byte, len(in))
	copy(c, in)
	select {
	case d.queue <- c:
	default:
		d.overrun.Store(true)
	}
}

func (d *Device) onStop() {
	if !d.stopping.Load() {
		d.suspended.Store(true)
	}
}

func (d *Device) check(want device.Direction) error {
	switch {
	case d.closed:
		return device.ErrClosed
	case !d.ready:
		return device.ErrNotNegotiated
	case d.dir != want:
		return fmt.Errorf("%w: %s device", device.ErrUnsupported, d.dir)
	case d.suspended.Load():
		return device.ErrSuspended
	}
	return nil
}

func (d *Device) start() error {
	if d.started {
		return nil
	}
	d.stopping.Store(false)
	if err := d.dev.Start(); err != nil {
		return fmt.Errorf("starting device: %w", err)
	}
	d.started = true
	return nil
}

func (d *Device) stop() error {
	if !d.started {
		return nil
	}
	d.stopping.Store(true)
	d.started = false
	if err := d.dev.Stop(); err != nil {
		return fmt.Errorf("stopping device: %w", err)
	}
	return nil
}

// Write queues frames for the callback, waiting for room up to twice the
// buffer time before reporting would-block.
func (d *Device) Write(buf []byte, frames int) (int, error) {
	d.mu.Lock()
	if err := d.check(device.Playback); err != nil {
		d.mu.Unlock()
		return 0, err
	}
	if d.underrun.Swap(false) {
		d.mu.Unlock()
		return 0, device.ErrUnderrun
	}
	frames = min(frames, len(buf)/d.fb)
	if frames <= 0 {
		d.mu.Unlock()
		return 0, nil
	}
	chunk := make([]byte, frames*d.fb)
	copy(chunk, buf)
	queue, timeout := d.queue, d.timeout
	d.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	d.queued.Add(int64(len(chunk)))
	select {
	case queue <- chunk:
	case <-timer.C:
		d.queued.Add(-int64(len(chunk)))
		return 0, device.ErrWouldBlock
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.primed.Store(true)
	// start once a full buffer is queued, like a start threshold
	if !d.started && len(d.queue) == cap(d.queue) {
		if err := d.start(); err != nil {
			return frames, err
		}
	}
	return frames, nil
}

// Read blocks until frames are captured, returning a short count if the
// device goes quiet for longer than twice the buffer time.
func (d *Device) Read(buf []byte, frames int) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.check(device.Capture); err != nil {
		return 0, err
	}
	if err := d.start(); err != nil {
		return 0, err
	}
	if d.overrun.Swap(false) {
		return 0, device.ErrOverrun
	}

	want := min(frames, len(buf)/d.fb) * d.fb
	got := 0
	timer := time.NewTimer(d.timeout)
	defer timer.Stop()

	for got < want {
		if len(d.partial) == 0 {
			select {
			case c := <-d.queue:
				d.partial = c
			case <-timer.C:
				if got == 0 {
					return 0, device.ErrWouldBlock
				}
				return got / d.fb, nil
			}
		}
		n := copy(buf[got:want], d.partial)
		d.partial = d.partial[n:]
		got += n
	}
	return got / d.fb, nil
}

// Recover clears the fault flags and restarts a stopped or overrun stream.
func (d *Device) Recover(cause error) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return device.ErrClosed
	}
	if !d.ready {
		return device.ErrNotNegotiated
	}

	d.underrun.Store(false)
	restart := d.suspended.Swap(false) || d.overrun.Swap(false) || errors.Is(cause, device.ErrOverrun)
	if !restart {
		return nil
	}

	d.log.Warn("restarting miniaudio device", zap.Error(cause))
	if err := d.stop(); err != nil {
		return err
	}
	if d.dir == device.Capture {
		d.flush()
	}
	return d.start()
}

func (d *Device) flush() {
	d.partial = nil
	for {
		select {
		case <-d.queue:
		default:
			return
		}
	}
}

// Drain waits for queued playback to reach the device, then stops it.
func (d *Device) Drain() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return device.ErrClosed
	}
	if !d.ready || d.dir == device.Capture {
		return nil
	}
	if d.queued.Load() > 0 {
		if err := d.start(); err != nil {
			return err
		}
	}

	deadline := time.Now().Add(d.timeout)
	for d.queued.Load() > 0 && !d.suspended.Load() {
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: drain timed out with %d bytes queued", device.ErrWouldBlock, d.queued.Load())
		}
		time.Sleep(drainPoll)
	}
	// the last period is still inside miniaudio
	time.Sleep(time.Duration(d.params.PeriodSize) * time.Second / time.Duration(d.params.Rate))

	d.primed.Store(false)
	return d.stop()
}

func (d *Device) uninitDevice() {
	if d.dev == nil {
		return
	}
	d.stopping.Store(true)
	d.dev.Uninit()
	d.dev = nil
	d.started = false
	d.ready = false
}

func (d *Device) freeContext() {
	if d.ctx == nil {
		return
	}
	if err := d.ctx.Uninit(); err != nil {
		d.log.Debug("miniaudio context uninit", zap.Error(err))
	}
	d.ctx.Free()
	d.ctx = nil
}

func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	d.uninitDevice()
	d.freeContext()
	return nil
}
