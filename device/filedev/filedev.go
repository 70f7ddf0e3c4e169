// SPDX-License-Identifier: EPL-2.0

// Package filedev is a device.Device backed by audio files.
//
// Playback writes every frame into a WAV file of the negotiated format.
// Capture decodes any file the formats registry knows, brings it to the
// negotiated rate and channel count, and hands it out encoded in the
// negotiated sample format. The end of the file is reported as
// device.ErrDisconnect unless the device loops.
package filedev

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ik5/funcgen/audio"
	"github.com/ik5/funcgen/device"
	"github.com/ik5/funcgen/formats"
	"github.com/ik5/funcgen/formats/wav"
	"github.com/ik5/funcgen/sample"
	"github.com/ik5/funcgen/utils"
)

// Option configures a Device.
type Option func(*Device)

// WithLoop restarts capture from the top of the file at its end.
func WithLoop() Option {
	return func(d *Device) { d.loop = true }
}

// WithPacing makes transfers take as long as the audio they carry.
func WithPacing() Option {
	return func(d *Device) { d.paced = true }
}

// WithRegistry replaces the decoder registry used for capture.
func WithRegistry(r *audio.Registry) Option {
	return func(d *Device) { d.codecs = r }
}

// Device reads or writes one file.
type Device struct {
	path   string
	dir    device.Direction
	log    *zap.Logger
	codecs *audio.Registry
	loop   bool
	paced  bool

	mu      sync.Mutex
	params  device.Params
	ready   bool
	closed  bool
	file    *os.File
	writer  *wav.Writer
	src     audio.Source
	ints    []int64
	floats  []float32
	ended   bool
	started time.Time
	moved   int64
	rewinds int
}

// Opener returns a device.Opener for the registry.
func Opener(opts ...Option) device.Opener {
	return func(target string, dir device.Direction, logger *zap.Logger) (device.Device, error) {
		return New(target, dir, logger, opts...)
	}
}

func New(path string, dir device.Direction, logger *zap.Logger, opts ...Option) (*Device, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty file path", device.ErrInvalidRequest)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	d := &Device{
		path: path,
		dir:  dir,
		log:  logger,
	}
	for _, o := range opts {
		o(d)
	}
	if d.codecs == nil {
		d.codecs = formats.NewRegistry()
	}
	return d, nil
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

	d.release()

	p := device.Params{
		Rate:       req.Rate,
		Channels:   req.Channels,
		Format:     req.Format,
		PeriodSize: req.PeriodFrames(),
		BufferSize: max(req.BufferFrames(), req.PeriodFrames()),
	}

	var err error
	if d.dir == device.Playback {
		err = d.openSink(p)
	} else {
		err = d.openSource(p)
	}
	if err != nil {
		return device.Params{}, &device.NegotiationError{Param: "file", Requested: d.path, Err: err}
	}

	d.params = p
	d.ready = true
	d.ended = false
	d.moved = 0
	d.started = time.Now()

	d.log.Debug("file device ready",
		zap.Stringer("direction", d.dir),
		zap.String("path", d.path),
		zap.Int("rate", p.Rate),
		zap.Int("channels", p.Channels),
		zap.Stringer("format", p.Format),
	)
	return p, nil
}

func (d *Device) openSink(p device.Params) error {
	f, err := os.Create(d.path)
	if err != nil {
		return err
	}
	w, err := wav.NewFormatWriter(f, p.Format, p.Rate, p.Channels)
	if err != nil {
		f.Close()
		return err
	}
	d.file, d.writer = f, w
	return nil
}

func (d *Device) openSource(p device.Params) error {
	f, err := os.Open(d.path)
	if err != nil {
		return err
	}
	src, err := d.codecs.Decode(d.path, f)
	if err != nil {
		f.Close()
		return err
	}
	out, err := audio.Conform(src, p.Rate, p.Channels)
	if err != nil {
		f.Close()
		return err
	}
	d.file, d.src = f, out
	return nil
}

// release closes whatever the last negotiation opened.
func (d *Device) release() error {
	var errs []error
	if d.writer != nil {
		errs = append(errs, d.writer.Close())
		d.writer = nil
	}
	if d.src != nil {
		errs = append(errs, d.src.Close())
		d.src = nil
	}
	if d.file != nil {
		errs = append(errs, d.file.Close())
		d.file = nil
	}
	d.ready = false
	return errors.Join(errs...)
}

func (d *Device) check(want device.Direction) error {
	switch {
	case d.closed:
		return device.ErrClosed
	case !d.ready:
		return device.ErrNotNegotiated
	case d.dir != want:
		return fmt.Errorf("%w: %s device", device.ErrUnsupported, d.dir)
	}
	return nil
}

// pace sleeps until wall time catches up with the frames moved so far.
func (d *Device) pace(frames int) {
	d.moved += int64(frames)
	if !d.paced {
		return
	}
	due := time.Duration(d.moved * int64(time.Second) / int64(d.params.Rate))
	if wait := due - time.Since(d.started); wait > 0 {
		time.Sleep(wait)
	}
}

func (d *Device) Write(buf []byte, frames int) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.check(device.Playback); err != nil {
		return 0, err
	}

	f, ch := d.params.Format, d.params.Channels
	fb := d.params.FrameBytes()
	frames = min(frames, len(buf)/fb)

	n := frames * ch
	if cap(d.ints) < n {
		d.ints = make([]int64, n)
	}
	ints := d.ints[:n]
	for i := range ints {
		slot := buf[i*f.Physical:]
		if f.IsFloat() {
			ints[i] = int64(sample.Raw(f, slot))
		} else {
			ints[i] = sample.Decode(f, slot)
		}
	}

	if err := d.writer.WriteInts(ints); err != nil {
		return 0, err
	}
	d.pace(frames)
	return frames, nil
}

func (d *Device) Read(buf []byte, frames int) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.check(device.Capture); err != nil {
		return 0, err
	}
	if d.ended {
		return 0, device.ErrDisconnect
	}

	f, ch := d.params.Format, d.params.Channels
	fb := d.params.FrameBytes()
	frames = min(frames, len(buf)/fb)

	want := frames * ch
	if cap(d.floats) < want {
		d.floats = make([]float32, want)
	}
	floats := d.floats[:want]

	got, err := d.fill(floats)
	n := got / ch
	peak := f.MaxAmplitude()
	for i, x := range floats[:n*ch] {
		slot := buf[i*f.Physical:]
		if f.IsFloat() {
			sample.EncodeFloat(f, x, slot)
		} else {
			sample.Encode(f, utils.FloatToInt(x, peak), slot)
		}
	}

	if err != nil {
		return n, err
	}
	if n == 0 {
		d.ended = true
		return 0, device.ErrDisconnect
	}
	d.pace(n)
	return n, nil
}

// fill reads until dst is full or the file ends, rewinding when looping.
func (d *Device) fill(dst []float32) (int, error) {
	got, empty := 0, 0
	pass := -1 // got at the last rewind
	for got < len(dst) {
		n, err := d.src.ReadSamples(dst[got:])
		got += n

		switch {
		case errors.Is(err, io.EOF):
			// stop when a whole pass produced nothing
			if !d.loop || got == pass {
				return got, nil
			}
			if rerr := d.rewind(); rerr != nil {
				return got, rerr
			}
			pass = got
		case err != nil:
			return got, fmt.Errorf("reading %s: %w", d.path, err)
		case n == 0:
			empty++
			if empty >= 100 {
				return got, io.ErrNoProgress
			}
		}
	}
	return got, nil
}

func (d *Device) rewind() error {
	p := d.params
	if d.src != nil {
		d.src.Close()
	}
	if d.file != nil {
		d.file.Close()
	}
	d.src, d.file = nil, nil

	if err := d.openSource(p); err != nil {
		return fmt.Errorf("%w: reopening %s: %w", device.ErrDisconnect, d.path, err)
	}
	d.rewinds++
	d.log.Debug("file device looped", zap.String("path", d.path), zap.Int("rewinds", d.rewinds))
	return nil
}

// Recover has nothing to reset: a file never underruns.
func (d *Device) Recover(err error) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return device.ErrClosed
	}
	d.log.Debug("file device recover", zap.Error(err))
	return nil
}

// Drain finalizes the WAV header so the file is valid even before Close.
func (d *Device) Drain() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.check(device.Playback); err != nil {
		if d.dir == device.Capture && !d.closed {
			return nil
		}
		return err
	}
	return d.release()
}

func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	return d.release()
}

// Path is the file the device works on.
func (d *Device) Path() string { return d.path }
