// SPDX-License-Identifier: EPL-2.0

package scpi

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ik5/funcgen"
	"github.com/ik5/funcgen/device"
	"github.com/ik5/funcgen/transfer"
	"github.com/ik5/funcgen/wave"
)

// DeviceFunc opens a fresh device for one session.
type DeviceFunc func() (device.Device, error)

// Settings is the instrument state the SOUR and SENS commands change.
type Settings struct {
	Stream         funcgen.StreamConfig // playback stream, amplitude in units
	AmplitudeVolts float64
	OffsetVolts    float64
	Duration       time.Duration // for INIT:LIM
	Averages       int

	Capture    funcgen.StreamConfig
	FetchLimit time.Duration
}

// Status is a snapshot for monitoring.
type Status struct {
	Waveform  string    `json:"waveform"`
	Frequency float64   `json:"frequency_hz"`
	Amplitude float64   `json:"amplitude_v"`
	Offset    float64   `json:"offset_v"`
	Duration  float64   `json:"duration_s"`
	Averages  int       `json:"averages"`
	Rate      int       `json:"rate"`
	Channels  int       `json:"channels"`
	Format    string    `json:"format"`
	Playing   bool      `json:"playing"`
	Mode      string    `json:"mode,omitempty"`
	Session   string    `json:"session,omitempty"`
	Since     time.Time `json:"since,omitzero"`
	LastError string    `json:"last_error,omitempty"`
}

type playback struct {
	id     uuid.UUID
	mode   funcgen.Mode
	cancel context.CancelFunc
	done   chan struct{}
	since  time.Time
}

// Instrument executes parsed commands. It holds at most one playback
// session; starting another stops the first.
type Instrument struct {
	log      *zap.Logger
	identity string
	playDev  DeviceFunc
	capDev   DeviceFunc
	loopOpts []transfer.Option

	startMu sync.Mutex // serializes Start

	mu      sync.Mutex
	set     Settings
	play    *playback
	lastErr error
}

// InstrumentOption configures an Instrument.
type InstrumentOption func(*Instrument)

func WithLogger(l *zap.Logger) InstrumentOption {
	return func(in *Instrument) {
		if l != nil {
			in.log = l
		}
	}
}

// WithIdentity sets the *IDN? reply.
func WithIdentity(id string) InstrumentOption {
	return func(in *Instrument) { in.identity = id }
}

// WithLoopOptions passes options to every transfer loop the instrument runs.
func WithLoopOptions(opts ...transfer.Option) InstrumentOption {
	return func(in *Instrument) { in.loopOpts = append(in.loopOpts, opts...) }
}

func NewInstrument(set Settings, playDev, capDev DeviceFunc, opts ...InstrumentOption) *Instrument {
	in := &Instrument{
		log:      zap.NewNop(),
		identity: "funcgen",
		playDev:  playDev,
		capDev:   capDev,
		set:      set,
	}
	for _, o := range opts {
		o(in)
	}
	if in.set.Averages < 1 {
		in.set.Averages = 1
	}
	return in
}

// Reply is what a command answers with before framing.
type Reply any

func echo(header, value string) Reply {
	return map[string][]string{header: {value}}
}

// Execute runs one command. Errors are meant to be reported to the client;
// the connection stays usable.
func (in *Instrument) Execute(ctx context.Context, cmd Command) (Reply, error) {
	switch cmd.Header {
	case IDN:
		return in.identity, nil
	case SOUR:
		return in.source(cmd)
	case SENS:
		n, err := strconv.Atoi(cmd.Value)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("%w: averages %q", ErrBadValue, cmd.Value)
		}
		in.mu.Lock()
		in.set.Averages = n
		in.mu.Unlock()
		return echo(SENS, cmd.Value), nil
	case INIT:
		mode := funcgen.Continuous
		if cmd.Node == "LIM" {
			mode = funcgen.Limited
		}
		if err := in.Start(mode); err != nil {
			return nil, err
		}
		return echo(INIT, "Playing the data"), nil
	case FETC:
		secs, err := strconv.ParseFloat(cmd.Value, 64)
		if err != nil || !(secs > 0) || math.IsInf(secs, 0) {
			return nil, fmt.Errorf("%w: fetch duration %q", ErrBadValue, cmd.Value)
		}
		ch, err := in.Fetch(ctx, time.Duration(secs*float64(time.Second)))
		if err != nil {
			return nil, err
		}
		reply := make(map[string][]float64, len(ch))
		for i, c := range ch {
			reply["ch"+strconv.Itoa(i)] = c
		}
		return reply, nil
	case OUTPUT:
		in.Stop()
		return echo(OUTPUT, "Data stream interrupted"), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Raw)
}

func (in *Instrument) source(cmd Command) (Reply, error) {
	in.mu.Lock()
	defer in.mu.Unlock()

	s := &in.set
	if cmd.Node == "FUNC" {
		k, err := wave.ParseKind(cmd.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrBadValue, err)
		}
		s.Stream.Kind = k
		return echo(SOUR, k.SCPI()), nil
	}

	v, err := strconv.ParseFloat(cmd.Value, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("%w: %s %q", ErrBadValue, cmd.Node, cmd.Value)
	}

	f := s.Stream.Format
	switch cmd.Node {
	case "FREQ":
		s.Stream.Frequency = min(max(v, funcgen.MinFrequency), funcgen.MaxFrequency)
	case "LEN":
		if v <= 0 {
			return nil, fmt.Errorf("%w: duration %v", ErrBadValue, v)
		}
		s.Duration = time.Duration(v * float64(time.Second))
	case "VOLT":
		s.AmplitudeVolts = v
		s.Stream.Amplitude = min(max(funcgen.VoltsToUnits(v, f), 1), f.MaxAmplitude())
	case "OFFSET":
		s.OffsetVolts = v
		s.Stream.Offset = min(max(funcgen.VoltsToUnits(v, f), 0), f.MaxAmplitude())
	}
	return echo(SOUR, cmd.Value), nil
}

// Start begins playback of the current settings in the background.
func (in *Instrument) Start(mode funcgen.Mode) error {
	if in.playDev == nil {
		return fmt.Errorf("%w: playback", ErrNoDevice)
	}

	in.startMu.Lock()
	defer in.startMu.Unlock()

	in.Stop()

	in.mu.Lock()
	cfg, dur := in.set.Stream, in.set.Duration
	in.mu.Unlock()

	if err := cfg.Validate(); err != nil {
		return err
	}
	dev, err := in.playDev()
	if err != nil {
		return fmt.Errorf("opening playback device: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &playback{
		id:     uuid.New(),
		mode:   mode,
		cancel: cancel,
		done:   make(chan struct{}),
		since:  time.Now(),
	}
	log := in.log.With(zap.String("session", p.id.String()))
	opts := append([]transfer.Option{transfer.WithLogger(log)}, in.loopOpts...)

	in.mu.Lock()
	in.play = p
	in.lastErr = nil
	in.mu.Unlock()

	log.Info("playback starting", zap.Stringer("mode", mode), zap.Stringer("waveform", cfg.Kind), zap.Float64("frequency", cfg.Frequency))

	go func() {
		defer close(p.done)
		defer dev.Close()

		st, err := funcgen.Play(ctx, dev, cfg, mode, dur, opts...)
		if err != nil {
			log.Error("playback failed", zap.Error(err))
		} else {
			log.Info("playback ended", zap.Int("batches", st.Batches), zap.Bool("stopped", st.Stopped))
		}

		in.mu.Lock()
		defer in.mu.Unlock()
		if in.play == p {
			in.play = nil
			in.lastErr = err
		}
	}()
	return nil
}

// Stop cancels the running playback and waits for it to release the device.
func (in *Instrument) Stop() {
	in.mu.Lock()
	p := in.play
	in.play = nil
	in.mu.Unlock()

	if p == nil {
		return
	}
	p.cancel()
	<-p.done
}

// Wait blocks until the running playback, if any, ends on its own.
func (in *Instrument) Wait() {
	in.mu.Lock()
	p := in.play
	in.mu.Unlock()

	if p != nil {
		<-p.done
	}
}

// Fetch captures d and returns every channel as values, averaged sample
// by sample over the configured number of captures.
func (in *Instrument) Fetch(ctx context.Context, d time.Duration) ([][]float64, error) {
	if in.capDev == nil {
		return nil, fmt.Errorf("%w: capture", ErrNoDevice)
	}

	in.mu.Lock()
	cfg, n, limit := in.set.Capture, in.set.Averages, in.set.FetchLimit
	in.mu.Unlock()

	if limit > 0 && d > limit {
		return nil, fmt.Errorf("%w: fetch of %v exceeds %v", ErrBadValue, d, limit)
	}

	id := uuid.New()
	log := in.log.With(zap.String("session", id.String()))
	opts := append([]transfer.Option{transfer.WithLogger(log)}, in.loopOpts...)

	var sum [][]float64
	for i := range n {
		ch, err := in.captureOnce(ctx, cfg, d, opts)
		if err != nil {
			return nil, fmt.Errorf("capture %d of %d: %w", i+1, n, err)
		}
		sum = accumulate(sum, ch)
	}

	for _, c := range sum {
		for i := range c {
			c[i] /= float64(n)
		}
	}
	log.Info("fetch complete", zap.Duration("duration", d), zap.Int("averages", n))
	return sum, nil
}

func (in *Instrument) captureOnce(ctx context.Context, cfg funcgen.StreamConfig, d time.Duration, opts []transfer.Option) ([][]int64, error) {
	dev, err := in.capDev()
	if err != nil {
		return nil, fmt.Errorf("opening capture device: %w", err)
	}
	defer dev.Close()

	buf, _, err := funcgen.CaptureFor(ctx, dev, cfg, d, opts...)
	if err != nil {
		return nil, err
	}
	return buf.Channels(cfg.Format, cfg.Channels)
}

// accumulate adds ch into sum sample-wise, growing sum on the first call.
func accumulate(sum [][]float64, ch [][]int64) [][]float64 {
	if sum == nil {
		sum = make([][]float64, len(ch))
		for i := range ch {
			sum[i] = make([]float64, len(ch[i]))
		}
	}
	for c := range min(len(sum), len(ch)) {
		for i := range min(len(sum[c]), len(ch[c])) {
			sum[c][i] += float64(ch[c][i])
		}
	}
	return sum
}

// Settings returns a copy of the current settings.
func (in *Instrument) Settings() Settings {
	in.mu.Lock()
	defer in.mu.Unlock()

	return in.set
}

func (in *Instrument) Status() Status {
	in.mu.Lock()
	defer in.mu.Unlock()

	s := in.set
	st := Status{
		Waveform:  s.Stream.Kind.SCPI(),
		Frequency: s.Stream.Frequency,
		Amplitude: funcgen.UnitsToVolts(s.Stream.Amplitude, s.Stream.Format),
		Offset:    funcgen.UnitsToVolts(s.Stream.Offset, s.Stream.Format),
		Duration:  s.Duration.Seconds(),
		Averages:  s.Averages,
		Rate:      s.Stream.Rate,
		Channels:  s.Stream.Channels,
		Format:    s.Stream.Format.String(),
	}
	if p := in.play; p != nil {
		st.Playing = true
		st.Mode = p.mode.String()
		st.Session = p.id.String()
		st.Since = p.since
	}
	if in.lastErr != nil && !errors.Is(in.lastErr, context.Canceled) {
		st.LastError = in.lastErr.Error()
	}
	return st
}
