// SPDX-License-Identifier: EPL-2.0

// Command funcreader captures from an audio device into a flat file of
// little-endian records, one per frame, and optionally a WAV copy.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ik5/funcgen"
	"github.com/ik5/funcgen/capture"
	"github.com/ik5/funcgen/config"
	"github.com/ik5/funcgen/device"
	"github.com/ik5/funcgen/internal/cli"
	"github.com/ik5/funcgen/transfer"
)

func main() {
	env, err := cli.Load("funcreader", "reader", os.Args[1:], config.ReaderFlags)
	if err != nil {
		cli.Exit(nil, err)
	}
	cli.Exit(env, run(env))
}

func run(env *cli.Env) error {
	r, err := config.LoadReader(env.Viper)
	if err != nil {
		return err
	}
	log := env.Log.With(zap.String("session", uuid.NewString()))

	dev, err := cli.Backends().Open(r.Backend, r.Device, device.Capture, log)
	if err != nil {
		return err
	}
	defer dev.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []transfer.Option{transfer.WithLogger(log)}
	if r.Abort {
		opts = append(opts, transfer.WithReadFaultPolicy(transfer.AbortOnReadFault))
	}

	var (
		buf *capture.Buffer
		st  transfer.Stats
	)
	if r.Duration > 0 {
		buf, st, err = funcgen.CaptureFor(ctx, dev, r.Stream, r.Duration, opts...)
	} else {
		buf, st, err = funcgen.Capture(ctx, dev, r.Stream, r.Loops, opts...)
	}
	if buf == nil {
		return err
	}

	// what was collected is kept even when the capture aborted
	werr := save(r, buf, log)
	log.Info("capture saved",
		zap.String("output", r.Output),
		zap.Int("frames", buf.Frames()),
		zap.Int("read_faults", st.ReadFaults),
	)
	return errors.Join(err, werr)
}

func save(r config.Reader, buf *capture.Buffer, log *zap.Logger) error {
	if err := capture.WriteFile(r.Output, buf); err != nil {
		return err
	}
	if r.WAV == "" {
		return nil
	}
	s := r.Stream
	if err := capture.WriteWAVFile(r.WAV, buf, s.Format, s.Rate, s.Channels); err != nil {
		return err
	}
	log.Info("wav written", zap.String("path", r.WAV))
	return nil
}
