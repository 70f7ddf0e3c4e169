// SPDX-License-Identifier: EPL-2.0

// Command funcplayer plays a generated waveform on an audio device, either
// until interrupted or for a fixed duration.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ik5/funcgen"
	"github.com/ik5/funcgen/config"
	"github.com/ik5/funcgen/device"
	"github.com/ik5/funcgen/internal/cli"
	"github.com/ik5/funcgen/transfer"
)

func main() {
	env, err := cli.Load("funcplayer", "player", os.Args[1:], config.PlayerFlags)
	if err != nil {
		cli.Exit(nil, err)
	}
	cli.Exit(env, run(env))
}

func run(env *cli.Env) error {
	p, err := config.LoadPlayer(env.Viper)
	if err != nil {
		return err
	}

	log := env.Log.With(zap.String("session", uuid.NewString()))
	if p.Verbose {
		printSettings(p)
	}

	dev, err := cli.Backends().Open(p.Backend, p.Device, device.Playback, log)
	if err != nil {
		return err
	}
	defer dev.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []transfer.Option{transfer.WithLogger(log)}
	if p.Prefetch > 0 {
		opts = append(opts, transfer.WithPrefetch(p.Prefetch))
	}

	st, err := funcgen.Play(ctx, dev, p.Stream, p.Mode, p.Duration, opts...)
	if err != nil {
		return err
	}
	if p.Verbose {
		fmt.Printf("played %d periods, %d frames in %v\n", st.Batches, st.Frames, st.Elapsed.Round(time.Millisecond))
	}
	return nil
}

func printSettings(p config.Player) {
	s := p.Stream
	fmt.Printf("Playback device is %s (%s)\n", p.Device, p.Backend)
	fmt.Printf("Stream parameters are %dHz, %s, %d channels\n", s.Rate, s.Format, s.Channels)
	fmt.Printf("Wave parameters are %s, %.1fHz, amplitude %.3fV (%d), offset %.3fV (%d)\n",
		s.Kind, s.Frequency, p.AmplitudeVolts, s.Amplitude, p.OffsetVolts, s.Offset)
	fmt.Printf("Buffer %v, period %v, %s", s.BufferTime, s.PeriodTime, p.Mode)
	if p.Mode == funcgen.Limited {
		fmt.Printf(" for %v", p.Duration)
	}
	fmt.Println()
}
