// SPDX-License-Identifier: EPL-2.0

// Command funcgend runs the function generator as a network instrument:
// SCPI-style queries over TCP, with health and metrics over HTTP.
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ik5/funcgen/config"
	"github.com/ik5/funcgen/device"
	"github.com/ik5/funcgen/internal/cli"
	"github.com/ik5/funcgen/internal/httpapi"
	"github.com/ik5/funcgen/scpi"
)

const identity = "funcgen,audio function generator"

func main() {
	env, err := cli.Load("funcgend", "server", os.Args[1:], config.ServerFlags)
	if err != nil {
		cli.Exit(nil, err)
	}
	cli.Exit(env, run(env))
}

func run(env *cli.Env) error {
	cfg, err := config.LoadServer(env.Viper)
	if err != nil {
		return err
	}
	log := env.Log

	backends := cli.Backends()
	open := func(backend, target string, dir device.Direction) scpi.DeviceFunc {
		return func() (device.Device, error) {
			return backends.Open(backend, target, dir, log)
		}
	}

	inst := scpi.NewInstrument(scpi.Settings{
		Stream:         cfg.Player.Stream,
		AmplitudeVolts: cfg.Player.AmplitudeVolts,
		OffsetVolts:    cfg.Player.OffsetVolts,
		Duration:       cfg.Player.Duration,
		Averages:       cfg.Averages,
		Capture:        cfg.Reader.Stream,
		FetchLimit:     cfg.FetchLimit,
	},
		open(cfg.Player.Backend, cfg.Player.Device, device.Playback),
		open(cfg.Reader.Backend, cfg.Reader.Device, device.Capture),
		scpi.WithLogger(log.Named("instrument")),
		scpi.WithIdentity(identity),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return scpi.NewServer(inst, log.Named("scpi")).Serve(gctx, ln)
	})

	if cfg.HTTP != "" {
		srv := &http.Server{
			Addr:         cfg.HTTP,
			Handler:      httpapi.NewRouter(inst.Status, log.Named("http")),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 20 * time.Second,
		}
		g.Go(func() error {
			log.Info("http listening", zap.String("addr", cfg.HTTP))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(sctx)
		})
	}

	err = g.Wait()
	log.Info("instrument stopped")
	return err
}
