// SPDX-License-Identifier: EPL-2.0

// Package cli holds the start-up shared by the commands: flag parsing into
// viper, logger construction and the device backend registry.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ik5/funcgen/config"
	"github.com/ik5/funcgen/device"
	"github.com/ik5/funcgen/device/filedev"
	"github.com/ik5/funcgen/device/malgodev"
	"github.com/ik5/funcgen/device/otodev"
	"github.com/ik5/funcgen/internal/logging"
)

// ErrHelp is returned when the user asked for usage only.
var ErrHelp = pflag.ErrHelp

// Backends returns the registry of every device backend. "file" reads or
// writes a file in real time, "file-loop" also restarts capture at the end
// of the file.
func Backends() *device.Registry {
	r := device.NewRegistry()
	r.Register("malgo", malgodev.Opener())
	r.Register("oto", otodev.Opener())
	r.Register("file", filedev.Opener(filedev.WithPacing()))
	r.Register("file-loop", filedev.Opener(filedev.WithPacing(), filedev.WithLoop()))
	return r
}

// Env is what a command works with once its configuration is loaded.
type Env struct {
	Viper *viper.Viper
	Log   *zap.Logger
	close func() error
}

// Close flushes the logger and closes its file.
func (e *Env) Close() error {
	if e.close != nil {
		return e.close()
	}
	return nil
}

// Load parses args with the common flags plus those added by define, binds
// them under section and builds the logger.
func Load(name, section string, args []string, define func(*pflag.FlagSet)) (*Env, error) {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SortFlags = false
	config.CommonFlags(fs)
	define(fs)

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := config.New()
	bind := func() error { return config.BindFlags(v, fs, section) }
	if section == "server" {
		bind = func() error { return config.BindServerFlags(v, fs) }
	}
	if err := bind(); err != nil {
		return nil, fmt.Errorf("binding flags: %w", err)
	}

	path, _ := fs.GetString("config")
	if err := config.ReadFile(v, path); err != nil {
		return nil, err
	}

	lc := config.LoadLog(v)
	log, closeLog, err := logging.New(lc.Level, lc.File)
	if err != nil {
		return nil, err
	}
	return &Env{Viper: v, Log: log.Named(name), close: closeLog}, nil
}

// Exit reports err and terminates with the status the commands share:
// 0 on success or help, 1 otherwise.
func Exit(env *Env, err error) {
	if env != nil {
		if err != nil {
			env.Log.Error("fatal", zap.Error(err))
		}
		env.Close()
	}
	switch {
	case err == nil, errors.Is(err, ErrHelp):
		os.Exit(0)
	}
	if env == nil {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(1)
}
