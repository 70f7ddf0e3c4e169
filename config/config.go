// SPDX-License-Identifier: EPL-2.0

// Package config loads the settings of the commands from defaults, an
// optional config file, FUNCGEN_* environment variables and command line
// flags, in increasing order of precedence.
//
// Keys are grouped by section: log.*, player.*, reader.* and server.*. The
// environment form replaces dots with underscores, so player.rate is
// FUNCGEN_PLAYER_RATE.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "FUNCGEN"

// SetDefaults installs the default of every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")

	v.SetDefault("player.backend", "malgo")
	v.SetDefault("player.device", "default")
	v.SetDefault("player.waveform", "s")
	v.SetDefault("player.rate", 192000)
	v.SetDefault("player.type", "c")
	v.SetDefault("player.channels", 2)
	v.SetDefault("player.frequency", 700.0)
	v.SetDefault("player.duration", 2.0)
	v.SetDefault("player.amplitude", 3.06)
	v.SetDefault("player.offset", 0.0)
	v.SetDefault("player.buffer", 500000)
	v.SetDefault("player.period", 100000)
	v.SetDefault("player.method", "write")
	v.SetDefault("player.format", "S24_LE")
	v.SetDefault("player.verbose", false)
	v.SetDefault("player.noresample", false)
	v.SetDefault("player.pevent", false)
	v.SetDefault("player.prefetch", 0)

	v.SetDefault("reader.backend", "malgo")
	v.SetDefault("reader.device", "default")
	v.SetDefault("reader.precision", 24)
	v.SetDefault("reader.rate", 192000)
	v.SetDefault("reader.channels", 2)
	v.SetDefault("reader.loops", 375)
	v.SetDefault("reader.seconds", 0.0)
	v.SetDefault("reader.period", 512)
	v.SetDefault("reader.output", "data.bin")
	v.SetDefault("reader.wav", "")
	v.SetDefault("reader.abort", false)

	v.SetDefault("server.listen", ":7000")
	v.SetDefault("server.http", ":8080")
	v.SetDefault("server.averages", 1)
	v.SetDefault("server.fetch_limit", 10.0)
}

// New returns a viper instance with defaults and the environment wired.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// ReadFile merges the config file at path. An empty path is a no-op; a
// missing file returns ErrConfigNotFound so callers may carry on.
func ReadFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}

	v.SetConfigFile(path)
	err := v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &notFound), errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
	}
	return fmt.Errorf("reading config %s: %w", path, err)
}

// CommonFlags adds the flags every command shares.
func CommonFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "config file (yaml, toml or json)")
	fs.String("log-level", "info", "log level: none, error, warn, info, debug")
	fs.String("log-file", "", "write JSON logs to this file instead of stderr")
}

// BindFlags binds every flag of fs under section, so --rate becomes
// <section>.rate. The common flags bind to their own keys.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet, section string) error {
	var errs []error
	fs.VisitAll(func(f *pflag.Flag) {
		key := section + "." + f.Name
		switch f.Name {
		case "config", "help":
			return
		case "log-level":
			key = "log.level"
		case "log-file":
			key = "log.file"
		}
		errs = append(errs, v.BindPFlag(key, f))
	})
	return errors.Join(errs...)
}

// Log is the logging section.
type Log struct {
	Level string
	File  string
}

func LoadLog(v *viper.Viper) Log {
	return Log{
		Level: v.GetString("log.level"),
		File:  v.GetString("log.file"),
	}
}
