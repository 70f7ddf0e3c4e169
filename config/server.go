// SPDX-License-Identifier: EPL-2.0

package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ServerFlags defines the daemon's own flags. Player and reader keys come
// from the config file or the environment.
func ServerFlags(fs *pflag.FlagSet) {
	fs.String("listen", ":7000", "instrument protocol address")
	fs.String("http", ":8080", "health and metrics address, empty to disable")
	fs.Int("averages", 1, "captures averaged by FETC")
	fs.Float64("fetch-limit", 10, "longest FETC capture in seconds")
}

// BindServerFlags binds the daemon flags under server.*.
func BindServerFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range map[string]string{
		"listen":      "server.listen",
		"http":        "server.http",
		"averages":    "server.averages",
		"fetch-limit": "server.fetch_limit",
		"log-level":   "log.level",
		"log-file":    "log.file",
	} {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return err
		}
	}
	return nil
}

// Server is the daemon configuration.
type Server struct {
	Listen     string
	HTTP       string
	Averages   int
	FetchLimit time.Duration
	Player     Player
	Reader     Reader
}

// LoadServer resolves the daemon section together with the player and
// reader sections it starts sessions from.
func LoadServer(v *viper.Viper) (Server, error) {
	p, err := LoadPlayer(v)
	if err != nil {
		return Server{}, fmt.Errorf("player: %w", err)
	}
	r, err := LoadReader(v)
	if err != nil {
		return Server{}, fmt.Errorf("reader: %w", err)
	}

	s := Server{
		Listen:     v.GetString("server.listen"),
		HTTP:       v.GetString("server.http"),
		Averages:   max(v.GetInt("server.averages"), 1),
		FetchLimit: time.Duration(v.GetFloat64("server.fetch_limit") * float64(time.Second)),
		Player:     p,
		Reader:     r,
	}
	if s.Listen == "" {
		return Server{}, fmt.Errorf("%w: empty listen address", ErrInvalidSetting)
	}
	if s.FetchLimit <= 0 {
		return Server{}, fmt.Errorf("%w: fetch limit %v", ErrInvalidSetting, s.FetchLimit)
	}
	return s, nil
}
