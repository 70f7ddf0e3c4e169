// SPDX-License-Identifier: EPL-2.0

package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ik5/funcgen/config"
)

func TestBackends(t *testing.T) {
	t.Parallel()

	assert.ElementsMatch(t, []string{"file", "file-loop", "malgo", "oto"}, Backends().Backends())
}

func TestLoad_PlayerFlags(t *testing.T) {
	t.Parallel()

	env, err := Load("funcplayer", "player", []string{"-r", "48000", "-w", "t", "--log-level", "none"}, config.PlayerFlags)
	require.NoError(t, err)
	defer env.Close()

	assert.Equal(t, 48000, env.Viper.GetInt("player.rate"))
	assert.Equal(t, "t", env.Viper.GetString("player.waveform"))
	assert.Equal(t, "none", env.Viper.GetString("log.level"))
	assert.Equal(t, 2, env.Viper.GetInt("player.channels"), "default")
}

func TestLoad_ConfigFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "funcgen.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  listen: 127.0.0.1:7100\n  fetch_limit: 2\nlog:\n  level: none\n"), 0o600))

	env, err := Load("funcgend", "server", []string{"--config", path, "--averages", "4"}, config.ServerFlags)
	require.NoError(t, err)
	defer env.Close()

	assert.Equal(t, "127.0.0.1:7100", env.Viper.GetString("server.listen"))
	assert.InDelta(t, 2, env.Viper.GetFloat64("server.fetch_limit"), 1e-9)
	assert.Equal(t, 4, env.Viper.GetInt("server.averages"))
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	_, err := Load("funcplayer", "player", []string{"--no-such-flag"}, config.PlayerFlags)
	assert.Error(t, err)

	_, err = Load("funcplayer", "player", []string{"-h"}, config.PlayerFlags)
	assert.ErrorIs(t, err, ErrHelp)

	_, err = Load("funcreader", "reader", []string{"--config", filepath.Join(t.TempDir(), "missing.yaml")}, config.ReaderFlags)
	assert.ErrorIs(t, err, config.ErrConfigNotFound)

	_, err = Load("funcreader", "reader", []string{"--log-level", "loud"}, config.ReaderFlags)
	assert.Error(t, err)
}
