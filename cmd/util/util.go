// Package util provides common utilities for spf13/cobra CLI utilities
// that can be used for various commands within this project.
package util

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

// EnvPrefix prefixes every environment variable read by osmblame.
const EnvPrefix = "OSMBLAME"

// MustBindPFlag attempts to bind a specific key to a pflag (as used by cobra) and panics
// if the binding fails with a non-nil error.
func MustBindPFlag(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic("failed to bind pflag: " + err.Error())
	}
}

func MustBindEnv(input ...string) {
	if err := viper.BindEnv(input...); err != nil {
		panic("failed to bind env key: " + err.Error())
	}
}

// EnvName returns the environment variable of a flag, e.g. OSMBLAME_OSM_API_URL for osm-api-url.
func EnvName(flagName string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(flagName, "-", "_"))
}

// BindFlags binds each flag named in bindings to its config key and to its environment variable.
//
// Several commands define the same flags, and viper keeps a single binding per key. Commands
// therefore bind their flags when they run rather than when they are built.
func BindFlags(flags *pflag.FlagSet, bindings map[string]string) {
	for name, key := range bindings {
		flag := flags.Lookup(name)
		if flag == nil {
			panic("unknown flag: " + name)
		}
		MustBindPFlag(key, flag)
		MustBindEnv(key, EnvName(name))
	}
}

func PrepareTempConfigDir(t *testing.T) string {
	_, err := os.Stat("/etc/osmblame/config.yaml")
	require.ErrorIs(t, err, os.ErrNotExist, "Config file at /etc/osmblame/config.yaml would disturb test result.")

	homedir := t.TempDir()
	t.Setenv("HOME", homedir)

	confdir := filepath.Join(homedir, ".osmblame")
	require.NoError(t, os.Mkdir(confdir, 0750))

	return confdir
}

func PrepareTempConfigFile(t *testing.T, config string) {
	confdir := PrepareTempConfigDir(t)
	confFile, err := os.Create(filepath.Join(confdir, "config.yaml"))
	require.NoError(t, err)
	_, err = confFile.WriteString(config)
	require.NoError(t, err)
	require.NoError(t, confFile.Close())
}
