// Package cmd contains all the commands included in the binary file.
package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NewRootCommand enables all children commands to read flags from CLI flags, environment variables prefixed with OSMBLAME, or config.yaml (in that order).
func NewRootCommand() *cobra.Command {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("OSMBLAME")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	configPaths := []string{"/etc/osmblame", "$HOME/.osmblame", "."}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	return &cobra.Command{
		Use:   "osmblame",
		Short: "Find out which changesets made an OpenStreetMap way or relation look the way it does",
		Long: `Find out which changesets made an OpenStreetMap way or relation look the way it does.

osmblame walks back through the version history of a feature and all of its members and attributes
every segment of its current geometry to the change that put it there.`,
		SilenceUsage: true,
	}
}
