package main

import (
	"os"

	"github.com/K-rankenste-in/facilpad/cmd"
	"github.com/K-rankenste-in/facilpad/cmd/blame"
	"github.com/K-rankenste-in/facilpad/cmd/run"
)

func main() {
	rootCmd := cmd.NewRootCommand()

	runCmd := run.NewRunCommand()
	rootCmd.AddCommand(runCmd)

	blameCmd := blame.NewBlameCommand()
	rootCmd.AddCommand(blameCmd)

	versionCmd := cmd.NewVersionCommand()
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
