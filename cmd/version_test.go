package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/K-rankenste-in/facilpad/internal/build"
)

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd := NewRootCommand()
	rootCmd.AddCommand(NewVersionCommand())
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})

	require.NoError(t, rootCmd.Execute())
	require.Equal(t, "osmblame version "+build.Version+" date "+build.Date+" commit id "+build.Commit+"\n", out.String())
}
