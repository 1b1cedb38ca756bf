package util

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	serverconfig "github.com/K-rankenste-in/facilpad/internal/server/config"
	"github.com/K-rankenste-in/facilpad/pkg/logger"
	"github.com/K-rankenste-in/facilpad/pkg/osm"
	"github.com/K-rankenste-in/facilpad/pkg/storage/memory"
	"github.com/K-rankenste-in/facilpad/pkg/storage/osmapi"
)

const fixture = `elements:
  - {type: node, id: 1, version: 1, changeset: 1, user: alice, timestamp: "2020-01-01T00:00:00Z", lat: 1, lon: 1}
  - {type: node, id: 2, version: 1, changeset: 1, user: alice, timestamp: "2020-01-01T00:00:00Z", lat: 2, lon: 2}
  - {type: way, id: 3, version: 1, changeset: 1, user: alice, timestamp: "2020-01-01T00:00:00Z", nodes: [1, 2]}
`

func TestEnvName(t *testing.T) {
	require.Equal(t, "OSMBLAME_OSM_API_URL", EnvName("osm-api-url"))
	require.Equal(t, "OSMBLAME_LOG_TIMESTAMP_FORMAT", EnvName("log-timestamp-format"))
}

func TestBindFlags(t *testing.T) {
	command := &cobra.Command{Use: "test"}
	command.Flags().String("test-bind-flags", "default", "")

	BindFlags(command.Flags(), map[string]string{"test-bind-flags": "test.bindFlags"})
	require.Equal(t, "default", viper.GetString("test.bindFlags"))

	t.Setenv("OSMBLAME_TEST_BIND_FLAGS", "from-env")
	require.Equal(t, "from-env", viper.GetString("test.bindFlags"))

	require.NoError(t, command.Flags().Set("test-bind-flags", "from-flag"))
	require.Equal(t, "from-flag", viper.GetString("test.bindFlags"))

	require.Panics(t, func() {
		BindFlags(command.Flags(), map[string]string{"unknown": "test.unknown"})
	})
}

func TestReadConfigIgnoresMissingFile(t *testing.T) {
	PrepareTempConfigDir(t)

	cfg, err := ReadConfig()
	require.NoError(t, err)
	require.NoError(t, cfg.Verify())
}

func TestNewHistorySource(t *testing.T) {
	cfg := serverconfig.DefaultConfig()

	t.Run("api", func(t *testing.T) {
		source, err := NewHistorySource(&cfg.OSM, "")
		require.NoError(t, err)
		require.IsType(t, &osmapi.Client{}, source)
	})

	t.Run("history_file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "history.yaml")
		require.NoError(t, os.WriteFile(path, []byte(fixture), 0o600))

		source, err := NewHistorySource(&cfg.OSM, path)
		require.NoError(t, err)
		require.IsType(t, &memory.MemoryBackend{}, source)

		h, err := source.FeatureHistory(context.Background(), osm.WayType, 3)
		require.NoError(t, err)
		require.Equal(t, []int64{1, 2}, h.Latest().Nodes)
	})

	t.Run("missing_history_file", func(t *testing.T) {
		_, err := NewHistorySource(&cfg.OSM, filepath.Join(t.TempDir(), "missing.yaml"))
		require.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestNewEngine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fixture), 0o600))

	cfg := serverconfig.DefaultConfig()
	source, err := NewHistorySource(&cfg.OSM, path)
	require.NoError(t, err)

	res, err := NewEngine(cfg, source, logger.NewNoopLogger()).Blame(context.Background(), osm.WayType, 3)
	require.NoError(t, err)
	require.Len(t, res.Segments, 1)
	require.Equal(t, "alice", res.Segments[0].User)
}
