package memory

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/K-rankenste-in/facilpad/pkg/osm"
)

const fixtureYAML = `
elements:
  - type: node
    id: 1
    version: 2
    changeset: 20
    user: bob
    uid: 2
    timestamp: "2021-01-01T00:00:00Z"
    lat: 52.5
    lon: 13.4
  - type: node
    id: 1
    version: 1
    changeset: 10
    user: alice
    uid: 1
    timestamp: "2020-01-01T00:00:00Z"
    lat: 52.4
    lon: 13.3
  - type: way
    id: 7
    version: 1
    changeset: 10
    user: alice
    timestamp: "2020-01-01T00:00:00Z"
    nodes: [1, 2]
  - type: way
    id: 7
    version: 2
    changeset: 30
    user: carol
    timestamp: "2022-01-01T00:00:00Z"
    visible: false
`

func TestLoad(t *testing.T) {
	ds := New()
	t.Cleanup(ds.Close)

	require.NoError(t, ds.Load([]byte(fixtureYAML)))

	ctx := context.Background()

	h, err := ds.FeatureHistory(ctx, osm.NodeType, 1)
	require.NoError(t, err)
	require.Len(t, h, 2)
	require.Equal(t, 1, h[0].Version)
	require.Equal(t, 2, h[1].Version)
	require.True(t, h[1].Visible)
	require.Equal(t, "bob", h[1].User)
	require.InDelta(t, 52.5, h[1].Lat, 0)
	require.Equal(t, time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), h[1].Timestamp.UTC())

	w, err := ds.FeatureHistory(ctx, osm.WayType, 7)
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2}, w[0].Nodes)
	require.False(t, w[1].Visible)
	require.Nil(t, w.Latest())
}

func TestLoadJSON(t *testing.T) {
	ds := New()

	err := ds.Load([]byte(`{"version":"0.6","elements":[{"type":"relation","id":3,"version":1,"changeset":5,"user":"dave","timestamp":"2019-05-05T10:00:00Z","members":[{"type":"way","ref":7,"role":"outer"}]}]}`))
	require.NoError(t, err)

	h, err := ds.FeatureHistory(context.Background(), osm.RelationType, 3)
	require.NoError(t, err)
	require.Equal(t, []osm.Member{{Type: osm.WayType, Ref: 7, Role: "outer"}}, h.Latest().Members)
}

func TestLoadRejectsUnknownType(t *testing.T) {
	ds := New()
	err := ds.Load([]byte(`elements: [{type: changeset, id: 1, version: 1}]`))
	require.Error(t, err)
}

func TestLoadRejectsMissingTimestamp(t *testing.T) {
	ds := New()
	err := ds.Load([]byte(`elements:
- {type: node, id: 1, version: 1, timestamp: "2020-01-01T00:00:00Z", lat: 0, lon: 0}
- {type: node, id: 1, version: 2, lat: 0, lon: 1}
`))
	require.ErrorContains(t, err, "element 1 (node/1/v2): missing timestamp")

	_, err = ds.FeatureHistory(context.Background(), osm.NodeType, 1)
	require.ErrorIs(t, err, osm.ErrNotFound)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fixtureYAML), 0o600))

	ds := New()
	require.NoError(t, ds.LoadFile(path))

	_, err := ds.FeatureHistory(context.Background(), osm.WayType, 7)
	require.NoError(t, err)

	require.Error(t, ds.LoadFile(filepath.Join(t.TempDir(), "missing.yaml")))
}

func TestFeatureHistoryNotFound(t *testing.T) {
	ds := New()

	_, err := ds.FeatureHistory(context.Background(), osm.WayType, 404)
	require.ErrorIs(t, err, osm.ErrNotFound)
	require.Equal(t, 1, ds.Reads(osm.WayType, 404))
}

func TestWriteReplacesVersion(t *testing.T) {
	ds := New()
	ds.Write(&osm.Feature{Type: osm.NodeType, ID: 1, Version: 1, User: "alice", Visible: true})
	ds.Write(&osm.Feature{Type: osm.NodeType, ID: 1, Version: 1, User: "bob", Visible: true})

	h, err := ds.FeatureHistory(context.Background(), osm.NodeType, 1)
	require.NoError(t, err)
	require.Len(t, h, 1)
	require.Equal(t, "bob", h[0].User)
}

func TestLatencyRespectsContext(t *testing.T) {
	ds := New(WithLatency(time.Hour))
	ds.Write(&osm.Feature{Type: osm.NodeType, ID: 1, Version: 1, Visible: true})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ds.FeatureHistory(ctx, osm.NodeType, 1)
	require.ErrorIs(t, err, context.Canceled)
}

func TestConcurrentReadsNoRace(t *testing.T) {
	ds := New()
	ds.Write(&osm.Feature{Type: osm.NodeType, ID: 1, Version: 1, Visible: true})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ds.FeatureHistory(context.Background(), osm.NodeType, 1)
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	require.Equal(t, 10, ds.Reads(osm.NodeType, 1))
}
