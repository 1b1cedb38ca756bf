package osm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func ts(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestHistoryAt(t *testing.T) {
	v1 := &Feature{Type: NodeType, ID: 1, Version: 1, Visible: true, Timestamp: ts("2020-01-01T00:00:00Z")}
	v2 := &Feature{Type: NodeType, ID: 1, Version: 2, Visible: true, Timestamp: ts("2021-01-01T00:00:00Z")}
	v3 := &Feature{Type: NodeType, ID: 1, Version: 3, Visible: false, Timestamp: ts("2022-01-01T00:00:00Z")}
	v4 := &Feature{Type: NodeType, ID: 1, Version: 4, Visible: true, Timestamp: ts("2023-01-01T00:00:00Z")}

	h := NewHistory(v4, v2, v3, v1)

	t.Run("latest", func(t *testing.T) {
		require.Same(t, v4, h.Latest())
	})

	t.Run("zero_time_is_a_point_in_time", func(t *testing.T) {
		undated := &Feature{Type: NodeType, ID: 2, Version: 1, Visible: true}
		require.Same(t, undated, NewHistory(undated).At(time.Time{}))
		require.Nil(t, h.At(time.Time{}))
	})

	t.Run("before_creation_returns_nil", func(t *testing.T) {
		require.Nil(t, h.At(ts("2019-06-01T00:00:00Z")))
	})

	t.Run("exact_timestamp_is_inclusive", func(t *testing.T) {
		require.Same(t, v2, h.At(ts("2021-01-01T00:00:00Z")))
	})

	t.Run("between_versions_returns_older", func(t *testing.T) {
		require.Same(t, v1, h.At(ts("2020-12-31T23:59:59Z")))
	})

	t.Run("deleted_version_resolves_to_nil", func(t *testing.T) {
		require.Nil(t, h.At(ts("2022-06-01T00:00:00Z")))
	})

	t.Run("latest_deleted", func(t *testing.T) {
		require.Nil(t, NewHistory(v1, v3).Latest())
	})

	t.Run("empty_history", func(t *testing.T) {
		require.Nil(t, History(nil).Latest())
		require.Nil(t, History(nil).At(ts("2020-01-01T00:00:00Z")))
	})
}

func TestBboxForNodes(t *testing.T) {
	_, ok := BboxForNodes(nil)
	require.False(t, ok)

	b, ok := BboxForNodes([]*Feature{
		{Type: NodeType, ID: 1, Lat: 52.5, Lon: 13.4},
		{Type: NodeType, ID: 2, Lat: 48.1, Lon: 11.6},
		{Type: NodeType, ID: 3, Lat: 50.0, Lon: 8.7},
	})
	require.True(t, ok)
	require.Equal(t, Bbox{Top: 52.5, Bottom: 48.1, Left: 8.7, Right: 13.4}, b)
}

func TestParseFeatureType(t *testing.T) {
	for _, s := range []string{"node", "way", "relation"} {
		ft, err := ParseFeatureType(s)
		require.NoError(t, err)
		require.Equal(t, FeatureType(s), ft)
	}

	_, err := ParseFeatureType("changeset")
	require.Error(t, err)
}

func TestFeatureCoordinates(t *testing.T) {
	n := &Feature{Type: NodeType, Lat: 52.5170365, Lon: 13.3888599}
	require.Equal(t, "52.5170365,13.3888599", n.Coordinates())
	require.Equal(t, "way/42/v3", VersionKey{Type: WayType, ID: 42, Version: 3}.String())
}
