//go:generate mockgen -source osm.go -destination ../../internal/mocks/mock_history_source.go -package mocks HistorySource

// Package osm contains the versioned feature model of the map dataset and the
// interface of the history source the blame engine reads from.
package osm

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ErrNotFound is returned by a HistorySource when it has no feature with the requested type and id.
var ErrNotFound = errors.New("not found")

type FeatureType string

const (
	NodeType     FeatureType = "node"
	WayType      FeatureType = "way"
	RelationType FeatureType = "relation"
)

// ParseFeatureType converts the textual feature type used by the OSM API into a FeatureType.
func ParseFeatureType(s string) (FeatureType, error) {
	switch t := FeatureType(s); t {
	case NodeType, WayType, RelationType:
		return t, nil
	default:
		return "", fmt.Errorf("unknown feature type %q", s)
	}
}

// order is used to break ties deterministically.
func (t FeatureType) order() int {
	switch t {
	case NodeType:
		return 0
	case WayType:
		return 1
	default:
		return 2
	}
}

// Compare orders feature types node < way < relation.
func (t FeatureType) Compare(other FeatureType) int {
	return t.order() - other.order()
}

// Key identifies a feature across all of its versions.
type Key struct {
	Type FeatureType
	ID   int64
}

func (k Key) String() string {
	return string(k.Type) + "/" + strconv.FormatInt(k.ID, 10)
}

// VersionKey identifies one specific version of a feature.
type VersionKey struct {
	Type    FeatureType
	ID      int64
	Version int
}

func (k VersionKey) String() string {
	return k.Key().String() + "/v" + strconv.Itoa(k.Version)
}

func (k VersionKey) Key() Key {
	return Key{Type: k.Type, ID: k.ID}
}

// Member is one typed, roled reference of a relation.
type Member struct {
	Type FeatureType `json:"type"`
	Ref  int64       `json:"ref"`
	Role string      `json:"role"`
}

// Feature is one concrete version of a node, way or relation.
// Lat/Lon are only set on nodes, Nodes only on ways and Members only on relations.
type Feature struct {
	Type      FeatureType       `json:"type"`
	ID        int64             `json:"id"`
	Version   int               `json:"version"`
	Changeset int64             `json:"changeset"`
	User      string            `json:"user"`
	UID       int64             `json:"uid,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Visible   bool              `json:"visible"`
	Tags      map[string]string `json:"tags,omitempty"`

	Lat float64 `json:"lat,omitempty"`
	Lon float64 `json:"lon,omitempty"`

	Nodes []int64 `json:"nodes,omitempty"`

	Members []Member `json:"members,omitempty"`
}

func (f *Feature) Key() Key {
	return Key{Type: f.Type, ID: f.ID}
}

func (f *Feature) VersionKey() VersionKey {
	return VersionKey{Type: f.Type, ID: f.ID, Version: f.Version}
}

// Coordinates renders the position of a node as "lat,lon" using the shortest
// representation that round-trips.
func (f *Feature) Coordinates() string {
	return strconv.FormatFloat(f.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(f.Lon, 'f', -1, 64)
}

// HistorySource provides the ordered list of all versions of a feature.
//
// Implementations return ErrNotFound (possibly wrapped) if the feature is unknown.
type HistorySource interface {
	FeatureHistory(ctx context.Context, featureType FeatureType, id int64) (History, error)
}
