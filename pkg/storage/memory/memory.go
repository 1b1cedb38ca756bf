// Package memory provides an ephemeral, memory-backed implementation of [osm.HistorySource].
//
// It serves feature histories from fixture files (the OSM API history JSON format, or the same
// structure written as YAML) and is used for offline blame computations and in tests.
package memory

import (
	"context"
	"fmt"
	"os"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"sigs.k8s.io/yaml"

	"github.com/K-rankenste-in/facilpad/pkg/osm"
)

var tracer = otel.Tracer("osmblame/pkg/storage/memory")

// StorageOption defines a function type used for configuring a [MemoryBackend] instance.
type StorageOption func(ds *MemoryBackend)

// WithLatency returns a [StorageOption] that delays every history read, to simulate a remote source.
func WithLatency(d time.Duration) StorageOption {
	return func(ds *MemoryBackend) { ds.latency = d }
}

// MemoryBackend provides an ephemeral memory-backed implementation of [osm.HistorySource].
// These instances may be safely shared by multiple go-routines.
type MemoryBackend struct {
	latency time.Duration

	// map: feature key => versions
	histories map[osm.Key][]*osm.Feature // GUARDED_BY(mu).
	mu        sync.RWMutex

	// map: feature key => number of FeatureHistory calls
	reads   map[osm.Key]int // GUARDED_BY(readsMu).
	readsMu sync.Mutex
}

// Ensures that [MemoryBackend] implements the [osm.HistorySource] interface.
var _ osm.HistorySource = (*MemoryBackend)(nil)

// New creates a new [MemoryBackend] given the options.
func New(opts ...StorageOption) *MemoryBackend {
	ds := &MemoryBackend{
		histories: make(map[osm.Key][]*osm.Feature),
		reads:     make(map[osm.Key]int),
	}

	for _, opt := range opts {
		opt(ds)
	}

	return ds
}

// Write adds feature versions to the store. Versions may be written in any order.
// Writing a version that already exists replaces it.
func (s *MemoryBackend) Write(versions ...*osm.Feature) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, v := range versions {
		k := v.Key()
		existing := s.histories[k]
		idx := slices.IndexFunc(existing, func(f *osm.Feature) bool { return f.Version == v.Version })
		if idx >= 0 {
			existing[idx] = v
		} else {
			existing = append(existing, v)
		}
		s.histories[k] = existing
	}
}

// FeatureHistory see [osm.HistorySource].FeatureHistory.
func (s *MemoryBackend) FeatureHistory(ctx context.Context, featureType osm.FeatureType, id int64) (osm.History, error) {
	_, span := tracer.Start(ctx, "memory.FeatureHistory")
	defer span.End()
	span.SetAttributes(attribute.String("feature_type", string(featureType)), attribute.Int64("feature_id", id))

	k := osm.Key{Type: featureType, ID: id}

	s.readsMu.Lock()
	s.reads[k]++
	s.readsMu.Unlock()

	if s.latency > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.latency):
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	versions, ok := s.histories[k]
	if !ok {
		return nil, fmt.Errorf("%s: %w", k, osm.ErrNotFound)
	}

	return osm.NewHistory(versions...), nil
}

// Reads returns how many times the history of the given feature was requested.
func (s *MemoryBackend) Reads(featureType osm.FeatureType, id int64) int {
	s.readsMu.Lock()
	defer s.readsMu.Unlock()

	return s.reads[osm.Key{Type: featureType, ID: id}]
}

// Close does not do anything for [MemoryBackend].
func (s *MemoryBackend) Close() {}

type fixtureFile struct {
	Elements []fixtureElement `json:"elements"`
}

type fixtureElement struct {
	osm.Feature
	Visible *bool `json:"visible,omitempty"`
}

// Load parses a fixture document and writes all of its elements into the store.
// The document uses the structure of the OSM API history JSON ({"elements": [...]}), either
// as JSON or as YAML. Elements without a "visible" field are treated as visible; elements
// without a timestamp are rejected.
func (s *MemoryBackend) Load(data []byte) error {
	var file fixtureFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse history fixture: %w", err)
	}

	versions := make([]*osm.Feature, 0, len(file.Elements))
	for i, e := range file.Elements {
		if _, err := osm.ParseFeatureType(string(e.Type)); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
		f := e.Feature
		if f.Timestamp.IsZero() {
			return fmt.Errorf("element %d (%s): missing timestamp", i, f.VersionKey())
		}
		f.Visible = e.Visible == nil || *e.Visible
		versions = append(versions, &f)
	}

	s.Write(versions...)
	return nil
}

// LoadFile reads a fixture file from disk, see [MemoryBackend.Load].
func (s *MemoryBackend) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read history fixture: %w", err)
	}
	return s.Load(data)
}
