package blame

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/K-rankenste-in/facilpad/internal/build"
	"github.com/K-rankenste-in/facilpad/pkg/osm"
	"github.com/K-rankenste-in/facilpad/pkg/telemetry"
)

var (
	historyFetchCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: build.ProjectName,
		Name:      "history_fetch_count",
		Help:      "The total number of feature histories fetched from the history source.",
	}, []string{"feature_type"})

	deduplicatedHistoryFetchCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: build.ProjectName,
		Name:      "deduplicated_history_fetch_count",
		Help:      "The total number of history lookups answered without a fetch because of memoization or deduplication of concurrent lookups.",
	})
)

// historyCache memoizes feature histories for the duration of one blame computation, so that a
// feature referenced from several places in the hierarchy (and from every convergence
// iteration) is fetched at most once. Concurrent lookups of the same feature share one fetch.
//
// A not-found answer is memoized as well. Other errors are not, they abort the computation.
//
// All fetches of one computation share a single limit on the number of requests in flight,
// however deeply the hierarchy nests.
type historyCache struct {
	source osm.HistorySource
	group  singleflight.Group
	limit  *semaphore.Weighted // nil means no limit.

	mu      sync.Mutex
	entries map[osm.Key]historyEntry // GUARDED_BY(mu).
}

type historyEntry struct {
	history  osm.History
	notFound bool
}

// newHistoryCache returns an empty cache. A maxConcurrentFetches <= 0 means no limit.
func newHistoryCache(source osm.HistorySource, maxConcurrentFetches int) *historyCache {
	c := &historyCache{
		source:  source,
		entries: make(map[osm.Key]historyEntry),
	}
	if maxConcurrentFetches > 0 {
		c.limit = semaphore.NewWeighted(int64(maxConcurrentFetches))
	}
	return c
}

// get returns the history of the given feature. It returns an error wrapping [osm.ErrNotFound]
// if the source does not know the feature.
func (c *historyCache) get(ctx context.Context, key osm.Key) (osm.History, error) {
	c.mu.Lock()
	entry, ok := c.entries[key]
	c.mu.Unlock()
	if ok {
		deduplicatedHistoryFetchCounter.Inc()
		return entry.result(key)
	}

	isUnique := false
	res, err, shared := c.group.Do(key.String(), func() (interface{}, error) {
		isUnique = true
		c.mu.Lock()
		entry, ok := c.entries[key]
		c.mu.Unlock()
		if ok {
			// stored by a fetch that completed after the check above
			return entry, nil
		}
		return c.fetch(ctx, key)
	})
	if shared && !isUnique {
		deduplicatedHistoryFetchCounter.Inc()
	}
	if err != nil {
		return nil, err
	}

	return res.(historyEntry).result(key)
}

func (c *historyCache) fetch(ctx context.Context, key osm.Key) (historyEntry, error) {
	ctx, span := tracer.Start(ctx, "historyCache.fetch")
	defer span.End()
	span.SetAttributes(attribute.String("feature", key.String()))

	if c.limit != nil {
		start := time.Now()
		if err := c.limit.Acquire(ctx, 1); err != nil {
			return historyEntry{}, err
		}
		defer c.limit.Release(1)
		span.SetAttributes(attribute.Int64("time_waiting", time.Since(start).Milliseconds()))
	}

	historyFetchCounter.WithLabelValues(string(key.Type)).Inc()

	h, err := c.source.FeatureHistory(ctx, key.Type, key.ID)
	var entry historyEntry
	switch {
	case errors.Is(err, osm.ErrNotFound):
		entry = historyEntry{notFound: true}
	case err != nil:
		telemetry.TraceError(span, err)
		return historyEntry{}, fmt.Errorf("failed to fetch history of %s: %w", key, err)
	default:
		entry = historyEntry{history: h}
	}

	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()

	return entry, nil
}

func (e historyEntry) result(key osm.Key) (osm.History, error) {
	if e.notFound {
		return nil, fmt.Errorf("%s: %w", key, osm.ErrNotFound)
	}
	return e.history, nil
}

// lookup is like get, but treats an unknown feature as one without any versions.
func (c *historyCache) lookup(ctx context.Context, key osm.Key) (osm.History, error) {
	h, err := c.get(ctx, key)
	if errors.Is(err, osm.ErrNotFound) {
		return nil, nil
	}
	return h, err
}
