// Package blame attributes every part of the current geometry of a way or relation to the
// changeset that last shaped it.
//
// The engine reconstructs the feature's hierarchy at successively earlier points in time and
// keeps, for every current segment, the oldest state in which it still existed. Segments are then
// grouped by the changeset that created them.
package blame

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/K-rankenste-in/facilpad/internal/build"
	"github.com/K-rankenste-in/facilpad/pkg/logger"
	"github.com/K-rankenste-in/facilpad/pkg/osm"
	"github.com/K-rankenste-in/facilpad/pkg/telemetry"
)

var tracer = otel.Tracer("osmblame/internal/blame")

// ErrUnsupportedFeatureType is returned when blame is requested for anything but a way or a relation.
var ErrUnsupportedFeatureType = errors.New("only ways and relations can be blamed")

const DefaultMaxConcurrentFetches = 16

var (
	convergenceIterationsHistogram = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: build.ProjectName,
		Name:      "blame_convergence_iterations",
		Help:      "The number of past states reconstructed per blame computation.",
		Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100, 250, 500},
	})

	blameDurationHistogram = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: build.ProjectName,
		Name:      "blame_duration_ms",
		Help:      "The duration (in ms) of a blame computation.",
		Buckets:   []float64{10, 50, 100, 500, 1000, 5000, 10000, 30000, 60000, 300000},
	}, []string{"feature_type", "success"})
)

// UserInfo holds the display attributes of one user appearing in a result.
type UserInfo struct {
	Colour string `json:"colour"`
}

// Result is the outcome of a blame computation.
type Result struct {
	// Feature is the current version of the blamed feature.
	Feature  *osm.Feature        `json:"feature"`
	Segments []PathSegment       `json:"segments"`
	Users    map[string]UserInfo `json:"users"`
}

type EngineOption func(*Engine)

func WithLogger(l logger.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithMaxConcurrentFetches bounds the number of feature histories fetched concurrently by one
// Blame call, across all levels of the hierarchy. A value <= 0 means no limit.
func WithMaxConcurrentFetches(n int) EngineOption {
	return func(e *Engine) {
		e.maxConcurrentFetches = n
	}
}

// Engine computes blame results from a history source. It is safe for concurrent use, every
// call to Blame works on its own memoized view of the source.
type Engine struct {
	source               osm.HistorySource
	logger               logger.Logger
	maxConcurrentFetches int
}

func NewEngine(source osm.HistorySource, opts ...EngineOption) *Engine {
	e := &Engine{
		source:               source,
		logger:               logger.NewNoopLogger(),
		maxConcurrentFetches: DefaultMaxConcurrentFetches,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type blameOptions struct {
	onProgress ProgressFunc
	onBbox     BboxFunc
}

type BlameOption func(*blameOptions)

// WithProgress registers a sink for progress updates. Updates are delivered synchronously and
// never decrease. The final update is 1.
func WithProgress(fn ProgressFunc) BlameOption {
	return func(o *blameOptions) {
		o.onProgress = fn
	}
}

// WithBbox registers a sink that is called once with the bounding box of the current geometry,
// before the history is walked back. It is not called if the geometry is empty.
func WithBbox(fn BboxFunc) BlameOption {
	return func(o *blameOptions) {
		o.onBbox = fn
	}
}

// computation is the state of one Blame call.
type computation struct {
	expander *expander
	progress *progressReporter
	log      logger.Logger
}

// Blame computes which changesets shaped the current geometry of the given way or relation.
//
// It returns an error wrapping [ErrUnsupportedFeatureType] for nodes, and one wrapping
// [osm.ErrNotFound] if the feature is unknown or currently deleted. Members that cannot be found
// are skipped. Any other error of the history source aborts the computation.
func (e *Engine) Blame(ctx context.Context, featureType osm.FeatureType, id int64, opts ...BlameOption) (*Result, error) {
	if featureType != osm.WayType && featureType != osm.RelationType {
		return nil, fmt.Errorf("%w: got %q", ErrUnsupportedFeatureType, featureType)
	}
	key := osm.Key{Type: featureType, ID: id}

	ctx, span := tracer.Start(ctx, "Blame")
	defer span.End()
	span.SetAttributes(attribute.String("feature", key.String()))

	var o blameOptions
	for _, opt := range opts {
		opt(&o)
	}

	runID := ulid.Make().String()
	log := e.logger.With(zap.String("blame_run_id", runID), zap.Stringer("feature", key))
	start := time.Now()

	c := &computation{
		expander: &expander{
			histories:            newHistoryCache(e.source, e.maxConcurrentFetches),
			maxConcurrentFetches: e.maxConcurrentFetches,
		},
		progress: &progressReporter{
			ctx:        ctx,
			log:        log,
			onProgress: o.onProgress,
			onBbox:     o.onBbox,
		},
		log: log,
	}

	res, iterations, err := c.run(ctx, key)
	blameDurationHistogram.WithLabelValues(string(featureType), fmt.Sprint(err == nil)).
		Observe(float64(time.Since(start).Milliseconds()))
	if err != nil {
		telemetry.TraceError(span, err)
		log.DebugWithContext(ctx, "blame failed", zap.Error(err))
		return nil, err
	}
	convergenceIterationsHistogram.Observe(float64(iterations))

	span.SetAttributes(attribute.Int("iterations", iterations), attribute.Int("path_segment_count", len(res.Segments)))
	log.DebugWithContext(ctx, "blame computed",
		zap.Int("iterations", iterations),
		zap.Int("path_segment_count", len(res.Segments)),
		zap.Int("user_count", len(res.Users)),
		zap.Duration("duration", time.Since(start)),
	)
	return res, nil
}

func (c *computation) run(ctx context.Context, key osm.Key) (*Result, int, error) {
	current, err := c.expander.expand(ctx, key, nil)
	if err != nil {
		return nil, 0, err
	}
	if current.feature == nil {
		return nil, 0, fmt.Errorf("%s is deleted: %w", key, osm.ErrNotFound)
	}

	c.progress.report(initialProgress)
	if bbox, ok := osm.BboxForNodes(endpoints(current.segments)); ok {
		c.progress.bbox(bbox)
	}

	base := newBaseline(current.segments)
	iterations, err := c.converge(ctx, key, current, base)
	if err != nil {
		return nil, iterations, err
	}

	segments := groupSegments(base.ordered())
	users := assignColours(segments)
	c.progress.report(1)

	return &Result{
		Feature:  current.feature,
		Segments: segments,
		Users:    users,
	}, iterations, nil
}

func endpoints(segments []rawSegment) []*osm.Feature {
	out := make([]*osm.Feature, 0, 2*len(segments))
	for _, s := range segments {
		out = append(out, s.a, s.b)
	}
	return out
}
