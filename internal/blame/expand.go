package blame

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/K-rankenste-in/facilpad/internal/concurrency"
	"github.com/K-rankenste-in/facilpad/pkg/osm"
)

// MembershipLink is one step of a containment chain from the blamed feature down to a node.
// Role is only meaningful when Feature is a relation.
type MembershipLink struct {
	Feature *osm.Feature `json:"feature"`
	Role    string       `json:"role,omitempty"`
}

// rawSegment is an edge between two consecutive nodes of a way, or a single node (a == b)
// that is a direct member of a relation.
type rawSegment struct {
	a, b       *osm.Feature
	membership []MembershipLink
}

// key identifies a segment by the coordinates of its endpoints, in path direction.
func (s rawSegment) key() string {
	return s.a.Coordinates() + ";" + s.b.Coordinates()
}

// isStandaloneNode reports whether the segment is a node member of a relation rather than part of a way.
func (s rawSegment) isStandaloneNode() bool {
	if len(s.membership) == 0 {
		return true
	}
	return s.membership[len(s.membership)-1].Feature.Type != osm.WayType
}

// snapshot is the flattened hierarchy of a feature at one point in time.
type snapshot struct {
	// feature is the version of the blamed feature, nil if it did not exist at that time.
	feature  *osm.Feature
	touched  []*osm.Feature
	segments []rawSegment
}

// latestTimestamp returns the most recent edit time in the snapshot that is strictly before
// the given time. A nil before means no upper bound. The second return value is false if there
// is no such edit.
func (s *snapshot) latestTimestamp(before *time.Time) (time.Time, bool) {
	var latest time.Time
	found := false
	consider := func(f *osm.Feature) {
		if f == nil || (before != nil && !f.Timestamp.Before(*before)) {
			return
		}
		if !found || f.Timestamp.After(latest) {
			latest = f.Timestamp
			found = true
		}
	}

	consider(s.feature)
	for _, f := range s.touched {
		consider(f)
	}
	return latest, found
}

type part struct {
	touched  []*osm.Feature
	segments []rawSegment
}

func (p *part) add(other part) {
	p.touched = append(p.touched, other.touched...)
	p.segments = append(p.segments, other.segments...)
}

// expander reconstructs the hierarchy of a way or relation at a given point in time.
type expander struct {
	histories *historyCache
	// maxConcurrentFetches bounds the goroutines started per way or relation. The number of
	// fetches in flight is bounded by histories.
	maxConcurrentFetches int
}

// resolve returns the version of h in effect at the given time, or the current one if at is nil.
func resolve(h osm.History, at *time.Time) *osm.Feature {
	if at == nil {
		return h.Latest()
	}
	return h.At(*at)
}

// expand resolves the given feature at the given time (nil meaning the current state) and
// flattens its hierarchy. Members that do not exist at that time are skipped, an unknown
// top-level feature yields an error wrapping [osm.ErrNotFound].
func (e *expander) expand(ctx context.Context, key osm.Key, at *time.Time) (*snapshot, error) {
	ctx, span := tracer.Start(ctx, "expand")
	defer span.End()
	span.SetAttributes(attribute.String("feature", key.String()))
	if at != nil {
		span.SetAttributes(attribute.String("at", at.Format(time.RFC3339)))
	}

	h, err := e.histories.get(ctx, key)
	if err != nil {
		return nil, err
	}

	s := &snapshot{feature: resolve(h, at)}
	if s.feature == nil {
		return s, nil
	}

	p, err := e.expandFeature(ctx, s.feature, at, nil)
	if err != nil {
		return nil, err
	}
	s.touched, s.segments = p.touched, p.segments

	span.SetAttributes(attribute.Int("touched_count", len(s.touched)), attribute.Int("segment_count", len(s.segments)))
	return s, nil
}

func (e *expander) expandFeature(ctx context.Context, f *osm.Feature, at *time.Time, chain []MembershipLink) (part, error) {
	switch f.Type {
	case osm.WayType:
		return e.expandWay(ctx, f, at, chain)
	case osm.RelationType:
		return e.expandRelation(ctx, f, at, chain)
	default:
		return part{}, nil
	}
}

func (e *expander) expandWay(ctx context.Context, way *osm.Feature, at *time.Time, chain []MembershipLink) (part, error) {
	histories, err := concurrency.MapOrdered(ctx, e.maxConcurrentFetches, way.Nodes, func(ctx context.Context, id int64) (osm.History, error) {
		return e.histories.lookup(ctx, osm.Key{Type: osm.NodeType, ID: id})
	})
	if err != nil {
		return part{}, err
	}

	nodes := make([]*osm.Feature, 0, len(histories))
	for _, h := range histories {
		if n := resolve(h, at); n != nil {
			nodes = append(nodes, n)
		}
	}

	membership := appendLink(chain, MembershipLink{Feature: way})
	p := part{touched: nodes}
	for i := 1; i < len(nodes); i++ {
		p.segments = append(p.segments, rawSegment{a: nodes[i-1], b: nodes[i], membership: membership})
	}
	return p, nil
}

func (e *expander) expandRelation(ctx context.Context, rel *osm.Feature, at *time.Time, chain []MembershipLink) (part, error) {
	parts := make([]part, len(rel.Members))

	grp, ctx := errgroup.WithContext(ctx)
	if e.maxConcurrentFetches > 0 {
		grp.SetLimit(e.maxConcurrentFetches)
	}
	for i, m := range rel.Members {
		membership := appendLink(chain, MembershipLink{Feature: rel, Role: m.Role})
		if m.Type == osm.RelationType && inChain(membership, osm.Key{Type: m.Type, ID: m.Ref}) {
			continue
		}

		grp.Go(func() error {
			p, err := e.expandMember(ctx, m, at, membership)
			if err != nil {
				return err
			}
			parts[i] = p
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return part{}, err
	}

	var out part
	for _, p := range parts {
		out.add(p)
	}
	return out, nil
}

func (e *expander) expandMember(ctx context.Context, m osm.Member, at *time.Time, membership []MembershipLink) (part, error) {
	h, err := e.histories.lookup(ctx, osm.Key{Type: m.Type, ID: m.Ref})
	if err != nil {
		return part{}, err
	}

	f := resolve(h, at)
	if f == nil {
		return part{}, nil
	}

	p := part{touched: []*osm.Feature{f}}
	if f.Type == osm.NodeType {
		p.segments = []rawSegment{{a: f, b: f, membership: membership}}
		return p, nil
	}

	sub, err := e.expandFeature(ctx, f, at, membership)
	if err != nil {
		return part{}, err
	}
	p.add(sub)
	return p, nil
}

// appendLink returns a new chain, never sharing the backing array of chain.
func appendLink(chain []MembershipLink, link MembershipLink) []MembershipLink {
	out := make([]MembershipLink, len(chain), len(chain)+1)
	copy(out, chain)
	return append(out, link)
}

func inChain(chain []MembershipLink, key osm.Key) bool {
	for _, link := range chain {
		if link.Feature.Key() == key {
			return true
		}
	}
	return false
}
