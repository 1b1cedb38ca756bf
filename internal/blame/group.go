package blame

import (
	"cmp"
	"slices"
	"time"

	"github.com/K-rankenste-in/facilpad/pkg/osm"
)

// CausingChange is a feature version that may have produced a path segment, together with the
// chain of containing features it was reached through.
type CausingChange struct {
	Feature    *osm.Feature     `json:"feature"`
	Membership []MembershipLink `json:"featureMembership"`
}

// PathSegment is a maximal run of contiguous segments attributed to the same changeset.
type PathSegment struct {
	// CausingChanges is ordered from most to least recent, with at most one entry per feature version.
	CausingChanges []CausingChange `json:"causingChanges"`
	// Path has at least one node. It has exactly one for a node member of a relation.
	Path      []*osm.Feature `json:"path"`
	User      string         `json:"user"`
	Changeset int64          `json:"changeset"`
	Timestamp time.Time      `json:"timestamp"`
}

// candidates returns every feature version that may have introduced the segment: each link of
// its membership chain, with the chain leading up to it, and both endpoints with the full chain.
func (s rawSegment) candidates() []CausingChange {
	out := make([]CausingChange, 0, len(s.membership)+2)
	for i, link := range s.membership {
		out = append(out, CausingChange{Feature: link.Feature, Membership: s.membership[:i:i]})
	}
	return append(out,
		CausingChange{Feature: s.a, Membership: s.membership},
		CausingChange{Feature: s.b, Membership: s.membership},
	)
}

// compareCauses orders causes by edit time, with ties broken by changeset, then feature type,
// id and version.
func compareCauses(a, b CausingChange) int {
	if c := a.Feature.Timestamp.Compare(b.Feature.Timestamp); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Feature.Changeset, b.Feature.Changeset); c != 0 {
		return c
	}
	if c := a.Feature.Type.Compare(b.Feature.Type); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Feature.ID, b.Feature.ID); c != 0 {
		return c
	}
	return cmp.Compare(a.Feature.Version, b.Feature.Version)
}

// determiningCause picks the candidate whose changeset decides which path segment a raw
// segment belongs to: the earliest one.
func determiningCause(candidates []CausingChange) CausingChange {
	return slices.MinFunc(candidates, compareCauses)
}

type group struct {
	changeset int64
	causes    []CausingChange
	path      []*osm.Feature
}

func (g *group) continues(s rawSegment, changeset int64) bool {
	return g != nil &&
		!s.isStandaloneNode() &&
		g.changeset == changeset &&
		len(g.path) > 1 &&
		g.path[len(g.path)-1].Coordinates() == s.a.Coordinates()
}

// groupSegments merges consecutive baseline segments with the same determining changeset into
// path segments. Standalone nodes always form a path segment of their own.
func groupSegments(segments []rawSegment) []PathSegment {
	var (
		groups  []*group
		current *group
	)
	for _, s := range segments {
		candidates := s.candidates()
		changeset := determiningCause(candidates).Feature.Changeset

		if !current.continues(s, changeset) {
			current = &group{changeset: changeset, path: []*osm.Feature{s.a}}
			groups = append(groups, current)
		}
		current.causes = append(current.causes, candidates...)
		if !s.isStandaloneNode() {
			current.path = append(current.path, s.b)
		}
	}

	out := make([]PathSegment, 0, len(groups))
	for _, g := range groups {
		causes := dedupeCauses(g.causes)
		latest := causes[0].Feature
		out = append(out, PathSegment{
			CausingChanges: causes,
			Path:           g.path,
			User:           latest.User,
			Changeset:      latest.Changeset,
			Timestamp:      latest.Timestamp,
		})
	}
	return out
}

// dedupeCauses sorts causes from most to least recent and keeps the first entry of every
// feature version.
func dedupeCauses(causes []CausingChange) []CausingChange {
	slices.SortStableFunc(causes, func(a, b CausingChange) int {
		return compareCauses(b, a)
	})

	seen := make(map[osm.VersionKey]struct{}, len(causes))
	out := causes[:0]
	for _, c := range causes {
		k := c.Feature.VersionKey()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, c)
	}
	return out
}
