package osm

import (
	"slices"
	"time"
)

// History is the immutable list of versions of one feature, ordered by version ascending.
type History []*Feature

// NewHistory returns a History of the given versions sorted by version ascending.
// The input slice is not modified.
func NewHistory(versions ...*Feature) History {
	h := slices.Clone(versions)
	slices.SortStableFunc(h, func(a, b *Feature) int {
		return a.Version - b.Version
	})
	return h
}

// Latest returns the most recent version, or nil if it is a deletion or the history is empty.
func (h History) Latest() *Feature {
	if len(h) == 0 {
		return nil
	}
	return visibleOrNil(h[len(h)-1])
}

// At returns the version in effect at the given time: the latest version whose timestamp is not
// after at. It returns nil if the feature did not exist yet or was deleted at that time. Use
// [History.Latest] for the current state.
func (h History) At(at time.Time) *Feature {
	var found *Feature
	for _, v := range h {
		if v.Timestamp.After(at) {
			continue
		}
		if found == nil || v.Timestamp.After(found.Timestamp) || (v.Timestamp.Equal(found.Timestamp) && v.Version > found.Version) {
			found = v
		}
	}
	return visibleOrNil(found)
}

func visibleOrNil(f *Feature) *Feature {
	if f == nil || !f.Visible {
		return nil
	}
	return f
}
