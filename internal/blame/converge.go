package blame

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/K-rankenste-in/facilpad/pkg/osm"
)

// baseline is the set of current segments, each replaced by the oldest version of it that
// still has the same endpoints. Iteration order is the order in which segments first appear in
// the current geometry.
type baseline struct {
	keys     []string
	segments map[string]rawSegment
}

func newBaseline(segments []rawSegment) *baseline {
	b := &baseline{
		keys:     make([]string, 0, len(segments)),
		segments: make(map[string]rawSegment, len(segments)),
	}
	for _, s := range segments {
		k := s.key()
		if _, ok := b.segments[k]; !ok {
			b.keys = append(b.keys, k)
		}
		b.segments[k] = s
	}
	return b
}

func (b *baseline) size() int {
	return len(b.keys)
}

// match replaces every baseline segment that also appears in segments and returns the number of
// matches. Segments absent from the baseline are ignored.
func (b *baseline) match(segments []rawSegment) int {
	matched := 0
	for _, s := range segments {
		k := s.key()
		if _, ok := b.segments[k]; ok {
			b.segments[k] = s
			matched++
		}
	}
	return matched
}

// ordered returns the segments in first-seen order.
func (b *baseline) ordered() []rawSegment {
	out := make([]rawSegment, 0, len(b.keys))
	for _, k := range b.keys {
		out = append(out, b.segments[k])
	}
	return out
}

// converge walks back through the feature's history, one distinct edit time at a time, until
// none of the current segments exists any more. It returns the number of past states that were
// reconstructed.
func (c *computation) converge(ctx context.Context, key osm.Key, current *snapshot, base *baseline) (int, error) {
	if base.size() == 0 {
		return 0, nil
	}

	at, ok := current.latestTimestamp(nil)
	iterations := 0
	for ok {
		if err := ctx.Err(); err != nil {
			return iterations, err
		}

		snap, err := c.expander.expand(ctx, key, &at)
		if err != nil {
			return iterations, err
		}
		iterations++

		matched := base.match(snap.segments)
		c.log.Debug("reconstructed past state",
			zap.Time("at", at),
			zap.Int("matched_segments", matched),
			zap.Int("segment_count", base.size()),
		)

		c.progress.reportBetween(initialProgress, 1, 1-float64(matched)/float64(base.size()))
		if matched == 0 {
			break
		}

		at, ok = snap.latestTimestamp(&at)
	}
	return iterations, nil
}
