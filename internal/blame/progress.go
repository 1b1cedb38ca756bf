package blame

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/K-rankenste-in/facilpad/pkg/logger"
	"github.com/K-rankenste-in/facilpad/pkg/osm"
)

// initialProgress is reported once the current geometry is known.
const initialProgress = 0.1

// ProgressFunc receives the completed fraction of a blame computation, in [0, 1].
type ProgressFunc func(fraction float64) error

// BboxFunc receives the bounding box of the current geometry of the blamed feature.
type BboxFunc func(bbox osm.Bbox) error

// progressReporter forwards progress to the caller's sinks. A failing sink is logged and
// otherwise ignored, it never aborts the computation.
type progressReporter struct {
	ctx        context.Context
	log        logger.Logger
	onProgress ProgressFunc
	onBbox     BboxFunc
	last       float64
}

// report sends fraction, raised to the last reported value if needed so that callers only ever
// observe non-decreasing progress.
func (p *progressReporter) report(fraction float64) {
	if p.onProgress == nil {
		return
	}
	fraction = min(max(fraction, p.last, 0), 1)
	p.last = fraction
	p.call("progress", func() error { return p.onProgress(fraction) })
}

// reportBetween maps fraction in [0, 1] onto [from, to] and reports it.
func (p *progressReporter) reportBetween(from, to, fraction float64) {
	p.report(from + (to-from)*min(max(fraction, 0), 1))
}

func (p *progressReporter) bbox(bbox osm.Bbox) {
	if p.onBbox == nil {
		return
	}
	p.call("bbox", func() error { return p.onBbox(bbox) })
}

func (p *progressReporter) call(sink string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			p.log.WarnWithContext(p.ctx, "progress sink panicked",
				zap.String("sink", sink),
				zap.String("panic", fmt.Sprint(r)),
			)
		}
	}()
	if err := fn(); err != nil {
		p.log.WarnWithContext(p.ctx, "progress sink failed", zap.String("sink", sink), zap.Error(err))
	}
}
