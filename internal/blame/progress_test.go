package blame

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/K-rankenste-in/facilpad/pkg/logger"
	"github.com/K-rankenste-in/facilpad/pkg/osm"
)

func TestProgressReporterNeverDecreases(t *testing.T) {
	var got []float64
	p := &progressReporter{
		ctx: context.Background(),
		log: logger.NewNoopLogger(),
		onProgress: func(f float64) error {
			got = append(got, f)
			return nil
		},
	}

	p.report(0.1)
	p.reportBetween(0.1, 1, 0.5)
	p.reportBetween(0.1, 1, 0.2)
	p.report(-3)
	p.report(7)

	require.InDeltaSlice(t, []float64{0.1, 0.55, 0.55, 0.55, 1}, got, 1e-9)
}

func TestProgressReporterWithoutSinks(t *testing.T) {
	p := &progressReporter{ctx: context.Background(), log: logger.NewNoopLogger()}

	require.NotPanics(t, func() {
		p.report(0.5)
		p.bbox(osm.Bbox{Top: 1, Bottom: 0, Left: 0, Right: 1})
	})
}
