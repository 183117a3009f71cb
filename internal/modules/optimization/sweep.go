package optimization

import (
	"context"
	"runtime"

	"github.com/aristath/previ-optimizer/internal/modules/dataset"
	"golang.org/x/sync/errgroup"
)

// SweepEntry is the outcome of one position cap in a sweep.
type SweepEntry struct {
	MaxPositionSize float64
	Portfolio       *Portfolio // nil when Err is set
	Err             error
}

// Sweep optimizes the same dataset once per position cap. Runs share the
// read-only dataset and proceed concurrently; entries keep the order of caps.
// A cap that fails, for instance because it is infeasible, only marks its
// own entry. The returned error is non-nil only when ctx is cancelled.
func (s *OptimizerService) Sweep(ctx context.Context, ds *dataset.Dataset, caps []float64) ([]SweepEntry, error) {
	entries := make([]SweepEntry, len(caps))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i, maxPos := range caps {
		i, maxPos := i, maxPos
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			settings := s.defaults
			settings.MaxPositionSize = maxPos
			entries[i].MaxPositionSize = maxPos

			if err := settings.Validate(); err != nil {
				entries[i].Err = err
				return nil
			}
			p, err := NewSharpeOptimizer(settings, s.log).Optimize(ds)
			entries[i].Portfolio = p
			entries[i].Err = err
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.log.Debug().Int("caps", len(caps)).Msg("Position cap sweep finished")
	return entries, nil
}
