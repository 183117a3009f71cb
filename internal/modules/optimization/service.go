package optimization

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/previ-optimizer/internal/modules/allocation"
	"github.com/aristath/previ-optimizer/internal/modules/dataset"
	"github.com/aristath/previ-optimizer/internal/modules/runs"
	"github.com/aristath/previ-optimizer/internal/utils"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// TableSource loads the raw instrument table.
type TableSource interface {
	Load(path string) (dataset.Table, error)
}

// RunStore persists finished runs.
type RunStore interface {
	Save(ctx context.Context, rec *runs.Record) error
}

// Request describes one optimization run. An empty DatasetPath uses the
// service's configured dataset and nil Settings use the service defaults.
// Explicit Settings are validated as given.
type Request struct {
	DatasetPath string
	Settings    *Settings
	Save        bool
}

// RunResult is the outcome of OptimizerService.Run.
type RunResult struct {
	ID          string
	CreatedAt   time.Time
	DatasetPath string
	Settings    Settings
	Portfolio   *Portfolio
	Allocation  []allocation.Row
	Years       int   // Number of years in the returns window
	WindowYears []int // The returns window, ascending
	Duration    time.Duration
	Saved       bool
}

// Record converts the result into its stored form.
func (r *RunResult) Record() *runs.Record {
	stats := r.Portfolio.Statistics()
	solve := r.Portfolio.Solve()
	return &runs.Record{
		ID:              r.ID,
		CreatedAt:       r.CreatedAt,
		Dataset:         r.DatasetPath,
		RiskFreeRate:    r.Settings.RiskFreeRate,
		MaxPositionSize: r.Settings.MaxPositionSize,
		MinWeight:       r.Settings.MinWeight,
		CompoundReturn:  stats.CompoundReturn,
		SharpeRatio:     stats.SharpeRatio,
		SharpeDefined:   r.Portfolio.SharpeDefined(),
		Converged:       solve.Converged,
		Status:          solve.Status,
		Years:           r.Years,
		Payload: runs.Payload{
			ISINs:       r.Portfolio.ISINs(),
			Assets:      r.Portfolio.Assets(),
			Weights:     r.Portfolio.Weights(),
			Allocation:  append([]allocation.Row(nil), r.Allocation...),
			WindowYears: append([]int(nil), r.WindowYears...),
			Method:      solve.Method,
			Iterations:  solve.Iterations,
		},
	}
}

// OptimizerService runs the load, prepare, optimize, summarize and persist
// pipeline.
type OptimizerService struct {
	source      TableSource
	store       RunStore // Optional
	columns     dataset.Columns
	datasetPath string
	defaults    Settings
	log         zerolog.Logger
}

// NewOptimizerService creates a new optimizer service. store may be nil.
func NewOptimizerService(
	source TableSource,
	store RunStore,
	datasetPath string,
	defaults Settings,
	log zerolog.Logger,
) *OptimizerService {
	return &OptimizerService{
		source:      source,
		store:       store,
		columns:     dataset.DefaultColumns(),
		datasetPath: datasetPath,
		defaults:    defaults.withDefaults(),
		log:         log.With().Str("service", "optimizer").Logger(),
	}
}

// Defaults returns the settings used when a request does not override them.
func (s *OptimizerService) Defaults() Settings {
	return s.defaults
}

// DatasetPath returns the configured dataset location.
func (s *OptimizerService) DatasetPath() string {
	return s.datasetPath
}

// LoadDataset loads and prepares the dataset at path, or the configured one
// when path is empty.
func (s *OptimizerService) LoadDataset(ctx context.Context, path string) (*dataset.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if path == "" {
		path = s.datasetPath
	}

	table, err := s.source.Load(path)
	if err != nil {
		return nil, err
	}
	ds, err := dataset.Prepare(table, s.columns)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare dataset %s: %w", path, err)
	}
	return ds, nil
}

// Run executes one optimization.
func (s *OptimizerService) Run(ctx context.Context, req Request) (*RunResult, error) {
	timer := utils.NewTimer("optimization_run", s.log)

	settings := s.defaults
	if req.Settings != nil {
		settings = *req.Settings
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	path := req.DatasetPath
	if path == "" {
		path = s.datasetPath
	}

	ds, err := s.LoadDataset(ctx, path)
	if err != nil {
		return nil, err
	}

	portfolio, err := NewSharpeOptimizer(settings, s.log).Optimize(ds)
	if err != nil {
		return nil, fmt.Errorf("optimization failed: %w", err)
	}

	rows, err := allocation.Summarize(portfolio, ds, settings.MinWeight)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize allocation: %w", err)
	}

	window := ds.Returns().Years()
	result := &RunResult{
		ID:          uuid.NewString(),
		CreatedAt:   time.Now().UTC(),
		DatasetPath: path,
		Settings:    settings,
		Portfolio:   portfolio,
		Allocation:  rows,
		Years:       len(window),
		WindowYears: window,
	}

	if req.Save && s.store != nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := s.store.Save(ctx, result.Record()); err != nil {
			return nil, fmt.Errorf("failed to store run: %w", err)
		}
		result.Saved = true
	}

	result.Duration = timer.Stop()

	s.log.Info().
		Str("run_id", result.ID).
		Int("instruments", ds.Len()).
		Int("active_positions", portfolio.ActivePositions()).
		Float64("sharpe_ratio", portfolio.SharpeRatio()).
		Float64("compound_return", portfolio.CompoundReturn()).
		Bool("converged", portfolio.Solve().Converged).
		Dur("duration", result.Duration).
		Msg("Portfolio optimized")

	return result, nil
}
