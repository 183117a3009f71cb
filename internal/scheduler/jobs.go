package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/previ-optimizer/internal/modules/optimization"
	"github.com/rs/zerolog"
)

// Optimizer runs one optimization.
type Optimizer interface {
	Run(ctx context.Context, req optimization.Request) (*optimization.RunResult, error)
}

// RunPruner trims the run history.
type RunPruner interface {
	Prune(ctx context.Context, keep int) (int64, error)
}

// Checkpointer flushes the write-ahead log.
type Checkpointer interface {
	WALCheckpoint(mode string) error
}

// OptimizePortfolioJob re-runs the optimization with the configured settings
// and stores the run.
type OptimizePortfolioJob struct {
	optimizer Optimizer
	timeout   time.Duration
	log       zerolog.Logger
}

// NewOptimizePortfolioJob creates a new OptimizePortfolioJob
func NewOptimizePortfolioJob(optimizer Optimizer, timeout time.Duration, log zerolog.Logger) *OptimizePortfolioJob {
	return &OptimizePortfolioJob{
		optimizer: optimizer,
		timeout:   timeout,
		log:       log.With().Str("job", "optimize_portfolio").Logger(),
	}
}

// Name returns the job name
func (j *OptimizePortfolioJob) Name() string {
	return "optimize_portfolio"
}

// Run executes the optimization job
func (j *OptimizePortfolioJob) Run() error {
	ctx := context.Background()
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	result, err := j.optimizer.Run(ctx, optimization.Request{Save: true})
	if err != nil {
		return fmt.Errorf("scheduled optimization failed: %w", err)
	}

	j.log.Info().
		Str("run_id", result.ID).
		Int("positions", len(result.Allocation)).
		Msg("Scheduled optimization stored")
	return nil
}

// PruneRunsJob keeps the newest runs and deletes the rest.
type PruneRunsJob struct {
	runs RunPruner
	keep int
}

// NewPruneRunsJob creates a new PruneRunsJob
func NewPruneRunsJob(runs RunPruner, keep int) *PruneRunsJob {
	return &PruneRunsJob{runs: runs, keep: keep}
}

// Name returns the job name
func (j *PruneRunsJob) Name() string {
	return "prune_runs"
}

// Run executes the prune job
func (j *PruneRunsJob) Run() error {
	_, err := j.runs.Prune(context.Background(), j.keep)
	return err
}

// WALCheckpointJob truncates the write-ahead log of the runs database.
type WALCheckpointJob struct {
	db Checkpointer
}

// NewWALCheckpointJob creates a new WALCheckpointJob
func NewWALCheckpointJob(db Checkpointer) *WALCheckpointJob {
	return &WALCheckpointJob{db: db}
}

// Name returns the job name
func (j *WALCheckpointJob) Name() string {
	return "wal_checkpoint"
}

// Run executes the checkpoint job
func (j *WALCheckpointJob) Run() error {
	return j.db.WALCheckpoint("TRUNCATE")
}
