package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aristath/previ-optimizer/internal/modules/optimization"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	runs atomic.Int32
	err  error
}

func (j *countingJob) Name() string { return "counting" }

func (j *countingJob) Run() error {
	j.runs.Add(1)
	return j.err
}

func TestScheduler_AddJob(t *testing.T) {
	s := New(zerolog.Nop())

	require.NoError(t, s.AddJob("@every 1s", &countingJob{}))
	require.NoError(t, s.AddJob("0 6 * * *", &countingJob{}))
	require.NoError(t, s.AddJob("0 */5 * * * *", &countingJob{}))
	assert.Error(t, s.AddJob("not a schedule", &countingJob{}))
}

func TestScheduler_RunsJobs(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{err: errors.New("job errors are logged")}

	require.NoError(t, s.AddJob("@every 1s", job))
	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool { return job.runs.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
}

func TestScheduler_RunNow(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{}

	require.NoError(t, s.RunNow(job))
	assert.Equal(t, int32(1), job.runs.Load())
}

func TestValidateSchedule(t *testing.T) {
	assert.NoError(t, ValidateSchedule("@daily"))
	assert.NoError(t, ValidateSchedule("30 6 * * MON-FRI"))
	assert.Error(t, ValidateSchedule("every day"))
}

type fakeOptimizer struct {
	req optimization.Request
	err error
}

func (f *fakeOptimizer) Run(_ context.Context, req optimization.Request) (*optimization.RunResult, error) {
	f.req = req
	if f.err != nil {
		return nil, f.err
	}
	return &optimization.RunResult{ID: "run-1"}, nil
}

func TestOptimizePortfolioJob(t *testing.T) {
	opt := &fakeOptimizer{}
	job := NewOptimizePortfolioJob(opt, time.Minute, zerolog.Nop())

	assert.Equal(t, "optimize_portfolio", job.Name())
	require.NoError(t, job.Run())
	assert.True(t, opt.req.Save)
	assert.Empty(t, opt.req.DatasetPath)

	opt.err = optimization.ErrInfeasibleConstraint
	assert.ErrorIs(t, job.Run(), optimization.ErrInfeasibleConstraint)
}

type fakePruner struct{ keep int }

func (f *fakePruner) Prune(_ context.Context, keep int) (int64, error) {
	f.keep = keep
	return 0, nil
}

type fakeCheckpointer struct{ mode string }

func (f *fakeCheckpointer) WALCheckpoint(mode string) error {
	f.mode = mode
	return nil
}

func TestMaintenanceJobs(t *testing.T) {
	pruner := &fakePruner{}
	require.NoError(t, NewPruneRunsJob(pruner, 50).Run())
	assert.Equal(t, 50, pruner.keep)

	cp := &fakeCheckpointer{}
	require.NoError(t, NewWALCheckpointJob(cp).Run())
	assert.Equal(t, "TRUNCATE", cp.mode)
}
