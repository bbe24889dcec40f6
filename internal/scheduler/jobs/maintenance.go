package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/roeimichael/VarProject/pkg/logger"
)

// Pruner deletes run reports older than a cutoff
type Pruner interface {
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// RunPruneJob trims the evaluation run history
type RunPruneJob struct {
	pruner    Pruner
	retention time.Duration
	logger    *logger.Logger
	now       func() time.Time
}

// NewRunPruneJob creates a new history prune job
func NewRunPruneJob(pruner Pruner, retention time.Duration, log *logger.Logger) *RunPruneJob {
	return &RunPruneJob{
		pruner:    pruner,
		retention: retention,
		logger:    log,
		now:       time.Now,
	}
}

// Name returns the job name
func (j *RunPruneJob) Name() string {
	return "run_history_prune"
}

// Schedule returns the cron schedule (Sundays at 03:00)
func (j *RunPruneJob) Schedule() string {
	return "0 0 3 * * 0"
}

// Run deletes runs older than the retention window
func (j *RunPruneJob) Run(ctx context.Context) error {
	j.logger.Debug("Starting scheduled run history prune")

	cutoff := j.now().Add(-j.retention)
	removed, err := j.pruner.PruneBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("prune runs: %w", err)
	}

	if removed > 0 {
		j.logger.WithField("removed", removed).Info("Run history pruned")
	}

	return nil
}
