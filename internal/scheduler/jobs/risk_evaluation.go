package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/roeimichael/VarProject/internal/contracts"
	"github.com/roeimichael/VarProject/internal/monitor"
	"github.com/roeimichael/VarProject/internal/portfolio"
	"github.com/roeimichael/VarProject/pkg/logger"
)

// Evaluator runs an evaluation over a snapshot file
type Evaluator interface {
	EvaluateFile(ctx context.Context, path string, opts portfolio.Options) (*monitor.Report, error)
}

// RiskEvaluationJob re-evaluates the standardized portfolio snapshot
// ⭐ SSOT: the scheduled evaluation runs through this job only
type RiskEvaluationJob struct {
	evaluator Evaluator
	path      string
	opts      portfolio.Options
	schedule  string
	logger    *logger.Logger
}

// NewRiskEvaluationJob creates a new risk evaluation job
func NewRiskEvaluationJob(evaluator Evaluator, path string, opts portfolio.Options, schedule string, log *logger.Logger) *RiskEvaluationJob {
	return &RiskEvaluationJob{
		evaluator: evaluator,
		path:      path,
		opts:      opts,
		schedule:  schedule,
		logger:    log,
	}
}

// Name returns the job name
func (j *RiskEvaluationJob) Name() string {
	return "risk_evaluation"
}

// Schedule returns the cron schedule
func (j *RiskEvaluationJob) Schedule() string {
	return j.schedule
}

// Run evaluates the snapshot. Findings are not an error.
func (j *RiskEvaluationJob) Run(ctx context.Context) error {
	j.logger.WithField("path", j.path).Info("Starting scheduled risk evaluation")

	report, err := j.evaluator.EvaluateFile(ctx, j.path, j.opts)
	if err != nil {
		return fmt.Errorf("evaluate %s: %w", j.path, err)
	}

	j.logger.WithFields(map[string]interface{}{
		"run_id":   report.RunID,
		"findings": len(report.Findings),
		"failures": len(report.Failures),
	}).Info("Risk evaluation completed")

	return nil
}

// Retryable reports whether a failed run may succeed on another attempt.
// Bad input and a corrupt cache need an operator, not a retry.
func Retryable(err error) bool {
	switch {
	case errors.Is(err, contracts.ErrSchema),
		errors.Is(err, contracts.ErrCacheCorrupt),
		errors.Is(err, contracts.ErrInvalidInput):
		return false
	}
	return true
}
