package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNoRuns is returned when the history is empty
var ErrNoRuns = errors.New("no evaluation runs recorded")

// Repository handles evaluation run persistence
// ⭐ SSOT: risk.evaluation_runs is read and written here only
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new audit repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SaveRun stores a run report. Saving the same run id twice overwrites it.
func (r *Repository) SaveRun(ctx context.Context, run *RunRecord) error {
	findingsJSON, err := json.Marshal(run.Findings)
	if err != nil {
		return fmt.Errorf("failed to marshal findings: %w", err)
	}

	query := `
		INSERT INTO risk.evaluation_runs (
			run_id, started_at, duration_ms, holdings, failures, limits_hash, findings, digest
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (run_id) DO UPDATE SET
			started_at = EXCLUDED.started_at,
			duration_ms = EXCLUDED.duration_ms,
			holdings = EXCLUDED.holdings,
			failures = EXCLUDED.failures,
			limits_hash = EXCLUDED.limits_hash,
			findings = EXCLUDED.findings,
			digest = EXCLUDED.digest
	`

	_, err = r.pool.Exec(ctx, query,
		run.RunID, run.StartedAt, run.Duration.Milliseconds(), run.Holdings,
		run.Failures, run.LimitsHash, findingsJSON, run.Digest,
	)
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", run.RunID, err)
	}

	return nil
}

// LatestRun returns the most recent run
func (r *Repository) LatestRun(ctx context.Context) (*RunRecord, error) {
	runs, err := r.ListRuns(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, ErrNoRuns
	}
	return &runs[0], nil
}

// ListRuns returns up to limit runs, newest first
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT run_id, started_at, duration_ms, holdings, failures, limits_hash, findings, digest
		FROM risk.evaluation_runs
		ORDER BY started_at DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := make([]RunRecord, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}

	return runs, nil
}

// PruneBefore deletes runs older than cutoff and returns how many were removed
func (r *Repository) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM risk.evaluation_runs WHERE started_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanRun(row pgx.Row) (RunRecord, error) {
	var run RunRecord
	var durationMs int64
	var findingsJSON []byte

	err := row.Scan(
		&run.RunID, &run.StartedAt, &durationMs, &run.Holdings,
		&run.Failures, &run.LimitsHash, &findingsJSON, &run.Digest,
	)
	if err != nil {
		return RunRecord{}, fmt.Errorf("failed to scan run: %w", err)
	}

	run.Duration = time.Duration(durationMs) * time.Millisecond
	if err := json.Unmarshal(findingsJSON, &run.Findings); err != nil {
		return RunRecord{}, fmt.Errorf("failed to unmarshal findings for run %s: %w", run.RunID, err)
	}

	return run, nil
}
