package audit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roeimichael/VarProject/internal/contracts"
	"github.com/roeimichael/VarProject/pkg/config"
	"github.com/roeimichael/VarProject/pkg/database"
)

func TestSummarize(t *testing.T) {
	t0 := time.Date(2026, 3, 2, 16, 30, 0, 0, time.UTC)
	runs := []RunRecord{
		{RunID: "b", StartedAt: t0.Add(24 * time.Hour), LimitsHash: "h1"},
		{RunID: "a", StartedAt: t0, LimitsHash: "h1", Findings: []contracts.Finding{
			{RuleID: "position_size"}, {RuleID: "position_size"}, {RuleID: "quality_bad"},
		}},
		{RunID: "c", StartedAt: t0.Add(48 * time.Hour), LimitsHash: "h2", Findings: []contracts.Finding{
			{RuleID: "position_size"},
		}},
	}

	s := Summarize(runs)
	assert.Equal(t, 3, s.Runs)
	assert.Equal(t, 2, s.RunsWithFindings)
	assert.Equal(t, 3, s.FindingsByRule["position_size"])
	assert.Equal(t, 1, s.FindingsByRule["quality_bad"])
	assert.Equal(t, t0, s.FirstRun)
	assert.Equal(t, t0.Add(48*time.Hour), s.LastRun)
	assert.True(t, s.LimitsChanged)

	empty := Summarize(nil)
	assert.Equal(t, 0, empty.Runs)
	assert.NotNil(t, empty.FindingsByRule)
	assert.False(t, empty.LimitsChanged)
}

func TestRepository_RoundTrip(t *testing.T) {
	if testing.Short() || os.Getenv("DATABASE_URL") == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	cfg, err := config.Load()
	require.NoError(t, err)
	db, err := database.New(cfg)
	require.NoError(t, err)
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, db.EnsureSchema(ctx))

	repo := NewRepository(db.Pool)
	run := &RunRecord{
		RunID:      uuid.NewString(),
		StartedAt:  time.Now().UTC().Truncate(time.Millisecond).Add(time.Hour),
		Duration:   1500 * time.Millisecond,
		Holdings:   4,
		Failures:   1,
		LimitsHash: "abc",
		Findings:   []contracts.Finding{{RuleID: "position_size", Severity: contracts.SeverityWarn, Message: "m"}},
		Digest:     "|  m  |\n",
	}
	require.NoError(t, repo.SaveRun(ctx, run))
	defer func() {
		_, _ = db.Pool.Exec(context.Background(), `DELETE FROM risk.evaluation_runs WHERE run_id = $1`, run.RunID)
	}()

	latest, err := repo.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, run.RunID, latest.RunID)
	assert.Equal(t, run.Duration, latest.Duration)
	assert.Equal(t, run.Findings, latest.Findings)
	assert.True(t, run.StartedAt.Equal(latest.StartedAt))
}
