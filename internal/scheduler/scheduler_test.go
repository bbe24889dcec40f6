package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roeimichael/VarProject/pkg/logger"
)

type stubJob struct {
	name     string
	schedule string
	calls    atomic.Int32
	errs     []error // returned per attempt, then nil
}

func (j *stubJob) Name() string     { return j.name }
func (j *stubJob) Schedule() string { return j.schedule }

func (j *stubJob) Run(ctx context.Context) error {
	n := int(j.calls.Add(1))
	if n <= len(j.errs) {
		return j.errs[n-1]
	}
	return nil
}

var errPermanent = errors.New("permanent")

func newTestScheduler() *Scheduler {
	return New(logger.Nop(), WithRetry(2, time.Millisecond, func(err error) bool {
		return !errors.Is(err, errPermanent)
	}))
}

func TestAddAndRemoveJob(t *testing.T) {
	s := newTestScheduler()
	job := &stubJob{name: "risk_evaluation", schedule: "0 30 16 * * 1-5"}

	require.NoError(t, s.AddJob(job))
	assert.Error(t, s.AddJob(job), "duplicate name")
	assert.Equal(t, []string{"risk_evaluation"}, s.GetAllJobs())

	bad := &stubJob{name: "bad", schedule: "not a cron"}
	assert.Error(t, s.AddJob(bad))

	require.NoError(t, s.RemoveJob("risk_evaluation"))
	assert.Empty(t, s.GetAllJobs())
	assert.Error(t, s.RemoveJob("risk_evaluation"))
}

func TestRunJob_RetriesThenSucceeds(t *testing.T) {
	s := newTestScheduler()
	job := &stubJob{name: "j", schedule: "@daily", errs: []error{errors.New("flaky"), errors.New("flaky")}}
	require.NoError(t, s.AddJob(job))

	result, err := s.RunJob(context.Background(), "j")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 3, result.Attempts)
	assert.Empty(t, result.Error)

	history, err := s.GetJobHistory("j")
	require.NoError(t, err)
	require.Len(t, history.Results, 1)
	assert.Equal(t, 1.0, history.Tally().SuccessRate())
}

func TestRunJob_ExhaustsRetries(t *testing.T) {
	s := newTestScheduler()
	fail := errors.New("down")
	job := &stubJob{name: "j", schedule: "@daily", errs: []error{fail, fail, fail, fail}}
	require.NoError(t, s.AddJob(job))

	result, err := s.RunJob(context.Background(), "j")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, 3, result.Attempts)
	assert.Equal(t, "down", result.Error)
}

func TestRunJob_PermanentErrorNotRetried(t *testing.T) {
	s := newTestScheduler()
	job := &stubJob{name: "j", schedule: "@daily", errs: []error{errPermanent}}
	require.NoError(t, s.AddJob(job))

	result, err := s.RunJob(context.Background(), "j")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, int32(1), job.calls.Load())
}

func TestRunJob_Unknown(t *testing.T) {
	s := newTestScheduler()
	_, err := s.RunJob(context.Background(), "missing")
	assert.Error(t, err)
	_, err = s.GetJobHistory("missing")
	assert.Error(t, err)
}

func TestGetJobStats(t *testing.T) {
	s := newTestScheduler()
	ok := &stubJob{name: "ok", schedule: "@hourly"}
	bad := &stubJob{name: "bad", schedule: "@hourly", errs: []error{errPermanent}}
	require.NoError(t, s.AddJob(ok))
	require.NoError(t, s.AddJob(bad))

	_, _ = s.RunJob(context.Background(), "ok")
	_, _ = s.RunJob(context.Background(), "bad")

	s.Start()
	defer s.Stop()

	stats := s.GetJobStats()
	require.Len(t, stats, 2)
	assert.Equal(t, 1, stats["ok"].SuccessCount)
	assert.NotNil(t, stats["ok"].LastSuccess)
	assert.Equal(t, 1, stats["bad"].FailureCount)
	assert.NotNil(t, stats["bad"].LastFailure)
	assert.Nil(t, stats["bad"].LastSuccess)
	assert.NotNil(t, stats["ok"].NextRun)
}

func TestJobHistory_Limit(t *testing.T) {
	h := &JobHistory{}
	for i := 0; i < historyLimit+10; i++ {
		h.AddResult(JobResult{JobName: "j", Success: i%2 == 0})
	}
	assert.Len(t, h.Results, historyLimit)
	assert.Len(t, h.Latest(5), 5)
	assert.Empty(t, h.Latest(0))

	tally := h.Tally()
	assert.Equal(t, historyLimit/2, tally.Failures)
	assert.InDelta(t, 0.5, tally.SuccessRate(), 1e-9)
}

func TestJobHistory_ConsecutiveFailures(t *testing.T) {
	base := time.Date(2026, 1, 5, 16, 30, 0, 0, time.UTC)
	h := &JobHistory{}
	for i, ok := range []bool{false, true, false, false} {
		h.AddResult(JobResult{JobName: "j", StartTime: base.Add(time.Duration(i) * time.Hour), Success: ok})
	}

	tally := h.Tally()
	assert.Equal(t, 2, tally.ConsecutiveFailures)
	require.NotNil(t, tally.LastSuccess)
	assert.Equal(t, base.Add(time.Hour), *tally.LastSuccess)
	require.NotNil(t, tally.LastFailure)
	assert.Equal(t, base.Add(3*time.Hour), *tally.LastFailure)
	assert.Equal(t, tally.LastFailure, tally.LastRun)

	assert.Equal(t, 0.0, (&JobHistory{}).Tally().SuccessRate())
}
