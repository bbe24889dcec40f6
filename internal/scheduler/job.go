package scheduler

import (
	"context"
	"time"
)

// Job represents a scheduled job
// ⭐ SSOT: the scheduled job interface is defined here only
type Job interface {
	Name() string

	// Run executes the job once. The scheduler owns retries.
	Run(ctx context.Context) error

	// Schedule returns a six-field cron expression (seconds first)
	// or a descriptor such as "@daily"
	Schedule() string
}

// JobResult is the outcome of one scheduled or manual execution,
// after retries
type JobResult struct {
	JobName   string        `json:"job_name"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Attempts  int           `json:"attempts"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
}

// historyLimit is the number of results kept per job
const historyLimit = 100

// JobHistory keeps the most recent results of a job, oldest first
type JobHistory struct {
	Results []JobResult
}

// AddResult appends a result, dropping the oldest past historyLimit
func (h *JobHistory) AddResult(result JobResult) {
	h.Results = append(h.Results, result)
	if over := len(h.Results) - historyLimit; over > 0 {
		h.Results = append([]JobResult(nil), h.Results[over:]...)
	}
}

// Latest returns up to n most recent results, oldest first
func (h *JobHistory) Latest(n int) []JobResult {
	if n <= 0 {
		return nil
	}
	if n > len(h.Results) {
		n = len(h.Results)
	}
	return h.Results[len(h.Results)-n:]
}

// HistoryTally is a single pass over a job history
type HistoryTally struct {
	Successes           int
	Failures            int
	ConsecutiveFailures int // failures since the last success
	LastRun             *time.Time
	LastSuccess         *time.Time
	LastFailure         *time.Time
}

// SuccessRate is Successes over all runs, 0 with no runs
func (t HistoryTally) SuccessRate() float64 {
	total := t.Successes + t.Failures
	if total == 0 {
		return 0
	}
	return float64(t.Successes) / float64(total)
}

// Tally counts outcomes and remembers the latest timestamps
func (h *JobHistory) Tally() HistoryTally {
	var t HistoryTally
	for i := range h.Results {
		r := h.Results[i]
		start := r.StartTime
		t.LastRun = &start
		if r.Success {
			t.Successes++
			t.ConsecutiveFailures = 0
			t.LastSuccess = &start
		} else {
			t.Failures++
			t.ConsecutiveFailures++
			t.LastFailure = &start
		}
	}
	return t
}
