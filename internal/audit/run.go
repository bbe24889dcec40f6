package audit

import (
	"sort"
	"time"

	"github.com/roeimichael/VarProject/internal/contracts"
)

// RunRecord is the persisted outcome of one evaluation run
type RunRecord struct {
	RunID      string              `json:"run_id"`
	StartedAt  time.Time           `json:"started_at"`
	Duration   time.Duration       `json:"duration"`
	Holdings   int                 `json:"holdings"`
	Failures   int                 `json:"failures"`
	LimitsHash string              `json:"limits_hash"`
	Findings   []contracts.Finding `json:"findings"`
	Digest     string              `json:"digest"`
}

// HistorySummary aggregates a window of runs
type HistorySummary struct {
	Runs             int            `json:"runs"`
	RunsWithFindings int            `json:"runs_with_findings"`
	FindingsByRule   map[string]int `json:"findings_by_rule"`
	FirstRun         time.Time      `json:"first_run"`
	LastRun          time.Time      `json:"last_run"`
	LimitsChanged    bool           `json:"limits_changed"` // more than one limits profile in the window
}

// Summarize aggregates runs in any order
func Summarize(runs []RunRecord) HistorySummary {
	s := HistorySummary{FindingsByRule: make(map[string]int)}
	if len(runs) == 0 {
		return s
	}

	sorted := append([]RunRecord(nil), runs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StartedAt.Before(sorted[j].StartedAt)
	})

	hashes := make(map[string]struct{})
	for _, r := range sorted {
		s.Runs++
		if len(r.Findings) > 0 {
			s.RunsWithFindings++
		}
		for _, f := range r.Findings {
			s.FindingsByRule[f.RuleID]++
		}
		hashes[r.LimitsHash] = struct{}{}
	}

	s.FirstRun = sorted[0].StartedAt
	s.LastRun = sorted[len(sorted)-1].StartedAt
	s.LimitsChanged = len(hashes) > 1
	return s
}
