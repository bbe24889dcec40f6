package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/roeimichael/VarProject/internal/audit"
	"github.com/roeimichael/VarProject/internal/contracts"
	"github.com/roeimichael/VarProject/internal/limitsconfig"
	"github.com/roeimichael/VarProject/internal/monitor"
	"github.com/roeimichael/VarProject/internal/portfolio"
	"github.com/roeimichael/VarProject/pkg/logger"
)

// maxSnapshotBytes bounds the evaluate request body
const maxSnapshotBytes = 1 << 20

// Evaluator is the monitor surface the risk endpoints need
type Evaluator interface {
	Run(ctx context.Context, holdings []contracts.Holding) (*monitor.Report, error)
	Latest(ctx context.Context) (*monitor.Report, bool, error)
	Profile() *limitsconfig.Profile
}

// RunLister reads the persisted run history
type RunLister interface {
	ListRuns(ctx context.Context, limit int) ([]audit.RunRecord, error)
}

// RiskHandler handles evaluation endpoints
type RiskHandler struct {
	evaluator Evaluator
	runs      RunLister // nil without Postgres
	logger    *logger.Logger
}

// NewRiskHandler creates a new risk handler. runs may be nil.
func NewRiskHandler(evaluator Evaluator, runs RunLister, log *logger.Logger) *RiskHandler {
	return &RiskHandler{
		evaluator: evaluator,
		runs:      runs,
		logger:    log,
	}
}

// EvaluateRequest is a portfolio snapshot
type EvaluateRequest struct {
	Holdings []portfolio.HoldingInput `json:"holdings"`
}

// Evaluate enriches and checks a snapshot
// POST /api/risk/evaluate
func (h *RiskHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSnapshotBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	holdings, err := portfolio.FromInputs(req.Holdings, "request")
	if err != nil {
		respondDomainError(w, err)
		return
	}

	report, err := h.evaluator.Run(r.Context(), holdings)
	if err != nil {
		h.logger.WithError(err).Warn("Evaluation rejected")
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, report)
}

// Limits returns the active limits profile
// GET /api/risk/limits
func (h *RiskHandler) Limits(w http.ResponseWriter, r *http.Request) {
	p := h.evaluator.Profile()
	hash, err := limitsconfig.Hash(p)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to hash limits profile")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"profile":  p,
		"hash":     hash,
		"warnings": limitsconfig.Warn(p),
	})
}

// LatestRun returns the most recent evaluation report
// GET /api/runs/latest
func (h *RiskHandler) LatestRun(w http.ResponseWriter, r *http.Request) {
	report, ok, err := h.evaluator.Latest(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to get latest run")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve latest run")
		return
	}
	if !ok {
		respondError(w, http.StatusNotFound, "No evaluation has run yet")
		return
	}

	respondJSON(w, http.StatusOK, report)
}

// ListRuns returns the persisted run history with a summary
// GET /api/runs?limit=20
func (h *RiskHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		respondError(w, http.StatusServiceUnavailable, "Run history requires DATABASE_URL")
		return
	}

	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > 500 {
			respondError(w, http.StatusBadRequest, "limit must be an integer in [1, 500]")
			return
		}
		limit = n
	}

	runs, err := h.runs.ListRuns(r.Context(), limit)
	if err != nil && !errors.Is(err, audit.ErrNoRuns) {
		h.logger.WithError(err).Error("Failed to list runs")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve run history")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"runs":    runs,
		"summary": audit.Summarize(runs),
	})
}
