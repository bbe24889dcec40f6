package handlers

import (
	"net/http"

	"github.com/roeimichael/VarProject/internal/scheduler"
)

// JobStatser reports scheduler statistics
type JobStatser interface {
	GetJobStats() map[string]scheduler.JobStats
}

// JobsHandler exposes scheduler bookkeeping
type JobsHandler struct {
	scheduler JobStatser
}

// NewJobsHandler creates a new jobs handler
func NewJobsHandler(s JobStatser) *JobsHandler {
	return &JobsHandler{scheduler: s}
}

// Stats returns per-job run statistics
// GET /api/jobs
func (h *JobsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.scheduler.GetJobStats())
}
