package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/aristath/market-reports/internal/domain"
	"github.com/aristath/market-reports/internal/pipeline"
	"github.com/rs/zerolog"
)

const maxRequestBody = 1 << 20

// Response is the envelope of every job endpoint
type Response struct {
	Success bool              `json:"success"`
	Message string            `json:"message,omitempty"`
	Error   string            `json:"error,omitempty"`
	Kind    string            `json:"kind,omitempty"`
	Stage   string            `json:"stage,omitempty"`
	Job     *domain.JobRecord `json:"job,omitempty"`
	Result  *RunSummary       `json:"result,omitempty"`
}

// RunSummary is the client view of a completed synchronous run
type RunSummary struct {
	JobID       string   `json:"job_id"`
	Outcome     string   `json:"outcome"`
	Attachments int      `json:"attachments"`
	Records     int      `json:"records"`
	Warnings    []string `json:"warnings,omitempty"`
	DurationMs  int64    `json:"duration_ms"`
}

// JobHandlers serves the job API
type JobHandlers struct {
	jobs JobService
	log  zerolog.Logger
}

// NewJobHandlers creates job handlers
func NewJobHandlers(jobs JobService, log zerolog.Logger) *JobHandlers {
	return &JobHandlers{
		jobs: jobs,
		log:  log.With().Str("component", "job_handlers").Logger(),
	}
}

// HandleListJobs returns pending jobs
// GET /api/jobs
func (h *JobHandlers) HandleListJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.jobs.ListJobs(), h.log)
}

// HandleSubmit runs a report synchronously
// POST /api/submit
func (h *JobHandlers) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	result, err := h.jobs.SubmitImmediate(r.Context(), req)
	if err != nil {
		h.writeError(w, "failed to run the Spark job", err)
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "Spark job completed successfully",
		Result: &RunSummary{
			JobID:       result.JobID,
			Outcome:     result.Outcome,
			Attachments: result.Attachments,
			Records:     result.Records,
			Warnings:    result.Warnings,
			DurationMs:  result.Duration.Milliseconds(),
		},
	}, h.log)
}

// HandleSchedule schedules a report for later
// POST /api/schedule
func (h *JobHandlers) HandleSchedule(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	record, err := h.jobs.SubmitDeferred(req)
	if err != nil {
		h.writeError(w, "failed to schedule the Spark job", err)
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Message: fmt.Sprintf("Spark job scheduled to run in %s", h.jobs.Delay()),
		Job:     record,
	}, h.log)
}

func (h *JobHandlers) decode(w http.ResponseWriter, r *http.Request) (domain.JobRequest, bool) {
	var req domain.JobRequest

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{
			Success: false,
			Error:   "request body must be a JSON object",
			Kind:    string(domain.KindValidation),
		}, h.log)
		return req, false
	}
	return req, true
}

// writeError maps err to the envelope: 400 for validation, 500 otherwise
func (h *JobHandlers) writeError(w http.ResponseWriter, action string, err error) {
	kind := domain.KindOf(err)

	if errors.Is(err, domain.ErrValidation) {
		writeJSON(w, http.StatusBadRequest, Response{
			Success: false,
			Error:   domain.MessageOf(err),
			Kind:    string(kind),
		}, h.log)
		return
	}

	h.log.Error().Err(err).Str("kind", string(kind)).Msg(action)
	writeJSON(w, http.StatusInternalServerError, Response{
		Success: false,
		Error:   fmt.Sprintf("%s: %s", action, domain.MessageOf(err)),
		Kind:    string(kind),
		Stage:   string(pipeline.StageOf(err)),
	}, h.log)
}
