package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/quillai/quill/internal/api/response"
	"github.com/quillai/quill/internal/api/validation"
	"github.com/quillai/quill/internal/models"
	"github.com/quillai/quill/internal/service"
)

// AnalysisService is the job engine as seen by the HTTP layer.
type AnalysisService interface {
	Submit(ctx context.Context, url string) (*service.Handle, error)
	GetStatus(ctx context.Context, jobID string) (models.JobStatusView, error)
	GetResult(ctx context.Context, analysisID string) (models.AnalysisReport, error)
	ListJobs(ctx context.Context, filters *models.ListJobsFilters) ([]models.JobRecord, error)
}

// AnalysisHandler handles job submission, polling and report reads.
type AnalysisHandler struct {
	service AnalysisService
}

// NewAnalysisHandler creates a new analysis handler.
func NewAnalysisHandler(service AnalysisService) *AnalysisHandler {
	return &AnalysisHandler{service: service}
}

// Analyze handles POST /v1/analyze.
func (h *AnalysisHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req models.AnalyzeRequest

	if err := validation.DecodeJSON(r, &req); err != nil {
		response.RespondBadRequest(w, "Invalid request body")

		return
	}

	if err := validation.ValidateStruct(&req); err != nil {
		if validation.FailedTag(err, validation.TagYouTubeURL) {
			response.RespondBadRequest(w, models.InvalidYouTubeURLMessage)

			return
		}

		validation.RespondValidationError(w, err)

		return
	}

	handle, err := h.service.Submit(r.Context(), req.URL)
	if err != nil {
		response.RespondServiceError(w, r, err, "Failed to start analysis")

		return
	}

	response.RespondJSON(w, http.StatusAccepted, models.AnalyzeResponse{
		JobID:  handle.JobID,
		Status: models.JobStatusProcessing,
	})
}

// Status handles GET /v1/status/{job_id}.
func (h *AnalysisHandler) Status(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	if jobID == "" {
		response.RespondBadRequest(w, "Job ID is required")

		return
	}

	status, err := h.service.GetStatus(r.Context(), jobID)
	if err != nil {
		response.RespondServiceError(w, r, err, "Failed to get job status")

		return
	}

	response.RespondJSON(w, http.StatusOK, status)
}

// Analysis handles GET /v1/analysis/{analysis_id}.
func (h *AnalysisHandler) Analysis(w http.ResponseWriter, r *http.Request) {
	analysisID := chi.URLParam(r, "analysis_id")
	if analysisID == "" {
		response.RespondBadRequest(w, "Analysis ID is required")

		return
	}

	report, err := h.service.GetResult(r.Context(), analysisID)
	if err != nil {
		response.RespondServiceError(w, r, err, "Failed to get analysis")

		return
	}

	response.RespondJSON(w, http.StatusOK, report)
}

// ListJobs handles GET /v1/jobs with query parameters for filtering.
func (h *AnalysisHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	filters := &models.ListJobsFilters{}

	if err := validation.ValidateAndDecodeQueryParams(r, filters); err != nil {
		validation.RespondValidationError(w, err)

		return
	}

	jobs, err := h.service.ListJobs(r.Context(), filters)
	if err != nil {
		response.RespondServiceError(w, r, err, "Failed to list jobs")

		return
	}

	limit := filters.Limit
	if limit == 0 {
		limit = defaultListLimit
	}

	response.RespondJSON(w, http.StatusOK, models.ListJobsResponse{
		Data:   jobs,
		Limit:  limit,
		Offset: filters.Offset,
	})
}

const defaultListLimit = 20
