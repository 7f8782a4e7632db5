package models

import (
	"time"
)

// JobStatus is the lifecycle state of an analysis job.
type JobStatus string

const (
	// JobStatusPending is declared for API compatibility; jobs are created directly in PROCESSING.
	JobStatusPending    JobStatus = "PENDING"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
)

// IsTerminal reports whether no further transition can leave the status.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// IsValid returns true if the status is one of the declared values.
func (s JobStatus) IsValid() bool {
	switch s {
	case JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusFailed:
		return true
	default:
		return false
	}
}

// ProgressChannel identifies which of the two progress counters a report targets.
type ProgressChannel string

const (
	ChannelEmbeddings ProgressChannel = "embeddings"
	ChannelAnalysis   ProgressChannel = "analysis"
)

// Job is the tracked state of one analysis request.
// Version increments on every stored mutation and is the compare-and-swap token.
type Job struct {
	ID                 string    `json:"id"`
	URL                string    `json:"url"`
	Status             JobStatus `json:"status"`
	EmbeddingsProgress int       `json:"embeddings_progress"`
	AnalysisProgress   int       `json:"analysis_progress"`
	Error              *string   `json:"error,omitempty"`
	AnalysisID         *string   `json:"analysis_id,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
	Version            uint64    `json:"version"`
}

// JobStatusView is the status payload returned to pollers.
// gemini_progress is the wire name of the insight-extraction counter.
type JobStatusView struct {
	Status                 JobStatus `json:"status"`
	EmbeddingsProgress     int       `json:"embeddings_progress"`
	AnalysisProgress       int       `json:"gemini_progress"`
	EstimatedTimeRemaining *int      `json:"estimated_time_remaining"`
	Error                  *string   `json:"error"`
	AnalysisID             *string   `json:"analysis_id"`
}

// JobRecord is a row of the analysis_jobs table.
type JobRecord struct {
	ID                 string     `json:"id"`
	URL                string     `json:"url"`
	Status             JobStatus  `json:"status"`
	EmbeddingsProgress int        `json:"embeddings_progress"`
	AnalysisProgress   int        `json:"gemini_progress"`
	Error              *string    `json:"error,omitempty"`
	AnalysisID         *string    `json:"analysis_id,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
}

// ListJobsFilters are the query parameters for listing job records.
type ListJobsFilters struct {
	Status *JobStatus `form:"status" validate:"omitempty,oneof=PENDING PROCESSING COMPLETED FAILED"`
	Limit  int        `form:"limit" validate:"omitempty,min=1,max=100"`
	Offset int        `form:"offset" validate:"omitempty,min=0"`
}

// ListJobsResponse is the listing payload.
type ListJobsResponse struct {
	Data   []JobRecord `json:"data"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}

// AnalyzeRequest is the body of POST /v1/analyze.
type AnalyzeRequest struct {
	URL string `json:"url" validate:"required,no_null_bytes,max=2048,youtube_url"`
}

// AnalyzeResponse acknowledges an accepted job.
type AnalyzeResponse struct {
	JobID  string    `json:"job_id"`
	Status JobStatus `json:"status"`
}
