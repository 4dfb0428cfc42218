// Package server provides the HTTP intake for the transcription service:
// handlers, middleware, routes, and DTOs separated from domain types.
package server

import "github.com/sealium/transcription-api/internal/jobs"

// JobInputRequest is the tagged input descriptor of a create request. For
// url and path inputs the value is required; upload inputs carry the bytes
// in the multipart "file" part instead.
type JobInputRequest struct {
	Type  string `json:"type" validate:"required,oneof=url path upload"`
	Value string `json:"value"`
}

// JobOptionsRequest overrides the configured option defaults per job.
// Nil or zero fields keep the defaults.
type JobOptionsRequest struct {
	// Language is the ISO-639-1 transcription language.
	Language string `json:"language" validate:"omitempty,len=2"`
	// ChunkMode selects the segmenter.
	ChunkMode string `json:"chunk_mode" validate:"omitempty,oneof=silence vad"`
	// MaxParallelChunks bounds concurrent ASR for this job.
	MaxParallelChunks int `json:"max_parallel_chunks" validate:"omitempty,min=1,max=16"`
	// ProduceJSON/VTT/PDF toggle optional deliverables; nil means default on.
	ProduceJSON *bool `json:"produce_json"`
	ProduceVTT  *bool `json:"produce_vtt"`
	ProducePDF  *bool `json:"produce_pdf"`
	// CookiesFromBrowser is forwarded to the downloader for sources that
	// need an authenticated session.
	CookiesFromBrowser string `json:"cookies_from_browser"`
}

// CreateJobRequest is the JSON request body for creating a job. Multipart
// uploads replace the body with a "file" part plus an optional "options"
// part holding the same options document as JSON.
type CreateJobRequest struct {
	Input   JobInputRequest    `json:"input"`
	Options *JobOptionsRequest `json:"options" validate:"omitempty"`
}

// CreateJobResponse is returned with 202 Accepted.
type CreateJobResponse struct {
	JobID     string `json:"job_id"`
	Status    string `json:"status"`
	StatusURL string `json:"status_url"`
	ResultURL string `json:"result_url"`
}

// JobResponse exposes the durable job state.
type JobResponse struct {
	JobID      string          `json:"job_id"`
	Status     string          `json:"status"`
	Progress   jobs.Progress   `json:"progress"`
	Timestamps jobs.Timestamps `json:"timestamps"`
	Input      jobs.Input      `json:"input"`
	Options    jobs.Options    `json:"options"`
	Errors     []string        `json:"errors"`
	Result     *ResultResponse `json:"result,omitempty"`
}

// ResultResponse describes the finished deliverable.
type ResultResponse struct {
	DownloadName string `json:"download_name"`
	DownloadURL  string `json:"download_url"`
	ZipURL       string `json:"zip_url,omitempty"`
}

// PendingResponse is returned with 409 Conflict when the result is asked
// for before the job is done.
type PendingResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// CancelResponse acknowledges a cancel request.
type CancelResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
