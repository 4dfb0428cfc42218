package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sealium/transcription-api/internal/fsutil"
	"github.com/sealium/transcription-api/internal/jobs"
	"github.com/sealium/transcription-api/internal/metrics"
	"github.com/sealium/transcription-api/internal/queue"
)

const basePath = "/v1/transcriptions/jobs"

// maxUploadBytes bounds multipart uploads (2 GiB).
const maxUploadBytes = 2 << 30

// Defaults are the option values applied when a request omits them.
type Defaults struct {
	Language          string
	ChunkMode         string
	MaxParallelChunks int
}

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	store     *jobs.Store
	enqueuer  queue.Enqueuer
	validator *validator.Validate
	logger    *slog.Logger
	metrics   *metrics.Metrics
	defaults  Defaults
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(store *jobs.Store, enqueuer queue.Enqueuer, defaults Defaults, logger *slog.Logger, m *metrics.Metrics) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		store:     store,
		enqueuer:  enqueuer,
		validator: validator.New(),
		logger:    logger,
		metrics:   m,
		defaults:  defaults,
	}
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// CreateJob handles POST /v1/transcriptions/jobs. The body is either a JSON
// document with a tagged input and optional options, or a multipart form
// whose "file" part carries the media directly.
func (h *Handlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		h.createFromUpload(w, r)
		return
	}
	h.createFromJSON(w, r)
}

func (h *Handlers) createFromJSON(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode request body", slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("request validation failed", slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	input := jobs.Input{Type: jobs.InputType(req.Input.Type), Value: req.Input.Value}
	switch input.Type {
	case jobs.InputURL, jobs.InputPath:
		if input.Value == "" {
			writeError(w, http.StatusBadRequest, "input value is required", "MISSING_INPUT")
			return
		}
	case jobs.InputUpload:
		writeError(w, http.StatusBadRequest, `upload jobs need a multipart "file" part`, "MISSING_INPUT")
		return
	}

	state := jobs.NewState(input, h.buildOptions(req.Options))
	h.acceptJob(w, r, state)
}

func (h *Handlers) createFromUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form", "INVALID_MULTIPART")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, `multipart form needs a "file" part`, "MISSING_INPUT")
		return
	}
	defer file.Close()

	var opts *JobOptionsRequest
	if raw := r.FormValue("options"); raw != "" {
		opts = &JobOptionsRequest{}
		if err := json.Unmarshal([]byte(raw), opts); err != nil {
			writeError(w, http.StatusBadRequest, `"options" part is not valid JSON`, "INVALID_JSON")
			return
		}
		if err := h.validator.Struct(opts); err != nil {
			writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
			return
		}
	}

	state := jobs.NewState(jobs.Input{Type: jobs.InputUpload, Value: header.Filename}, h.buildOptions(opts))

	// The upload must be on disk before the splitter can be enqueued.
	dest := h.store.Paths(state.JobID).OriginalMP4()
	if err := saveUpload(file, dest); err != nil {
		h.logger.Error("failed to store upload", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to store upload", "UPLOAD_FAILED")
		return
	}

	h.acceptJob(w, r, state)
}

func saveUpload(src io.Reader, dest string) error {
	if err := fsutil.EnsureDir(filepath.Dir(dest)); err != nil {
		return err
	}
	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		os.Remove(dest)
		return err
	}
	return f.Close()
}

func (h *Handlers) buildOptions(req *JobOptionsRequest) jobs.Options {
	opts := jobs.DefaultOptions(h.defaults.Language)
	opts.ChunkMode = h.defaults.ChunkMode
	opts.MaxParallelChunks = h.defaults.MaxParallelChunks
	if req == nil {
		return opts
	}

	if req.Language != "" {
		opts.Language = req.Language
	}
	if req.ChunkMode != "" {
		opts.ChunkMode = req.ChunkMode
	}
	if req.MaxParallelChunks > 0 {
		opts.MaxParallelChunks = req.MaxParallelChunks
	}
	if req.ProduceJSON != nil {
		opts.ProduceJSON = *req.ProduceJSON
	}
	if req.ProduceVTT != nil {
		opts.ProduceVTT = *req.ProduceVTT
	}
	if req.ProducePDF != nil {
		opts.ProducePDF = *req.ProducePDF
	}
	opts.CookiesFromBrowser = req.CookiesFromBrowser
	return opts
}

func (h *Handlers) acceptJob(w http.ResponseWriter, r *http.Request, state *jobs.State) {
	ctx := r.Context()
	if err := h.store.Create(ctx, state); err != nil {
		h.logger.Error("failed to create job", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to create job", "JOB_CREATION_FAILED")
		return
	}
	if err := h.enqueuer.Enqueue(ctx, queue.QueueSplitter, state.JobID); err != nil {
		h.logger.Error("failed to enqueue job",
			slog.String("job_id", state.JobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to enqueue job", "ENQUEUE_FAILED")
		return
	}

	h.metrics.ObserveJobCreated()
	h.logger.Info("job created",
		slog.String("job_id", state.JobID),
		slog.String("input_type", string(state.Input.Type)),
		slog.String("language", state.Options.Language),
	)

	writeJSON(w, http.StatusAccepted, CreateJobResponse{
		JobID:     state.JobID,
		Status:    string(state.Status),
		StatusURL: fmt.Sprintf("%s/%s", basePath, state.JobID),
		ResultURL: fmt.Sprintf("%s/%s/result", basePath, state.JobID),
	})
}

// loadJob resolves the path job id, writing the error response itself when
// the job cannot be served.
func (h *Handlers) loadJob(w http.ResponseWriter, r *http.Request) *jobs.State {
	jobID := r.PathValue("id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return nil
	}

	state, err := h.store.Load(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, jobs.ErrStateCorrupted) {
			h.logger.Error("job state corrupted", slog.String("job_id", jobID))
			writeError(w, http.StatusInternalServerError, "job state is unreadable", "STATE_CORRUPTED")
			return nil
		}
		h.logger.Error("failed to load job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load job", "JOB_FETCH_FAILED")
		return nil
	}
	if state == nil {
		writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
		return nil
	}
	return state
}

// GetJob handles GET /v1/transcriptions/jobs/{id}.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	state := h.loadJob(w, r)
	if state == nil {
		return
	}
	writeJSON(w, http.StatusOK, h.jobResponse(state))
}

func (h *Handlers) jobResponse(state *jobs.State) JobResponse {
	resp := JobResponse{
		JobID:      state.JobID,
		Status:     string(state.Status),
		Progress:   state.Progress,
		Timestamps: state.Timestamps,
		Input:      state.Input,
		Options:    state.Options,
		Errors:     state.Errors,
	}
	if state.Result != nil {
		resp.Result = &ResultResponse{
			DownloadName: state.Result.DownloadName,
			DownloadURL:  fmt.Sprintf("%s/%s/download", basePath, state.JobID),
			ZipURL:       state.Result.ZipURL,
		}
	}
	return resp
}

// GetResult handles GET /v1/transcriptions/jobs/{id}/result. A job that is
// not done yet answers 409 with its current status.
func (h *Handlers) GetResult(w http.ResponseWriter, r *http.Request) {
	state := h.loadJob(w, r)
	if state == nil {
		return
	}

	if state.Status != jobs.StatusDone || state.Result == nil {
		writeJSON(w, http.StatusConflict, PendingResponse{
			JobID:  state.JobID,
			Status: string(state.Status),
		})
		return
	}

	writeJSON(w, http.StatusOK, ResultResponse{
		DownloadName: state.Result.DownloadName,
		DownloadURL:  fmt.Sprintf("%s/%s/download", basePath, state.JobID),
		ZipURL:       state.Result.ZipURL,
	})
}

// Download handles GET /v1/transcriptions/jobs/{id}/download by streaming
// the deliverable zip.
func (h *Handlers) Download(w http.ResponseWriter, r *http.Request) {
	state := h.loadJob(w, r)
	if state == nil {
		return
	}

	if state.Status != jobs.StatusDone || state.Result == nil {
		writeJSON(w, http.StatusConflict, PendingResponse{
			JobID:  state.JobID,
			Status: string(state.Status),
		})
		return
	}

	if !fsutil.FileExists(state.Result.ZipPath) {
		h.logger.Error("deliverable missing on disk",
			slog.String("job_id", state.JobID),
			slog.String("path", state.Result.ZipPath),
		)
		writeError(w, http.StatusNotFound, "archive not found", "ARCHIVE_MISSING")
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", state.Result.DownloadName))
	http.ServeFile(w, r, state.Result.ZipPath)
}

// Cancel handles POST /v1/transcriptions/jobs/{id}/cancel. Canceling a job
// already in a terminal state is a no-op that reports the current status.
func (h *Handlers) Cancel(w http.ResponseWriter, r *http.Request) {
	state := h.loadJob(w, r)
	if state == nil {
		return
	}

	if state.Status.IsTerminal() {
		writeJSON(w, http.StatusOK, CancelResponse{
			JobID:  state.JobID,
			Status: string(state.Status),
		})
		return
	}

	updated, err := h.store.SetStatus(r.Context(), state.JobID, jobs.StatusCanceled)
	if err != nil {
		h.logger.Error("failed to cancel job",
			slog.String("job_id", state.JobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to cancel job", "CANCEL_FAILED")
		return
	}

	h.logger.Info("job canceled", slog.String("job_id", state.JobID))
	writeJSON(w, http.StatusAccepted, CancelResponse{
		JobID:  updated.JobID,
		Status: string(updated.Status),
	})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
