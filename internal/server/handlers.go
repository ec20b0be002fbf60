package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/semaphore"

	"github.com/countercurse/countercurse/internal/job"
	"github.com/countercurse/countercurse/internal/job/id"
	"github.com/countercurse/countercurse/internal/storage"
)

// defaultVideoName names uploads that arrive without a video_name.
const defaultVideoName = "upload.mp4"

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	service            *job.CensorService
	storage            storage.Storage
	validator          *validator.Validate
	logger             *slog.Logger
	enableAsyncProcess bool
	inputDir           string
	maxConcurrent      int64
	slots              *semaphore.Weighted
	wg                 sync.WaitGroup
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithAsyncProcessing enables or disables background processing.
// When disabled, CreateJob only creates the job and returns immediately
// without starting background processing.
func WithAsyncProcessing(enabled bool) HandlerOption {
	return func(h *Handlers) {
		h.enableAsyncProcess = enabled
	}
}

// WithMaxConcurrentJobs limits how many jobs run at once. Jobs over the
// limit stay IDLE until a slot frees up.
func WithMaxConcurrentJobs(n int) HandlerOption {
	return func(h *Handlers) {
		if n > 0 {
			h.maxConcurrent = int64(n)
		}
	}
}

// WithInputDir allows input_path requests for videos under dir. Without it
// only uploads are accepted.
func WithInputDir(dir string) HandlerOption {
	return func(h *Handlers) {
		h.inputDir = dir
	}
}

// NewHandlers creates a new Handlers instance. store holds uploaded videos.
func NewHandlers(service *job.CensorService, store storage.Storage, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		service:            service,
		storage:            store,
		validator:          validator.New(validator.WithRequiredStructEnabled()),
		logger:             logger,
		enableAsyncProcess: true, // Default to enabled
		maxConcurrent:      1,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.slots = semaphore.NewWeighted(h.maxConcurrent)
	return h
}

// Wait blocks until every background job has finished or ctx is done.
func (h *Handlers) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// CreateJob handles POST /jobs requests.
func (h *Handlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}

	// Validate request
	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	if err := h.checkPaths(req); err != nil {
		h.logger.Warn("rejected job paths",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_PATH")
		return
	}

	inputPath := req.InputPath
	var uploaded []string
	if req.VideoBase64 != "" {
		path, err := h.saveUpload(r.Context(), req)
		if err != nil {
			h.logger.Error("failed to store uploaded video",
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to store video", "UPLOAD_FAILED")
			return
		}
		inputPath = path
		uploaded = append(uploaded, path)
	}

	input := job.CensorInput{
		InputPath:  inputPath,
		OutputName: req.OutputName,
		Tier:       req.Tier,
		Passes:     req.Passes,
		PushToS3:   req.PushToS3,
	}

	// Create job first (synchronously)
	createdJob, err := h.service.CreateJob(r.Context(), input)
	if err != nil {
		h.discardUploads(context.WithoutCancel(r.Context()), uploaded)
		if errors.Is(err, job.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, err.Error(), "INVALID_INPUT")
			return
		}
		h.logger.Error("failed to create job",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to create job", "JOB_CREATION_FAILED")
		return
	}

	// Start processing in background with a detached context
	// Use context.WithoutCancel to prevent cancellation when the request ends
	if h.enableAsyncProcess {
		h.wg.Add(1)
		go h.process(context.WithoutCancel(r.Context()), createdJob.ID, uploaded)
	}

	h.logger.Info("job created",
		slog.String("job_id", createdJob.ID),
		slog.String("tier", createdJob.Tier.String()),
		slog.Int("passes", createdJob.TotalPasses),
	)

	writeJSON(w, http.StatusAccepted, CreateJobResponse{
		ID:     createdJob.ID,
		Status: string(createdJob.Status),
	})
}

// process runs a created job once a concurrency slot is free.
func (h *Handlers) process(ctx context.Context, jobID string, uploaded []string) {
	defer h.wg.Done()
	defer h.discardUploads(ctx, uploaded)

	if err := h.slots.Acquire(ctx, 1); err != nil {
		h.logger.Error("failed to acquire job slot",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		return
	}
	defer h.slots.Release(1)

	if _, err := h.service.ProcessExistingJob(ctx, jobID); err != nil {
		h.logger.Error("background processing failed",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
	}
}

// checkPaths keeps client-chosen paths inside the server's directories:
// output_name must be a bare file name and input_path must sit under the
// input directory.
func (h *Handlers) checkPaths(req CreateJobRequest) error {
	name := req.OutputName
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." || filepath.IsAbs(name) {
		return errors.New("output_name must be a plain file name")
	}
	if req.InputPath == "" {
		return nil
	}
	if h.inputDir == "" {
		return errors.New("input_path is disabled; upload the video instead")
	}
	if !within(h.inputDir, req.InputPath) {
		return errors.New("input_path is outside the input directory")
	}
	return nil
}

// within reports whether path resolves to a location inside dir.
func within(dir, path string) bool {
	root, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	target, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	if resolved, err := filepath.EvalSymlinks(filepath.Dir(target)); err == nil {
		target = filepath.Join(resolved, filepath.Base(target))
	}
	if resolved, err := filepath.EvalSymlinks(target); err == nil {
		target = resolved
	}
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// saveUpload decodes the request's video into temporary storage.
func (h *Handlers) saveUpload(ctx context.Context, req CreateJobRequest) (string, error) {
	name := req.VideoName
	if name == "" {
		name = defaultVideoName
	}
	dec := base64.NewDecoder(base64.StdEncoding, strings.NewReader(req.VideoBase64))
	return h.storage.SaveTemp(ctx, name, dec)
}

func (h *Handlers) discardUploads(ctx context.Context, paths []string) {
	if len(paths) == 0 {
		return
	}
	if err := h.storage.CleanupTemp(ctx, paths); err != nil {
		h.logger.Warn("failed to remove uploaded video",
			slog.Any("paths", paths),
			slog.String("error", err.Error()),
		)
	}
}

// GetJob handles GET /jobs/{id} requests.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return
	}
	if !id.Valid(jobID) {
		writeError(w, http.StatusBadRequest, "malformed job ID", "INVALID_JOB_ID")
		return
	}

	foundJob, err := h.service.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
			return
		}
		h.logger.Error("failed to get job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get job", "JOB_FETCH_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, toJobResponse(foundJob))
}

// ListJobs handles GET /jobs requests.
func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.service.ListJobs(r.Context())
	if err != nil {
		h.logger.Error("failed to list jobs",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list jobs", "JOB_LIST_FAILED")
		return
	}

	resp := ListJobsResponse{Jobs: make([]JobResponse, 0, len(jobs))}
	for _, j := range jobs {
		resp.Jobs = append(resp.Jobs, toJobResponse(j))
	}
	writeJSON(w, http.StatusOK, resp)
}

func toJobResponse(j *job.Job) JobResponse {
	snapshot := j.Clone()
	resp := JobResponse{
		ID:              snapshot.ID,
		Status:          string(snapshot.Status),
		Progress:        j.Progress(),
		Tier:            snapshot.Tier.String(),
		CurrentPass:     snapshot.CurrentPass,
		TotalPasses:     snapshot.TotalPasses,
		CensoredPerPass: snapshot.CensoredPerPass(),
		Passes:          make([]PassResponse, 0, len(snapshot.Passes)),
		OutputPath:      snapshot.OutputPath,
		VideoURL:        snapshot.VideoURL,
		Error:           snapshot.Error,
		CreatedAt:       snapshot.CreatedAt,
	}
	for _, p := range snapshot.Passes {
		resp.Passes = append(resp.Passes, PassResponse{
			Index:      p.Index,
			Intervals:  p.Intervals,
			Words:      p.Words,
			Warnings:   p.Warnings,
			DurationMs: p.Duration.Milliseconds(),
		})
	}
	if !snapshot.CompletedAt.IsZero() {
		completed := snapshot.CompletedAt
		resp.CompletedAt = &completed
	}
	return resp
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
