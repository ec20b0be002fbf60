// Package server provides the HTTP server for the countercurse API.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import "time"

// CreateJobRequest is the HTTP request body for creating a new censoring job.
// Exactly one of InputPath and VideoBase64 must be set.
type CreateJobRequest struct {
	// InputPath is a video already on the server's filesystem.
	InputPath string `json:"input_path" validate:"required_without=VideoBase64,excluded_with=VideoBase64"`
	// VideoBase64 is the base64-encoded source video.
	VideoBase64 string `json:"video_base64" validate:"required_without=InputPath,omitempty,base64"`
	// VideoName names an uploaded video; its extension selects the container.
	VideoName string `json:"video_name" validate:"omitempty,max=255"`
	// OutputName is the censored video's file name inside the output directory.
	OutputName string `json:"output_name" validate:"required,max=255"`
	// Tier is the lexicon tier: minor, moderate or strict.
	Tier string `json:"tier" validate:"omitempty,max=32"`
	// Passes is the number of censoring passes; 0 uses the server default.
	Passes int `json:"passes" validate:"min=0"`
	// PushToS3 indicates whether to upload the final video to S3.
	PushToS3 bool `json:"push_to_s3"`
}

// CreateJobResponse is the HTTP response after creating a job.
type CreateJobResponse struct {
	// ID is the unique identifier for the created job.
	ID string `json:"id"`
	// Status is the initial job status.
	Status string `json:"status"`
}

// PassResponse describes one finished pass.
type PassResponse struct {
	Index      int      `json:"index"`
	Intervals  int      `json:"intervals"`
	Words      []string `json:"words,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
	DurationMs int64    `json:"duration_ms"`
}

// JobResponse is the HTTP response for getting job details.
type JobResponse struct {
	// ID is the unique identifier for the job.
	ID string `json:"id"`
	// Status is the current job status.
	Status string `json:"status"`
	// Progress is a human-readable status, e.g. "RUNNING (pass 2 of 3)".
	Progress string `json:"progress"`
	// Tier is the lexicon tier in use.
	Tier string `json:"tier"`
	// CurrentPass is the 1-based pass in progress.
	CurrentPass int `json:"current_pass"`
	// TotalPasses is the number of passes requested.
	TotalPasses int `json:"total_passes"`
	// CensoredPerPass holds the interval count of each finished pass.
	CensoredPerPass []int `json:"censored_per_pass"`
	// Passes holds per-pass details.
	Passes []PassResponse `json:"passes"`
	// OutputPath is the censored video on the server's filesystem.
	OutputPath string `json:"output_path,omitempty"`
	// VideoURL is the S3 URL of the output video (if push_to_s3=true and completed).
	VideoURL string `json:"video_url,omitempty"`
	// Error contains any error message if the job failed.
	Error string `json:"error,omitempty"`
	// CreatedAt is when the job was accepted.
	CreatedAt time.Time `json:"created_at"`
	// CompletedAt is when the job reached a terminal state.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ListJobsResponse is the HTTP response for listing jobs.
type ListJobsResponse struct {
	Jobs []JobResponse `json:"jobs"`
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
