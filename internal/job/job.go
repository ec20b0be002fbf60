// Package job provides the Job aggregate that tracks one censoring run and
// the CensorService that drives a video through its censoring passes.
package job

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/countercurse/countercurse/internal/job/id"
	"github.com/countercurse/countercurse/internal/lexicon"
)

// Status represents the current state of a Job.
type Status string

const (
	// StatusIdle indicates the job was accepted but no pass has started.
	StatusIdle Status = "IDLE"
	// StatusRunning indicates a pass is in progress.
	StatusRunning Status = "RUNNING"
	// StatusSucceeded indicates every requested pass censored something and
	// the final output was written.
	StatusSucceeded Status = "SUCCEEDED"
	// StatusFailed indicates a collaborator failed and the run was aborted.
	StatusFailed Status = "FAILED"
	// StatusNoOffensesFound indicates a pass detected nothing to censor.
	StatusNoOffensesFound Status = "NO_OFFENSES_FOUND"
	// StatusCancelled indicates the run's context ended between passes.
	StatusCancelled Status = "CANCELLED"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed.
var validTransitions = map[Status][]Status{
	StatusIdle:            {StatusRunning, StatusCancelled, StatusFailed},
	StatusRunning:         {StatusSucceeded, StatusFailed, StatusNoOffensesFound, StatusCancelled},
	StatusSucceeded:       {},
	StatusFailed:          {},
	StatusNoOffensesFound: {},
	StatusCancelled:       {},
}

// canTransition checks if a transition from one status to another is valid.
func canTransition(from, to Status) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Pass records the outcome of one extract, transcribe, splice and remux cycle.
type Pass struct {
	// Index is the 1-based pass number.
	Index int
	// Intervals is the number of offending intervals detected in this pass.
	Intervals int
	// Words holds the detected words in transcript order.
	Words []string
	// Warnings holds splice boundary warnings raised in this pass.
	Warnings []string
	// Output is the video written by this pass, empty when nothing was censored.
	Output string
	// Duration is the wall time of the pass.
	Duration time.Duration
}

// Job represents a single censoring run over one input video.
type Job struct {
	mu sync.RWMutex

	// ID is the unique identifier for this job. It also names the run's workspace.
	ID string
	// Status is the current job state.
	Status Status
	// InputPath is the original video. It is never modified or deleted.
	InputPath string
	// OutputPath is where the final censored video is written.
	OutputPath string
	// Tier is the lexicon tier used for detection.
	Tier lexicon.Tier
	// TotalPasses is the number of passes requested.
	TotalPasses int
	// CurrentPass is the 1-based pass in progress, 0 before the first.
	CurrentPass int
	// Passes holds the finished passes in order.
	Passes []Pass
	// Error contains any error message if the job failed.
	Error string
	// PushToS3 indicates whether to upload the result to S3.
	PushToS3 bool
	// VideoURL is the S3 URL if PushToS3 was true.
	VideoURL string
	// CreatedAt is when the job was created.
	CreatedAt time.Time
	// UpdatedAt is when the job was last updated.
	UpdatedAt time.Time
	// StartedAt is when the first pass started.
	StartedAt time.Time
	// CompletedAt is when the job reached a terminal state.
	CompletedAt time.Time
}

// New creates a new Job with a generated ID and initial IDLE status.
func New() *Job {
	return NewWithID(id.Generate())
}

// NewWithID creates a new Job with the specified ID and initial IDLE status.
func NewWithID(jobID string) *Job {
	now := time.Now()
	return &Job{
		ID:        jobID,
		Status:    StatusIdle,
		Tier:      lexicon.DefaultTier,
		Passes:    make([]Pass, 0),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TransitionTo attempts to change the job status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) TransitionTo(status Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !canTransition(j.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, status)
	}

	j.Status = status
	j.UpdatedAt = time.Now()

	switch status {
	case StatusRunning:
		j.StartedAt = j.UpdatedAt
	case StatusSucceeded, StatusFailed, StatusNoOffensesFound, StatusCancelled:
		j.CompletedAt = j.UpdatedAt
	}

	return nil
}

// Start transitions the job from IDLE to RUNNING.
func (j *Job) Start() error {
	return j.TransitionTo(StatusRunning)
}

// Succeed transitions the job to SUCCEEDED.
func (j *Job) Succeed() error {
	return j.TransitionTo(StatusSucceeded)
}

// NoOffensesFound transitions the job to NO_OFFENSES_FOUND.
func (j *Job) NoOffensesFound() error {
	return j.TransitionTo(StatusNoOffensesFound)
}

// Fail transitions the job to FAILED with an error message.
func (j *Job) Fail(errMsg string) error {
	j.mu.Lock()
	j.Error = errMsg
	j.mu.Unlock()
	return j.TransitionTo(StatusFailed)
}

// Cancel transitions the job to CANCELLED.
func (j *Job) Cancel() error {
	return j.TransitionTo(StatusCancelled)
}

// GetStatus returns the current job status (thread-safe).
func (j *Job) GetStatus() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// BeginPass marks pass k as the one in progress.
func (j *Job) BeginPass(k int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.CurrentPass = k
	j.UpdatedAt = time.Now()
}

// RecordPass appends a finished pass.
func (j *Job) RecordPass(p Pass) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Passes = append(j.Passes, p)
	j.UpdatedAt = time.Now()
}

// SetOutput sets the final output path and optional S3 URL.
func (j *Job) SetOutput(videoPath, videoURL string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.OutputPath = videoPath
	j.VideoURL = videoURL
	j.UpdatedAt = time.Now()
}

// CensoredPerPass returns the number of intervals detected in each finished pass.
func (j *Job) CensoredPerPass() []int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return censoredPerPass(j.Passes)
}

func censoredPerPass(passes []Pass) []int {
	counts := make([]int, len(passes))
	for i, p := range passes {
		counts[i] = p.Intervals
	}
	return counts
}

// Progress describes the job for humans, e.g. "RUNNING (pass 2 of 3)".
func (j *Job) Progress() string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.Status == StatusRunning && j.CurrentPass > 0 {
		return fmt.Sprintf("%s (pass %d of %d)", j.Status, j.CurrentPass, j.TotalPasses)
	}
	return string(j.Status)
}

// IsTerminal returns true if the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(validTransitions[j.Status]) == 0
}

// Clone creates a deep copy of the job for safe reads.
func (j *Job) Clone() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()

	passes := make([]Pass, len(j.Passes))
	for i, p := range j.Passes {
		p.Words = append([]string(nil), p.Words...)
		p.Warnings = append([]string(nil), p.Warnings...)
		passes[i] = p
	}

	return &Job{
		ID:          j.ID,
		Status:      j.Status,
		InputPath:   j.InputPath,
		OutputPath:  j.OutputPath,
		Tier:        j.Tier,
		TotalPasses: j.TotalPasses,
		CurrentPass: j.CurrentPass,
		Passes:      passes,
		Error:       j.Error,
		PushToS3:    j.PushToS3,
		VideoURL:    j.VideoURL,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
	}
}
