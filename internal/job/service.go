package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/countercurse/countercurse/internal/audio"
	"github.com/countercurse/countercurse/internal/lexicon"
	"github.com/countercurse/countercurse/internal/media"
	"github.com/countercurse/countercurse/internal/observe"
	"github.com/countercurse/countercurse/internal/storage"
	"github.com/countercurse/countercurse/internal/transcribe"
)

// Defaults applied by NewCensorService.
const (
	DefaultPasses           = 2
	DefaultMaxPasses        = 5
	DefaultSampleRate       = 44100
	DefaultSpeechSampleRate = 16000
)

var (
	// ErrInvalidInput is returned when a censor request cannot be run.
	ErrInvalidInput = errors.New("invalid censor input")
	// ErrArtifactCleanup wraps failures to remove intermediate files. It is
	// logged and never fails a run.
	ErrArtifactCleanup = errors.New("artifact cleanup failed")
	// ErrTruncatedOutput is returned when a remuxed pass output is shorter
	// than the censored audio muxed into it.
	ErrTruncatedOutput = errors.New("remuxed output truncated")
)

// MediaProcessor is the subset of media.Processor the pipeline needs.
type MediaProcessor interface {
	// ExtractAudio writes the first audio stream of videoPath as 16-bit PCM
	// WAV. A channels value of 0 keeps the source layout.
	ExtractAudio(ctx context.Context, videoPath, audioPath string, sampleRate, channels int) error
	// ReplaceAudio copies the video stream of videoPath and muxes audioPath
	// in as its only audio stream.
	ReplaceAudio(ctx context.Context, videoPath, audioPath, outputPath string) error
	// GetMediaDuration returns a media file's duration in seconds.
	GetMediaDuration(ctx context.Context, path string) (float64, error)
}

var _ MediaProcessor = (media.Processor)(nil)

// CensorInput describes one censoring request.
type CensorInput struct {
	// InputPath is the source video. It is read, never modified.
	InputPath string
	// OutputName is the final video path. Without an extension the input's
	// extension is used; relative names resolve against the output directory.
	OutputName string
	// Tier is a lexicon tier name. Empty selects the service default;
	// unknown names fall back to lexicon.DefaultTier.
	Tier string
	// Passes is the number of censoring passes. Zero selects the service default.
	Passes int
	// PushToS3 uploads the final output when set.
	PushToS3 bool
}

// Result reports the outcome of a censoring run.
type Result struct {
	JobID      string
	Status     Status
	OutputPath string
	VideoURL   string
	Passes     []Pass
	Err        error
}

// Success reports whether OutputPath holds a censored video.
func (r *Result) Success() bool {
	if r == nil || r.OutputPath == "" {
		return false
	}
	return r.Status == StatusSucceeded || r.Status == StatusNoOffensesFound
}

// CensoredPerPass returns the number of intervals detected in each pass.
func (r *Result) CensoredPerPass() []int {
	if r == nil {
		return nil
	}
	return censoredPerPass(r.Passes)
}

// ServiceOption configures a CensorService.
type ServiceOption func(*CensorService)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *CensorService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics sets the metric instruments. Nil disables metrics.
func WithMetrics(m *observe.Metrics) ServiceOption {
	return func(s *CensorService) {
		s.metrics = m
	}
}

// WithSampleRates sets the rate of the spliced audio track and of the track
// handed to the transcriber. A speech rate of 0 transcribes the spliced track.
func WithSampleRates(master, speech int) ServiceOption {
	return func(s *CensorService) {
		if master > 0 {
			s.sampleRate = master
		}
		if speech >= 0 {
			s.speechSampleRate = speech
		}
	}
}

// WithPassLimits sets the default and the maximum number of passes.
func WithPassLimits(defaultPasses, maxPasses int) ServiceOption {
	return func(s *CensorService) {
		if maxPasses > 0 {
			s.maxPasses = maxPasses
		}
		if defaultPasses > 0 {
			s.defaultPasses = defaultPasses
		}
	}
}

// WithDefaultTier sets the tier used when a request names none.
func WithDefaultTier(tier lexicon.Tier) ServiceOption {
	return func(s *CensorService) {
		if tier.IsValid() {
			s.defaultTier = tier
		}
	}
}

// WithOutputDir sets the directory relative output names resolve against.
func WithOutputDir(dir string) ServiceOption {
	return func(s *CensorService) {
		s.outputDir = dir
	}
}

// CensorService runs videos through repeated extract, transcribe, detect,
// splice and remux passes until the requested pass count is reached or a
// pass finds nothing left to censor.
type CensorService struct {
	repo        Repository
	media       MediaProcessor
	transcriber transcribe.Transcriber
	storage     storage.Storage
	lexicon     *lexicon.Lexicon
	masker      audio.Masker
	logger      *slog.Logger
	metrics     *observe.Metrics

	sampleRate       int
	speechSampleRate int
	defaultPasses    int
	maxPasses        int
	defaultTier      lexicon.Tier
	outputDir        string
}

// NewCensorService creates a CensorService. A nil masker selects the default
// 1 kHz tone.
func NewCensorService(
	repo Repository,
	proc MediaProcessor,
	tr transcribe.Transcriber,
	store storage.Storage,
	lex *lexicon.Lexicon,
	masker audio.Masker,
	opts ...ServiceOption,
) *CensorService {
	if masker == nil {
		masker = audio.SineTone{Frequency: audio.DefaultToneFrequency, Amplitude: audio.DefaultToneAmplitude}
	}
	s := &CensorService{
		repo:             repo,
		media:            proc,
		transcriber:      tr,
		storage:          store,
		lexicon:          lex,
		masker:           masker,
		logger:           slog.Default(),
		sampleRate:       DefaultSampleRate,
		speechSampleRate: DefaultSpeechSampleRate,
		defaultPasses:    DefaultPasses,
		maxPasses:        DefaultMaxPasses,
		defaultTier:      lexicon.DefaultTier,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.defaultPasses > s.maxPasses {
		s.defaultPasses = s.maxPasses
	}
	return s
}

// MaxPasses returns the largest pass count the service accepts.
func (s *CensorService) MaxPasses() int {
	return s.maxPasses
}

// CreateJob validates input, resolves the output path and persists a new
// job in IDLE status. Validation failures wrap ErrInvalidInput.
func (s *CensorService) CreateJob(ctx context.Context, input CensorInput) (*Job, error) {
	job := New()
	if err := s.resolve(job, input); err != nil {
		return nil, err
	}

	s.logger.Info("creating new job",
		slog.String("job_id", job.ID),
		slog.String("input", job.InputPath),
		slog.String("output", job.OutputPath),
		slog.String("tier", job.Tier.String()),
		slog.Int("passes", job.TotalPasses),
		slog.Bool("push_to_s3", job.PushToS3),
	)

	if err := s.repo.Save(ctx, job); err != nil {
		s.logger.Error("failed to save job",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	return job, nil
}

// GetJob retrieves a job by ID.
func (s *CensorService) GetJob(ctx context.Context, id string) (*Job, error) {
	return s.repo.FindByID(ctx, id)
}

// ListJobs returns all known jobs, newest first.
func (s *CensorService) ListJobs(ctx context.Context) ([]*Job, error) {
	return s.repo.List(ctx)
}

// CensorVideo creates a job for input and runs it to a terminal state.
// The returned error is non-nil when the run failed or was cancelled; the
// Result is still returned in that case.
func (s *CensorService) CensorVideo(ctx context.Context, input CensorInput) (*Result, error) {
	job, err := s.CreateJob(ctx, input)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, job)
}

// ProcessExistingJob runs a job previously created with CreateJob.
func (s *CensorService) ProcessExistingJob(ctx context.Context, jobID string) (*Result, error) {
	job, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, job)
}

// resolve validates input and fills the job's request fields.
func (s *CensorService) resolve(job *Job, input CensorInput) error {
	inputPath := strings.TrimSpace(input.InputPath)
	if inputPath == "" {
		return fmt.Errorf("%w: input path is required", ErrInvalidInput)
	}
	info, err := os.Stat(inputPath)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrInvalidInput, inputPath)
	}
	if !media.IsSupportedVideo(inputPath) {
		return fmt.Errorf("%w: unsupported video format %q", ErrInvalidInput, filepath.Ext(inputPath))
	}

	outputPath, err := s.outputPath(inputPath, input.OutputName)
	if err != nil {
		return err
	}

	passes := input.Passes
	if passes == 0 {
		passes = s.defaultPasses
	}
	if passes < 1 || passes > s.maxPasses {
		return fmt.Errorf("%w: passes must be between 1 and %d, got %d", ErrInvalidInput, s.maxPasses, passes)
	}

	tier := s.defaultTier
	if strings.TrimSpace(input.Tier) != "" {
		if tier, err = lexicon.ParseTier(input.Tier); err != nil {
			s.logger.Warn("unknown tier, using fallback",
				slog.String("tier", input.Tier),
				slog.String("fallback", tier.String()),
			)
		}
	}

	job.InputPath = inputPath
	job.OutputPath = outputPath
	job.TotalPasses = passes
	job.Tier = tier
	job.PushToS3 = input.PushToS3
	return nil
}

// outputPath derives the final output path from the requested name.
func (s *CensorService) outputPath(inputPath, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: output name is required", ErrInvalidInput)
	}
	if filepath.Ext(name) == "" {
		name += filepath.Ext(inputPath)
	}
	if !filepath.IsAbs(name) && s.outputDir != "" {
		name = filepath.Join(s.outputDir, name)
	}
	if !media.IsSupportedVideo(name) {
		return "", fmt.Errorf("%w: unsupported output format %q", ErrInvalidInput, filepath.Ext(name))
	}

	absOut, errOut := filepath.Abs(name)
	absIn, errIn := filepath.Abs(inputPath)
	if errOut == nil && errIn == nil && absOut == absIn {
		return "", fmt.Errorf("%w: output would overwrite the input", ErrInvalidInput)
	}
	return name, nil
}

// save persists job, logging failures. Persistence is best effort once a
// run has started.
func (s *CensorService) save(ctx context.Context, job *Job) {
	if err := s.repo.Save(context.WithoutCancel(ctx), job); err != nil {
		s.logger.Error("failed to save job",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
	}
}

func since(t time.Time) time.Duration {
	return time.Since(t).Round(time.Millisecond)
}
