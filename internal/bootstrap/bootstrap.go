// Package bootstrap provides dependency initialization shared by the CLI and
// the HTTP server.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/countercurse/countercurse/internal/audio"
	"github.com/countercurse/countercurse/internal/config"
	"github.com/countercurse/countercurse/internal/job"
	"github.com/countercurse/countercurse/internal/lexicon"
	"github.com/countercurse/countercurse/internal/media"
	"github.com/countercurse/countercurse/internal/observe"
	"github.com/countercurse/countercurse/internal/storage"
	"github.com/countercurse/countercurse/internal/transcribe"
)

// Dependencies holds all initialized dependencies.
type Dependencies struct {
	CensorService *job.CensorService
	Lexicon       *lexicon.Lexicon
	Storage       storage.Storage
}

// NewDependencies creates and initializes all dependencies for the application.
// Metrics are recorded through the global OTel meter provider.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	lex, err := LoadLexicon(cfg, logger)
	if err != nil {
		return nil, err
	}

	tr, err := NewTranscriber(cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("transcriber configured", slog.String("transcriber", cfg.Transcriber))

	masker, err := audio.NewMasker(cfg.Mask, cfg.ToneFrequencyHz)
	if err != nil {
		return nil, err
	}

	store, err := initStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	tier, err := lexicon.ParseTier(cfg.DefaultTier)
	if err != nil {
		logger.Warn("invalid default tier", slog.String("error", err.Error()))
	}

	svc := job.NewCensorService(
		job.NewMemoryRepository(),
		media.NewFFmpegProcessor(cfg.FFmpegPath, cfg.FFprobePath),
		tr,
		store,
		lex,
		masker,
		job.WithLogger(logger),
		job.WithMetrics(observe.DefaultMetrics()),
		job.WithSampleRates(cfg.SampleRate, cfg.TranscribeSampleRate),
		job.WithPassLimits(cfg.DefaultPasses, cfg.MaxPasses),
		job.WithDefaultTier(tier),
		job.WithOutputDir(cfg.OutputDir),
	)

	return &Dependencies{
		CensorService: svc,
		Lexicon:       lex,
		Storage:       store,
	}, nil
}

// LoadLexicon loads the lexicon from LEXICON_FILE when set, otherwise from
// the tier files in LEXICON_DIR. Missing tiers are logged and loaded empty;
// only an unreadable or malformed YAML file is fatal.
func LoadLexicon(cfg *config.Config, logger *slog.Logger) (*lexicon.Lexicon, error) {
	var (
		lex    *lexicon.Lexicon
		err    error
		source string
	)
	if cfg.LexiconFile != "" {
		source = cfg.LexiconFile
		lex, err = lexicon.LoadYAMLFile(cfg.LexiconFile)
		if lex == nil {
			return nil, fmt.Errorf("load lexicon: %w", err)
		}
	} else {
		source = cfg.LexiconDir
		lex, err = lexicon.Load(cfg.LexiconDir)
	}

	if err != nil {
		var loadErr *lexicon.LoadError
		for _, e := range unwrapJoined(err) {
			if errors.As(e, &loadErr) {
				logger.Warn("lexicon tier degraded to empty",
					slog.String("tier", loadErr.Tier.String()),
					slog.String("error", loadErr.Err.Error()),
				)
			}
		}
	}

	attrs := []any{slog.String("source", source)}
	for _, tier := range lexicon.AllTiers() {
		attrs = append(attrs, slog.Int(tier.String(), lex.Size(tier)))
	}
	logger.Info("lexicon loaded", attrs...)

	return lex, nil
}

// unwrapJoined flattens an errors.Join result.
func unwrapJoined(err error) []error {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}
	return []error{err}
}

// NewTranscriber builds the speech-to-text backend selected by TRANSCRIBER.
func NewTranscriber(cfg *config.Config) (transcribe.Transcriber, error) {
	switch cfg.Transcriber {
	case config.TranscriberOpenAI:
		opts := []transcribe.OpenAIOption{}
		if cfg.OpenAIBaseURL != "" {
			opts = append(opts, transcribe.WithOpenAIBaseURL(cfg.OpenAIBaseURL))
		}
		if cfg.WhisperLanguage != "" {
			opts = append(opts, transcribe.WithOpenAILanguage(cfg.WhisperLanguage))
		}
		tr, err := transcribe.NewOpenAITranscriber(cfg.OpenAIAPIKey, cfg.OpenAIModel, opts...)
		if err != nil {
			return nil, fmt.Errorf("create OpenAI transcriber: %w", err)
		}
		return tr, nil
	case config.TranscriberWhisper, "":
		tr, err := transcribe.NewWhisperTranscriber(cfg.WhisperURL, transcribe.WithLanguage(cfg.WhisperLanguage))
		if err != nil {
			return nil, fmt.Errorf("create whisper transcriber: %w", err)
		}
		return tr, nil
	default:
		return nil, fmt.Errorf("%w: unknown transcriber %q", config.ErrInvalidConfig, cfg.Transcriber)
	}
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(ctx, cfg.TempDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
			slog.String("temp_dir", s3Store.TempDir()),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.TempDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("temp_dir", localStore.TempDir()),
	)
	return localStore, nil
}
