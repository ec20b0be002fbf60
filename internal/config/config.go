// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrWhisperURLRequired is returned when TRANSCRIBER=whisper and WHISPER_URL is empty.
	ErrWhisperURLRequired = errors.New("config: WHISPER_URL is required for the whisper transcriber")
	// ErrOpenAIAPIKeyRequired is returned when TRANSCRIBER=openai and OPENAI_API_KEY is not set.
	ErrOpenAIAPIKeyRequired = errors.New("config: OPENAI_API_KEY is required for the openai transcriber")
	// ErrInvalidConfig wraps every other validation failure.
	ErrInvalidConfig = errors.New("config: invalid configuration")
)

// Transcriber backends.
const (
	TranscriberWhisper = "whisper"
	TranscriberOpenAI  = "openai"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port              int `env:"PORT, default=8080" json:"port" validate:"min=1,max=65535"`
	MaxConcurrentJobs int `env:"MAX_CONCURRENT_JOBS, default=2" json:"max_concurrent_jobs" validate:"min=1"`

	// Storage settings
	TempDir   string `env:"TEMP_DIR" json:"temp_dir,omitempty"`
	InputDir  string `env:"INPUT_DIR" json:"input_dir,omitempty"`
	OutputDir string `env:"OUTPUT_DIR" json:"output_dir,omitempty"`

	// Lexicon settings
	LexiconDir  string `env:"LEXICON_DIR, default=lexicon" json:"lexicon_dir"`
	LexiconFile string `env:"LEXICON_FILE" json:"lexicon_file,omitempty"`
	DefaultTier string `env:"DEFAULT_TIER, default=moderate" json:"default_tier" validate:"oneof=minor moderate strict"`

	// Censoring settings
	DefaultPasses        int     `env:"DEFAULT_PASSES, default=2" json:"default_passes" validate:"min=1,ltefield=MaxPasses"`
	MaxPasses            int     `env:"MAX_PASSES, default=5" json:"max_passes" validate:"min=1,max=20"`
	SampleRate           int     `env:"SAMPLE_RATE, default=44100" json:"sample_rate" validate:"min=8000,max=192000"`
	TranscribeSampleRate int     `env:"TRANSCRIBE_SAMPLE_RATE, default=16000" json:"transcribe_sample_rate" validate:"min=0,max=192000"`
	Mask                 string  `env:"MASK, default=tone" json:"mask" validate:"oneof=tone silence"`
	ToneFrequencyHz      float64 `env:"TONE_FREQUENCY_HZ, default=1000" json:"tone_frequency_hz" validate:"gt=0,lt=20000"`

	// Transcription settings
	Transcriber     string `env:"TRANSCRIBER, default=whisper" json:"transcriber" validate:"oneof=whisper openai"`
	WhisperURL      string `env:"WHISPER_URL, default=http://localhost:8081" json:"whisper_url,omitempty" validate:"required_if=Transcriber whisper"`
	WhisperLanguage string `env:"WHISPER_LANGUAGE, default=en" json:"whisper_language,omitempty"`
	OpenAIAPIKey    string `env:"OPENAI_API_KEY" json:"-" validate:"required_if=Transcriber openai"` // Masked in JSON
	OpenAIModel     string `env:"OPENAI_MODEL, default=whisper-1" json:"openai_model,omitempty"`
	OpenAIBaseURL   string `env:"OPENAI_BASE_URL" json:"openai_base_url,omitempty" validate:"omitempty,url"`

	// Media tools
	FFmpegPath  string `env:"FFMPEG_PATH, default=ffmpeg" json:"ffmpeg_path"`
	FFprobePath string `env:"FFPROBE_PATH, default=ffprobe" json:"ffprobe_path"`

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty" validate:"omitempty,url"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format" validate:"oneof=text json"`
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level" validate:"oneof=debug info warn warning error"`
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// Load reads configuration from environment variables using go-envconfig
// and validates it.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// normalize lowercases the enum-like settings.
func (c *Config) normalize() {
	c.DefaultTier = strings.ToLower(strings.TrimSpace(c.DefaultTier))
	c.Mask = strings.ToLower(strings.TrimSpace(c.Mask))
	c.Transcriber = strings.ToLower(strings.TrimSpace(c.Transcriber))
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration against its validate tags.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Field() {
		case "WhisperURL":
			if fe.Tag() == "required_if" {
				return ErrWhisperURLRequired
			}
		case "OpenAIAPIKey":
			return ErrOpenAIAPIKeyRequired
		}
		msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", fe.Field(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
}

// NewLogger creates a structured logger writing to stdout.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	return c.NewLoggerTo(os.Stdout)
}

// NewLoggerTo is NewLogger with an explicit destination.
func (c *Config) NewLoggerTo(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(c.LogLevel)}

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, MaxConcurrentJobs: %d, TempDir: %s, InputDir: %s, OutputDir: %s, LexiconDir: %s, LexiconFile: %s, DefaultTier: %s, DefaultPasses: %d, MaxPasses: %d, SampleRate: %d, TranscribeSampleRate: %d, Mask: %s, ToneFrequencyHz: %g, Transcriber: %s, WhisperURL: %s, OpenAIAPIKey: %s, OpenAIModel: %s, S3Bucket: %s, S3Region: %s, S3Endpoint: %s, AWSAccessKeyID: %s, AWSSecretAccessKey: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.MaxConcurrentJobs,
		c.TempDir,
		c.InputDir,
		c.OutputDir,
		c.LexiconDir,
		c.LexiconFile,
		c.DefaultTier,
		c.DefaultPasses,
		c.MaxPasses,
		c.SampleRate,
		c.TranscribeSampleRate,
		c.Mask,
		c.ToneFrequencyHz,
		c.Transcriber,
		c.WhisperURL,
		mask(c.OpenAIAPIKey),
		c.OpenAIModel,
		c.S3Bucket,
		c.S3Region,
		c.S3Endpoint,
		mask(c.AWSAccessKeyID),
		mask(c.AWSSecretAccessKey),
		c.LogFormat,
		c.LogLevel,
	)
}

// mask hides a secret while still showing whether it is set.
func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "****"
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
