package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// Static errors for media operations.
var (
	// ErrInvalidSampleRate is returned when the requested sample rate is not positive.
	ErrInvalidSampleRate = errors.New("invalid sample rate: must be positive")
	// ErrFFprobeExecution is returned when ffprobe command fails.
	ErrFFprobeExecution = errors.New("ffprobe execution failed")
)

// SupportedVideoExtensions lists the containers accepted as pipeline input,
// lowercase and with the leading dot.
var SupportedVideoExtensions = []string{".mp4", ".mov", ".mkv", ".avi", ".webm", ".flv"}

// IsSupportedVideo reports whether path has a supported video extension.
func IsSupportedVideo(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range SupportedVideoExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// FFmpegProcessor implements Processor using the ffmpeg and ffprobe CLIs.
type FFmpegProcessor struct {
	// ffmpegPath is the path to the ffmpeg binary. Defaults to "ffmpeg".
	ffmpegPath string
	// ffprobePath is the path to the ffprobe binary. Defaults to "ffprobe".
	ffprobePath string
}

// NewFFmpegProcessor creates a new FFmpegProcessor.
// Empty paths default to "ffmpeg" and "ffprobe" (found via PATH).
func NewFFmpegProcessor(ffmpegPath, ffprobePath string) *FFmpegProcessor {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFmpegProcessor{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath}
}

// ExtractAudio implements Processor.
func (p *FFmpegProcessor) ExtractAudio(ctx context.Context, videoPath, audioPath string, sampleRate, channels int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidSampleRate, sampleRate)
	}

	args := []string{
		"-y",            // Overwrite output file
		"-i", videoPath, // Input video
		"-map", "0:a:0", // First audio stream only
		"-vn",                // Drop video
		"-c:a", "pcm_s16le", // 16-bit PCM
		"-ar", strconv.Itoa(sampleRate),
	}
	if channels > 0 {
		args = append(args, "-ac", strconv.Itoa(channels))
	}
	args = append(args, "-f", "wav", audioPath)

	return p.runFFmpeg(ctx, args)
}

// ReplaceAudio implements Processor. Video is stream-copied; the audio is
// encoded with a codec the output container accepts.
func (p *FFmpegProcessor) ReplaceAudio(ctx context.Context, videoPath, audioPath, outputPath string) error {
	args := []string{
		"-y",            // Overwrite output file
		"-i", videoPath, // Original video
		"-i", audioPath, // Censored audio
		"-map", "0:v", // Every video stream from the original
		"-map", "1:a:0", // Only the censored audio
		"-c:v", "copy", // Leave video untouched
	}
	args = append(args, audioCodecArgs(outputPath)...)
	args = append(args, outputPath)

	return p.runFFmpeg(ctx, args)
}

// audioCodecArgs picks an audio encoder compatible with the container
// implied by the output extension.
func audioCodecArgs(outputPath string) []string {
	switch strings.ToLower(filepath.Ext(outputPath)) {
	case ".webm":
		return []string{"-c:a", "libopus", "-b:a", "128k"}
	case ".avi":
		return []string{"-c:a", "libmp3lame", "-b:a", "192k"}
	case ".mkv":
		return []string{"-c:a", "flac"}
	default:
		return []string{"-c:a", "aac", "-b:a", "192k"}
	}
}

// runFFmpeg executes ffmpeg with the given arguments and returns an error
// containing stderr output if the command fails.
func (p *FFmpegProcessor) runFFmpeg(ctx context.Context, args []string) error {
	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, p.ffmpegPath, append([]string{"-hide_banner", "-nostdin"}, args...)...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return &FFmpegError{
			Args:   args,
			Stderr: stderr.String(),
			Err:    err,
		}
	}

	return nil
}

// FFmpegError represents an error from running ffmpeg, including the stderr output.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}

// GetMediaDuration returns the duration in seconds of a media file.
// It uses ffprobe to extract the duration metadata.
func (p *FFmpegProcessor) GetMediaDuration(ctx context.Context, path string) (float64, error) {
	// #nosec G204 - ffprobePath is set by the application, not user input
	cmd := exec.CommandContext(ctx, p.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		if ctx.Err() != nil {
			return 0, fmt.Errorf("ffprobe cancelled: %w", ctx.Err())
		}
		return 0, fmt.Errorf("%w: %w, stderr: %s", ErrFFprobeExecution, err, stderr.String())
	}

	var duration float64
	_, err = fmt.Sscanf(strings.TrimSpace(stdout.String()), "%f", &duration)
	if err != nil {
		return 0, fmt.Errorf("parse duration: %w", err)
	}

	return duration, nil
}

var _ Processor = (*FFmpegProcessor)(nil)
