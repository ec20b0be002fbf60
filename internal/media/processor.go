// Package media extracts audio from videos and muxes censored audio back in.
package media

import "context"

// Processor defines the container-level operations the censoring pipeline
// needs. Implementations should use ffmpeg or similar tools.
type Processor interface {
	// ExtractAudio decodes the first audio stream of videoPath into a 16-bit
	// PCM WAV at audioPath, resampled to sampleRate. channels selects the
	// output channel count; 0 keeps the source layout.
	ExtractAudio(ctx context.Context, videoPath, audioPath string, sampleRate, channels int) error

	// ReplaceAudio writes outputPath with the video streams of videoPath
	// copied unmodified and audioPath as its only audio stream.
	ReplaceAudio(ctx context.Context, videoPath, audioPath, outputPath string) error

	// GetMediaDuration returns the duration in seconds of a media file.
	GetMediaDuration(ctx context.Context, path string) (float64, error)
}
