package media

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/countercurse/countercurse/internal/audio"
)

// skipIfNoFFmpeg skips the test if ffmpeg or ffprobe is not available.
func skipIfNoFFmpeg(t *testing.T) {
	t.Helper()
	for _, bin := range []string{"ffmpeg", "ffprobe"} {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skipf("%s not found in PATH, skipping test", bin)
		}
	}
}

// createTestVideo creates a small video with a stereo sine soundtrack.
func createTestVideo(t *testing.T, path string, duration float64) {
	t.Helper()

	cmd := exec.Command("ffmpeg",
		"-y",
		"-f", "lavfi",
		"-i", fmt.Sprintf("color=c=blue:s=64x64:d=%.1f", duration),
		"-f", "lavfi",
		"-i", fmt.Sprintf("sine=frequency=440:sample_rate=44100:duration=%.1f", duration),
		"-ac", "2",
		"-c:v", "libx264",
		"-preset", "ultrafast",
		"-c:a", "aac",
		"-shortest",
		path,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("failed to create test video: %v\noutput: %s", err, output)
	}
}

func TestNewFFmpegProcessor(t *testing.T) {
	t.Run("default paths", func(t *testing.T) {
		p := NewFFmpegProcessor("", "")
		if p.ffmpegPath != "ffmpeg" || p.ffprobePath != "ffprobe" {
			t.Errorf("expected default paths, got %q and %q", p.ffmpegPath, p.ffprobePath)
		}
	})

	t.Run("custom paths", func(t *testing.T) {
		p := NewFFmpegProcessor("/opt/ffmpeg/bin/ffmpeg", "/opt/ffmpeg/bin/ffprobe")
		if p.ffmpegPath != "/opt/ffmpeg/bin/ffmpeg" {
			t.Errorf("expected custom ffmpeg path, got %q", p.ffmpegPath)
		}
		if p.ffprobePath != "/opt/ffmpeg/bin/ffprobe" {
			t.Errorf("expected custom ffprobe path, got %q", p.ffprobePath)
		}
	})
}

func TestIsSupportedVideo(t *testing.T) {
	tests := map[string]bool{
		"clip.mp4":       true,
		"CLIP.MOV":       true,
		"a/b/c.mkv":      true,
		"talk.webm":      true,
		"old.avi":        true,
		"stream.flv":     true,
		"song.mp3":       false,
		"notes.txt":      false,
		"no_extension":   false,
		"archive.mp4.7z": false,
	}

	for path, want := range tests {
		if got := IsSupportedVideo(path); got != want {
			t.Errorf("IsSupportedVideo(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestAudioCodecArgs(t *testing.T) {
	tests := []struct {
		output string
		codec  string
	}{
		{"out.mp4", "aac"},
		{"out.MOV", "aac"},
		{"out.flv", "aac"},
		{"out.webm", "libopus"},
		{"out.avi", "libmp3lame"},
		{"out.mkv", "flac"},
	}

	for _, tt := range tests {
		args := audioCodecArgs(tt.output)
		if len(args) < 2 || args[0] != "-c:a" || args[1] != tt.codec {
			t.Errorf("audioCodecArgs(%q) = %v, want codec %s", tt.output, args, tt.codec)
		}
	}
}

func TestExtractAudio_InvalidSampleRate(t *testing.T) {
	p := NewFFmpegProcessor("", "")

	err := p.ExtractAudio(context.Background(), "in.mp4", "out.wav", 0, 0)
	if !errors.Is(err, ErrInvalidSampleRate) {
		t.Errorf("expected ErrInvalidSampleRate, got %v", err)
	}
}

func TestExtractAudio_MissingBinary(t *testing.T) {
	p := NewFFmpegProcessor(filepath.Join(t.TempDir(), "no-such-ffmpeg"), "")

	err := p.ExtractAudio(context.Background(), "in.mp4", "out.wav", 16000, 1)
	var ffErr *FFmpegError
	if !errors.As(err, &ffErr) {
		t.Fatalf("expected *FFmpegError, got %T: %v", err, err)
	}
}

func TestExtractAndReplaceAudio(t *testing.T) {
	skipIfNoFFmpeg(t)

	tmpDir := t.TempDir()
	ctx := context.Background()
	p := NewFFmpegProcessor("", "")

	video := filepath.Join(tmpDir, "input.mp4")
	createTestVideo(t, video, 2.0)

	t.Run("extract keeps channels", func(t *testing.T) {
		wavPath := filepath.Join(tmpDir, "master.wav")
		if err := p.ExtractAudio(ctx, video, wavPath, 44100, 0); err != nil {
			t.Fatalf("ExtractAudio failed: %v", err)
		}

		w, err := audio.ReadWAVFile(wavPath)
		if err != nil {
			t.Fatalf("ReadWAVFile failed: %v", err)
		}
		if w.SampleRate != 44100 || w.Channels != 2 || w.BitDepth != 16 {
			t.Errorf("unexpected format: %d Hz, %d ch, %d bit", w.SampleRate, w.Channels, w.BitDepth)
		}
		if math.Abs(float64(w.DurationMs())-2000) > 100 {
			t.Errorf("expected ~2000ms, got %d", w.DurationMs())
		}
	})

	t.Run("extract mono speech track", func(t *testing.T) {
		wavPath := filepath.Join(tmpDir, "speech.wav")
		if err := p.ExtractAudio(ctx, video, wavPath, 16000, 1); err != nil {
			t.Fatalf("ExtractAudio failed: %v", err)
		}

		w, err := audio.ReadWAVFile(wavPath)
		if err != nil {
			t.Fatalf("ReadWAVFile failed: %v", err)
		}
		if w.SampleRate != 16000 || w.Channels != 1 {
			t.Errorf("unexpected format: %d Hz, %d ch", w.SampleRate, w.Channels)
		}
	})

	t.Run("replace audio copies video", func(t *testing.T) {
		silence := audio.Silence{}.Mask(2.0, 44100)
		wavPath := filepath.Join(tmpDir, "censored.wav")
		if err := audio.WriteWAVFile(wavPath, silence); err != nil {
			t.Fatalf("WriteWAVFile failed: %v", err)
		}

		output := filepath.Join(tmpDir, "output.mp4")
		if err := p.ReplaceAudio(ctx, video, wavPath, output); err != nil {
			t.Fatalf("ReplaceAudio failed: %v", err)
		}
		if _, err := os.Stat(output); err != nil {
			t.Fatalf("output file was not created: %v", err)
		}

		if got := streamCodec(t, output, "v:0"); got != "h264" {
			t.Errorf("expected h264 video stream to be copied, got %q", got)
		}
		if got := streamCodec(t, output, "a:0"); got != "aac" {
			t.Errorf("expected aac audio stream, got %q", got)
		}

		in, err := p.GetMediaDuration(ctx, video)
		if err != nil {
			t.Fatalf("GetMediaDuration failed: %v", err)
		}
		out, err := p.GetMediaDuration(ctx, output)
		if err != nil {
			t.Fatalf("GetMediaDuration failed: %v", err)
		}
		if math.Abs(in-out) > 0.2 {
			t.Errorf("duration changed: %.2fs -> %.2fs", in, out)
		}
	})
}

func TestGetMediaDuration_MissingFile(t *testing.T) {
	skipIfNoFFmpeg(t)

	p := NewFFmpegProcessor("", "")
	_, err := p.GetMediaDuration(context.Background(), filepath.Join(t.TempDir(), "missing.mp4"))
	if !errors.Is(err, ErrFFprobeExecution) {
		t.Errorf("expected ErrFFprobeExecution, got %v", err)
	}
}

func TestFFmpegError(t *testing.T) {
	err := &FFmpegError{
		Args:   []string{"-i", "input.mp4", "-vn", "output.wav"},
		Stderr: "Error opening input file",
		Err:    fmt.Errorf("exit status 1"),
	}

	errStr := err.Error()
	if !strings.Contains(errStr, "exit status 1") {
		t.Error("Error() should contain underlying error")
	}
	if !strings.Contains(errStr, "Error opening input file") {
		t.Error("Error() should contain stderr")
	}

	unwrapped := err.Unwrap()
	if unwrapped == nil || unwrapped.Error() != "exit status 1" {
		t.Errorf("Unwrap() returned wrong error: %v", unwrapped)
	}
}

// Helper functions

func streamCodec(t *testing.T, path, stream string) string {
	t.Helper()

	cmd := exec.Command("ffprobe",
		"-v", "error",
		"-select_streams", stream,
		"-show_entries", "stream=codec_name",
		"-of", "csv=p=0",
		path,
	)
	output, err := cmd.Output()
	if err != nil {
		t.Fatalf("ffprobe failed: %v", err)
	}
	return strings.TrimSpace(string(output))
}
