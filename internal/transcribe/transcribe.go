// Package transcribe defines the speech-to-text port used by the censoring
// pipeline and its adapters (a whisper.cpp server and the OpenAI API).
package transcribe

import (
	"context"
	"errors"
)

// ErrTranscription wraps every failure reported by a transcription backend.
// It is fatal to the pass that triggered it.
var ErrTranscription = errors.New("transcription failed")

// Word is a single transcribed word with its timing in seconds.
// Backends do not guarantee Start <= End; consumers must not rely on it.
type Word struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Segment is a contiguous span of transcribed speech. Words is nil when the
// backend omitted word-level detail for the segment, which is a valid
// response and not an error.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
	Words []Word  `json:"words,omitempty"`
}

// Transcript is the ordered result of transcribing one audio file.
type Transcript struct {
	Language string    `json:"language,omitempty"`
	Duration float64   `json:"duration,omitempty"`
	Text     string    `json:"text"`
	Segments []Segment `json:"segments"`
}

// WordCount returns the number of word-level entries across all segments.
func (t Transcript) WordCount() int {
	n := 0
	for _, s := range t.Segments {
		n += len(s.Words)
	}
	return n
}

// Transcriber turns an audio file into a word-timestamped transcript.
// Implementations are treated as synchronous black boxes by the pipeline.
type Transcriber interface {
	// Transcribe reads the audio at audioPath and returns its transcript.
	// Failures are wrapped with ErrTranscription.
	Transcribe(ctx context.Context, audioPath string) (Transcript, error)
}
