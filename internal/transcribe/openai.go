package transcribe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultOpenAIModel is the hosted model that supports word timestamps.
const DefaultOpenAIModel = oai.AudioModelWhisper1

// ErrAPIKeyRequired is returned when the OpenAI transcriber has no API key.
var ErrAPIKeyRequired = errors.New("openai: api key is required")

// OpenAITranscriber implements Transcriber with the OpenAI audio
// transcription endpoint (or any API-compatible server via a base URL).
type OpenAITranscriber struct {
	client   oai.Client
	model    string
	language string
}

type openAIConfig struct {
	baseURL    string
	language   string
	timeout    time.Duration
	maxRetries int
}

// OpenAIOption configures an OpenAITranscriber.
type OpenAIOption func(*openAIConfig)

// WithOpenAIBaseURL points the client at an OpenAI-compatible server.
func WithOpenAIBaseURL(url string) OpenAIOption {
	return func(c *openAIConfig) {
		c.baseURL = url
	}
}

// WithOpenAILanguage sets the ISO-639-1 language hint.
func WithOpenAILanguage(lang string) OpenAIOption {
	return func(c *openAIConfig) {
		c.language = lang
	}
}

// WithOpenAITimeout sets a per-request HTTP timeout.
func WithOpenAITimeout(d time.Duration) OpenAIOption {
	return func(c *openAIConfig) {
		c.timeout = d
	}
}

// WithOpenAIMaxRetries overrides the SDK's retry count.
func WithOpenAIMaxRetries(n int) OpenAIOption {
	return func(c *openAIConfig) {
		c.maxRetries = n
	}
}

// NewOpenAITranscriber constructs an OpenAITranscriber. If model is empty
// DefaultOpenAIModel is used.
func NewOpenAITranscriber(apiKey, model string, opts ...OpenAIOption) (*OpenAITranscriber, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyRequired
	}
	if model == "" {
		model = DefaultOpenAIModel
	}

	cfg := &openAIConfig{maxRetries: -1}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{Timeout: cfg.timeout}))
	}
	if cfg.maxRetries >= 0 {
		reqOpts = append(reqOpts, option.WithMaxRetries(cfg.maxRetries))
	}

	return &OpenAITranscriber{
		client:   oai.NewClient(reqOpts...),
		model:    model,
		language: cfg.language,
	}, nil
}

// Transcribe implements Transcriber.
func (o *OpenAITranscriber) Transcribe(ctx context.Context, audioPath string) (Transcript, error) {
	f, err := os.Open(audioPath) // #nosec G304 - path comes from the pipeline workspace
	if err != nil {
		return Transcript{}, fmt.Errorf("%w: openai: open audio: %w", ErrTranscription, err)
	}
	defer func() { _ = f.Close() }()

	params := oai.AudioTranscriptionNewParams{
		File:                   f,
		Model:                  o.model,
		ResponseFormat:         oai.AudioResponseFormatVerboseJSON,
		TimestampGranularities: []string{"word", "segment"},
	}
	if o.language != "" {
		params.Language = oai.String(o.language)
	}

	res, err := o.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return Transcript{}, fmt.Errorf("%w: openai: %w", ErrTranscription, err)
	}

	t, err := parseVerboseJSON([]byte(res.RawJSON()))
	if err != nil {
		return Transcript{}, fmt.Errorf("%w: openai: %w", ErrTranscription, err)
	}
	return t, nil
}

// verboseJSON is the verbose_json body of the OpenAI transcription API.
// Words are reported at the top level rather than per segment.
type verboseJSON struct {
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
	Text     string  `json:"text"`
	Words    []struct {
		Word  string  `json:"word"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
	} `json:"words"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

// parseVerboseJSON converts a verbose_json body to a Transcript. Each word
// is attached to the last segment starting at or before it, so word order
// is preserved. Without segments all words land in a single segment.
func parseVerboseJSON(raw []byte) (Transcript, error) {
	var v verboseJSON
	if err := json.Unmarshal(raw, &v); err != nil {
		return Transcript{}, fmt.Errorf("unmarshal verbose_json: %w", err)
	}

	t := Transcript{
		Language: v.Language,
		Duration: v.Duration,
		Text:     strings.TrimSpace(v.Text),
	}

	if len(v.Segments) == 0 {
		seg := Segment{End: v.Duration, Text: t.Text}
		if v.Words != nil {
			seg.Words = make([]Word, 0, len(v.Words))
		}
		for _, w := range v.Words {
			seg.Words = append(seg.Words, Word{Text: w.Word, Start: w.Start, End: w.End})
		}
		t.Segments = []Segment{seg}
		return t, nil
	}

	t.Segments = make([]Segment, len(v.Segments))
	for i, s := range v.Segments {
		t.Segments[i] = Segment{Start: s.Start, End: s.End, Text: strings.TrimSpace(s.Text)}
	}

	cur := 0
	for _, w := range v.Words {
		for cur+1 < len(t.Segments) && t.Segments[cur+1].Start <= w.Start {
			cur++
		}
		t.Segments[cur].Words = append(t.Segments[cur].Words, Word{Text: w.Word, Start: w.Start, End: w.End})
	}
	return t, nil
}

var _ Transcriber = (*OpenAITranscriber)(nil)
