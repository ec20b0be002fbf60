package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Static errors for the whisper.cpp client.
var (
	// ErrServerURLRequired is returned when no whisper.cpp server URL is configured.
	ErrServerURLRequired = errors.New("whisper: server URL is required")
	// ErrServerError is returned when the server answers with a 5xx status code.
	ErrServerError = errors.New("whisper: server error")
	// ErrRateLimited is returned when the server answers with 429.
	ErrRateLimited = errors.New("whisper: rate limited")
	// ErrRequestFailed is returned for any other non-2xx status code.
	ErrRequestFailed = errors.New("whisper: request failed")
)

// WhisperTranscriber implements Transcriber against a running whisper.cpp
// server (the `whisper-server` binary), which exposes POST /inference.
// Responses are requested as verbose_json so segments carry word timings.
type WhisperTranscriber struct {
	baseURL     string
	language    string
	model       string
	httpClient  *http.Client
	maxRetries  int
	baseBackoff time.Duration
}

// WhisperOption configures a WhisperTranscriber.
type WhisperOption func(*WhisperTranscriber)

// WithLanguage sets the spoken language hint (e.g. "en"). Empty lets the
// server auto-detect.
func WithLanguage(lang string) WhisperOption {
	return func(w *WhisperTranscriber) {
		w.language = lang
	}
}

// WithModel sets the model identifier forwarded to the server. When empty
// the server uses whichever model it was started with.
func WithModel(model string) WhisperOption {
	return func(w *WhisperTranscriber) {
		w.model = model
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) WhisperOption {
	return func(w *WhisperTranscriber) {
		w.httpClient = c
	}
}

// WithMaxRetries sets the maximum number of retries for transient failures.
func WithMaxRetries(n int) WhisperOption {
	return func(w *WhisperTranscriber) {
		w.maxRetries = n
	}
}

// WithBaseBackoff sets the initial backoff duration for retries.
func WithBaseBackoff(d time.Duration) WhisperOption {
	return func(w *WhisperTranscriber) {
		w.baseBackoff = d
	}
}

// NewWhisperTranscriber creates a client for the whisper.cpp server at
// baseURL (e.g. "http://localhost:8080").
func NewWhisperTranscriber(baseURL string, opts ...WhisperOption) (*WhisperTranscriber, error) {
	if baseURL == "" {
		return nil, ErrServerURLRequired
	}

	w := &WhisperTranscriber{
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  &http.Client{Timeout: 30 * time.Minute}, // Long recordings take a while
		maxRetries:  3,
		baseBackoff: 1 * time.Second,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// whisperResponse mirrors the verbose_json output of whisper-server.
type whisperResponse struct {
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
	Text     string  `json:"text"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
		Words []struct {
			Word  string  `json:"word"`
			Start float64 `json:"start"`
			End   float64 `json:"end"`
		} `json:"words"`
	} `json:"segments"`
}

// Transcribe implements Transcriber.
func (w *WhisperTranscriber) Transcribe(ctx context.Context, audioPath string) (Transcript, error) {
	body, contentType, err := w.buildForm(audioPath)
	if err != nil {
		return Transcript{}, fmt.Errorf("%w: %w", ErrTranscription, err)
	}

	var resp whisperResponse
	if err := w.doRequestWithRetry(ctx, body, contentType, &resp); err != nil {
		return Transcript{}, fmt.Errorf("%w: %w", ErrTranscription, err)
	}

	t := Transcript{
		Language: resp.Language,
		Duration: resp.Duration,
		Text:     strings.TrimSpace(resp.Text),
		Segments: make([]Segment, 0, len(resp.Segments)),
	}
	for _, s := range resp.Segments {
		seg := Segment{Start: s.Start, End: s.End, Text: strings.TrimSpace(s.Text)}
		if s.Words != nil {
			seg.Words = make([]Word, 0, len(s.Words))
			for _, wd := range s.Words {
				seg.Words = append(seg.Words, Word{Text: wd.Word, Start: wd.Start, End: wd.End})
			}
		}
		t.Segments = append(t.Segments, seg)
	}
	return t, nil
}

// buildForm encodes the audio file and options as multipart/form-data.
// The body is built once so it can be replayed on retries.
func (w *WhisperTranscriber) buildForm(audioPath string) ([]byte, string, error) {
	f, err := os.Open(audioPath) // #nosec G304 - path comes from the pipeline workspace
	if err != nil {
		return nil, "", fmt.Errorf("whisper: open audio: %w", err)
	}
	defer func() { _ = f.Close() }()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, "", fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := io.Copy(fw, f); err != nil {
		return nil, "", fmt.Errorf("whisper: write audio data: %w", err)
	}

	fields := map[string]string{
		"response_format": "verbose_json",
		"temperature":     "0.0",
	}
	if w.language != "" {
		fields["language"] = w.language
	}
	if w.model != "" {
		fields["model"] = w.model
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, "", fmt.Errorf("whisper: write %s field: %w", k, err)
		}
	}

	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("whisper: close multipart writer: %w", err)
	}
	return body.Bytes(), mw.FormDataContentType(), nil
}

// doRequestWithRetry posts the form with exponential backoff on transient failures.
func (w *WhisperTranscriber) doRequestWithRetry(ctx context.Context, body []byte, contentType string, result any) error {
	var lastErr error
	backoff := w.baseBackoff

	for attempt := 0; attempt <= w.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("whisper: context cancelled: %w", ctx.Err())
			case <-time.After(backoff):
				backoff *= 2
			}
		}

		err := w.doRequest(ctx, body, contentType, result)
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}
		lastErr = err
	}

	return fmt.Errorf("whisper: max retries exceeded: %w", lastErr)
}

// doRequest performs a single inference request.
func (w *WhisperTranscriber) doRequest(ctx context.Context, body []byte, contentType string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL+"/inference", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("whisper: create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("whisper: request cancelled: %w", ctx.Err())
		}
		return &retryableError{err: fmt.Errorf("whisper: request failed: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &retryableError{err: fmt.Errorf("whisper: read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode >= 500 {
			return &retryableError{err: fmt.Errorf("%w %d: %s", ErrServerError, resp.StatusCode, string(respBody))}
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			return &retryableError{err: fmt.Errorf("%w: %s", ErrRateLimited, string(respBody))}
		}
		return fmt.Errorf("%w with status %d: %s", ErrRequestFailed, resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("whisper: unmarshal response: %w", err)
	}
	return nil
}

// retryableError wraps errors that should be retried.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	return e.err
}

func isRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}

var _ Transcriber = (*WhisperTranscriber)(nil)
