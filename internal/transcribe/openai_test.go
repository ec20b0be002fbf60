package transcribe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOpenAITranscriber(t *testing.T) {
	_, err := NewOpenAITranscriber("", "")
	assert.ErrorIs(t, err, ErrAPIKeyRequired)

	tr, err := NewOpenAITranscriber("sk-test", "")
	require.NoError(t, err)
	assert.Equal(t, DefaultOpenAIModel, tr.model)
}

func TestParseVerboseJSON(t *testing.T) {
	t.Run("words are attached to their segments", func(t *testing.T) {
		raw := `{
		  "language": "english", "duration": 4.0, "text": "oh damn. well heck",
		  "words": [
		    {"word": "oh", "start": 0.0, "end": 0.3},
		    {"word": "damn", "start": 0.4, "end": 0.9},
		    {"word": "well", "start": 2.0, "end": 2.3},
		    {"word": "heck", "start": 2.4, "end": 2.9}
		  ],
		  "segments": [
		    {"start": 0.0, "end": 1.0, "text": " oh damn."},
		    {"start": 2.0, "end": 3.0, "text": " well heck"}
		  ]
		}`

		tr, err := parseVerboseJSON([]byte(raw))
		require.NoError(t, err)
		require.Len(t, tr.Segments, 2)
		assert.Equal(t, "oh damn.", tr.Segments[0].Text)
		assert.Equal(t, []Word{{"oh", 0.0, 0.3}, {"damn", 0.4, 0.9}}, tr.Segments[0].Words)
		assert.Equal(t, []Word{{"well", 2.0, 2.3}, {"heck", 2.4, 2.9}}, tr.Segments[1].Words)
	})

	t.Run("words without segments form one segment", func(t *testing.T) {
		raw := `{"duration": 1.5, "text": "damn", "words": [{"word": "damn", "start": 0.2, "end": 0.7}]}`

		tr, err := parseVerboseJSON([]byte(raw))
		require.NoError(t, err)
		require.Len(t, tr.Segments, 1)
		assert.Equal(t, 1.5, tr.Segments[0].End)
		assert.Equal(t, 1, tr.WordCount())
	})

	t.Run("no word detail leaves words nil", func(t *testing.T) {
		tr, err := parseVerboseJSON([]byte(`{"text": "hello", "segments": [{"start": 0, "end": 1, "text": "hello"}]}`))
		require.NoError(t, err)
		require.Len(t, tr.Segments, 1)
		assert.Nil(t, tr.Segments[0].Words)
	})

	t.Run("malformed body", func(t *testing.T) {
		_, err := parseVerboseJSON([]byte(`{`))
		assert.Error(t, err)
	})
}

func TestOpenAITranscribe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/audio/transcriptions"), r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "verbose_json", r.FormValue("response_format"))
		assert.Equal(t, "whisper-1", r.FormValue("model"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"language":"english","duration":1.0,"text":"damn",
			"words":[{"word":"damn","start":0.1,"end":0.5}],
			"segments":[{"start":0.0,"end":1.0,"text":"damn"}]}`))
	}))
	defer server.Close()

	tr, err := NewOpenAITranscriber("sk-test", "",
		WithOpenAIBaseURL(server.URL+"/v1/"),
		WithOpenAIMaxRetries(0),
	)
	require.NoError(t, err)

	got, err := tr.Transcribe(context.Background(), writeAudio(t))
	require.NoError(t, err)
	require.Len(t, got.Segments, 1)
	assert.Equal(t, []Word{{"damn", 0.1, 0.5}}, got.Segments[0].Words)
}

func TestOpenAITranscribe_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad audio"}}`))
	}))
	defer server.Close()

	tr, err := NewOpenAITranscriber("sk-test", "",
		WithOpenAIBaseURL(server.URL+"/v1/"),
		WithOpenAIMaxRetries(0),
	)
	require.NoError(t, err)

	_, err = tr.Transcribe(context.Background(), writeAudio(t))
	assert.ErrorIs(t, err, ErrTranscription)
}
