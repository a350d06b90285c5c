package transcription

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmytrogajewski/ett-summary/internal/config"
)

func TestWhisperClient_Transcribe(t *testing.T) {
	var (
		gotModel    string
		gotFilename string
		gotAudio    string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/audio/transcriptions", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotModel = r.FormValue("model")
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		gotFilename = header.Filename
		data, _ := io.ReadAll(file)
		gotAudio = string(data)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":" Server down at 10am. "}`))
	}))
	defer server.Close()

	c := NewWhisperClient(config.TranscriptionConfig{BaseURL: server.URL, APIKey: "k"})
	text, err := c.Transcribe(context.Background(), "call.wav", strings.NewReader("RIFF...."))
	require.NoError(t, err)

	assert.Equal(t, "Server down at 10am.", text)
	assert.Equal(t, "whisper-1", gotModel)
	assert.Equal(t, "call.wav", gotFilename)
	assert.Equal(t, "RIFF....", gotAudio)
}

func TestWhisperClient_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "Unsupported audio", status: http.StatusBadRequest, body: `{"error":{"message":"Invalid file format."}}`},
		{name: "Server error", status: http.StatusInternalServerError, body: `oops`},
		{name: "Silence", status: http.StatusOK, body: `{"text":"  "}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			c := NewWhisperClient(config.TranscriptionConfig{BaseURL: server.URL})
			_, err := c.Transcribe(context.Background(), "call.wav", strings.NewReader("x"))
			require.Error(t, err)

			var terr *TranscriptionError
			require.ErrorAs(t, err, &terr)
			assert.Equal(t, "call.wav", terr.Filename)
		})
	}
}

func TestNewWhisperClient_Defaults(t *testing.T) {
	c := NewWhisperClient(config.TranscriptionConfig{Model: "large-v3"})
	assert.Equal(t, "large-v3", c.model)
	assert.Equal(t, "whisper-1", NewWhisperClient(config.TranscriptionConfig{}).model)
}
