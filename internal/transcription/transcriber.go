package transcription

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/dmytrogajewski/ett-summary/internal/config"
)

// Transcriber converts one audio recording into text
type Transcriber interface {
	Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error)
}

// TranscriptionError is returned when audio could not be turned into text.
// The summary of the system is never touched when this happens.
type TranscriptionError struct {
	Filename string
	Err      error
}

func (e *TranscriptionError) Error() string {
	return fmt.Sprintf("transcription of %q failed: %v", e.Filename, e.Err)
}

func (e *TranscriptionError) Unwrap() error {
	return e.Err
}

// WhisperClient calls an OpenAI-compatible /audio/transcriptions endpoint
type WhisperClient struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

var _ Transcriber = (*WhisperClient)(nil)

// NewWhisperClient creates a transcriber. Local whisper servers usually
// accept requests without an API key, so an empty key is allowed.
func NewWhisperClient(cfg config.TranscriptionConfig) *WhisperClient {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
		clientConfig.BaseURL = strings.TrimSuffix(baseURL, "/audio/transcriptions")
	}

	model := cfg.Model
	if model == "" {
		model = openai.Whisper1
	}

	return &WhisperClient{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   model,
		timeout: cfg.Timeout,
	}
}

// Transcribe uploads the audio and returns the recognized text
func (c *WhisperClient) Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	if filename == "" {
		filename = "audio.wav"
	}

	resp, err := c.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    c.model,
		FilePath: filename,
		Reader:   audio,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return "", &TranscriptionError{Filename: filename, Err: err}
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", &TranscriptionError{Filename: filename, Err: errors.New("no speech recognized")}
	}
	return text, nil
}
