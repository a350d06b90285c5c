package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dmytrogajewski/ett-summary/internal/config"
	"github.com/dmytrogajewski/ett-summary/internal/providers"
)

const defaultBaseURL = "http://localhost:11434"

// Provider talks to a local Ollama server through its native chat API.
// No authentication is sent.
type Provider struct {
	baseURL string
	client  *http.Client
}

var _ providers.Provider = (*Provider)(nil)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatResponse struct {
	Model   string      `json:"model"`
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
	Error   string      `json:"error,omitempty"`
}

// NewProvider creates a new Ollama provider
func NewProvider(cfg config.ProviderConfig) (*Provider, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	baseURL = strings.TrimSuffix(baseURL, "/")
	// Accept the OpenAI-compatible URL the old configs used
	baseURL = strings.TrimSuffix(baseURL, "/v1/chat/completions")

	return &Provider{
		baseURL: baseURL,
		client:  &http.Client{},
	}, nil
}

// Name returns the provider name
func (p *Provider) Name() string {
	return config.ProviderOllama
}

// Complete performs a non-streaming chat request against /api/chat
func (p *Provider) Complete(ctx context.Context, prompt, model string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:    model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
		Stream:   false,
	})
	if err != nil {
		return "", providers.NewPermanentError(p.Name(), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", providers.NewPermanentError(p.Name(), err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", providers.NewTransientError(p.Name(), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", providers.NewTransientError(p.Name(), err)
	}

	var chatResp chatResponse
	decodeErr := json.Unmarshal(data, &chatResp)

	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(data))
		if decodeErr == nil && chatResp.Error != "" {
			msg = chatResp.Error
		}
		return "", providers.NewStatusError(p.Name(), resp.StatusCode, fmt.Errorf("ollama: %s", msg))
	}

	if decodeErr != nil {
		return "", providers.NewPermanentError(p.Name(), fmt.Errorf("malformed response: %w", decodeErr))
	}

	text := strings.TrimSpace(chatResp.Message.Content)
	if text == "" {
		return "", providers.NewPermanentError(p.Name(), errors.New("empty completion"))
	}
	return text, nil
}
