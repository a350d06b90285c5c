package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmytrogajewski/ett-summary/internal/config"
	"github.com/dmytrogajewski/ett-summary/internal/providers"
)

func TestProvider_Complete(t *testing.T) {
	var got chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(chatResponse{
			Model:   got.Model,
			Message: chatMessage{Role: "assistant", Content: " Database failover completed. "},
			Done:    true,
		})
	}))
	defer server.Close()

	p, err := NewProvider(config.ProviderConfig{BaseURL: server.URL + "/v1/chat/completions"})
	require.NoError(t, err)

	text, err := p.Complete(context.Background(), "summarize", "llama3")
	require.NoError(t, err)
	assert.Equal(t, "Database failover completed.", text)
	assert.Equal(t, "llama3", got.Model)
	assert.False(t, got.Stream)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Equal(t, "summarize", got.Messages[0].Content)
}

func TestProvider_Errors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		transient bool
		contains  string
	}{
		{name: "Model missing", status: http.StatusNotFound, body: `{"error":"model 'llama9' not found"}`, transient: false, contains: "llama9"},
		{name: "Server overloaded", status: http.StatusServiceUnavailable, body: `busy`, transient: true, contains: "busy"},
		{name: "Malformed body", status: http.StatusOK, body: `not json`, transient: false, contains: "malformed"},
		{name: "Empty content", status: http.StatusOK, body: `{"message":{"role":"assistant","content":""},"done":true}`, transient: false, contains: "empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			p, err := NewProvider(config.ProviderConfig{BaseURL: server.URL})
			require.NoError(t, err)

			_, err = p.Complete(context.Background(), "x", "llama3")
			require.Error(t, err)
			assert.Equal(t, tt.transient, providers.IsTransient(err))
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestProvider_UnreachableIsTransient(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	p, err := NewProvider(config.ProviderConfig{BaseURL: url})
	require.NoError(t, err)

	_, err = p.Complete(context.Background(), "x", "llama3")
	require.Error(t, err)
	assert.True(t, providers.IsTransient(err))
}

func TestNewProvider_DefaultURL(t *testing.T) {
	p, err := NewProvider(config.ProviderConfig{})
	require.NoError(t, err)
	assert.Equal(t, defaultBaseURL, p.baseURL)
	assert.Equal(t, config.ProviderOllama, p.Name())
}
