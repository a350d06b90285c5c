package openai

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/dmytrogajewski/ett-summary/internal/config"
	"github.com/dmytrogajewski/ett-summary/internal/providers"
)

const (
	defaultOpenRouterURL = "https://openrouter.ai/api/v1"
	chatCompletionsPath  = "/chat/completions"
)

// Provider implements the chat-completions providers that share the OpenAI
// request shape: OpenAI itself, OpenRouter and Azure OpenAI.
type Provider struct {
	name   string
	client *openai.Client
}

var _ providers.Provider = (*Provider)(nil)

// NewProvider creates an OpenAI provider. BaseURL may point to any
// OpenAI-compatible endpoint (LocalAI, llama.cpp server, vLLM).
func NewProvider(cfg config.ProviderConfig) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = normalizeBaseURL(cfg.BaseURL)
	}

	return &Provider{
		name:   config.ProviderOpenAI,
		client: openai.NewClientWithConfig(clientConfig),
	}, nil
}

// NewOpenRouterProvider creates a provider for OpenRouter, which uses the
// OpenAI shape with its own base URL and attribution headers.
func NewOpenRouterProvider(cfg config.ProviderConfig) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("OpenRouter API key is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = defaultOpenRouterURL
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = normalizeBaseURL(cfg.BaseURL)
	}

	headers := map[string]string{}
	if cfg.OpenRouterReferer != "" {
		headers["HTTP-Referer"] = cfg.OpenRouterReferer
	}
	if cfg.OpenRouterTitle != "" {
		headers["X-Title"] = cfg.OpenRouterTitle
	}
	if len(headers) > 0 {
		clientConfig.HTTPClient = &http.Client{
			Transport: &headerTransport{headers: headers, base: http.DefaultTransport},
		}
	}

	return &Provider{
		name:   config.ProviderOpenRouter,
		client: openai.NewClientWithConfig(clientConfig),
	}, nil
}

// NewAzureProvider creates an Azure OpenAI provider. The configured model is
// used as the deployment name.
func NewAzureProvider(cfg config.ProviderConfig) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("Azure OpenAI API key is required")
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("base URL is required for Azure OpenAI")
	}

	clientConfig := openai.DefaultAzureConfig(cfg.APIKey, strings.TrimSuffix(cfg.BaseURL, "/"))
	if cfg.AzureAPIVersion != "" {
		clientConfig.APIVersion = cfg.AzureAPIVersion
	}
	clientConfig.AzureModelMapperFunc = func(model string) string {
		return model
	}

	return &Provider{
		name:   config.ProviderAzure,
		client: openai.NewClientWithConfig(clientConfig),
	}, nil
}

// Name returns the provider name
func (p *Provider) Name() string {
	return p.name
}

// Complete performs a non-streaming completion
func (p *Provider) Complete(ctx context.Context, prompt, model string) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", p.classifyError(err)
	}

	if len(resp.Choices) == 0 {
		return "", providers.NewPermanentError(p.name, errors.New("no choices in response"))
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", providers.NewPermanentError(p.name, errors.New("empty completion"))
	}
	return text, nil
}

// classifyError converts go-openai errors into provider errors
func (p *Provider) classifyError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return providers.NewStatusError(p.name, apiErr.HTTPStatusCode, err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return providers.NewStatusError(p.name, reqErr.HTTPStatusCode, err)
	}

	// Timeouts, refused connections and resets
	return providers.NewTransientError(p.name, err)
}

// normalizeBaseURL accepts either a base URL or a full chat completions URL
func normalizeBaseURL(raw string) string {
	url := strings.TrimSuffix(raw, "/")
	return strings.TrimSuffix(url, chatCompletionsPath)
}

// headerTransport adds static headers to every request
type headerTransport struct {
	headers map[string]string
	base    http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	return t.base.RoundTrip(req)
}
