package factory

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/dmytrogajewski/ett-summary/internal/config"
	"github.com/dmytrogajewski/ett-summary/internal/providers"
	"github.com/dmytrogajewski/ett-summary/internal/providers/ollama"
	"github.com/dmytrogajewski/ett-summary/internal/providers/openai"
)

// CreateProvider creates a provider instance based on configuration
func CreateProvider(cfg config.ProviderConfig) (providers.Provider, error) {
	switch cfg.Type {
	case config.ProviderOpenAI:
		return openai.NewProvider(cfg)
	case config.ProviderOpenRouter:
		return openai.NewOpenRouterProvider(cfg)
	case config.ProviderAzure:
		return openai.NewAzureProvider(cfg)
	case config.ProviderOllama:
		return ollama.NewProvider(cfg)
	default:
		return nil, fmt.Errorf("unknown provider type: %s", cfg.Type)
	}
}

// CreateRetryingProvider creates the configured provider wrapped with the
// configured timeout and retry policy
func CreateRetryingProvider(cfg config.ProviderConfig, logger *logrus.Logger) (providers.Provider, error) {
	provider, err := CreateProvider(cfg)
	if err != nil {
		return nil, err
	}

	return providers.NewRetrying(provider, providers.RetryConfig{
		MaxAttempts: cfg.MaxAttempts,
		Backoff:     cfg.RetryBackoff,
		Timeout:     cfg.Timeout,
	}, logger), nil
}
