package cli

import (
	"fmt"
	"sort"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/dmytrogajewski/ett-summary/internal/config"
)

type templateFile struct {
	Server        templateServer        `toml:"server"`
	Store         templateStore         `toml:"store"`
	Database      templateDatabase      `toml:"database"`
	Provider      templateProvider      `toml:"provider"`
	Transcription templateTranscription `toml:"transcription"`
	Webhook       templateWebhook       `toml:"webhook"`
	Reaper        templateReaper        `toml:"reaper"`
	Logging       templateLogging       `toml:"logging"`
	Systems       []templateSystem      `toml:"systems"`
}

type templateServer struct {
	Host            string `toml:"host"`
	Port            int    `toml:"port"`
	BodyLimitMB     int    `toml:"body_limit_mb"`
	UploadRateLimit int    `toml:"upload_rate_limit" comment:"transcripts per system per minute, 0 disables the limit"`
}

type templateStore struct {
	Backend  string `toml:"backend" comment:"postgres, bolt or memory"`
	BoltPath string `toml:"bolt_path"`
}

type templateDatabase struct {
	Driver   string `toml:"driver" comment:"postgres (lib/pq) or pgx"`
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	SSLMode  string `toml:"sslmode"`
}

type templateProvider struct {
	Type            string `toml:"type"`
	BaseURL         string `toml:"base_url,omitempty"`
	Model           string `toml:"model"`
	APIKeyEnv       string `toml:"api_key_env,omitempty" comment:"environment variable holding the API key"`
	APIKey          string `toml:"api_key,omitempty"`
	Timeout         string `toml:"timeout"`
	MaxAttempts     int    `toml:"max_attempts"`
	RetryBackoff    string `toml:"retry_backoff"`
	AzureAPIVersion string `toml:"azure_api_version,omitempty"`
}

type templateTranscription struct {
	BaseURL   string `toml:"base_url,omitempty" comment:"any OpenAI-compatible /audio/transcriptions endpoint"`
	Model     string `toml:"model"`
	APIKeyEnv string `toml:"api_key_env"`
	Timeout   string `toml:"timeout"`
}

type templateWebhook struct {
	URL      string `toml:"url" comment:"leave empty to disable delivery"`
	Template string `toml:"template" comment:"{summary} and {system_key} are substituted verbatim"`
	Timeout  string `toml:"timeout"`
}

type templateReaper struct {
	IdleThreshold string `toml:"idle_threshold"`
	Interval      string `toml:"interval"`
}

type templateLogging struct {
	Level  string `toml:"level"`
	Format string `toml:"format" comment:"text or json"`
}

type templateSystem struct {
	Key           string `toml:"key"`
	InitialPrompt string `toml:"initial_prompt"`
	UpdatePrompt  string `toml:"update_prompt,multiline"`
}

var providerTemplates = map[string]templateProvider{
	"openai": {
		Type:      config.ProviderOpenAI,
		Model:     "gpt-3.5-turbo",
		APIKeyEnv: "OPENAI_API_KEY",
	},
	"openrouter": {
		Type:      config.ProviderOpenRouter,
		BaseURL:   "https://openrouter.ai/api/v1",
		Model:     "openai/gpt-3.5-turbo",
		APIKeyEnv: "OPENROUTER_API_KEY",
	},
	"azure": {
		Type:            config.ProviderAzure,
		BaseURL:         "https://YOUR-RESOURCE.openai.azure.com",
		Model:           "YOUR-DEPLOYMENT",
		APIKeyEnv:       "AZURE_OPENAI_API_KEY",
		AzureAPIVersion: "2023-09-15-preview",
	},
	"ollama": {
		Type:    config.ProviderOllama,
		BaseURL: "http://localhost:11434",
		Model:   "llama3",
	},
	"local": {
		Type:    config.ProviderOpenAI,
		BaseURL: "http://localhost:8080/v1",
		Model:   "local-model",
		APIKey:  "not-needed",
	},
}

func newGenConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "gen-config [provider]",
		Short:     "Print a config template for a provider",
		Long:      "Print a config template. Providers: " + strings.Join(providerNames(), ", ") + " (default openai).",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: providerNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider := "openai"
			if len(args) == 1 {
				provider = args[0]
			}

			data, err := renderConfigTemplate(provider)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func renderConfigTemplate(provider string) ([]byte, error) {
	p, ok := providerTemplates[provider]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q (expected one of %s)", provider, strings.Join(providerNames(), ", "))
	}
	p.Timeout = "60s"
	p.MaxAttempts = 3
	p.RetryBackoff = "500ms"

	file := templateFile{
		Server:   templateServer{Host: "127.0.0.1", Port: 8000, BodyLimitMB: 25},
		Store:    templateStore{Backend: config.StorePostgres, BoltPath: "summaryd.db"},
		Database: templateDatabase{Driver: "postgres", Host: "localhost", Port: 5432, User: "user", Password: "password", Database: "summary", SSLMode: "disable"},
		Provider: p,
		Transcription: templateTranscription{
			Model:     "whisper-1",
			APIKeyEnv: "OPENAI_API_KEY",
			Timeout:   "120s",
		},
		Webhook: templateWebhook{
			URL:      "https://example.com/webhook",
			Template: `{"summary":"{summary}"}`,
			Timeout:  "10s",
		},
		Reaper:  templateReaper{IdleThreshold: "1h", Interval: "1m"},
		Logging: templateLogging{Level: "info", Format: "text"},
		Systems: []templateSystem{{
			Key:           "default",
			InitialPrompt: "Summarize this transcription: {transcription}",
			UpdatePrompt:  "Here is text summary:\n{summary}\nPlease update this summary with new information from this transcription:\n{transcription}",
		}},
	}

	return toml.Marshal(file)
}

func providerNames() []string {
	names := make([]string, 0, len(providerTemplates))
	for name := range providerTemplates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
