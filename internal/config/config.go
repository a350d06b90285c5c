package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Provider types accepted in provider.type
const (
	ProviderOpenAI     = "openai"
	ProviderOpenRouter = "openrouter"
	ProviderAzure      = "azure"
	ProviderOllama     = "ollama"
)

// Store backends accepted in store.backend
const (
	StorePostgres = "postgres"
	StoreBolt     = "bolt"
	StoreMemory   = "memory"
)

// Placeholders substituted into prompt and webhook templates
const (
	PlaceholderSummary       = "{summary}"
	PlaceholderTranscription = "{transcription}"
	PlaceholderSystemKey     = "{system_key}"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Store         StoreConfig         `mapstructure:"store"`
	Provider      ProviderConfig      `mapstructure:"provider"`
	Transcription TranscriptionConfig `mapstructure:"transcription"`
	Webhook       WebhookConfig       `mapstructure:"webhook"`
	Reaper        ReaperConfig        `mapstructure:"reaper"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Systems       []SystemConfig      `mapstructure:"systems"`
}

type ServerConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	BodyLimitMB     int    `mapstructure:"body_limit_mb"`
	UploadRateLimit int    `mapstructure:"upload_rate_limit"`
}

// Addr returns the listen address for the HTTP server
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"sslmode"`
}

type StoreConfig struct {
	Backend  string `mapstructure:"backend"`
	BoltPath string `mapstructure:"bolt_path"`
}

type ProviderConfig struct {
	Type              string        `mapstructure:"type"`
	BaseURL           string        `mapstructure:"base_url"`
	Model             string        `mapstructure:"model"`
	APIKeyEnv         string        `mapstructure:"api_key_env"`
	APIKey            string        `mapstructure:"api_key"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxAttempts       int           `mapstructure:"max_attempts"`
	RetryBackoff      time.Duration `mapstructure:"retry_backoff"`
	AzureAPIVersion   string        `mapstructure:"azure_api_version"`
	OpenRouterReferer string        `mapstructure:"openrouter_referer"`
	OpenRouterTitle   string        `mapstructure:"openrouter_title"`
}

type TranscriptionConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	Model     string        `mapstructure:"model"`
	APIKeyEnv string        `mapstructure:"api_key_env"`
	APIKey    string        `mapstructure:"api_key"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type WebhookConfig struct {
	URL      string            `mapstructure:"url"`
	Template string            `mapstructure:"template"`
	Timeout  time.Duration     `mapstructure:"timeout"`
	Headers  map[string]string `mapstructure:"headers"`
}

type ReaperConfig struct {
	IdleThreshold time.Duration `mapstructure:"idle_threshold"`
	Interval      time.Duration `mapstructure:"interval"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SystemConfig describes one tenant and its prompt templates
type SystemConfig struct {
	Key           string `mapstructure:"key"`
	InitialPrompt string `mapstructure:"initial_prompt"`
	UpdatePrompt  string `mapstructure:"update_prompt"`
}

// Load reads the configuration file at path, or searches the default
// locations when path is empty, and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		if homeDir, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(homeDir, ".summaryd"))
		}
	}

	v.SetEnvPrefix("SUMMARYD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	loadEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.body_limit_mb", 25)
	v.SetDefault("server.upload_rate_limit", 0)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "summary")
	v.SetDefault("database.database", "summary")
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("store.backend", StorePostgres)
	v.SetDefault("store.bolt_path", "summaryd.db")

	v.SetDefault("provider.type", ProviderOpenAI)
	v.SetDefault("provider.model", "gpt-3.5-turbo")
	v.SetDefault("provider.api_key_env", "OPENAI_API_KEY")
	v.SetDefault("provider.timeout", 60*time.Second)
	v.SetDefault("provider.max_attempts", 3)
	v.SetDefault("provider.retry_backoff", 500*time.Millisecond)
	v.SetDefault("provider.azure_api_version", "2023-09-15-preview")

	v.SetDefault("transcription.model", "whisper-1")
	v.SetDefault("transcription.api_key_env", "OPENAI_API_KEY")
	v.SetDefault("transcription.timeout", 120*time.Second)

	v.SetDefault("webhook.template", `{"summary":"{summary}"}`)
	v.SetDefault("webhook.timeout", 10*time.Second)

	v.SetDefault("reaper.idle_threshold", time.Hour)
	v.SetDefault("reaper.interval", time.Minute)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

func loadEnvOverrides(cfg *Config) {
	// Database overrides
	if dbHost := os.Getenv("POSTGRES_HOST"); dbHost != "" {
		cfg.Database.Host = dbHost
	}
	if dbPort := os.Getenv("POSTGRES_PORT"); dbPort != "" {
		if port, err := strconv.Atoi(dbPort); err == nil {
			cfg.Database.Port = port
		}
	}
	if dbUser := os.Getenv("POSTGRES_USER"); dbUser != "" {
		cfg.Database.User = dbUser
	}
	if dbPass := os.Getenv("POSTGRES_PASSWORD"); dbPass != "" {
		cfg.Database.Password = dbPass
	}
	if dbName := os.Getenv("POSTGRES_DB"); dbName != "" {
		cfg.Database.Database = dbName
	}

	// API keys come from the environment unless set inline
	if cfg.Provider.APIKey == "" && cfg.Provider.APIKeyEnv != "" {
		cfg.Provider.APIKey = os.Getenv(cfg.Provider.APIKeyEnv)
	}
	if cfg.Transcription.APIKey == "" && cfg.Transcription.APIKeyEnv != "" {
		cfg.Transcription.APIKey = os.Getenv(cfg.Transcription.APIKeyEnv)
	}
}

// Validate rejects configurations the server must not start with
func (c *Config) Validate() error {
	var errs []error

	if len(c.Systems) == 0 {
		errs = append(errs, errors.New("no systems configured"))
	}
	seen := make(map[string]bool, len(c.Systems))
	for i, sys := range c.Systems {
		if sys.Key == "" {
			errs = append(errs, fmt.Errorf("systems[%d]: key is required", i))
			continue
		}
		if seen[sys.Key] {
			errs = append(errs, fmt.Errorf("systems[%d]: duplicate key %q", i, sys.Key))
		}
		seen[sys.Key] = true
		if !strings.Contains(sys.InitialPrompt, PlaceholderTranscription) {
			errs = append(errs, fmt.Errorf("system %q: initial_prompt must contain %s", sys.Key, PlaceholderTranscription))
		}
		if !strings.Contains(sys.UpdatePrompt, PlaceholderTranscription) ||
			!strings.Contains(sys.UpdatePrompt, PlaceholderSummary) {
			errs = append(errs, fmt.Errorf("system %q: update_prompt must contain %s and %s",
				sys.Key, PlaceholderSummary, PlaceholderTranscription))
		}
	}

	switch c.Provider.Type {
	case ProviderOpenAI, ProviderOpenRouter, ProviderAzure:
		if c.Provider.APIKey == "" {
			errs = append(errs, fmt.Errorf("provider %s: api key is required (set %s)", c.Provider.Type, c.Provider.APIKeyEnv))
		}
		if c.Provider.Type == ProviderAzure && c.Provider.BaseURL == "" {
			errs = append(errs, errors.New("provider azure: base_url is required"))
		}
	case ProviderOllama:
	case "":
		errs = append(errs, errors.New("no provider configured"))
	default:
		errs = append(errs, fmt.Errorf("unknown provider type: %s", c.Provider.Type))
	}
	if c.Provider.Model == "" {
		errs = append(errs, errors.New("provider.model is required"))
	}
	if c.Provider.MaxAttempts < 1 {
		errs = append(errs, errors.New("provider.max_attempts must be at least 1"))
	}

	switch c.Store.Backend {
	case StorePostgres, StoreMemory:
	case StoreBolt:
		if c.Store.BoltPath == "" {
			errs = append(errs, errors.New("store.bolt_path is required for the bolt backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store backend: %s", c.Store.Backend))
	}

	if c.Reaper.IdleThreshold <= 0 || c.Reaper.Interval <= 0 {
		errs = append(errs, errors.New("reaper.idle_threshold and reaper.interval must be positive"))
	}

	return errors.Join(errs...)
}
