package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Provider names known to the factory.
const (
	ProviderGoogle = "google"
	ProviderGroq   = "groq"
)

// Environment variables that override credentials from the file.
const (
	EnvRecipeAPIKey = "SPOONACULAR_API_KEY"
	EnvGoogleAPIKey = "GOOGLE_API_KEY"
	EnvGroqAPIKey   = "GROQ_API_KEY"
	EnvPort         = "PORT"
)

// ErrMissingRecipeAPIKey is a fatal configuration error: the recipe catalog
// cannot be queried without a credential.
var ErrMissingRecipeAPIKey = errors.New("missing Spoonacular API key: set " + EnvRecipeAPIKey + " or recipes.api_key")

// Config represents the application configuration parsed from YAML.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Recipes   RecipesConfig   `yaml:"recipes"`
	Chat      ChatConfig      `yaml:"chat"`
	Providers ProvidersConfig `yaml:"providers"`
}

// ServerConfig defines listener configuration.
type ServerConfig struct {
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxBodyBytes   int64         `yaml:"max_body_bytes"`
	AllowOrigins   []string      `yaml:"allow_origins"`
}

// RecipesConfig configures the Spoonacular client.
type RecipesConfig struct {
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url"`
	Timeout     time.Duration `yaml:"timeout"`
	ResultLimit int           `yaml:"result_limit"`
}

// ChatConfig tunes the conversation orchestrator.
type ChatConfig struct {
	MaxSteps          int  `yaml:"max_steps"`
	EnforceProvenance bool `yaml:"enforce_provenance"`
}

// ProvidersConfig catalogues configured upstream LLM providers.
type ProvidersConfig struct {
	Default string         `yaml:"default"`
	Google  ProviderConfig `yaml:"google"`
	Groq    ProviderConfig `yaml:"groq"`
}

// ProviderConfig captures authentication and routing info for a provider.
type ProviderConfig struct {
	APIKey  string        `yaml:"api_key"`
	BaseURL string        `yaml:"base_url"`
	Models  []ModelConfig `yaml:"models"`
	Headers Headers       `yaml:"headers"`
}

// Headers contains additional HTTP headers to send with a provider request.
type Headers map[string]string

// ModelConfig describes a model routed to a provider.
type ModelConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// Default returns the configuration used when no file is supplied.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:           8080,
			RequestTimeout: 30 * time.Second,
			MaxBodyBytes:   1 << 20,
		},
		Recipes: RecipesConfig{
			BaseURL:     "https://api.spoonacular.com",
			Timeout:     15 * time.Second,
			ResultLimit: 5,
		},
		Chat: ChatConfig{
			MaxSteps: 10,
		},
		Providers: ProvidersConfig{
			Default: ProviderGroq,
			Google: ProviderConfig{
				BaseURL: "https://generativelanguage.googleapis.com/v1beta/openai",
				Models: []ModelConfig{
					{ID: "gemini-2.5-flash", Name: "Gemini 2.5 Flash"},
				},
			},
			Groq: ProviderConfig{
				BaseURL: "https://api.groq.com/openai/v1",
				Models: []ModelConfig{
					{ID: "llama-3.3-70b-versatile", Name: "Llama 3.3 70B"},
					{ID: "mistral-saba-24b", Name: "Mistral Saba 24B"},
				},
			},
		},
	}
}

// Load reads YAML configuration from disk when path is non-empty, applies
// environment overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return Config{}, fmt.Errorf("resolve config path: %w", err)
		}

		data, err := os.ReadFile(absPath)
		if err != nil {
			return Config{}, fmt.Errorf("read config file %q: %w", absPath, err)
		}

		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %q: %w", absPath, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvRecipeAPIKey); ok && strings.TrimSpace(v) != "" {
		c.Recipes.APIKey = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvGoogleAPIKey); ok && strings.TrimSpace(v) != "" {
		c.Providers.Google.APIKey = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvGroqAPIKey); ok && strings.TrimSpace(v) != "" {
		c.Providers.Groq.APIKey = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvPort); ok && strings.TrimSpace(v) != "" {
		port, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s must be an integer: %w", EnvPort, err)
		}
		c.Server.Port = port
	}
	return nil
}

// Validate performs strict sanity checks on the configuration.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be a valid TCP port, got %d", c.Server.Port)
	}
	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("server.request_timeout must be positive, got %s", c.Server.RequestTimeout)
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("server.max_body_bytes must be positive, got %d", c.Server.MaxBodyBytes)
	}

	if strings.TrimSpace(c.Recipes.APIKey) == "" {
		return ErrMissingRecipeAPIKey
	}
	if strings.TrimSpace(c.Recipes.BaseURL) == "" {
		return errors.New("recipes.base_url must be provided")
	}
	if c.Recipes.Timeout <= 0 {
		return fmt.Errorf("recipes.timeout must be positive, got %s", c.Recipes.Timeout)
	}
	if c.Recipes.ResultLimit <= 0 || c.Recipes.ResultLimit > 100 {
		return fmt.Errorf("recipes.result_limit must be between 1 and 100, got %d", c.Recipes.ResultLimit)
	}

	if c.Chat.MaxSteps < 1 || c.Chat.MaxSteps > 50 {
		return fmt.Errorf("chat.max_steps must be between 1 and 50, got %d", c.Chat.MaxSteps)
	}

	providers := c.Providers.ByName()
	if _, ok := providers[c.Providers.Default]; !ok {
		return fmt.Errorf("providers.default %q must name a configured provider", c.Providers.Default)
	}

	seen := make(map[string]string)
	for name, provider := range providers {
		if err := validateProvider(name, provider); err != nil {
			return err
		}
		for _, model := range provider.Models {
			if owner, dup := seen[model.ID]; dup {
				return fmt.Errorf("model %q is routed to both %s and %s", model.ID, owner, name)
			}
			seen[model.ID] = name
		}
	}

	return nil
}

// ByName returns the configured providers keyed by provider name.
func (p ProvidersConfig) ByName() map[string]ProviderConfig {
	return map[string]ProviderConfig{
		ProviderGoogle: p.Google,
		ProviderGroq:   p.Groq,
	}
}

func validateProvider(name string, provider ProviderConfig) error {
	if strings.TrimSpace(provider.BaseURL) == "" {
		return fmt.Errorf("provider %s: base_url must be provided", name)
	}

	for _, model := range provider.Models {
		if strings.TrimSpace(model.ID) == "" {
			return fmt.Errorf("provider %s: model id must not be empty", name)
		}
	}

	for headerKey := range provider.Headers {
		if !isCanonicalHTTPHeader(headerKey) {
			return fmt.Errorf("provider %s: header %q is not a valid canonical HTTP header", name, headerKey)
		}
	}

	return nil
}

func isCanonicalHTTPHeader(header string) bool {
	if header == "" {
		return false
	}

	for _, r := range header {
		if !(r == '-' || (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z')) {
			return false
		}
	}
	return true
}
