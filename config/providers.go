package config

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/relaycore/llmrelay/llm"
	llmanthropic "github.com/relaycore/llmrelay/llm/anthropic"
	llmollama "github.com/relaycore/llmrelay/llm/ollama"
	llmopenai "github.com/relaycore/llmrelay/llm/openai"
)

// Settings folds config file values and environment overrides into the
// registry's provider settings. Environment variables win.
func Settings(cfg *Config) *llm.ProviderSettings {
	s := &llm.ProviderSettings{}
	if cfg != nil {
		s.AnthropicAPIKey = cfg.Anthropic.APIKey
		s.AnthropicModel = cfg.Anthropic.Model
		s.OllamaHost = cfg.Ollama.Host
		s.OllamaModel = cfg.Ollama.Model
		s.OpenAIAPIKey = cfg.OpenAI.APIKey
		s.OpenAIBaseURL = cfg.OpenAI.BaseURL
		s.OpenAIModel = cfg.OpenAI.Model
		s.OpenAIOrg = cfg.OpenAI.Organization
	}

	overlay(&s.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	overlay(&s.AnthropicModel, "ANTHROPIC_MODEL")
	overlay(&s.OllamaHost, "OLLAMA_HOST")
	overlay(&s.OllamaModel, "OLLAMA_MODEL")
	overlay(&s.OpenAIAPIKey, "OPENAI_API_KEY")
	overlay(&s.OpenAIBaseURL, "OPENAI_BASE_URL")
	overlay(&s.OpenAIModel, "OPENAI_MODEL")
	overlay(&s.OpenAIOrg, "OPENAI_ORG_ID")
	return s
}

func overlay(dst *string, envVar string) {
	if v := os.Getenv(envVar); v != "" {
		*dst = v
	}
}

// NewRegistry builds a provider registry from the configuration.
func NewRegistry(cfg *Config) *llm.ProviderRegistry {
	return llm.NewProviderRegistry(Settings(cfg), cfg.Providers)
}

// NewClient constructs the provider client a resolved key describes.
func NewClient(key *llm.ClientKey, logger zerolog.Logger) (llm.Client, error) {
	if key == nil {
		return nil, fmt.Errorf("client key is required")
	}

	switch key.Provider {
	case llm.ProviderAnthropic:
		return llmanthropic.New(key.APIKey, logger)
	case llm.ProviderOllama:
		return llmollama.New(key.Host, key.Model)
	case llm.ProviderOpenAI:
		return llmopenai.New(key.APIKey, key.BaseURL, key.Model, key.Organization)
	default:
		return nil, fmt.Errorf("unknown provider: %s", key.Provider)
	}
}
