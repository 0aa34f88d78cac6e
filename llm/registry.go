package llm

import (
	"fmt"
	"os"
	"sync"
)

const (
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
)

// Preference is a single provider/model preference. Callers list
// preferences in order; the registry resolves the first usable one.
type Preference struct {
	Provider    string
	Model       string
	Temperature *float64
}

// ClientKey uniquely identifies a resolved provider client configuration.
type ClientKey struct {
	Provider     string
	Model        string
	APIKey       string // For credential-based providers
	Host         string // For Ollama
	BaseURL      string // For OpenAI
	Organization string // For OpenAI
}

// ProviderSettings holds the credentials and endpoints the registry
// resolves against. Client construction is handled by the caller.
type ProviderSettings struct {
	AnthropicAPIKey string
	AnthropicModel  string
	OllamaHost      string
	OllamaModel     string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	OpenAIModel     string
	OpenAIOrg       string
}

// ProviderRegistry manages provider selection: which providers are
// enabled, which have usable configuration, and preference resolution.
type ProviderRegistry struct {
	enabled  map[string]bool
	settings *ProviderSettings
	mu       sync.RWMutex
}

// NewProviderRegistry creates a registry over the given settings with the
// listed providers enabled.
func NewProviderRegistry(settings *ProviderSettings, enabled []string) *ProviderRegistry {
	enabledMap := make(map[string]bool, len(enabled))
	for _, p := range enabled {
		enabledMap[p] = true
	}
	return &ProviderRegistry{
		enabled:  enabledMap,
		settings: settings,
	}
}

// IsEnabled checks whether a provider is in the enabled set.
func (r *ProviderRegistry) IsEnabled(provider string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.enabled[provider]
}

// IsConfigured checks whether a provider has the configuration it needs
// (API keys, hosts) to construct a client.
func (r *ProviderRegistry) IsConfigured(provider string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.isConfiguredLocked(provider)
}

// Resolve returns a ClientKey for the first enabled, configured provider
// in the preference list. With no preferences, the first enabled provider
// is resolved with its default model.
func (r *ProviderRegistry) Resolve(prefs []Preference) (*ClientKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(prefs) > 0 {
		var attempted []string
		for _, pref := range prefs {
			attempted = append(attempted, pref.Provider)
			if !r.enabled[pref.Provider] || !r.isConfiguredLocked(pref.Provider) {
				continue
			}
			key, err := r.resolveLocked(pref.Provider, pref.Model)
			if err != nil {
				continue
			}
			return key, nil
		}
		return nil, fmt.Errorf("no available provider from preferences %v (enabled: %v)", attempted, r.enabledListLocked())
	}

	if len(r.enabled) == 0 {
		return nil, fmt.Errorf("no providers enabled")
	}
	for provider := range r.enabled {
		if !r.isConfiguredLocked(provider) {
			continue
		}
		return r.resolveLocked(provider, "")
	}
	return nil, fmt.Errorf("no enabled provider is configured (enabled: %v)", r.enabledListLocked())
}

// isConfiguredLocked must be called with r.mu held.
func (r *ProviderRegistry) isConfiguredLocked(provider string) bool {
	switch provider {
	case ProviderAnthropic:
		return r.settings.AnthropicAPIKey != "" || os.Getenv("ANTHROPIC_API_KEY") != ""
	case ProviderOllama:
		// Ollama needs no API key and the host has a default.
		return true
	case ProviderOpenAI:
		return r.settings.OpenAIAPIKey != "" || os.Getenv("OPENAI_API_KEY") != ""
	default:
		return false
	}
}

// resolveLocked must be called with r.mu held.
func (r *ProviderRegistry) resolveLocked(provider, modelOverride string) (*ClientKey, error) {
	key := &ClientKey{
		Provider: provider,
		Model:    modelOverride,
	}

	switch provider {
	case ProviderAnthropic:
		apiKey := r.settings.AnthropicAPIKey
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("anthropic API key not configured")
		}
		key.APIKey = apiKey
		if key.Model == "" {
			key.Model = r.settings.AnthropicModel
		}
		if key.Model == "" {
			return nil, fmt.Errorf("anthropic model not specified and no default configured")
		}

	case ProviderOllama:
		host := r.settings.OllamaHost
		if host == "" {
			host = os.Getenv("OLLAMA_HOST")
		}
		if host == "" {
			host = "http://localhost:11434"
		}
		key.Host = host
		if key.Model == "" {
			key.Model = r.settings.OllamaModel
		}
		if key.Model == "" {
			key.Model = os.Getenv("OLLAMA_MODEL")
		}
		if key.Model == "" {
			return nil, fmt.Errorf("ollama model not specified and no default configured")
		}

	case ProviderOpenAI:
		apiKey := r.settings.OpenAIAPIKey
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("openai API key not configured")
		}
		key.APIKey = apiKey
		key.BaseURL = r.settings.OpenAIBaseURL
		if key.BaseURL == "" {
			key.BaseURL = os.Getenv("OPENAI_BASE_URL")
		}
		key.Organization = r.settings.OpenAIOrg
		if key.Organization == "" {
			key.Organization = os.Getenv("OPENAI_ORG_ID")
		}
		if key.Model == "" {
			key.Model = r.settings.OpenAIModel
		}
		if key.Model == "" {
			key.Model = os.Getenv("OPENAI_MODEL")
		}

	default:
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}

	return key, nil
}

// enabledListLocked must be called with r.mu held.
func (r *ProviderRegistry) enabledListLocked() []string {
	var providers []string
	for p := range r.enabled {
		providers = append(providers, p)
	}
	return providers
}
