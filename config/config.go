// Package config loads the relay's YAML configuration, layering file
// values over built-in defaults and environment overrides over both.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"

	"github.com/relaycore/llmrelay/invoke"
)

// AnthropicConfig configures the Anthropic provider.
type AnthropicConfig struct {
	APIKey string `yaml:"api_key,omitempty"`
	Model  string `yaml:"model,omitempty"`
}

// OllamaConfig configures the Ollama provider.
type OllamaConfig struct {
	Host  string `yaml:"host,omitempty"`
	Model string `yaml:"model,omitempty"`
}

// OpenAIConfig configures the OpenAI provider.
type OpenAIConfig struct {
	APIKey       string `yaml:"api_key,omitempty"`
	BaseURL      string `yaml:"base_url,omitempty"`
	Model        string `yaml:"model,omitempty"`
	Organization string `yaml:"organization,omitempty"`
}

// RetryConfig configures the backoff policy. Delay fields are duration
// strings ("500ms", "1m").
type RetryConfig struct {
	MaxRetries   int    `yaml:"max_retries,omitempty"`
	InitialDelay string `yaml:"initial_delay,omitempty"`
	MinDelay     string `yaml:"min_delay,omitempty"`
	MaxInterval  string `yaml:"max_interval,omitempty"`
}

// Policy converts the retry section into an invocation policy. Absent
// fields keep the policy defaults.
func (rc RetryConfig) Policy() (invoke.Policy, error) {
	p := invoke.DefaultPolicy()
	if rc.MaxRetries > 0 {
		p.MaxRetries = rc.MaxRetries
	}

	for _, field := range []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"initial_delay", rc.InitialDelay, &p.InitialDelay},
		{"min_delay", rc.MinDelay, &p.MinDelay},
		{"max_interval", rc.MaxInterval, &p.MaxInterval},
	} {
		if field.raw == "" {
			continue
		}
		d, err := time.ParseDuration(field.raw)
		if err != nil {
			return invoke.Policy{}, fmt.Errorf("retry.%s: %w", field.name, err)
		}
		*field.dst = d
	}
	return p, nil
}

// Config is the full relay configuration.
type Config struct {
	// Providers lists the enabled providers in preference order.
	Providers []string `yaml:"providers,omitempty"`

	Anthropic AnthropicConfig `yaml:"anthropic,omitempty"`
	Ollama    OllamaConfig    `yaml:"ollama,omitempty"`
	OpenAI    OpenAIConfig    `yaml:"openai,omitempty"`

	Retry RetryConfig `yaml:"retry,omitempty"`

	// RequestTimeout bounds each attempt, in seconds.
	RequestTimeout int `yaml:"request_timeout,omitempty"`

	// Concurrency bounds the batch runner's worker pool.
	Concurrency int `yaml:"concurrency,omitempty"`

	// LogFile receives structured logs; empty logs to stdout.
	LogFile string `yaml:"log_file,omitempty"`
}

// Timeout returns the per-attempt timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

// DefaultPath returns the default config file path. Can be overridden via
// the LLMRELAY_CONFIG_PATH environment variable.
func DefaultPath() string {
	if envPath := os.Getenv("LLMRELAY_CONFIG_PATH"); envPath != "" {
		return expandPath(envPath)
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./.llmrelay/config.yaml"
	}
	return filepath.Join(homeDir, ".llmrelay", "config.yaml")
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[2:])
	}
	return path
}

func defaults() Config {
	return Config{
		Providers: []string{"anthropic"},
		Ollama: OllamaConfig{
			Host: "http://localhost:11434",
		},
		OpenAI: OpenAIConfig{
			BaseURL: "https://api.openai.com/v1",
		},
		Retry: RetryConfig{
			MaxRetries:   invoke.DefaultMaxRetries,
			InitialDelay: invoke.DefaultInitialDelay.String(),
			MinDelay:     invoke.DefaultMinDelay.String(),
			MaxInterval:  invoke.DefaultMaxInterval.String(),
		},
		RequestTimeout: 120,
		Concurrency:    4,
	}
}

// Load reads the config file at path and merges it over the defaults. A
// missing file yields the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := defaults()

	expandedPath := expandPath(path)
	if _, err := os.Stat(expandedPath); err != nil {
		return &cfg, nil
	}

	raw, err := os.ReadFile(expandedPath) //#nosec 304 -- intentional file read for config
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %q: %w", expandedPath, err)
	}

	var fileCfg Config
	if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := mergo.Merge(&cfg, fileCfg, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("failed to merge config: %w", err)
	}
	return &cfg, nil
}

// Save writes the configuration to the specified path.
func Save(cfg *Config, path string) error {
	expandedPath := expandPath(path)

	if err := os.MkdirAll(filepath.Dir(expandedPath), 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(expandedPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
