package agent

import (
	"fmt"
	"strings"

	"atlas/pkg/agent/internal/llmimpl/anthropic"
	"atlas/pkg/agent/internal/llmimpl/google"
	"atlas/pkg/agent/internal/llmimpl/ollama"
	"atlas/pkg/agent/internal/llmimpl/openai"
)

// Provider identifiers for reasoning model backends.
const (
	ProviderGoogle    = "google"
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderOllama    = "ollama"
)

// ClientConfig describes how to construct a raw LLM client.
type ClientConfig struct {
	Model      string
	Provider   string // inferred from the model name when empty
	APIKey     string
	OllamaHost string
}

// InferProvider determines the provider from a model name.
func InferProvider(model string) (string, error) {
	switch {
	case strings.HasPrefix(model, "gemini"):
		return ProviderGoogle, nil
	case strings.HasPrefix(model, "claude"):
		return ProviderAnthropic, nil
	case strings.HasPrefix(model, "gpt"), strings.HasPrefix(model, "o3"), strings.HasPrefix(model, "o4"):
		return ProviderOpenAI, nil
	default:
		return "", fmt.Errorf("cannot infer provider for model %q", model)
	}
}

// NewClient creates a raw LLM client for the configured provider.
// Middleware (metrics, retry) is applied by the caller.
func NewClient(cc ClientConfig) (LLMClient, error) {
	if cc.Model == "" {
		return nil, fmt.Errorf("model name cannot be empty")
	}

	provider := cc.Provider
	if provider == "" {
		inferred, err := InferProvider(cc.Model)
		if err != nil {
			return nil, err
		}
		provider = inferred
	}

	switch provider {
	case ProviderGoogle:
		if cc.APIKey == "" {
			return nil, fmt.Errorf("provider %s requires an API key", provider)
		}
		return google.NewClient(cc.APIKey, cc.Model), nil
	case ProviderAnthropic:
		if cc.APIKey == "" {
			return nil, fmt.Errorf("provider %s requires an API key", provider)
		}
		return anthropic.NewClient(cc.APIKey, cc.Model), nil
	case ProviderOpenAI:
		if cc.APIKey == "" {
			return nil, fmt.Errorf("provider %s requires an API key", provider)
		}
		return openai.NewClient(cc.APIKey, cc.Model), nil
	case ProviderOllama:
		host := cc.OllamaHost
		if host == "" {
			host = "http://localhost:11434"
		}
		return ollama.NewClient(host, cc.Model), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", provider)
	}
}
