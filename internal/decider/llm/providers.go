package llm

import (
	"fmt"
	"os"
	"strings"
)

// provider describes one OpenAI-compatible chat completions endpoint.
type provider struct {
	baseURL      string
	baseURLEnv   string
	apiKeyEnv    string
	defaultModel string
}

// All supported providers speak the OpenAI chat completions wire format,
// so a single client covers them.
var providers = map[string]provider{
	"openai": {
		baseURL:      "https://api.openai.com/v1",
		apiKeyEnv:    "OPENAI_API_KEY",
		defaultModel: "gpt-4o-mini",
	},
	"anthropic": {
		baseURL:      "https://api.anthropic.com/v1",
		apiKeyEnv:    "ANTHROPIC_API_KEY",
		defaultModel: "claude-3-5-haiku-20241022",
	},
	"google": {
		baseURL:      "https://generativelanguage.googleapis.com/v1beta/openai/",
		apiKeyEnv:    "GOOGLE_GENERATIVE_AI_API_KEY",
		defaultModel: "gemini-2.0-flash",
	},
	"ollama": {
		baseURL:      "http://localhost:11434/v1",
		baseURLEnv:   "OLLAMA_BASE_URL",
		defaultModel: "llama3.2",
	},
	"ollama_cloud": {
		baseURL:      "https://ollama.com/v1",
		apiKeyEnv:    "OLLAMA_API_KEY",
		defaultModel: "llama3.2",
	},
	"grok": {
		baseURL:      "https://api.x.ai/v1",
		apiKeyEnv:    "XAI_API_KEY",
		defaultModel: "grok-2",
	},
}

// DefaultProvider returns the environment's default provider name.
func DefaultProvider() string {
	if p := os.Getenv("DEFAULT_PROVIDER"); p != "" {
		return p
	}
	return "openai"
}

// DefaultModel returns the environment's default model, or the provider's
// own default.
func DefaultModel(providerName string) string {
	if m := os.Getenv("DEFAULT_MODEL"); m != "" {
		return m
	}
	if p, ok := providers[providerName]; ok {
		return p.defaultModel
	}
	return ""
}

// ProviderNames lists the supported provider names.
func ProviderNames() []string {
	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	return names
}

// KeyEnvVars maps each key-bearing provider to its API key environment
// variable. Ollama runs keyless against a local daemon.
func KeyEnvVars() map[string]string {
	out := make(map[string]string)
	for name, p := range providers {
		if p.apiKeyEnv != "" {
			out[name] = p.apiKeyEnv
		}
	}
	return out
}

// resolve returns the endpoint, model and API key for a provider name,
// applying env overrides. apiKey overrides the provider's env var when
// non-empty.
func resolve(providerName, model, apiKey string) (baseURL, resolvedModel, key string, err error) {
	p, ok := providers[strings.ToLower(providerName)]
	if !ok {
		return "", "", "", fmt.Errorf("unknown provider %q", providerName)
	}
	baseURL = p.baseURL
	if p.baseURLEnv != "" {
		if v := os.Getenv(p.baseURLEnv); v != "" {
			baseURL = v
		}
	}
	resolvedModel = model
	if resolvedModel == "" {
		resolvedModel = DefaultModel(strings.ToLower(providerName))
	}
	key = apiKey
	if key == "" && p.apiKeyEnv != "" {
		key = os.Getenv(p.apiKeyEnv)
	}
	return baseURL, resolvedModel, key, nil
}
