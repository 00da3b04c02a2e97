package models

import (
	"context"
	"fmt"
)

// ProviderConfig carries the credentials NewLLMProvider needs; which field is
// required depends on the provider.
type ProviderConfig struct {
	OpenAIKey    string
	AnthropicKey string
	GeminiKey    string
	OllamaHost   string
}

// NewLLMProvider returns a concrete Agent for the named provider.
func NewLLMProvider(ctx context.Context, provider, model string, cfg ProviderConfig) (Agent, error) {
	switch provider {
	case "openai":
		return NewOpenAILLM(cfg.OpenAIKey, model), nil
	case "anthropic", "claude":
		return NewAnthropicLLM(cfg.AnthropicKey, model), nil
	case "gemini", "google":
		return NewGeminiLLM(ctx, cfg.GeminiKey, model)
	case "ollama":
		return NewOllamaLLM(cfg.OllamaHost, model)
	case "dummy":
		return NewDummyLLM(""), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}
}
