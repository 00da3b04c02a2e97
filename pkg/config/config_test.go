package config

import (
	"testing"

	"github.com/querypilot/agent"
)

func TestValidateRequiresProviderKey(t *testing.T) {
	cfg := Config{Provider: "openai"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected missing credential error")
	}
	if agent.FailureKind(err) != agent.KindMissingCredential {
		t.Fatalf("expected missing_credential kind, got %v", agent.FailureKind(err))
	}

	cfg.OpenAIKey = "sk-test"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error with key set: %v", err)
	}
}

func TestValidateChecksSelectedProviderOnly(t *testing.T) {
	cfg := Config{Provider: "anthropic", OpenAIKey: "sk-test"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected anthropic key to be required")
	}

	cfg.AnthropicKey = "sk-ant"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateDummyProviderNeedsNothing(t *testing.T) {
	cfg := Config{Provider: "dummy"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("QUERYPILOT_PROVIDER", "")
	t.Setenv("QUERYPILOT_MAX_STEPS", "")
	t.Setenv("QUERYPILOT_MARKDOWN", "")
	t.Setenv("OLLAMA_HOST", "")

	cfg := Load()
	if cfg.Provider != "openai" {
		t.Fatalf("expected openai default provider, got %q", cfg.Provider)
	}
	if cfg.OllamaHost != "http://localhost:11434" {
		t.Fatalf("unexpected ollama default: %q", cfg.OllamaHost)
	}
	if !cfg.Markdown {
		t.Fatal("expected markdown on by default")
	}
	if cfg.MaxSteps != 0 {
		t.Fatalf("expected unset max steps, got %d", cfg.MaxSteps)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("QUERYPILOT_PROVIDER", "ollama")
	t.Setenv("QUERYPILOT_MAX_STEPS", "12")
	t.Setenv("QUERYPILOT_MARKDOWN", "false")

	cfg := Load()
	if cfg.Provider != "ollama" {
		t.Fatalf("expected ollama, got %q", cfg.Provider)
	}
	if cfg.MaxSteps != 12 {
		t.Fatalf("expected 12 steps, got %d", cfg.MaxSteps)
	}
	if cfg.Markdown {
		t.Fatal("expected markdown disabled")
	}
}
