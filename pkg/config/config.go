// Package config collects every runtime setting in one explicit struct.
// Values come from the environment (optionally seeded from a .env file);
// nothing else in the module reads environment variables.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/querypilot/agent"
)

// Config holds all runtime settings for the agent and its tools.
type Config struct {
	Provider string
	Model    string

	OpenAIKey    string
	AnthropicKey string
	GeminiKey    string
	OllamaHost   string

	DatabaseURL string
	QdrantURL   string
	QdrantKey   string
	MongoURI    string
	BraveKey    string

	MaxSteps      int
	Markdown      bool
	ShowToolCalls bool
}

// Load reads configuration from the environment, seeding it from .env when
// one exists. Missing optional values keep their zero value; Validate
// decides what is actually required for a given provider.
func Load() Config {
	// Absent .env is fine; real environment always wins.
	_ = godotenv.Load()

	cfg := Config{
		Provider:      envOr("QUERYPILOT_PROVIDER", "openai"),
		Model:         os.Getenv("QUERYPILOT_MODEL"),
		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		AnthropicKey:  os.Getenv("ANTHROPIC_API_KEY"),
		GeminiKey:     os.Getenv("GEMINI_API_KEY"),
		OllamaHost:    envOr("OLLAMA_HOST", "http://localhost:11434"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		QdrantURL:     os.Getenv("QDRANT_URL"),
		QdrantKey:     os.Getenv("QDRANT_API_KEY"),
		MongoURI:      os.Getenv("MONGODB_URI"),
		BraveKey:      os.Getenv("BRAVE_API_KEY"),
		MaxSteps:      envInt("QUERYPILOT_MAX_STEPS", 0),
		Markdown:      envBool("QUERYPILOT_MARKDOWN", true),
		ShowToolCalls: envBool("QUERYPILOT_SHOW_TOOL_CALLS", false),
	}
	return cfg
}

// Validate checks that the credentials the selected provider needs are
// present, before any request runs.
func (c Config) Validate() error {
	switch c.Provider {
	case "openai":
		if c.OpenAIKey == "" {
			return agent.MissingCredentialError("OPENAI_API_KEY")
		}
	case "anthropic", "claude":
		if c.AnthropicKey == "" {
			return agent.MissingCredentialError("ANTHROPIC_API_KEY")
		}
	case "gemini", "google":
		if c.GeminiKey == "" {
			return agent.MissingCredentialError("GEMINI_API_KEY")
		}
	case "ollama":
		if c.OllamaHost == "" {
			return agent.MissingCredentialError("OLLAMA_HOST")
		}
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
