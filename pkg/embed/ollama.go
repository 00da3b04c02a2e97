package embed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	ollama "github.com/ollama/ollama/api"
)

// OllamaEmbedder asks a local or remote Ollama host for embeddings.
type OllamaEmbedder struct {
	Client *ollama.Client
	Model  string
}

func NewOllamaEmbedder(host, model string) (*OllamaEmbedder, error) {
	if host == "" {
		host = "http://localhost:11434"
	}
	if model == "" {
		model = "nomic-embed-text"
	}
	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host %q: %w", host, err)
	}
	httpClient := &http.Client{Timeout: 60 * time.Second}
	return &OllamaEmbedder{Client: ollama.NewClient(u, httpClient), Model: model}, nil
}

func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.Client.Embed(ctx, &ollama.EmbedRequest{Model: e.Model, Input: text})
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) == 0 {
		return nil, errors.New("ollama embedder: empty response")
	}
	return resp.Embeddings[0], nil
}

var _ Embedder = (*OllamaEmbedder)(nil)
