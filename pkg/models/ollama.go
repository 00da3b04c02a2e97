package models

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	ollama "github.com/ollama/ollama/api"
)

type OllamaLLM struct {
	Client *ollama.Client
	Model  string
}

// NewOllamaLLM connects to a local or remote Ollama host.
func NewOllamaLLM(host, model string) (*OllamaLLM, error) {
	if host == "" {
		host = "http://localhost:11434"
	}
	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host %q: %w", host, err)
	}
	httpClient := &http.Client{Timeout: 120 * time.Second}
	return &OllamaLLM{Client: ollama.NewClient(u, httpClient), Model: model}, nil
}

func (o *OllamaLLM) Generate(ctx context.Context, prompt string) (string, error) {
	var text strings.Builder
	req := &ollama.GenerateRequest{Model: o.Model, Prompt: prompt}
	if err := o.Client.Generate(ctx, req, func(gr ollama.GenerateResponse) error {
		text.WriteString(gr.Response)
		return nil
	}); err != nil {
		return "", err
	}
	return text.String(), nil
}

// GenerateStream forwards Ollama's incremental responses as chunks.
func (o *OllamaLLM) GenerateStream(ctx context.Context, prompt string) (<-chan StreamChunk, error) {
	out := make(chan StreamChunk)
	go func() {
		defer close(out)
		var full strings.Builder
		req := &ollama.GenerateRequest{Model: o.Model, Prompt: prompt}
		err := o.Client.Generate(ctx, req, func(gr ollama.GenerateResponse) error {
			if gr.Response != "" {
				full.WriteString(gr.Response)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case out <- StreamChunk{Delta: gr.Response}:
				}
			}
			return nil
		})
		if err != nil {
			out <- StreamChunk{Err: err, Done: true}
			return
		}
		out <- StreamChunk{Done: true, FullText: full.String()}
	}()
	return out, nil
}

var (
	_ Agent    = (*OllamaLLM)(nil)
	_ Streamer = (*OllamaLLM)(nil)
)
