package models

import "context"

// Agent is the text-generation service contract: one prompt in, one
// completion out. Implementations wrap a specific provider SDK.
type Agent interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// StreamChunk is one fragment of a streamed completion.
type StreamChunk struct {
	Delta    string
	FullText string
	Done     bool
	Err      error
}

// Streamer is implemented by models that can emit completions incrementally.
type Streamer interface {
	GenerateStream(ctx context.Context, prompt string) (<-chan StreamChunk, error)
}
