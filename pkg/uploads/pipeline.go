package uploads

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/querypilot/agent/pkg/embed"
	"github.com/querypilot/agent/pkg/memory"
)

// Pipeline embeds document chunks with a bounded worker pool and converts
// them into index-ready records. Chunks whose embedding keeps failing are
// skipped rather than sinking the whole batch.
type Pipeline struct {
	Embedder    embed.Embedder
	WorkerCount int
	MaxAttempts int
	BaseDelay   time.Duration
}

type embedResult struct {
	pos   int
	chunk memory.Chunk
	err   error
}

// Process embeds every chunk and returns the successful ones in input
// order, together with the count of chunks that failed.
func (p Pipeline) Process(ctx context.Context, chunks []DocumentChunk) ([]memory.Chunk, int, error) {
	if p.Embedder == nil {
		return nil, 0, errors.New("uploads pipeline requires an embedder")
	}
	workers := p.WorkerCount
	if workers <= 0 {
		workers = 4
	}
	if len(chunks) == 0 {
		return nil, 0, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type job struct {
		pos   int
		chunk DocumentChunk
	}
	input := make(chan job)
	output := make(chan embedResult, len(chunks))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range input {
				vec, err := p.embedWithRetry(ctx, j.chunk)
				output <- embedResult{
					pos: j.pos,
					chunk: memory.Chunk{
						ID:        j.chunk.ID,
						Content:   j.chunk.Content,
						Metadata:  j.chunk.Metadata,
						Embedding: vec,
					},
					err: err,
				}
			}
		}()
	}

	go func() {
		defer close(input)
		for i, chunk := range chunks {
			select {
			case <-ctx.Done():
				return
			case input <- job{pos: i, chunk: chunk}:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(output)
	}()

	ordered := make([]*memory.Chunk, len(chunks))
	failed := 0
	for res := range output {
		if res.err != nil {
			if ctx.Err() != nil {
				return nil, 0, ctx.Err()
			}
			failed++
			continue
		}
		chunk := res.chunk
		ordered[res.pos] = &chunk
	}

	results := make([]memory.Chunk, 0, len(chunks)-failed)
	for _, chunk := range ordered {
		if chunk != nil {
			results = append(results, *chunk)
		}
	}
	return results, failed, nil
}

func (p Pipeline) embedWithRetry(ctx context.Context, chunk DocumentChunk) ([]float32, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	baseDelay := p.BaseDelay
	if baseDelay <= 0 {
		baseDelay = 200 * time.Millisecond
	}

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vec, err := p.Embedder.Embed(ctx, chunk.Content)
		if err == nil && len(vec) > 0 {
			return vec, nil
		}
		if err == nil {
			err = fmt.Errorf("empty embedding for chunk %s", chunk.ID)
		}
		if attempt >= maxAttempts {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(baseDelay * time.Duration(attempt)):
		}
	}
}
