package uploads

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/querypilot/agent/pkg/embed"
)

type flakyEmbedder struct {
	calls    atomic.Int32
	failures int32
}

func (f *flakyEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if f.calls.Add(1) <= f.failures {
		return nil, errors.New("embedding service hiccup")
	}
	return embed.DummyEmbedding(text), nil
}

type failingEmbedder struct{ badContent string }

func (f failingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if text == f.badContent {
		return nil, errors.New("permanent failure")
	}
	return embed.DummyEmbedding(text), nil
}

func docChunks(n int) []DocumentChunk {
	chunks := make([]DocumentChunk, n)
	for i := range chunks {
		chunks[i] = DocumentChunk{
			ID:      fmt.Sprintf("doc#%d", i),
			Content: fmt.Sprintf("content number %d", i),
		}
	}
	return chunks
}

func TestPipelinePreservesOrder(t *testing.T) {
	p := Pipeline{Embedder: embed.DummyEmbedder{}, WorkerCount: 4}
	results, failed, err := p.Process(context.Background(), docChunks(12))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if failed != 0 {
		t.Fatalf("expected no failures, got %d", failed)
	}
	if len(results) != 12 {
		t.Fatalf("expected 12 chunks, got %d", len(results))
	}
	for i, chunk := range results {
		if chunk.ID != fmt.Sprintf("doc#%d", i) {
			t.Fatalf("chunk %d out of order: %q", i, chunk.ID)
		}
		if len(chunk.Embedding) == 0 {
			t.Fatalf("chunk %d missing embedding", i)
		}
	}
}

func TestPipelineRetriesTransientFailures(t *testing.T) {
	emb := &flakyEmbedder{failures: 1}
	p := Pipeline{Embedder: emb, WorkerCount: 1, BaseDelay: time.Millisecond}
	results, failed, err := p.Process(context.Background(), docChunks(1))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if failed != 0 || len(results) != 1 {
		t.Fatalf("expected recovery after retry, failed=%d results=%d", failed, len(results))
	}
	if emb.calls.Load() != 2 {
		t.Fatalf("expected 2 embed attempts, got %d", emb.calls.Load())
	}
}

func TestPipelineSkipsPermanentFailures(t *testing.T) {
	chunks := docChunks(3)
	p := Pipeline{
		Embedder:    failingEmbedder{badContent: chunks[1].Content},
		WorkerCount: 2,
		MaxAttempts: 2,
		BaseDelay:   time.Millisecond,
	}
	results, failed, err := p.Process(context.Background(), chunks)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if failed != 1 {
		t.Fatalf("expected 1 failed chunk, got %d", failed)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 surviving chunks, got %d", len(results))
	}
	if results[0].ID != "doc#0" || results[1].ID != "doc#2" {
		t.Fatalf("unexpected survivors: %q, %q", results[0].ID, results[1].ID)
	}
}

func TestPipelineRequiresEmbedder(t *testing.T) {
	if _, _, err := (Pipeline{}).Process(context.Background(), docChunks(1)); err == nil {
		t.Fatal("expected error without embedder")
	}
}
