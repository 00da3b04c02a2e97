package memory

import "context"

// QueryMode selects the retrieval strategy a KnowledgeIndex applies.
type QueryMode string

const (
	ModeKeyword  QueryMode = "keyword"
	ModeSemantic QueryMode = "semantic"
	ModeHybrid   QueryMode = "hybrid"
)

// Chunk is one ingested document fragment.
type Chunk struct {
	ID        string
	Content   string
	Metadata  map[string]any
	Embedding []float32
}

// ScoredChunk pairs a chunk with its retrieval score (higher is better).
type ScoredChunk struct {
	Chunk
	Score float64
}

// KnowledgeIndex is the externally-hosted searchable store of document
// chunks. Concurrent queries are safe; ingestion is serialized by the
// IngestionGate, not by implementations.
type KnowledgeIndex interface {
	// Ingest stores the chunks and reports how many were added.
	Ingest(ctx context.Context, chunks []Chunk) (int, error)
	// Query returns up to limit chunks ordered by descending score.
	Query(ctx context.Context, text string, mode QueryMode, limit int) ([]ScoredChunk, error)
	// Count reports the number of chunks currently stored.
	Count(ctx context.Context) (int, error)
}
