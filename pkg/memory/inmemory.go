package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/querypilot/agent/pkg/embed"
)

// InMemoryIndex is a process-local KnowledgeIndex for tests and small
// corpora. Keyword mode scores by query-token overlap, semantic mode by
// cosine similarity over the configured embedder.
type InMemoryIndex struct {
	mu       sync.RWMutex
	chunks   []Chunk
	embedder embed.Embedder
}

func NewInMemoryIndex(embedder embed.Embedder) *InMemoryIndex {
	if embedder == nil {
		embedder = embed.DummyEmbedder{}
	}
	return &InMemoryIndex{embedder: embedder}
}

func (idx *InMemoryIndex) Ingest(ctx context.Context, chunks []Chunk) (int, error) {
	added := 0
	for _, chunk := range chunks {
		if strings.TrimSpace(chunk.Content) == "" {
			continue
		}
		if len(chunk.Embedding) == 0 {
			vec, err := idx.embedder.Embed(ctx, chunk.Content)
			if err != nil {
				return added, fmt.Errorf("embed chunk %s: %w", chunk.ID, err)
			}
			chunk.Embedding = vec
		}
		idx.mu.Lock()
		idx.chunks = append(idx.chunks, chunk)
		idx.mu.Unlock()
		added++
	}
	return added, nil
}

func (idx *InMemoryIndex) Count(_ context.Context) (int, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.chunks), nil
}

func (idx *InMemoryIndex) Query(ctx context.Context, text string, mode QueryMode, limit int) ([]ScoredChunk, error) {
	if limit <= 0 {
		limit = 5
	}
	switch mode {
	case ModeKeyword:
		return idx.keywordSearch(text, limit), nil
	case ModeSemantic:
		return idx.semanticSearch(ctx, text, limit)
	case ModeHybrid, "":
		semantic, err := idx.semanticSearch(ctx, text, 2*limit)
		if err != nil {
			// Embedding unavailable: degrade to keyword-only.
			return idx.keywordSearch(text, limit), nil
		}
		return mergeScored(idx.keywordSearch(text, 2*limit), semantic, limit), nil
	default:
		return nil, fmt.Errorf("unknown query mode %q", mode)
	}
}

func (idx *InMemoryIndex) keywordSearch(text string, limit int) []ScoredChunk {
	terms := tokenize(text)
	if len(terms) == 0 {
		return nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var results []ScoredChunk
	for _, chunk := range idx.chunks {
		content := strings.ToLower(chunk.Content)
		hits := 0
		for term := range terms {
			if strings.Contains(content, term) {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		results = append(results, ScoredChunk{
			Chunk: chunk,
			Score: float64(hits) / float64(len(terms)),
		})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return capResults(results, limit)
}

func (idx *InMemoryIndex) semanticSearch(ctx context.Context, text string, limit int) ([]ScoredChunk, error) {
	queryVec, err := idx.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	results := make([]ScoredChunk, 0, len(idx.chunks))
	for _, chunk := range idx.chunks {
		results = append(results, ScoredChunk{
			Chunk: chunk,
			Score: embed.Cosine(queryVec, chunk.Embedding),
		})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return capResults(results, limit), nil
}

func tokenize(text string) map[string]struct{} {
	terms := make(map[string]struct{})
	for _, field := range strings.Fields(strings.ToLower(text)) {
		term := strings.Trim(field, ".,;:!?\"'()")
		if len(term) > 2 {
			terms[term] = struct{}{}
		}
	}
	return terms
}

var _ KnowledgeIndex = (*InMemoryIndex)(nil)
