package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/querypilot/agent/pkg/embed"
)

// QdrantIndex implements KnowledgeIndex against Qdrant's REST API. Keyword
// mode uses a full-text payload filter; Qdrant has no server-side lexical
// rank, so keyword matches score by vector order within the filter.
type QdrantIndex struct {
	BaseURL    string
	APIKey     string
	Collection string
	client     *http.Client
	embedder   embed.Embedder
}

func NewQdrantIndex(baseURL, apiKey, collection string, embedder embed.Embedder) *QdrantIndex {
	if baseURL == "" {
		baseURL = "http://localhost:6333"
	}
	if embedder == nil {
		embedder = embed.DummyEmbedder{}
	}
	return &QdrantIndex{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		APIKey:     apiKey,
		Collection: collection,
		client:     &http.Client{Timeout: 15 * time.Second},
		embedder:   embedder,
	}
}

// qdrantStatus accepts both `status: "ok"` and `status: {"error": "..."}`.
type qdrantStatus struct {
	State string
	Error string
}

func (s *qdrantStatus) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		s.State = strings.ToLower(v)
		return nil
	}
	var obj struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	if obj.Error != "" {
		s.State = "error"
		s.Error = obj.Error
	}
	return nil
}

type qdrantEnvelope[T any] struct {
	Status qdrantStatus `json:"status"`
	Result T            `json:"result"`
}

// EnsureCollection creates the collection and the full-text payload index
// on content that keyword filters depend on. Both calls treat an
// already-existing target as success.
func (q *QdrantIndex) EnsureCollection(ctx context.Context, dims int) error {
	body := map[string]any{
		"vectors": map[string]any{"size": dims, "distance": "Cosine"},
	}
	if err := q.put(ctx, "/collections/"+url.PathEscape(q.Collection), body, "create collection"); err != nil {
		return err
	}
	index := map[string]any{
		"field_name":   "content",
		"field_schema": "text",
	}
	return q.put(ctx, "/collections/"+url.PathEscape(q.Collection)+"/index", index, "create payload index")
}

func (q *QdrantIndex) put(ctx context.Context, path string, body any, op string) error {
	raw, status, err := q.do(ctx, http.MethodPut, path, body)
	if err != nil {
		return err
	}
	if status >= 200 && status < 300 {
		return nil
	}
	var env qdrantEnvelope[json.RawMessage]
	_ = json.Unmarshal(raw, &env)
	if strings.Contains(strings.ToLower(env.Status.Error), "already exists") {
		return nil
	}
	return fmt.Errorf("qdrant %s: http %d: %s", op, status, strings.TrimSpace(string(raw)))
}

func (q *QdrantIndex) Ingest(ctx context.Context, chunks []Chunk) (int, error) {
	points := make([]map[string]any, 0, len(chunks))
	for i, chunk := range chunks {
		if strings.TrimSpace(chunk.Content) == "" {
			continue
		}
		if len(chunk.Embedding) == 0 {
			vec, err := q.embedder.Embed(ctx, chunk.Content)
			if err != nil {
				return 0, fmt.Errorf("embed chunk %s: %w", chunk.ID, err)
			}
			chunk.Embedding = vec
		}
		payload := map[string]any{"content": chunk.Content, "chunk_id": chunk.ID}
		for k, v := range chunk.Metadata {
			payload[k] = v
		}
		points = append(points, map[string]any{
			"id":      i + 1,
			"vector":  chunk.Embedding,
			"payload": payload,
		})
	}
	if len(points) == 0 {
		return 0, nil
	}

	path := "/collections/" + url.PathEscape(q.Collection) + "/points?wait=true"
	raw, status, err := q.do(ctx, http.MethodPut, path, map[string]any{"points": points})
	if err != nil {
		return 0, err
	}
	if status < 200 || status >= 300 {
		return 0, fmt.Errorf("qdrant upsert: http %d: %s", status, strings.TrimSpace(string(raw)))
	}
	return len(points), nil
}

func (q *QdrantIndex) Count(ctx context.Context) (int, error) {
	path := "/collections/" + url.PathEscape(q.Collection) + "/points/count"
	raw, status, err := q.do(ctx, http.MethodPost, path, map[string]any{"exact": true})
	if err != nil {
		return 0, err
	}
	if status < 200 || status >= 300 {
		return 0, fmt.Errorf("qdrant count: http %d: %s", status, strings.TrimSpace(string(raw)))
	}
	var env qdrantEnvelope[struct {
		Count int `json:"count"`
	}]
	if err := json.Unmarshal(raw, &env); err != nil {
		return 0, fmt.Errorf("qdrant count: decode: %w", err)
	}
	return env.Result.Count, nil
}

func (q *QdrantIndex) Query(ctx context.Context, text string, mode QueryMode, limit int) ([]ScoredChunk, error) {
	if limit <= 0 {
		limit = 5
	}
	queryVec, err := q.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	textFilter := map[string]any{
		"must": []map[string]any{
			{"key": "content", "match": map[string]any{"text": text}},
		},
	}

	switch mode {
	case ModeKeyword:
		return q.search(ctx, queryVec, textFilter, limit)
	case ModeHybrid:
		// Two searches merged client side, as the other backends do. A
		// should-only filter would still require at least one match.
		semantic, err := q.search(ctx, queryVec, nil, limit)
		if err != nil {
			return nil, err
		}
		keyword, err := q.search(ctx, queryVec, textFilter, limit)
		if err != nil {
			return nil, err
		}
		return mergeScored(keyword, semantic, limit), nil
	default:
		return q.search(ctx, queryVec, nil, limit)
	}
}

func (q *QdrantIndex) search(ctx context.Context, vector []float32, filter map[string]any, limit int) ([]ScoredChunk, error) {
	body := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	}
	if filter != nil {
		body["filter"] = filter
	}

	path := "/collections/" + url.PathEscape(q.Collection) + "/points/search"
	raw, status, err := q.do(ctx, http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("qdrant search: http %d: %s", status, strings.TrimSpace(string(raw)))
	}

	var env qdrantEnvelope[[]struct {
		Score   float64        `json:"score"`
		Payload map[string]any `json:"payload"`
	}]
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("qdrant search: decode: %w", err)
	}

	results := make([]ScoredChunk, 0, len(env.Result))
	for _, hit := range env.Result {
		content, _ := hit.Payload["content"].(string)
		id, _ := hit.Payload["chunk_id"].(string)
		results = append(results, ScoredChunk{
			Chunk: Chunk{ID: id, Content: content, Metadata: hit.Payload},
			Score: hit.Score,
		})
	}
	return results, nil
}

func (q *QdrantIndex) do(ctx context.Context, method, path string, body any) ([]byte, int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, 0, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, q.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if q.APIKey != "" {
		req.Header.Set("api-key", q.APIKey)
	}

	resp, err := q.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("qdrant request: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	return raw, resp.StatusCode, nil
}

var _ KnowledgeIndex = (*QdrantIndex)(nil)
