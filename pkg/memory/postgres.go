package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/querypilot/agent/pkg/embed"
)

// PostgresIndex implements KnowledgeIndex over Postgres with pgvector for
// semantic search and tsvector ranking for keyword search.
type PostgresIndex struct {
	DB       *pgxpool.Pool
	Table    string
	embedder embed.Embedder
}

func NewPostgresIndex(ctx context.Context, connStr string, embedder embed.Embedder) (*PostgresIndex, error) {
	db, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if embedder == nil {
		embedder = embed.DummyEmbedder{}
	}
	return &PostgresIndex{DB: db, Table: "knowledge_chunks", embedder: embedder}, nil
}

// CreateSchema ensures the pgvector extension and chunk table exist.
// dims must match the embedder's output dimension.
func (p *PostgresIndex) CreateSchema(ctx context.Context, dims int) error {
	ddl := fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;
CREATE TABLE IF NOT EXISTS %s (
        id        TEXT PRIMARY KEY,
        content   TEXT NOT NULL,
        metadata  JSONB NOT NULL DEFAULT '{}',
        embedding VECTOR(%d),
        tsv       TSVECTOR GENERATED ALWAYS AS (to_tsvector('english', content)) STORED
);
CREATE INDEX IF NOT EXISTS %s_tsv_idx ON %s USING GIN (tsv);
`, p.Table, dims, p.Table, p.Table)
	if _, err := p.DB.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (p *PostgresIndex) Ingest(ctx context.Context, chunks []Chunk) (int, error) {
	added := 0
	for _, chunk := range chunks {
		if strings.TrimSpace(chunk.Content) == "" {
			continue
		}
		if len(chunk.Embedding) == 0 {
			vec, err := p.embedder.Embed(ctx, chunk.Content)
			if err != nil {
				return added, fmt.Errorf("embed chunk %s: %w", chunk.ID, err)
			}
			chunk.Embedding = vec
		}
		metaJSON, _ := json.Marshal(chunk.Metadata)
		query := fmt.Sprintf(`
INSERT INTO %s (id, content, metadata, embedding)
VALUES ($1, $2, $3::jsonb, $4::vector)
ON CONFLICT (id) DO NOTHING;`, p.Table)
		tag, err := p.DB.Exec(ctx, query, chunk.ID, chunk.Content, string(metaJSON), vectorLiteral(chunk.Embedding))
		if err != nil {
			return added, fmt.Errorf("insert chunk %s: %w", chunk.ID, err)
		}
		added += int(tag.RowsAffected())
	}
	return added, nil
}

func (p *PostgresIndex) Count(ctx context.Context) (int, error) {
	var count int
	err := p.DB.QueryRow(ctx, fmt.Sprintf("SELECT count(*) FROM %s", p.Table)).Scan(&count)
	return count, err
}

func (p *PostgresIndex) Query(ctx context.Context, text string, mode QueryMode, limit int) ([]ScoredChunk, error) {
	if limit <= 0 {
		limit = 5
	}
	switch mode {
	case ModeKeyword:
		return p.keywordSearch(ctx, text, limit)
	case ModeSemantic:
		return p.semanticSearch(ctx, text, limit)
	case ModeHybrid, "":
		keyword, err := p.keywordSearch(ctx, text, 2*limit)
		if err != nil {
			return nil, err
		}
		semantic, err := p.semanticSearch(ctx, text, 2*limit)
		if err != nil {
			return nil, err
		}
		return mergeScored(keyword, semantic, limit), nil
	default:
		return nil, fmt.Errorf("unknown query mode %q", mode)
	}
}

func (p *PostgresIndex) keywordSearch(ctx context.Context, text string, limit int) ([]ScoredChunk, error) {
	query := fmt.Sprintf(`
SELECT id, content, metadata, ts_rank(tsv, websearch_to_tsquery('english', $1)) AS score
FROM %s
WHERE tsv @@ websearch_to_tsquery('english', $1)
ORDER BY score DESC
LIMIT $2;`, p.Table)
	return p.scanScored(ctx, query, text, limit)
}

func (p *PostgresIndex) semanticSearch(ctx context.Context, text string, limit int) ([]ScoredChunk, error) {
	queryVec, err := p.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	// Cosine distance flipped into a similarity so higher is better.
	query := fmt.Sprintf(`
SELECT id, content, metadata, 1 - (embedding <=> $1::vector) AS score
FROM %s
ORDER BY embedding <=> $1::vector
LIMIT $2;`, p.Table)
	return p.scanScored(ctx, query, vectorLiteral(queryVec), limit)
}

func (p *PostgresIndex) scanScored(ctx context.Context, query string, arg any, limit int) ([]ScoredChunk, error) {
	rows, err := p.DB.Query(ctx, query, arg, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []ScoredChunk
	for rows.Next() {
		var sc ScoredChunk
		var metaJSON []byte
		if err := rows.Scan(&sc.ID, &sc.Content, &metaJSON, &sc.Score); err != nil {
			return nil, err
		}
		if len(metaJSON) > 0 {
			_ = json.Unmarshal(metaJSON, &sc.Metadata)
		}
		results = append(results, sc)
	}
	return results, rows.Err()
}

// Close releases the underlying connection pool.
func (p *PostgresIndex) Close() {
	if p != nil && p.DB != nil {
		p.DB.Close()
	}
}

// vectorLiteral renders a pgvector input literal, e.g. "[0.1,0.2]".
func vectorLiteral(vec []float32) string {
	parts := make([]string, len(vec))
	for i, v := range vec {
		parts[i] = fmt.Sprintf("%g", v)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

var _ KnowledgeIndex = (*PostgresIndex)(nil)
