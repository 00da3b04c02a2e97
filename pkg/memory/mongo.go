package memory

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/querypilot/agent/pkg/embed"
)

// MongoIndex implements KnowledgeIndex over a MongoDB collection with an
// Atlas vector-search index for semantic mode and a text index for keyword
// mode.
type MongoIndex struct {
	Collection  *mongo.Collection
	VectorIndex string
	embedder    embed.Embedder
}

func NewMongoIndex(ctx context.Context, uri, database, collection string, embedder embed.Embedder) (*MongoIndex, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	if embedder == nil {
		embedder = embed.DummyEmbedder{}
	}
	return &MongoIndex{
		Collection:  client.Database(database).Collection(collection),
		VectorIndex: "vector_index",
		embedder:    embedder,
	}, nil
}

type mongoChunk struct {
	ID        string         `bson:"_id"`
	Content   string         `bson:"content"`
	Metadata  map[string]any `bson:"metadata,omitempty"`
	Embedding []float32      `bson:"embedding"`
}

func (m *MongoIndex) Ingest(ctx context.Context, chunks []Chunk) (int, error) {
	docs := make([]any, 0, len(chunks))
	for _, chunk := range chunks {
		if strings.TrimSpace(chunk.Content) == "" {
			continue
		}
		if len(chunk.Embedding) == 0 {
			vec, err := m.embedder.Embed(ctx, chunk.Content)
			if err != nil {
				return 0, fmt.Errorf("embed chunk %s: %w", chunk.ID, err)
			}
			chunk.Embedding = vec
		}
		docs = append(docs, mongoChunk{
			ID:        chunk.ID,
			Content:   chunk.Content,
			Metadata:  chunk.Metadata,
			Embedding: chunk.Embedding,
		})
	}
	if len(docs) == 0 {
		return 0, nil
	}

	res, err := m.Collection.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return 0, fmt.Errorf("insert chunks: %w", err)
	}
	if res == nil {
		return 0, nil
	}
	return len(res.InsertedIDs), nil
}

func (m *MongoIndex) Count(ctx context.Context) (int, error) {
	count, err := m.Collection.CountDocuments(ctx, bson.D{})
	return int(count), err
}

func (m *MongoIndex) Query(ctx context.Context, text string, mode QueryMode, limit int) ([]ScoredChunk, error) {
	if limit <= 0 {
		limit = 5
	}
	switch mode {
	case ModeKeyword:
		return m.keywordSearch(ctx, text, limit)
	case ModeSemantic:
		return m.semanticSearch(ctx, text, limit)
	case ModeHybrid, "":
		keyword, err := m.keywordSearch(ctx, text, 2*limit)
		if err != nil {
			return nil, err
		}
		semantic, err := m.semanticSearch(ctx, text, 2*limit)
		if err != nil {
			return nil, err
		}
		return mergeScored(keyword, semantic, limit), nil
	default:
		return nil, fmt.Errorf("unknown query mode %q", mode)
	}
}

func (m *MongoIndex) keywordSearch(ctx context.Context, text string, limit int) ([]ScoredChunk, error) {
	filter := bson.D{{Key: "$text", Value: bson.D{{Key: "$search", Value: text}}}}
	opts := options.Find().
		SetProjection(bson.D{
			{Key: "content", Value: 1},
			{Key: "metadata", Value: 1},
			{Key: "score", Value: bson.D{{Key: "$meta", Value: "textScore"}}},
		}).
		SetSort(bson.D{{Key: "score", Value: bson.D{{Key: "$meta", Value: "textScore"}}}}).
		SetLimit(int64(limit))

	cursor, err := m.Collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("text search: %w", err)
	}
	return decodeScored(ctx, cursor)
}

func (m *MongoIndex) semanticSearch(ctx context.Context, text string, limit int) ([]ScoredChunk, error) {
	queryVec, err := m.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	pipeline := mongo.Pipeline{
		{{Key: "$vectorSearch", Value: bson.D{
			{Key: "index", Value: m.VectorIndex},
			{Key: "path", Value: "embedding"},
			{Key: "queryVector", Value: queryVec},
			{Key: "numCandidates", Value: limit * 10},
			{Key: "limit", Value: limit},
		}}},
		{{Key: "$project", Value: bson.D{
			{Key: "content", Value: 1},
			{Key: "metadata", Value: 1},
			{Key: "score", Value: bson.D{{Key: "$meta", Value: "vectorSearchScore"}}},
		}}},
	}

	cursor, err := m.Collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	return decodeScored(ctx, cursor)
}

func decodeScored(ctx context.Context, cursor *mongo.Cursor) ([]ScoredChunk, error) {
	defer cursor.Close(ctx)

	var results []ScoredChunk
	for cursor.Next(ctx) {
		var doc struct {
			ID       string         `bson:"_id"`
			Content  string         `bson:"content"`
			Metadata map[string]any `bson:"metadata"`
			Score    float64        `bson:"score"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		results = append(results, ScoredChunk{
			Chunk: Chunk{ID: doc.ID, Content: doc.Content, Metadata: doc.Metadata},
			Score: doc.Score,
		})
	}
	return results, cursor.Err()
}

var _ KnowledgeIndex = (*MongoIndex)(nil)
