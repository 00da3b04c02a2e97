package memory

import (
	"context"
	"testing"
)

func seedIndex(t *testing.T) *InMemoryIndex {
	t.Helper()
	idx := NewInMemoryIndex(nil)
	added, err := idx.Ingest(context.Background(), []Chunk{
		{ID: "refunds", Content: "Refund policy: customers may return laptops within 30 days."},
		{ID: "shipping", Content: "Shipping policy: orders ship within two business days."},
		{ID: "blank", Content: "   "},
	})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if added != 2 {
		t.Fatalf("expected 2 chunks ingested, got %d", added)
	}
	return idx
}

func TestInMemoryKeywordQuery(t *testing.T) {
	idx := seedIndex(t)

	results, err := idx.Query(context.Background(), "refund policy for laptops", ModeKeyword, 5)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected keyword results")
	}
	if results[0].ID != "refunds" {
		t.Fatalf("expected refunds chunk first, got %q", results[0].ID)
	}
}

func TestInMemoryHybridQuery(t *testing.T) {
	idx := seedIndex(t)

	results, err := idx.Query(context.Background(), "Shipping policy: orders ship within two business days.", ModeHybrid, 5)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected hybrid results")
	}
	if results[0].ID != "shipping" {
		t.Fatalf("expected shipping chunk first, got %q", results[0].ID)
	}
}

func TestInMemoryQueryLimit(t *testing.T) {
	idx := seedIndex(t)

	results, err := idx.Query(context.Background(), "policy", ModeKeyword, 1)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
}

func TestInMemoryUnknownMode(t *testing.T) {
	idx := seedIndex(t)
	if _, err := idx.Query(context.Background(), "policy", QueryMode("fuzzy"), 5); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestInMemoryCount(t *testing.T) {
	idx := seedIndex(t)
	count, err := idx.Count(context.Background())
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 chunks, got %d", count)
	}
}
