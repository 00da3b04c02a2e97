package embed

import (
	"context"
	"testing"
)

func TestDummyEmbeddingIsDeterministic(t *testing.T) {
	a := DummyEmbedding("hello world")
	b := DummyEmbedding("hello world")
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("embedding not deterministic at dim %d", i)
		}
	}
}

func TestDummyEmbeddingSimilarity(t *testing.T) {
	same := Cosine(DummyEmbedding("thai curry recipe"), DummyEmbedding("thai curry recipe"))
	if same < 0.999 {
		t.Fatalf("identical text should have cosine ~1, got %f", same)
	}
	diff := Cosine(DummyEmbedding("thai curry recipe"), DummyEmbedding("quarterly revenue"))
	if diff >= same {
		t.Fatalf("unrelated text should score below identical text: %f >= %f", diff, same)
	}
}

func TestCosineMismatchedLengths(t *testing.T) {
	if got := Cosine([]float32{1, 0}, []float32{1}); got != 0 {
		t.Fatalf("expected 0 for mismatched lengths, got %f", got)
	}
}

func TestDummyEmbedderImplementsInterface(t *testing.T) {
	var e Embedder = DummyEmbedder{}
	vec, err := e.Embed(context.Background(), "text")
	if err != nil {
		t.Fatalf("Embed returned error: %v", err)
	}
	if len(vec) != 256 {
		t.Fatalf("expected 256 dims, got %d", len(vec))
	}
}
