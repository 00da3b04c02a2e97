package models

import (
	"context"
	"strings"
	"testing"
)

func TestDummyLLMEchoesLastLine(t *testing.T) {
	model := NewDummyLLM("test:")
	out, err := model.Generate(context.Background(), "first\nsecond\n\n")
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if out != "test: second" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestDummyLLMEmptyPrompt(t *testing.T) {
	model := NewDummyLLM("")
	out, err := model.Generate(context.Background(), "   \n  ")
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if !strings.Contains(out, "<empty prompt>") {
		t.Fatalf("expected empty-prompt marker, got %q", out)
	}
}

func TestDummyLLMStreamAssemblesInOrder(t *testing.T) {
	model := NewDummyLLM("test:")
	ch, err := model.GenerateStream(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("GenerateStream returned error: %v", err)
	}

	var assembled strings.Builder
	var final string
	for chunk := range ch {
		if chunk.Err != nil {
			t.Fatalf("unexpected stream error: %v", chunk.Err)
		}
		assembled.WriteString(chunk.Delta)
		if chunk.Done {
			final = chunk.FullText
		}
	}
	if assembled.String() != final {
		t.Fatalf("deltas %q do not assemble to full text %q", assembled.String(), final)
	}
	if final != "test: hello world" {
		t.Fatalf("unexpected full text: %q", final)
	}
}

func TestNewLLMProviderRejectsUnknown(t *testing.T) {
	if _, err := NewLLMProvider(context.Background(), "nope", "m", ProviderConfig{}); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
}
