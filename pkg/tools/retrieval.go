package tools

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/querypilot/agent"
	"github.com/querypilot/agent/pkg/memory"
)

// KnowledgeSearchTool retrieves passages from the ingested document index.
// It runs the ingestion gate before the first query; an empty index turns
// every query into an explicit "no knowledge" answer instead of an error.
type KnowledgeSearchTool struct {
	gate   *memory.IngestionGate
	index  memory.KnowledgeIndex
	limit  int
	logger *slog.Logger
}

func NewKnowledgeSearchTool(gate *memory.IngestionGate, index memory.KnowledgeIndex, logger *slog.Logger) *KnowledgeSearchTool {
	if logger == nil {
		logger = slog.Default()
	}
	return &KnowledgeSearchTool{gate: gate, index: index, limit: 5, logger: logger}
}

func (t *KnowledgeSearchTool) Spec() agent.ToolSpec {
	return agent.ToolSpec{
		Name:        "knowledge_search",
		Description: "Searches the ingested document knowledge base and returns the most relevant passages.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "What to look up in the knowledge base",
				},
				"limit": map[string]any{
					"type":        "integer",
					"description": "Maximum number of passages to return",
				},
			},
			"required":             []any{"query"},
			"additionalProperties": false,
		},
	}
}

func (t *KnowledgeSearchTool) Invoke(ctx context.Context, req agent.ToolRequest) (agent.ToolResponse, error) {
	query, _ := req.Arguments["query"].(string)
	limit := t.limit
	if v, ok := req.Arguments["limit"].(float64); ok && v > 0 {
		limit = int(v)
	}

	status, err := t.gate.EnsureLoaded(ctx)
	if err != nil {
		return agent.ToolResponse{}, fmt.Errorf("knowledge ingestion: %w", err)
	}
	if status == memory.StatusEmpty {
		return agent.ToolResponse{
			Content:  "No knowledge documents are available. Answer from other tools or general knowledge.",
			Metadata: map[string]string{"status": status.String()},
		}, nil
	}

	results, err := t.index.Query(ctx, query, memory.ModeHybrid, limit)
	if err != nil {
		return agent.ToolResponse{}, fmt.Errorf("knowledge query: %w", err)
	}
	if len(results) == 0 {
		return agent.ToolResponse{
			Content:  fmt.Sprintf("No passages matched %q.", query),
			Metadata: map[string]string{"matches": "0"},
		}, nil
	}

	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%d] %s", i+1, strings.TrimSpace(r.Content))
		if src, ok := r.Metadata["source"].(string); ok && src != "" {
			fmt.Fprintf(&b, "\n(source: %s)", src)
		}
	}
	return agent.ToolResponse{
		Content:  b.String(),
		Metadata: map[string]string{"matches": fmt.Sprintf("%d", len(results))},
	}, nil
}

var _ agent.Tool = (*KnowledgeSearchTool)(nil)
