package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/querypilot/agent"
	"github.com/querypilot/agent/pkg/config"
	"github.com/querypilot/agent/pkg/embed"
	"github.com/querypilot/agent/pkg/memory"
	"github.com/querypilot/agent/pkg/tools"
	"github.com/querypilot/agent/pkg/uploads"
)

func docsCmd() *cobra.Command {
	var flags runFlags
	var docURLs []string
	var webSearch bool

	cmd := &cobra.Command{
		Use:   "docs [question]",
		Short: "Answer a question from ingested documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := config.Load()

			model, cfg, err := buildModel(ctx, cfg, flags)
			if err != nil {
				return err
			}

			logger := newLogger()
			embedder := pickEmbedder(cfg)
			index, err := buildIndex(ctx, cfg, embedder)
			if err != nil {
				return err
			}
			gate := memory.NewIngestionGate(index, func(ctx context.Context) (int, error) {
				return ingestURLs(ctx, index, embedder, docURLs)
			}, logger)

			toolset := []agent.Tool{tools.NewKnowledgeSearchTool(gate, index, logger)}
			if webSearch {
				toolset = append(toolset, tools.NewWebSearchTool(cfg.BraveKey, logger))
			}

			a, err := agent.New(agent.Options{
				Model:    model,
				Tools:    toolset,
				MaxSteps: cfg.MaxSteps,
				Logger:   logger,
			})
			if err != nil {
				return err
			}
			return runQuestion(ctx, a, cfg, flags, strings.Join(args, " "))
		},
	}
	addRunFlags(cmd, &flags)
	cmd.Flags().StringArrayVar(&docURLs, "doc", nil, "document URL to ingest (repeatable; pdf or plain text)")
	cmd.Flags().BoolVar(&webSearch, "web", false, "also register the web search tool")
	return cmd
}

func pickEmbedder(cfg config.Config) embed.Embedder {
	switch {
	case cfg.Provider == "ollama":
		if e, err := embed.NewOllamaEmbedder(cfg.OllamaHost, ""); err == nil {
			return e
		}
	case cfg.OpenAIKey != "":
		if e, err := embed.NewOpenAIEmbedder(cfg.OpenAIKey, ""); err == nil {
			return e
		}
	}
	return embed.DummyEmbedder{}
}

// buildIndex picks the strongest configured backend: Qdrant, then Mongo,
// then Postgres, then the in-process index.
func buildIndex(ctx context.Context, cfg config.Config, embedder embed.Embedder) (memory.KnowledgeIndex, error) {
	switch {
	case cfg.QdrantURL != "":
		return memory.NewQdrantIndex(cfg.QdrantURL, cfg.QdrantKey, "querypilot", embedder), nil
	case cfg.MongoURI != "":
		return memory.NewMongoIndex(ctx, cfg.MongoURI, "querypilot", "knowledge", embedder)
	case cfg.DatabaseURL != "":
		return memory.NewPostgresIndex(ctx, cfg.DatabaseURL, embedder)
	default:
		return memory.NewInMemoryIndex(embedder), nil
	}
}

// prepareBackend creates the remote collection or table on backends that
// need the embedding dimension up front.
func prepareBackend(ctx context.Context, index memory.KnowledgeIndex, dims int) error {
	switch backend := index.(type) {
	case *memory.QdrantIndex:
		return backend.EnsureCollection(ctx, dims)
	case *memory.PostgresIndex:
		return backend.CreateSchema(ctx, dims)
	default:
		return nil
	}
}

func ingestURLs(ctx context.Context, index memory.KnowledgeIndex, embedder embed.Embedder, urls []string) (int, error) {
	total := 0
	pipeline := uploads.Pipeline{Embedder: embedder}
	for _, url := range urls {
		docChunks, err := uploads.Fetch(ctx, url)
		if err != nil {
			return total, fmt.Errorf("ingest %s: %w", url, err)
		}
		chunks, failed, err := pipeline.Process(ctx, docChunks)
		if err != nil {
			return total, fmt.Errorf("embed %s: %w", url, err)
		}
		if failed > 0 {
			fmt.Printf("warning: %d chunks from %s failed to embed\n", failed, url)
		}
		if len(chunks) > 0 {
			if err := prepareBackend(ctx, index, len(chunks[0].Embedding)); err != nil {
				return total, fmt.Errorf("prepare index: %w", err)
			}
		}
		added, err := index.Ingest(ctx, chunks)
		total += added
		if err != nil {
			return total, fmt.Errorf("index %s: %w", url, err)
		}
	}
	return total, nil
}
