// Command querypilot runs the tool-augmented query agent from the terminal.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/querypilot/agent"
	"github.com/querypilot/agent/pkg/config"
	"github.com/querypilot/agent/pkg/models"
)

type runFlags struct {
	provider string
	model    string
	stream   bool
	markdown bool
	maxSteps int
	showTool bool
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "querypilot",
		Short:         "Ask questions; the agent picks tools, runs them, and answers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(sqlCmd())
	cmd.AddCommand(docsCmd())
	return cmd
}

func addRunFlags(cmd *cobra.Command, flags *runFlags) {
	cmd.Flags().StringVar(&flags.provider, "provider", "", "model provider (openai, anthropic, gemini, ollama, dummy)")
	cmd.Flags().StringVar(&flags.model, "model", "", "model name, provider default when empty")
	cmd.Flags().BoolVar(&flags.stream, "stream", false, "stream the answer as it is produced")
	cmd.Flags().BoolVar(&flags.markdown, "markdown", true, "render the answer as markdown")
	cmd.Flags().IntVar(&flags.maxSteps, "max-steps", 0, "step budget per request")
	cmd.Flags().BoolVar(&flags.showTool, "show-tools", false, "print tool invocations while streaming")
}

// buildModel merges flags over the environment config and fails fast when
// the selected provider is missing its credential.
func buildModel(ctx context.Context, cfg config.Config, flags runFlags) (models.Agent, config.Config, error) {
	if flags.provider != "" {
		cfg.Provider = flags.provider
	}
	if flags.model != "" {
		cfg.Model = flags.model
	}
	if flags.maxSteps > 0 {
		cfg.MaxSteps = flags.maxSteps
	}
	cfg.Markdown = flags.markdown
	cfg.ShowToolCalls = flags.showTool

	if err := cfg.Validate(); err != nil {
		return nil, cfg, err
	}
	model, err := models.NewLLMProvider(ctx, cfg.Provider, cfg.Model, models.ProviderConfig{
		OpenAIKey:    cfg.OpenAIKey,
		AnthropicKey: cfg.AnthropicKey,
		GeminiKey:    cfg.GeminiKey,
		OllamaHost:   cfg.OllamaHost,
	})
	if err != nil {
		return nil, cfg, err
	}
	return model, cfg, nil
}

func runQuestion(ctx context.Context, a *agent.Agent, cfg config.Config, flags runFlags, question string) error {
	req := agent.Request{
		Instruction:   question,
		MaxSteps:      cfg.MaxSteps,
		Markdown:      cfg.Markdown,
		ShowToolCalls: cfg.ShowToolCalls,
	}

	if flags.stream {
		chunks, err := a.RunStream(ctx, req)
		if err != nil {
			return err
		}
		for chunk := range chunks {
			if chunk.Err != nil {
				return chunk.Err
			}
			fmt.Print(chunk.Delta)
		}
		fmt.Println()
		return nil
	}

	answer, err := a.Run(ctx, req)
	if err != nil {
		return err
	}
	fmt.Println(answer.Text)
	return nil
}

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if os.Getenv("QUERYPILOT_DEBUG") != "" {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
