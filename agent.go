package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/querypilot/agent/pkg/models"
)

const DefaultMaxSteps = 8

// Agent drives a single request from pending to completed or failed,
// mediating between the text-generation service and the registered tools.
type Agent struct {
	model    models.Agent
	catalog  ToolCatalog
	dispatch *Dispatcher
	planner  *planner
	renderer Renderer
	logger   *slog.Logger
	maxSteps int
}

// Options configure a new Agent.
type Options struct {
	// Model is the text-generation service; required.
	Model models.Agent
	// Tools are registered before any request is processed.
	Tools []Tool
	// Catalog overrides the default static catalog.
	Catalog ToolCatalog
	// SystemPrompt replaces the default coordinator prompt.
	SystemPrompt string
	// MaxSteps bounds the loop; DefaultMaxSteps when unset.
	MaxSteps int
	// Renderer overrides the per-request markdown/plain choice.
	Renderer Renderer
	// Logger receives dispatch and render diagnostics.
	Logger *slog.Logger
}

// Request is one immutable user instruction plus its run configuration.
type Request struct {
	Instruction string
	// MaxSteps overrides the agent-level budget for this run when > 0.
	MaxSteps int
	// Markdown requests formatted output; render failures fall back to plain.
	Markdown bool
	// ShowToolCalls includes tool-call notices in streamed output.
	ShowToolCalls bool
}

// FinalAnswer is the successful outcome of a run.
type FinalAnswer struct {
	RunID      string
	Text       string
	Steps      int
	State      RunState
	Transcript []Turn
}

// New creates an Agent with the provided options.
func New(opts Options) (*Agent, error) {
	if opts.Model == nil {
		return nil, errors.New("agent requires a language model")
	}

	catalog := opts.Catalog
	if catalog == nil {
		var err error
		catalog, err = NewStaticToolCatalog()
		if err != nil {
			return nil, err
		}
	}
	for _, tool := range opts.Tools {
		if err := catalog.Register(tool); err != nil {
			return nil, err
		}
	}

	systemPrompt := strings.TrimSpace(opts.SystemPrompt)
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}

	maxSteps := opts.MaxSteps
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Agent{
		model:    opts.Model,
		catalog:  catalog,
		dispatch: NewDispatcher(catalog, logger),
		planner:  &planner{model: opts.Model, systemPrompt: systemPrompt},
		renderer: opts.Renderer,
		logger:   logger,
		maxSteps: maxSteps,
	}, nil
}

// Run processes one request to completion. On success it returns the final
// answer; on failure the error is a *Failure carrying the kind and the
// transcript accumulated so far.
func (a *Agent) Run(ctx context.Context, req Request) (*FinalAnswer, error) {
	if strings.TrimSpace(req.Instruction) == "" {
		return nil, newFailure(KindInvalidArguments, errors.New("instruction is empty"), nil)
	}

	runID := uuid.NewString()
	transcript := &Transcript{}
	transcript.append(Turn{Kind: TurnUser, Content: req.Instruction})

	state := RunPending
	maxSteps := req.MaxSteps
	if maxSteps <= 0 {
		maxSteps = a.maxSteps
	}

	for step := 1; step <= maxSteps; step++ {
		// Cancellation checkpoint between steps; already-appended turns stay.
		if err := ctx.Err(); err != nil {
			state = RunFailed
			return nil, newFailure(KindCancelled, err, transcript)
		}

		proposal, err := a.planner.propose(ctx, req.Instruction, transcript, a.catalog.Specs())
		if err != nil {
			state = RunFailed
			if ctx.Err() != nil {
				return nil, newFailure(KindCancelled, ctx.Err(), transcript)
			}
			return nil, newFailure(KindUpstreamUnavailable, err, transcript)
		}

		if len(proposal.Calls) == 0 {
			text := a.renderFinal(proposal.FinalAnswer, req.Markdown)
			transcript.append(Turn{Kind: TurnFinalAnswer, Content: text})
			state = RunCompleted
			return &FinalAnswer{
				RunID:      runID,
				Text:       text,
				Steps:      step,
				State:      state,
				Transcript: transcript.Turns(),
			}, nil
		}

		transcript.append(Turn{Kind: TurnProposal, Calls: proposal.Calls})
		state = RunAwaitingToolResult

		for _, result := range a.executeCalls(ctx, runID, proposal.Calls) {
			transcript.append(Turn{
				Kind:     TurnToolResult,
				ToolName: result.Name,
				Content:  result.Content,
				IsError:  result.IsError,
			})
		}
		state = RunPending
	}

	return nil, newFailure(KindStepBudgetExceeded,
		fmt.Errorf("no final answer within %d steps", maxSteps), transcript)
}

// executeCalls dispatches one step's invocations concurrently and returns
// the results indexed by proposal order. Transcript order therefore matches
// the order the model proposed, regardless of completion order, and the
// step joins on all invocations before the loop continues.
func (a *Agent) executeCalls(ctx context.Context, runID string, calls []ToolCall) []ToolResult {
	results := make([]ToolResult, len(calls))

	if len(calls) == 1 {
		results[0] = a.dispatch.Dispatch(ctx, runID, calls[0])
		return results
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, call := range calls {
		g.Go(func() error {
			results[i] = a.dispatch.Dispatch(gctx, runID, call)
			return nil
		})
	}
	_ = g.Wait()
	return results
}
