package agent

import (
	"context"
	"fmt"
	"log/slog"
)

// Dispatcher maps a proposed tool name and arguments to an executable call.
// Unknown names and schema-violating arguments are rejected before the
// capability runs; the error comes back as a structured result the model can
// read and correct on its next step.
type Dispatcher struct {
	catalog ToolCatalog
	logger  *slog.Logger
}

// NewDispatcher wires a dispatcher to a catalog.
func NewDispatcher(catalog ToolCatalog, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{catalog: catalog, logger: logger}
}

// Dispatch executes one proposed call and always returns a result; failures
// are carried in the result rather than raised, so the loop can feed them
// back into the transcript. A tool's own failure is retried once before it
// surfaces as tool_execution_failed.
func (d *Dispatcher) Dispatch(ctx context.Context, runID string, call ToolCall) ToolResult {
	tool, spec, ok := d.catalog.Lookup(call.Name)
	if !ok {
		d.logger.Warn("unknown tool proposed", "tool", call.Name)
		return ToolResult{
			Name:    call.Name,
			Content: fmt.Sprintf("unknown tool %q; available tools are listed in your instructions", call.Name),
			IsError: true,
			Kind:    KindUnknownTool,
		}
	}

	if err := validateArguments(spec.InputSchema, call.Arguments); err != nil {
		d.logger.Warn("tool arguments rejected", "tool", spec.Name, "error", err)
		return ToolResult{
			Name:    spec.Name,
			Content: fmt.Sprintf("invalid arguments for %s: %v", spec.Name, err),
			IsError: true,
			Kind:    KindInvalidArguments,
		}
	}

	req := ToolRequest{RunID: runID, Arguments: call.Arguments}
	resp, err := tool.Invoke(ctx, req)
	if err != nil && ctx.Err() == nil {
		d.logger.Debug("tool failed, retrying once", "tool", spec.Name, "error", err)
		resp, err = tool.Invoke(ctx, req)
	}
	if err != nil {
		d.logger.Warn("tool execution failed", "tool", spec.Name, "error", err)
		return ToolResult{
			Name:    spec.Name,
			Content: fmt.Sprintf("%s failed: %v", spec.Name, err),
			IsError: true,
			Kind:    KindToolExecutionFailed,
		}
	}

	return ToolResult{Name: spec.Name, Content: resp.Content}
}
