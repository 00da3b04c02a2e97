package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// scriptedModel returns its replies in order, repeating the last one.
type scriptedModel struct {
	replies []string
	calls   atomic.Int32
	prompts []string
}

func (m *scriptedModel) Generate(_ context.Context, prompt string) (string, error) {
	n := int(m.calls.Add(1)) - 1
	m.prompts = append(m.prompts, prompt)
	if n >= len(m.replies) {
		n = len(m.replies) - 1
	}
	return m.replies[n], nil
}

type erroringModel struct{}

func (erroringModel) Generate(context.Context, string) (string, error) {
	return "", errors.New("service unavailable")
}

// spyTool records invocations and plays back a fixed response.
type spyTool struct {
	name     string
	schema   map[string]any
	reply    string
	failures int
	delay    time.Duration
	invoked  atomic.Int32
	lastArgs map[string]any
}

func (s *spyTool) Spec() ToolSpec {
	return ToolSpec{Name: s.name, Description: "test tool", InputSchema: s.schema}
}

func (s *spyTool) Invoke(ctx context.Context, req ToolRequest) (ToolResponse, error) {
	n := s.invoked.Add(1)
	s.lastArgs = req.Arguments
	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return ToolResponse{}, ctx.Err()
		case <-time.After(s.delay):
		}
	}
	if int(n) <= s.failures {
		return ToolResponse{}, errors.New("transient failure")
	}
	return ToolResponse{Content: s.reply}, nil
}

func toolCallReply(calls ...string) string {
	return `{"action": "tool_calls", "calls": [` + strings.Join(calls, ",") + `]}`
}

func simpleCall(name string) string {
	return fmt.Sprintf(`{"tool_name": %q, "arguments": {}}`, name)
}

func newTestAgent(t *testing.T, model *scriptedModel, tools ...Tool) *Agent {
	t.Helper()
	a, err := New(Options{Model: model, Tools: tools})
	if err != nil {
		t.Fatalf("new agent: %v", err)
	}
	return a
}

func TestRunDirectFinalAnswer(t *testing.T) {
	model := &scriptedModel{replies: []string{`{"action": "final", "answer": "The answer is 4."}`}}
	a := newTestAgent(t, model)

	answer, err := a.Run(context.Background(), Request{Instruction: "what is 2+2?"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if answer.Text != "The answer is 4." {
		t.Fatalf("unexpected answer: %q", answer.Text)
	}
	if answer.State != RunCompleted {
		t.Fatalf("expected completed state, got %v", answer.State)
	}
	if answer.Steps != 1 {
		t.Fatalf("expected 1 step, got %d", answer.Steps)
	}
	last := answer.Transcript[len(answer.Transcript)-1]
	if last.Kind != TurnFinalAnswer {
		t.Fatalf("expected final answer as last turn, got %v", last.Kind)
	}
}

func TestRunToolCallThenFinal(t *testing.T) {
	tool := &spyTool{name: "lookup", reply: "the capital is Paris"}
	model := &scriptedModel{replies: []string{
		toolCallReply(simpleCall("lookup")),
		`{"action": "final", "answer": "Paris."}`,
	}}
	a := newTestAgent(t, model, tool)

	answer, err := a.Run(context.Background(), Request{Instruction: "capital of France?"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if tool.invoked.Load() != 1 {
		t.Fatalf("expected 1 invocation, got %d", tool.invoked.Load())
	}

	kinds := make([]TurnKind, len(answer.Transcript))
	for i, turn := range answer.Transcript {
		kinds[i] = turn.Kind
	}
	want := []TurnKind{TurnUser, TurnProposal, TurnToolResult, TurnFinalAnswer}
	if len(kinds) != len(want) {
		t.Fatalf("unexpected transcript length: %v", kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("turn %d: expected %v, got %v", i, want[i], kinds[i])
		}
	}

	// the tool result must be visible to the next planning step
	if len(model.prompts) < 2 || !strings.Contains(model.prompts[1], "the capital is Paris") {
		t.Fatal("expected tool result in the second step prompt")
	}
}

func TestRunStepBudgetExceeded(t *testing.T) {
	tool := &spyTool{name: "lookup", reply: "more data"}
	model := &scriptedModel{replies: []string{toolCallReply(simpleCall("lookup"))}}
	a := newTestAgent(t, model, tool)

	_, err := a.Run(context.Background(), Request{Instruction: "loop forever", MaxSteps: 3})
	if err == nil {
		t.Fatal("expected step budget failure")
	}
	if FailureKind(err) != KindStepBudgetExceeded {
		t.Fatalf("expected step_budget_exceeded, got %v", FailureKind(err))
	}
	if got := model.calls.Load(); got != 3 {
		t.Fatalf("expected exactly 3 planning steps, got %d", got)
	}

	var failure *Failure
	if !errors.As(err, &failure) {
		t.Fatalf("expected *Failure, got %T", err)
	}
	for _, turn := range failure.Transcript {
		if turn.Kind == TurnFinalAnswer {
			t.Fatal("budget-exceeded transcript must not contain a final answer")
		}
	}
}

func TestUnknownToolIsNeverInvoked(t *testing.T) {
	tool := &spyTool{name: "lookup", reply: "data"}
	model := &scriptedModel{replies: []string{
		toolCallReply(simpleCall("does_not_exist")),
		`{"action": "final", "answer": "giving up"}`,
	}}
	a := newTestAgent(t, model, tool)

	answer, err := a.Run(context.Background(), Request{Instruction: "use a bad tool"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if tool.invoked.Load() != 0 {
		t.Fatalf("registered tool must not run, got %d invocations", tool.invoked.Load())
	}

	var errorTurn *Turn
	for i := range answer.Transcript {
		if answer.Transcript[i].Kind == TurnToolResult {
			errorTurn = &answer.Transcript[i]
		}
	}
	if errorTurn == nil || !errorTurn.IsError {
		t.Fatal("expected an error tool-result turn for the unknown tool")
	}
	if !strings.Contains(errorTurn.Content, "unknown tool") {
		t.Fatalf("unexpected error content: %q", errorTurn.Content)
	}
}

func TestInvalidArgumentsRejectedBeforeInvoke(t *testing.T) {
	tool := &spyTool{
		name: "lookup",
		schema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"query": map[string]any{"type": "string"}},
			"required":   []any{"query"},
		},
		reply: "data",
	}
	model := &scriptedModel{replies: []string{
		toolCallReply(simpleCall("lookup")), // missing required "query"
		`{"action": "final", "answer": "done"}`,
	}}
	a := newTestAgent(t, model, tool)

	answer, err := a.Run(context.Background(), Request{Instruction: "bad args"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if tool.invoked.Load() != 0 {
		t.Fatalf("tool must not run on invalid arguments, got %d invocations", tool.invoked.Load())
	}
	found := false
	for _, turn := range answer.Transcript {
		if turn.Kind == TurnToolResult && turn.IsError && strings.Contains(turn.Content, "missing required argument") {
			found = true
		}
	}
	if !found {
		t.Fatal("expected invalid-arguments tool result in transcript")
	}
}

func TestToolFailureRetriedOnce(t *testing.T) {
	tool := &spyTool{name: "lookup", reply: "recovered", failures: 1}
	model := &scriptedModel{replies: []string{
		toolCallReply(simpleCall("lookup")),
		`{"action": "final", "answer": "ok"}`,
	}}
	a := newTestAgent(t, model, tool)

	answer, err := a.Run(context.Background(), Request{Instruction: "flaky tool"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if tool.invoked.Load() != 2 {
		t.Fatalf("expected retry to run the tool twice, got %d", tool.invoked.Load())
	}
	for _, turn := range answer.Transcript {
		if turn.Kind == TurnToolResult {
			if turn.IsError {
				t.Fatalf("expected retried call to succeed, got error: %q", turn.Content)
			}
			if turn.Content != "recovered" {
				t.Fatalf("unexpected tool result: %q", turn.Content)
			}
		}
	}
}

func TestToolFailureSurfacesAfterRetry(t *testing.T) {
	tool := &spyTool{name: "lookup", reply: "never", failures: 10}
	model := &scriptedModel{replies: []string{
		toolCallReply(simpleCall("lookup")),
		`{"action": "final", "answer": "gave up"}`,
	}}
	a := newTestAgent(t, model, tool)

	answer, err := a.Run(context.Background(), Request{Instruction: "broken tool"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if tool.invoked.Load() != 2 {
		t.Fatalf("expected exactly one retry, got %d invocations", tool.invoked.Load())
	}
	found := false
	for _, turn := range answer.Transcript {
		if turn.Kind == TurnToolResult && turn.IsError {
			found = true
		}
	}
	if !found {
		t.Fatal("expected error tool result after exhausted retry")
	}
}

func TestParallelResultsKeepProposalOrder(t *testing.T) {
	slow := &spyTool{name: "slow", reply: "slow result", delay: 50 * time.Millisecond}
	fast := &spyTool{name: "fast", reply: "fast result"}
	model := &scriptedModel{replies: []string{
		toolCallReply(simpleCall("slow"), simpleCall("fast")),
		`{"action": "final", "answer": "done"}`,
	}}
	a := newTestAgent(t, model, slow, fast)

	answer, err := a.Run(context.Background(), Request{Instruction: "race"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	var results []string
	for _, turn := range answer.Transcript {
		if turn.Kind == TurnToolResult {
			results = append(results, turn.ToolName)
		}
	}
	if len(results) != 2 || results[0] != "slow" || results[1] != "fast" {
		t.Fatalf("results must follow proposal order, got %v", results)
	}
}

func TestRunEmptyInstruction(t *testing.T) {
	model := &scriptedModel{replies: []string{`{"action": "final", "answer": "x"}`}}
	a := newTestAgent(t, model)

	_, err := a.Run(context.Background(), Request{Instruction: "   "})
	if FailureKind(err) != KindInvalidArguments {
		t.Fatalf("expected invalid_arguments, got %v", FailureKind(err))
	}
}

func TestRunCancelledContext(t *testing.T) {
	model := &scriptedModel{replies: []string{`{"action": "final", "answer": "x"}`}}
	a := newTestAgent(t, model)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := a.Run(ctx, Request{Instruction: "anything"})
	if FailureKind(err) != KindCancelled {
		t.Fatalf("expected cancelled, got %v", FailureKind(err))
	}
}

func TestRunUpstreamUnavailable(t *testing.T) {
	a, err := New(Options{Model: erroringModel{}})
	if err != nil {
		t.Fatalf("new agent: %v", err)
	}
	_, err = a.Run(context.Background(), Request{Instruction: "hello"})
	if FailureKind(err) != KindUpstreamUnavailable {
		t.Fatalf("expected upstream_unavailable, got %v", FailureKind(err))
	}
}

func TestNewRequiresModel(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Fatal("expected error without a model")
	}
}

func TestProtocolFallbackPlainText(t *testing.T) {
	model := &scriptedModel{replies: []string{"I simply refuse to emit JSON."}}
	a := newTestAgent(t, model)

	answer, err := a.Run(context.Background(), Request{Instruction: "talk to me"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if answer.Text != "I simply refuse to emit JSON." {
		t.Fatalf("expected raw text as final answer, got %q", answer.Text)
	}
}
