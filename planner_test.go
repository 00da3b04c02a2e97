package agent

import (
	"strings"
	"testing"
)

func TestParseProposalFinal(t *testing.T) {
	p, err := parseProposal(`{"action": "final", "answer": "all done"}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if p.FinalAnswer != "all done" || len(p.Calls) != 0 {
		t.Fatalf("unexpected proposal: %+v", p)
	}
}

func TestParseProposalToolCalls(t *testing.T) {
	p, err := parseProposal(`{"action": "tool_calls", "calls": [
		{"tool_name": "sql_query", "arguments": {"question": "total sales"}},
		{"tool_name": "web_search", "arguments": {"query": "weather"}}
	]}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(p.Calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(p.Calls))
	}
	if p.Calls[0].Name != "sql_query" || p.Calls[0].Arguments["question"] != "total sales" {
		t.Fatalf("unexpected first call: %+v", p.Calls[0])
	}
}

func TestParseProposalEmptyCallsIsError(t *testing.T) {
	if _, err := parseProposal(`{"action": "tool_calls", "calls": []}`); err == nil {
		t.Fatal("expected error for empty calls list")
	}
}

func TestParseProposalNilArgumentsNormalized(t *testing.T) {
	p, err := parseProposal(`{"action": "tool_calls", "calls": [{"tool_name": "x"}]}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if p.Calls[0].Arguments == nil {
		t.Fatal("expected non-nil arguments map")
	}
}

func TestParseProposalRawTextBecomesFinal(t *testing.T) {
	p, err := parseProposal("The answer, plainly, is 42.")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if p.FinalAnswer != "The answer, plainly, is 42." {
		t.Fatalf("unexpected fallback: %q", p.FinalAnswer)
	}
}

func TestParseProposalUnknownActionFallsBack(t *testing.T) {
	raw := `{"action": "ponder", "answer": "hm"}`
	p, err := parseProposal(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if p.FinalAnswer != raw {
		t.Fatalf("expected raw reply as final answer, got %q", p.FinalAnswer)
	}
}

func TestExtractJSONFromFence(t *testing.T) {
	raw := "Here you go:\n```json\n{\"action\": \"final\", \"answer\": \"hi\"}\n```\nthanks"
	got := extractJSON(raw)
	if got != `{"action": "final", "answer": "hi"}` {
		t.Fatalf("unexpected extraction: %q", got)
	}
}

func TestExtractJSONNestedBraces(t *testing.T) {
	raw := `prefix {"a": {"b": "close: }"}, "c": 1} suffix`
	got := extractJSON(raw)
	if got != `{"a": {"b": "close: }"}, "c": 1}` {
		t.Fatalf("unexpected extraction: %q", got)
	}
}

func TestExtractJSONNone(t *testing.T) {
	if got := extractJSON("no json here"); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}

func TestBuildStepPromptIncludesSpecsAndTranscript(t *testing.T) {
	p := &planner{systemPrompt: defaultSystemPrompt}
	tr := &Transcript{}
	tr.append(Turn{Kind: TurnUser, Content: "how many orders?"})

	prompt := p.buildStepPrompt("how many orders?", tr, []ToolSpec{{
		Name:        "sql_query",
		Description: "query the database",
		InputSchema: map[string]any{"type": "object"},
	}})

	for _, want := range []string{"sql_query", "query the database", "how many orders?", "DECISION PROTOCOL"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q", want)
		}
	}
}
