package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/querypilot/agent/pkg/models"
)

// Proposal is the model's decision for one step: either a final answer or
// one-or-more tool invocations.
type Proposal struct {
	FinalAnswer string
	Calls       []ToolCall
}

// planner presents the instruction, the transcript so far, and the tool
// schemas to the text-generation service, and parses the strict-JSON reply.
type planner struct {
	model        models.Agent
	systemPrompt string
}

const defaultSystemPrompt = "You are a careful assistant that answers user questions, calling the available tools whenever they can supply facts you do not have."

const stepProtocol = `DECISION PROTOCOL:
Respond with ONLY valid JSON. No markdown code blocks, no explanations.

When you can answer the user directly:
{"action": "final", "answer": "<your answer>"}

When you need tool results first:
{"action": "tool_calls", "calls": [{"tool_name": "<exact name>", "arguments": {"param": "value"}}]}

RULES:
1. Tool names and arguments MUST exactly match the declared schemas.
2. Request several calls in one step only when they are independent.
3. Tool results from earlier steps appear in the transcript; do not request
   a call whose result you already have.
4. After a tool error, correct the arguments and try again, or answer with
   what you know.`

func (p *planner) propose(ctx context.Context, instruction string, transcript *Transcript, specs []ToolSpec) (Proposal, error) {
	prompt := p.buildStepPrompt(instruction, transcript, specs)

	raw, err := p.model.Generate(ctx, prompt)
	if err != nil {
		return Proposal{}, err
	}

	return parseProposal(raw)
}

func (p *planner) buildStepPrompt(instruction string, transcript *Transcript, specs []ToolSpec) string {
	var sb strings.Builder
	sb.Grow(4096)

	sb.WriteString(p.systemPrompt)
	sb.WriteString("\n\n")

	if tools := renderToolSpecs(specs); tools != "" {
		sb.WriteString(tools)
		sb.WriteString("\n")
	}

	sb.WriteString("Transcript of this run so far:\n")
	sb.WriteString(transcript.render())

	sb.WriteString("\nUser request:\n")
	sb.WriteString(strings.TrimSpace(instruction))
	sb.WriteString("\n\n")
	sb.WriteString(stepProtocol)
	return sb.String()
}

// renderToolSpecs formats the registered specs into a prompt-friendly block.
func renderToolSpecs(specs []ToolSpec) string {
	if len(specs) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("Available tools:\n")
	for _, spec := range specs {
		sb.WriteString(fmt.Sprintf("- %s: %s\n", spec.Name, spec.Description))
		if len(spec.InputSchema) > 0 {
			if schemaJSON, err := json.Marshal(spec.InputSchema); err == nil {
				sb.WriteString("  Input schema: ")
				sb.Write(schemaJSON)
				sb.WriteString("\n")
			}
		}
	}
	return sb.String()
}

// parseProposal decodes the model's step decision. A reply that carries no
// recognizable JSON object is treated as a direct final answer; models that
// ignore the protocol still produce usable text.
func parseProposal(raw string) (Proposal, error) {
	jsonStr := extractJSON(raw)
	if jsonStr == "" {
		return Proposal{FinalAnswer: strings.TrimSpace(raw)}, nil
	}

	var decision struct {
		Action string     `json:"action"`
		Answer string     `json:"answer"`
		Calls  []ToolCall `json:"calls"`
	}
	if err := json.Unmarshal([]byte(jsonStr), &decision); err != nil {
		return Proposal{FinalAnswer: strings.TrimSpace(raw)}, nil
	}

	switch decision.Action {
	case "final":
		return Proposal{FinalAnswer: decision.Answer}, nil
	case "tool_calls":
		if len(decision.Calls) == 0 {
			return Proposal{}, fmt.Errorf("model proposed tool_calls with an empty calls list")
		}
		for i := range decision.Calls {
			if decision.Calls[i].Arguments == nil {
				decision.Calls[i].Arguments = map[string]any{}
			}
		}
		return Proposal{Calls: decision.Calls}, nil
	default:
		return Proposal{FinalAnswer: strings.TrimSpace(raw)}, nil
	}
}

// extractJSON returns the first balanced top-level JSON object in s, looking
// through markdown fences the model may have wrapped it in.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.Index(s, "```"); idx >= 0 {
		rest := s[idx+3:]
		rest = strings.TrimPrefix(rest, "json")
		if end := strings.Index(rest, "```"); end >= 0 {
			s = rest[:end]
		}
	}

	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
