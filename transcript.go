package agent

import (
	"strconv"
	"strings"
	"time"
)

// TurnKind identifies what a transcript entry records.
type TurnKind int

const (
	// TurnUser is the original instruction that started the run.
	TurnUser TurnKind = iota
	// TurnProposal is a model-generated decision: tool calls to make.
	TurnProposal
	// TurnToolResult is the outcome of a single tool invocation.
	TurnToolResult
	// TurnFinalAnswer closes the run; it is always the last turn.
	TurnFinalAnswer
)

func (k TurnKind) String() string {
	switch k {
	case TurnUser:
		return "user"
	case TurnProposal:
		return "proposal"
	case TurnToolResult:
		return "tool_result"
	case TurnFinalAnswer:
		return "final_answer"
	default:
		return "unknown"
	}
}

// Turn is one entry in a run's transcript.
type Turn struct {
	Kind    TurnKind
	Content string
	// Calls is set on proposal turns.
	Calls []ToolCall
	// ToolName and IsError are set on tool-result turns.
	ToolName string
	IsError  bool
	At       time.Time
}

// ToolCall is a model-proposed invocation of a registered tool.
type ToolCall struct {
	Name      string         `json:"tool_name"`
	Arguments map[string]any `json:"arguments"`
}

// ToolResult is the outcome of dispatching a single ToolCall.
type ToolResult struct {
	Name    string
	Content string
	IsError bool
	Kind    ErrorKind
}

// RunState tracks a single run through the loop. Exactly one exists per
// request and it is owned by the controller.
type RunState int

const (
	RunPending RunState = iota
	RunAwaitingToolResult
	RunCompleted
	RunFailed
)

func (s RunState) String() string {
	switch s {
	case RunPending:
		return "pending"
	case RunAwaitingToolResult:
		return "awaiting_tool_result"
	case RunCompleted:
		return "completed"
	case RunFailed:
		return "failed"
	}
	return "unknown"
}

// Transcript is the append-only record of a run. Turns are never rewritten
// or removed, and tools never see it; only the controller appends.
type Transcript struct {
	turns  []Turn
	sealed bool
}

func (t *Transcript) append(turn Turn) {
	if t.sealed {
		return
	}
	if turn.At.IsZero() {
		turn.At = time.Now()
	}
	t.turns = append(t.turns, turn)
	if turn.Kind == TurnFinalAnswer {
		t.sealed = true
	}
}

// Len reports the number of turns recorded so far.
func (t *Transcript) Len() int { return len(t.turns) }

// Turns returns a copy of the recorded turns.
func (t *Transcript) Turns() []Turn {
	out := make([]Turn, len(t.turns))
	copy(out, t.turns)
	return out
}

// Last returns the most recent turn, if any.
func (t *Transcript) Last() (Turn, bool) {
	if len(t.turns) == 0 {
		return Turn{}, false
	}
	return t.turns[len(t.turns)-1], true
}

// render formats the transcript for inclusion in a model prompt.
func (t *Transcript) render() string {
	if len(t.turns) == 0 {
		return "(empty)\n"
	}
	var sb strings.Builder
	for i, turn := range t.turns {
		switch turn.Kind {
		case TurnProposal:
			names := make([]string, len(turn.Calls))
			for j, call := range turn.Calls {
				names[j] = call.Name
			}
			sb.WriteString(formatTranscriptLine(i, "you requested tools", strings.Join(names, ", ")))
		case TurnToolResult:
			label := "tool " + turn.ToolName
			if turn.IsError {
				label += " (error)"
			}
			sb.WriteString(formatTranscriptLine(i, label, turn.Content))
		default:
			sb.WriteString(formatTranscriptLine(i, turn.Kind.String(), turn.Content))
		}
	}
	return sb.String()
}

func formatTranscriptLine(i int, label, content string) string {
	content = strings.TrimSpace(content)
	// Backticks confuse the fenced-output instructions in the step prompt.
	content = strings.ReplaceAll(content, "`", "'")
	return strconv.Itoa(i+1) + ". [" + label + "] " + content + "\n"
}
