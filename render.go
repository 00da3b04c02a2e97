package agent

import (
	"fmt"
	"strings"
)

// Renderer turns the model's final answer into the caller's requested output
// mode. Rendering is a single idempotent step decoupled from the run: when
// the requested mode fails, the controller retries once with the plain
// renderer instead of rebuilding the agent.
type Renderer interface {
	Render(text string) (string, error)
}

// MarkdownRenderer passes markdown through after checking that the document
// is well formed enough to display: balanced code fences and no dangling
// table separators. Violations surface as an error so the controller can
// fall back to plain text.
type MarkdownRenderer struct{}

func (MarkdownRenderer) Render(text string) (string, error) {
	if strings.Count(text, "```")%2 != 0 {
		return "", fmt.Errorf("unbalanced code fence")
	}
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if isTableSeparator(line) && (i == 0 || !strings.Contains(lines[i-1], "|")) {
			return "", fmt.Errorf("table separator without a header row at line %d", i+1)
		}
	}
	return text, nil
}

func isTableSeparator(line string) bool {
	trimmed := strings.TrimSpace(line)
	if len(trimmed) < 3 || !strings.Contains(trimmed, "-") {
		return false
	}
	for _, r := range trimmed {
		switch r {
		case '|', '-', ':', ' ':
		default:
			return false
		}
	}
	return strings.Contains(trimmed, "|")
}

// PlainRenderer strips the common markdown markers and returns bare text.
// It never fails, which makes it the fallback mode.
type PlainRenderer struct{}

func (PlainRenderer) Render(text string) (string, error) {
	var sb strings.Builder
	inFence := false
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			inFence = !inFence
			continue
		}
		if inFence {
			sb.WriteString(line)
			sb.WriteString("\n")
			continue
		}
		line = strings.TrimLeft(line, "#")
		line = strings.ReplaceAll(line, "**", "")
		line = strings.ReplaceAll(line, "`", "")
		sb.WriteString(strings.TrimPrefix(line, " "))
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

// renderFinal renders the answer in the requested mode, falling back to an
// unformatted rendering once when the preferred renderer reports an
// OutputFormatError. Only the render step repeats, never the run.
func (a *Agent) renderFinal(text string, markdown bool) string {
	renderer := a.renderer
	if renderer == nil {
		if markdown {
			renderer = MarkdownRenderer{}
		} else {
			renderer = PlainRenderer{}
		}
	} else if !markdown {
		renderer = PlainRenderer{}
	}

	out, err := renderer.Render(text)
	if err == nil {
		return out
	}

	a.logger.Warn("render failed, falling back to plain text",
		"kind", KindOutputFormatError, "error", err)
	out, _ = PlainRenderer{}.Render(text)
	return out
}
