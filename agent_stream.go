package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/querypilot/agent/pkg/models"
)

// RunStream processes one request and emits the final answer as an ordered,
// finite sequence of text fragments. The loop itself runs exactly as in Run;
// only the final answer is streamed. Cancelling the context stops emission
// mid-stream without rolling back turns already appended.
func (a *Agent) RunStream(ctx context.Context, req Request) (<-chan models.StreamChunk, error) {
	if strings.TrimSpace(req.Instruction) == "" {
		return nil, newFailure(KindInvalidArguments, fmt.Errorf("instruction is empty"), nil)
	}

	out := make(chan models.StreamChunk)
	go func() {
		defer close(out)

		answer, err := a.Run(ctx, req)
		if err != nil {
			emit(ctx, out, models.StreamChunk{Err: err, Done: true})
			return
		}

		if req.ShowToolCalls {
			for _, turn := range answer.Transcript {
				if turn.Kind != TurnProposal {
					continue
				}
				for _, call := range turn.Calls {
					notice := fmt.Sprintf("[tool] %s\n", call.Name)
					if !emit(ctx, out, models.StreamChunk{Delta: notice}) {
						return
					}
				}
			}
		}

		var sb strings.Builder
		for i, word := range strings.Fields(answer.Text) {
			if i > 0 {
				word = " " + word
			}
			sb.WriteString(word)
			if !emit(ctx, out, models.StreamChunk{Delta: word}) {
				return
			}
		}
		emit(ctx, out, models.StreamChunk{Done: true, FullText: sb.String()})
	}()

	return out, nil
}

// emit sends a chunk unless the consumer has gone away.
func emit(ctx context.Context, out chan<- models.StreamChunk, chunk models.StreamChunk) bool {
	select {
	case <-ctx.Done():
		return false
	case out <- chunk:
		return true
	}
}
