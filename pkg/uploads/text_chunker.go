package uploads

import (
	"io"
	"strings"
)

// TextChunker splits plain text on word boundaries into windows of
// MaxWords with Overlap words of shared context between neighbours.
type TextChunker struct {
	MaxWords int
	Overlap  int
}

func (t TextChunker) Chunk(name string, r io.Reader, src Source) ([]DocumentChunk, error) {
	maxWords := t.MaxWords
	if maxWords <= 0 {
		maxWords = 200
	}
	overlap := t.Overlap
	if overlap < 0 || overlap >= maxWords {
		overlap = maxWords / 5
	}

	buf := new(strings.Builder)
	if _, err := io.Copy(buf, r); err != nil {
		return nil, err
	}
	words := strings.Fields(buf.String())
	if len(words) == 0 {
		return nil, nil
	}

	var chunks []DocumentChunk
	step := maxWords - overlap
	for start, idx := 0, 0; start < len(words); start, idx = start+step, idx+1 {
		end := start + maxWords
		if end > len(words) {
			end = len(words)
		}
		chunk := DocumentChunk{
			ID:       chunkID(name, idx),
			Content:  strings.Join(words[start:end], " "),
			Metadata: map[string]any{"chunk_index": idx},
		}
		chunks = append(chunks, chunk.WithProvenance(src, 0))
		if end == len(words) {
			break
		}
	}
	return chunks, nil
}
