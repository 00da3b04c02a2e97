package uploads

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
)

var (
	pdfTextPattern   = regexp.MustCompile(`(?s)\((.*?)\)\s*(?:Tj|TJ)`)
	pdfStreamPattern = regexp.MustCompile(`(?i)\n\s*endstream`)
	whitespaceRun    = regexp.MustCompile(`\s+`)
)

// PDFChunker extracts best-effort page-level text from a PDF stream. It
// reads the literal string operands of Tj/TJ show-text operators, which
// covers uncompressed content streams; compressed streams yield nothing.
type PDFChunker struct{}

func (PDFChunker) Chunk(name string, r io.Reader, src Source) ([]DocumentChunk, error) {
	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, r); err != nil {
		return nil, err
	}
	if buf.Len() == 0 {
		return nil, nil
	}

	pages := pdfStreamPattern.Split(buf.String(), -1)
	var chunks []DocumentChunk
	for idx, raw := range pages {
		text := extractPDFText(raw)
		if text == "" {
			continue
		}
		chunk := DocumentChunk{
			ID:       chunkID(name, idx),
			Content:  text,
			Metadata: map[string]any{"chunk_index": idx},
		}
		chunks = append(chunks, chunk.WithProvenance(src, idx+1))
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("pdf %s: no extractable text", name)
	}
	return chunks, nil
}

func extractPDFText(raw string) string {
	matches := pdfTextPattern.FindAllStringSubmatch(raw, -1)
	var buf strings.Builder
	for _, m := range matches {
		text := decodePDFString(m[1])
		if text == "" {
			continue
		}
		if buf.Len() > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(text)
	}
	return normalizeWhitespace(buf.String())
}

// decodePDFString resolves backslash escapes inside a PDF literal string.
func decodePDFString(s string) string {
	var buf strings.Builder
	escaped := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if escaped {
			switch ch {
			case 'n':
				buf.WriteByte('\n')
			case 'r':
				buf.WriteByte('\r')
			case 't':
				buf.WriteByte('\t')
			default:
				buf.WriteByte(ch)
			}
			escaped = false
			continue
		}
		if ch == '\\' {
			escaped = true
			continue
		}
		buf.WriteByte(ch)
	}
	return buf.String()
}

func normalizeWhitespace(text string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ""
	}
	return whitespaceRun.ReplaceAllString(trimmed, " ")
}
