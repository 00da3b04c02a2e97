package uploads

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"
)

const maxFetchBytes = 32 << 20

var fetchClient = &http.Client{Timeout: 60 * time.Second}

// Fetch downloads a document by URL and chunks it with a chunker picked
// from the file extension or Content-Type. Remote PDFs and plain text are
// supported.
func Fetch(ctx context.Context, url string) ([]DocumentChunk, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	resp, err := fetchClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}

	name := path.Base(req.URL.Path)
	src := Source{Name: name, URI: url}
	body := io.LimitReader(resp.Body, maxFetchBytes)

	chunker := pickChunker(name, resp.Header.Get("Content-Type"))
	return chunker.Chunk(name, body, src)
}

func pickChunker(name, contentType string) Chunker {
	if strings.HasSuffix(strings.ToLower(name), ".pdf") || strings.Contains(contentType, "application/pdf") {
		return PDFChunker{}
	}
	return TextChunker{}
}
