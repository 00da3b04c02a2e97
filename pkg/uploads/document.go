package uploads

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"
)

// DocumentChunk is one extracted fragment of an uploaded document, carrying
// provenance metadata so retrieval answers can cite their source.
type DocumentChunk struct {
	ID       string
	Content  string
	Metadata map[string]any
}

// WithProvenance fills in source tracking fields on the metadata map.
func (c DocumentChunk) WithProvenance(source Source, page int) DocumentChunk {
	meta := make(map[string]any, len(c.Metadata)+4)
	for k, v := range c.Metadata {
		meta[k] = v
	}
	if source.Name != "" {
		meta["source"] = source.Name
	}
	if source.URI != "" {
		meta["uri"] = source.URI
	}
	if page > 0 {
		meta["page"] = page
	}
	if _, ok := meta["ingested_at"]; !ok {
		meta["ingested_at"] = time.Now().UTC().Format(time.RFC3339)
	}
	if _, ok := meta["checksum"]; !ok {
		meta["checksum"] = checksum(c.Content)
	}
	c.Metadata = meta
	return c
}

func checksum(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:8])
}

// Source describes where an uploaded document came from.
type Source struct {
	Name string
	URI  string
}

// Chunker splits a document stream into retrievable chunks.
type Chunker interface {
	Chunk(name string, r io.Reader, src Source) ([]DocumentChunk, error)
}

func chunkID(name string, idx int) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "chunk"
	}
	name = strings.NewReplacer(" ", "_", "/", "_").Replace(name)
	return fmt.Sprintf("%s#%d", name, idx)
}
