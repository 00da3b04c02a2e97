package memory

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"
)

// GateStatus reports what EnsureLoaded found.
type GateStatus int

const (
	// StatusReady: the index holds at least one chunk.
	StatusReady GateStatus = iota
	// StatusEmpty: ingestion produced no chunks; retrieval runs degraded.
	StatusEmpty
)

func (s GateStatus) String() string {
	if s == StatusReady {
		return "ready"
	}
	return "empty_index_warning"
}

// Loader performs the one-time ingestion for an index and reports how many
// chunks were added.
type Loader func(ctx context.Context) (int, error)

// IngestionGate guards the one-time population of a KnowledgeIndex.
// Concurrent EnsureLoaded calls collapse into a single ingestion attempt,
// and an unreachable source or a zero-chunk corpus marks the index empty
// rather than failing the run.
type IngestionGate struct {
	index  KnowledgeIndex
	loader Loader
	logger *slog.Logger

	group  singleflight.Group
	mu     sync.Mutex
	done   bool
	status GateStatus
}

func NewIngestionGate(index KnowledgeIndex, loader Loader, logger *slog.Logger) *IngestionGate {
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestionGate{index: index, loader: loader, logger: logger}
}

// EnsureLoaded runs ingestion at most once per gate lifetime and returns the
// resulting status. Every later call returns the cached status.
func (g *IngestionGate) EnsureLoaded(ctx context.Context) (GateStatus, error) {
	if g.index == nil {
		return StatusEmpty, errors.New("ingestion gate has no index")
	}

	g.mu.Lock()
	if g.done {
		status := g.status
		g.mu.Unlock()
		return status, nil
	}
	g.mu.Unlock()

	result, err, _ := g.group.Do("ingest", func() (any, error) {
		return g.load(ctx), nil
	})
	if err != nil {
		return StatusEmpty, err
	}

	status := result.(GateStatus)
	g.mu.Lock()
	g.done = true
	g.status = status
	g.mu.Unlock()
	return status, nil
}

func (g *IngestionGate) load(ctx context.Context) GateStatus {
	if count, err := g.index.Count(ctx); err == nil && count > 0 {
		g.logger.Debug("knowledge index already populated", "chunks", count)
		return StatusReady
	}

	if g.loader == nil {
		g.logger.Warn("knowledge index empty and no loader configured; continuing without knowledge")
		return StatusEmpty
	}

	added, err := g.loader(ctx)
	if err != nil {
		// Degraded mode: the run continues on whatever other tools exist.
		g.logger.Warn("knowledge ingestion failed; continuing without knowledge", "error", err)
		return StatusEmpty
	}
	if added == 0 {
		g.logger.Warn("knowledge ingestion added 0 documents; continuing without knowledge")
		return StatusEmpty
	}

	g.logger.Info("knowledge index populated", "chunks", added)
	return StatusReady
}
