package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestGateLoadsOnce(t *testing.T) {
	idx := NewInMemoryIndex(nil)
	var loads atomic.Int32
	gate := NewIngestionGate(idx, func(ctx context.Context) (int, error) {
		loads.Add(1)
		return idx.Ingest(ctx, []Chunk{{ID: "a", Content: "alpha beta gamma"}})
	}, nil)

	var wg sync.WaitGroup
	statuses := make([]GateStatus, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			status, err := gate.EnsureLoaded(context.Background())
			if err != nil {
				t.Errorf("EnsureLoaded: %v", err)
			}
			statuses[i] = status
		}(i)
	}
	wg.Wait()

	if got := loads.Load(); got != 1 {
		t.Fatalf("expected exactly one load, got %d", got)
	}
	for _, status := range statuses {
		if status != StatusReady {
			t.Fatalf("expected ready status, got %v", status)
		}
	}
}

func TestGateEmptyCorpusIsDegradedNotFatal(t *testing.T) {
	gate := NewIngestionGate(NewInMemoryIndex(nil), func(context.Context) (int, error) {
		return 0, nil
	}, nil)

	status, err := gate.EnsureLoaded(context.Background())
	if err != nil {
		t.Fatalf("EnsureLoaded: %v", err)
	}
	if status != StatusEmpty {
		t.Fatalf("expected empty status, got %v", status)
	}
}

func TestGateLoaderErrorIsDegradedNotFatal(t *testing.T) {
	gate := NewIngestionGate(NewInMemoryIndex(nil), func(context.Context) (int, error) {
		return 0, errors.New("source unreachable")
	}, nil)

	status, err := gate.EnsureLoaded(context.Background())
	if err != nil {
		t.Fatalf("EnsureLoaded: %v", err)
	}
	if status != StatusEmpty {
		t.Fatalf("expected empty status, got %v", status)
	}
}

func TestGateSkipsLoaderWhenAlreadyPopulated(t *testing.T) {
	idx := NewInMemoryIndex(nil)
	if _, err := idx.Ingest(context.Background(), []Chunk{{ID: "a", Content: "already here"}}); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	called := false
	gate := NewIngestionGate(idx, func(context.Context) (int, error) {
		called = true
		return 0, nil
	}, nil)

	status, err := gate.EnsureLoaded(context.Background())
	if err != nil {
		t.Fatalf("EnsureLoaded: %v", err)
	}
	if status != StatusReady {
		t.Fatalf("expected ready status, got %v", status)
	}
	if called {
		t.Fatal("loader should not run when the index is populated")
	}
}
