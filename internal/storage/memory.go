package storage

import (
	"context"
	"sync"

	"guild-economy/internal/docpath"
)

// MemoryEngine holds the document in process memory. Reads and writes copy
// the document, so callers never share state with the engine.
type MemoryEngine struct {
	mu  sync.RWMutex
	doc docpath.Document
}

// NewMemoryEngine creates an engine seeded with a copy of initial.
func NewMemoryEngine(initial docpath.Document) *MemoryEngine {
	return &MemoryEngine{doc: docpath.CloneDocument(initial)}
}

// Name implements Engine.
func (e *MemoryEngine) Name() string { return "memory" }

// Connect implements Engine.
func (e *MemoryEngine) Connect(ctx context.Context) error { return ctx.Err() }

// ReadAll implements Engine.
func (e *MemoryEngine) ReadAll(ctx context.Context) (docpath.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return docpath.CloneDocument(e.doc), nil
}

// WriteAll implements Engine.
func (e *MemoryEngine) WriteAll(ctx context.Context, doc docpath.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.doc = docpath.CloneDocument(doc)
	return nil
}

// Close implements Engine.
func (e *MemoryEngine) Close() error { return nil }
