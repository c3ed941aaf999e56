//
// Tencent is pleased to support the open source community by making fast-graph available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// fast-graph is licensed under the Apache License Version 2.0.
//
//

package graph

import (
	"fmt"
	"sync"
)

// Registry maps graph ids to graph definitions. It is constructed explicitly
// and passed down; there is no process-wide instance.
type Registry struct {
	mu     sync.RWMutex
	graphs map[string]Graph
}

// NewRegistry creates an empty graph registry.
func NewRegistry() *Registry {
	return &Registry{graphs: make(map[string]Graph)}
}

// Register adds or overwrites a graph definition. Idempotent.
func (r *Registry) Register(graphID string, g Graph) {
	r.mu.Lock()
	r.graphs[graphID] = g
	r.mu.Unlock()
}

// Get returns a freshly compiled instance of the registered definition, or
// nil when the id is unregistered. Recompiling on every retrieval guarantees
// no state bleeds between concurrent runs against the same graph id.
func (r *Registry) Get(graphID string) (CompiledGraph, error) {
	r.mu.RLock()
	g, ok := r.graphs[graphID]
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	compiled, err := g.Compile()
	if err != nil {
		return nil, fmt.Errorf("compile graph %s: %w", graphID, err)
	}
	return compiled, nil
}

// IDs returns the registered graph ids.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.graphs))
	for id := range r.graphs {
		ids = append(ids, id)
	}
	return ids
}
