//
// Tencent is pleased to support the open source community by making fast-graph available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// fast-graph is licensed under the Apache License Version 2.0.
//
//

// Package assistant provides the directory resolving assistant ids to graph
// ids.
package assistant

import "sync"

// Assistant binds a public assistant id to a registered graph.
type Assistant struct {
	AssistantID string `json:"assistant_id"`
	GraphID     string `json:"graph_id"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
}

// Registry maps assistant ids to assistants. Constructed explicitly and
// passed down; no process-wide instance.
type Registry struct {
	mu         sync.RWMutex
	assistants map[string]*Assistant
}

// NewRegistry creates an empty assistant registry.
func NewRegistry() *Registry {
	return &Registry{assistants: make(map[string]*Assistant)}
}

// Register adds or overwrites an assistant. Idempotent.
func (r *Registry) Register(a *Assistant) {
	r.mu.Lock()
	r.assistants[a.AssistantID] = a
	r.mu.Unlock()
}

// GetByID returns the assistant with the given id.
func (r *Registry) GetByID(assistantID string) (*Assistant, bool) {
	r.mu.RLock()
	a, ok := r.assistants[assistantID]
	r.mu.RUnlock()
	return a, ok
}

// List returns all registered assistants.
func (r *Registry) List() []*Assistant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Assistant, 0, len(r.assistants))
	for _, a := range r.assistants {
		out = append(out, a)
	}
	return out
}
