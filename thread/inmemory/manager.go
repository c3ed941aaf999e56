//
// Tencent is pleased to support the open source community by making fast-graph available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// fast-graph is licensed under the Apache License Version 2.0.
//
//

// Package inmemory provides the in-process thread manager implementation.
package inmemory

import (
	"context"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yyquiet/fast-graph/errs"
	"github.com/yyquiet/fast-graph/thread"
)

var _ thread.Manager = (*Manager)(nil)

// Manager stores threads in memory. The whole of every operation runs under
// one mutex, so create-or-fetch and lock acquisition stay atomic under
// concurrent callers.
type Manager struct {
	mu      sync.Mutex
	threads map[string]*thread.Thread
	// order preserves creation order for stable search pagination.
	order []string
}

// NewManager creates an in-memory thread manager.
func NewManager() *Manager {
	return &Manager{threads: make(map[string]*thread.Thread)}
}

// Setup is a no-op for the in-memory backend.
func (m *Manager) Setup(ctx context.Context) error { return nil }

// Create creates a thread, or returns the existing one under
// IfExistsDoNothing. The check-and-insert runs under the mutex.
func (m *Manager) Create(ctx context.Context, threadID string, metadata map[string]any, ifExists thread.IfExists) (*thread.Thread, error) {
	if threadID == "" {
		threadID = uuid.New().String()
	}
	if metadata == nil {
		metadata = map[string]any{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.threads[threadID]; ok {
		if ifExists == thread.IfExistsDoNothing {
			return cloneThread(existing), nil
		}
		return nil, errs.Existsf("thread %s already exists", threadID)
	}

	now := time.Now()
	t := &thread.Thread{
		ThreadID:  threadID,
		CreatedAt: now,
		UpdatedAt: now,
		Metadata:  cloneMetadata(metadata),
		Status:    thread.StatusIdle,
	}
	m.threads[threadID] = t
	m.order = append(m.order, threadID)
	return cloneThread(t), nil
}

// Get returns a thread by id.
func (m *Manager) Get(ctx context.Context, threadID string) (*thread.Thread, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.threads[threadID]
	if !ok {
		return nil, errs.NotFoundf("thread %s not found", threadID)
	}
	return cloneThread(t), nil
}

// Search filters threads by ids, metadata equality and status, newest first,
// with offset+limit pagination.
func (m *Manager) Search(ctx context.Context, filter *thread.SearchFilter) ([]*thread.Thread, error) {
	if filter == nil {
		filter = &thread.SearchFilter{}
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 10
	}

	var idSet map[string]struct{}
	if filter.IDs != nil {
		idSet = make(map[string]struct{}, len(filter.IDs))
		for _, id := range filter.IDs {
			idSet[id] = struct{}{}
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var matches []*thread.Thread
	// Newest first to mirror the created_at DESC ordering of the SQL backend.
	for i := len(m.order) - 1; i >= 0; i-- {
		t, ok := m.threads[m.order[i]]
		if !ok {
			continue
		}
		if idSet != nil {
			if _, ok := idSet[t.ThreadID]; !ok {
				continue
			}
		}
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		if !metadataMatches(t.Metadata, filter.Metadata) {
			continue
		}
		matches = append(matches, t)
	}

	if filter.Offset >= len(matches) {
		return nil, nil
	}
	matches = matches[filter.Offset:]
	if len(matches) > limit {
		matches = matches[:limit]
	}
	out := make([]*thread.Thread, len(matches))
	for i, t := range matches {
		out[i] = cloneThread(t)
	}
	return out, nil
}

// Update merges metadata shallowly, replaces status and bumps UpdatedAt.
func (m *Manager) Update(ctx context.Context, threadID string, update *thread.Update) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.threads[threadID]
	if !ok {
		return errs.NotFoundf("thread %s not found", threadID)
	}
	if update != nil {
		if update.Status != "" {
			t.Status = update.Status
		}
		for k, v := range update.Metadata {
			t.Metadata[k] = v
		}
	}
	t.UpdatedAt = time.Now()
	return nil
}

// Delete removes a thread.
func (m *Manager) Delete(ctx context.Context, threadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.threads[threadID]; !ok {
		return errs.NotFoundf("thread %s not found", threadID)
	}
	delete(m.threads, threadID)
	for i, id := range m.order {
		if id == threadID {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

// AcquireLock compare-and-sets status to busy under the mutex.
func (m *Manager) AcquireLock(ctx context.Context, threadID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.threads[threadID]
	if !ok {
		return false, errs.NotFoundf("thread %s not found", threadID)
	}
	if t.Status == thread.StatusBusy {
		return false, nil
	}
	t.Status = thread.StatusBusy
	t.UpdatedAt = time.Now()
	return true, nil
}

// Count returns the number of stored threads. Test helper.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.threads)
}

// metadataMatches compares deeply: decoded JSON values can be maps and
// slices, which == would panic on.
func metadataMatches(metadata, want map[string]any) bool {
	for k, v := range want {
		got, ok := metadata[k]
		if !ok || !reflect.DeepEqual(got, v) {
			return false
		}
	}
	return true
}

func cloneThread(t *thread.Thread) *thread.Thread {
	c := *t
	c.Metadata = cloneMetadata(t.Metadata)
	return &c
}

func cloneMetadata(metadata map[string]any) map[string]any {
	out := make(map[string]any, len(metadata))
	for k, v := range metadata {
		out[k] = v
	}
	return out
}
