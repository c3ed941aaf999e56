//
// Tencent is pleased to support the open source community by making fast-graph available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// fast-graph is licensed under the Apache License Version 2.0.
//
//

// Package inmemory provides the in-process checkpoint saver and manager.
package inmemory

import (
	"context"
	"sync"

	"github.com/yyquiet/fast-graph/checkpoint"
)

var (
	_ checkpoint.Saver   = (*Saver)(nil)
	_ checkpoint.Manager = (*Manager)(nil)
)

type namespaceKey struct {
	threadID  string
	namespace string
}

// Saver stores checkpoints in memory, newest last per thread and namespace.
type Saver struct {
	mu          sync.RWMutex
	checkpoints map[namespaceKey][]*checkpoint.Checkpoint
}

// NewSaver creates an in-memory checkpoint saver.
func NewSaver() *Saver {
	return &Saver{checkpoints: make(map[namespaceKey][]*checkpoint.Checkpoint)}
}

// Put appends a checkpoint.
func (s *Saver) Put(ctx context.Context, ckpt *checkpoint.Checkpoint) error {
	key := namespaceKey{threadID: ckpt.ThreadID, namespace: ckpt.Namespace}
	s.mu.Lock()
	s.checkpoints[key] = append(s.checkpoints[key], ckpt)
	s.mu.Unlock()
	return nil
}

// Get returns a checkpoint by id, or the latest one when checkpointID is
// empty. Returns nil when none exists.
func (s *Saver) Get(ctx context.Context, threadID, namespace, checkpointID string) (*checkpoint.Checkpoint, error) {
	key := namespaceKey{threadID: threadID, namespace: namespace}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ckpts := s.checkpoints[key]
	if len(ckpts) == 0 {
		return nil, nil
	}
	if checkpointID == "" {
		return ckpts[len(ckpts)-1], nil
	}
	for i := len(ckpts) - 1; i >= 0; i-- {
		if ckpts[i].ID == checkpointID {
			return ckpts[i], nil
		}
	}
	return nil, nil
}

// List returns all checkpoints for a thread and namespace, newest first.
func (s *Saver) List(ctx context.Context, threadID, namespace string) ([]*checkpoint.Checkpoint, error) {
	key := namespaceKey{threadID: threadID, namespace: namespace}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ckpts := s.checkpoints[key]
	out := make([]*checkpoint.Checkpoint, 0, len(ckpts))
	for i := len(ckpts) - 1; i >= 0; i-- {
		out = append(out, ckpts[i])
	}
	return out, nil
}

// DeleteThread removes all checkpoints for a thread across namespaces.
func (s *Saver) DeleteThread(ctx context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.checkpoints {
		if key.threadID == threadID {
			delete(s.checkpoints, key)
		}
	}
	return nil
}

// Manager wraps a Saver with the manager lifecycle.
type Manager struct {
	saver *Saver
}

// NewManager creates an in-memory checkpoint manager.
func NewManager() *Manager {
	return &Manager{saver: NewSaver()}
}

// Init is a no-op for the in-memory backend.
func (m *Manager) Init(ctx context.Context) error { return nil }

// Saver returns the checkpoint store handle.
func (m *Manager) Saver() checkpoint.Saver { return m.saver }

// Close is a no-op for the in-memory backend.
func (m *Manager) Close() error { return nil }
