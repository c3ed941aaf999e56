//
// Tencent is pleased to support the open source community by making fast-graph available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// fast-graph is licensed under the Apache License Version 2.0.
//
//

// Package checkpoint defines the checkpoint store attached to compiled
// graphs so execution state survives interruption.
package checkpoint

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DefaultNamespace is the namespace used when none is supplied.
const DefaultNamespace = ""

// Checkpoint is a persisted snapshot of graph execution state at a specific
// point in time.
type Checkpoint struct {
	// ID is the unique identifier for this checkpoint.
	ID string `json:"id"`
	// ThreadID is the thread the checkpoint belongs to.
	ThreadID string `json:"thread_id"`
	// Namespace separates checkpoints of nested sub-executions.
	Namespace string `json:"checkpoint_ns,omitempty"`
	// Timestamp is when the checkpoint was created.
	Timestamp time.Time `json:"ts"`
	// State contains the graph state at checkpoint time.
	State map[string]any `json:"state"`
	// NextNode is the node execution resumes from, empty when the run
	// completed.
	NextNode string `json:"next_node,omitempty"`
	// Step is the step number when the checkpoint was taken.
	Step int `json:"step"`
}

// New creates a checkpoint with a generated ID and timestamp.
func New(threadID, namespace string, state map[string]any) *Checkpoint {
	return &Checkpoint{
		ID:        uuid.New().String(),
		ThreadID:  threadID,
		Namespace: namespace,
		Timestamp: time.Now(),
		State:     state,
	}
}

// Saver defines the interface for checkpoint storage implementations. The
// graph engine consumes it; the server only hands it over.
type Saver interface {
	// Put stores a checkpoint.
	Put(ctx context.Context, ckpt *Checkpoint) error
	// Get retrieves a checkpoint. An empty checkpointID returns the latest
	// checkpoint of the thread and namespace; nil when none exists.
	Get(ctx context.Context, threadID, namespace, checkpointID string) (*Checkpoint, error)
	// List retrieves all checkpoints for a thread and namespace, newest
	// first.
	List(ctx context.Context, threadID, namespace string) ([]*Checkpoint, error)
	// DeleteThread removes all checkpoints for a thread.
	DeleteThread(ctx context.Context, threadID string) error
}

// Manager supplies a checkpoint store handle to graph executions.
type Manager interface {
	// Init performs backend initialization.
	Init(ctx context.Context) error
	// Saver returns the checkpoint store handle.
	Saver() Saver
	// Close releases backend resources.
	Close() error
}
