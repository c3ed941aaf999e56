//
// Tencent is pleased to support the open source community by making fast-graph available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// fast-graph is licensed under the Apache License Version 2.0.
//
//

// Package thread defines the durable execution context for stateful graph
// runs and the manager contract that owns its lifecycle.
package thread

import (
	"context"
	"time"
)

// Status is the lifecycle status of a thread. A thread has exactly one
// status at any time; transitions go only through Manager.Update and
// Manager.AcquireLock.
type Status string

// Thread statuses.
const (
	StatusIdle        Status = "idle"
	StatusBusy        Status = "busy"
	StatusInterrupted Status = "interrupted"
	StatusError       Status = "error"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusIdle, StatusBusy, StatusInterrupted, StatusError:
		return true
	}
	return false
}

// Thread is a durable, named execution context for stateful graph runs.
type Thread struct {
	ThreadID  string         `json:"thread_id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Metadata  map[string]any `json:"metadata"`
	Status    Status         `json:"status"`
}

// IfExists selects the behavior of Create when the thread already exists.
type IfExists string

// Create conflict policies.
const (
	// IfExistsRaise fails with a resource-exists error.
	IfExistsRaise IfExists = "raise"
	// IfExistsDoNothing returns the existing record unchanged.
	IfExistsDoNothing IfExists = "do_nothing"
)

// SearchFilter narrows a Search call. All supplied criteria are combined
// with AND semantics; metadata matching is exact key/value equality over all
// supplied pairs.
type SearchFilter struct {
	IDs      []string
	Metadata map[string]any
	Status   Status
	Limit    int
	Offset   int
}

// Update carries a partial thread mutation. Metadata merges shallowly (key
// overwrite); Status replaces wholesale. UpdatedAt is always bumped.
type Update struct {
	Metadata map[string]any
	Status   Status
}

// Manager owns Thread records. Implementations must keep Create with
// IfExistsDoNothing and AcquireLock atomic under concurrent callers.
type Manager interface {
	// Setup performs idempotent backend initialization (schema creation).
	Setup(ctx context.Context) error

	// Create creates a thread. An empty threadID generates a fresh UUID.
	Create(ctx context.Context, threadID string, metadata map[string]any, ifExists IfExists) (*Thread, error)

	// Get returns a thread or a not-found error.
	Get(ctx context.Context, threadID string) (*Thread, error)

	// Search returns threads matching the filter, paginated.
	Search(ctx context.Context, filter *SearchFilter) ([]*Thread, error)

	// Update applies a partial mutation or returns a not-found error.
	Update(ctx context.Context, threadID string, update *Update) error

	// Delete removes a thread or returns a not-found error.
	Delete(ctx context.Context, threadID string) error

	// AcquireLock atomically transitions status from anything other than
	// busy to busy and reports success. This is the sole admission-control
	// gate for starting a stateful run: under concurrent callers racing on
	// the same thread exactly one succeeds.
	AcquireLock(ctx context.Context, threadID string) (bool, error)
}
