//
// Tencent is pleased to support the open source community by making fast-graph available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// fast-graph is licensed under the Apache License Version 2.0.
//
//

package service

import (
	"context"

	"github.com/yyquiet/fast-graph/errs"
	"github.com/yyquiet/fast-graph/thread"
)

// ThreadService fronts the thread manager for the transport layer, applying
// request-level validation before delegating.
type ThreadService struct {
	threads thread.Manager
}

// NewThreadService creates a thread service.
func NewThreadService(threads thread.Manager) *ThreadService {
	return &ThreadService{threads: threads}
}

// ThreadCreateRequest creates a thread.
type ThreadCreateRequest struct {
	// ThreadID is optional; empty generates a UUID.
	ThreadID string `json:"thread_id,omitempty"`
	// Metadata is attached to the thread.
	Metadata map[string]any `json:"metadata,omitempty"`
	// IfExists selects the duplicate policy: raise (default) or do_nothing.
	IfExists string `json:"if_exists,omitempty"`
}

// ThreadSearchRequest filters and paginates a thread search.
type ThreadSearchRequest struct {
	IDs      []string       `json:"ids,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Status   string         `json:"status,omitempty"`
	Limit    int            `json:"limit,omitempty"`
	Offset   int            `json:"offset,omitempty"`
}

// ThreadUpdateRequest partially updates a thread.
type ThreadUpdateRequest struct {
	Metadata map[string]any `json:"metadata,omitempty"`
	Status   string         `json:"status,omitempty"`
}

// Create creates a thread per the request's duplicate policy.
func (s *ThreadService) Create(ctx context.Context, req *ThreadCreateRequest) (*thread.Thread, error) {
	ifExists := thread.IfExistsRaise
	switch req.IfExists {
	case "", string(thread.IfExistsRaise):
	case string(thread.IfExistsDoNothing):
		ifExists = thread.IfExistsDoNothing
	default:
		return nil, errs.Validationf("if_exists must be 'raise' or 'do_nothing', got %q", req.IfExists)
	}
	return s.threads.Create(ctx, req.ThreadID, req.Metadata, ifExists)
}

// Get returns a thread by id.
func (s *ThreadService) Get(ctx context.Context, threadID string) (*thread.Thread, error) {
	return s.threads.Get(ctx, threadID)
}

// Search returns threads matching the request.
func (s *ThreadService) Search(ctx context.Context, req *ThreadSearchRequest) ([]*thread.Thread, error) {
	status := thread.Status(req.Status)
	if req.Status != "" && !status.Valid() {
		return nil, errs.Validationf("unknown thread status %q", req.Status)
	}
	return s.threads.Search(ctx, &thread.SearchFilter{
		IDs:      req.IDs,
		Metadata: req.Metadata,
		Status:   status,
		Limit:    req.Limit,
		Offset:   req.Offset,
	})
}

// Update partially updates a thread.
func (s *ThreadService) Update(ctx context.Context, threadID string, req *ThreadUpdateRequest) (*thread.Thread, error) {
	status := thread.Status(req.Status)
	if req.Status != "" && !status.Valid() {
		return nil, errs.Validationf("unknown thread status %q", req.Status)
	}
	if err := s.threads.Update(ctx, threadID, &thread.Update{
		Metadata: req.Metadata,
		Status:   status,
	}); err != nil {
		return nil, err
	}
	return s.threads.Get(ctx, threadID)
}

// Delete removes a thread.
func (s *ThreadService) Delete(ctx context.Context, threadID string) error {
	return s.threads.Delete(ctx, threadID)
}
