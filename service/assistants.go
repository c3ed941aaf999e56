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
	"sort"

	"github.com/yyquiet/fast-graph/assistant"
)

// AssistantService exposes the assistant directory to the transport layer.
type AssistantService struct {
	assistants *assistant.Registry
}

// NewAssistantService creates an assistant service.
func NewAssistantService(assistants *assistant.Registry) *AssistantService {
	return &AssistantService{assistants: assistants}
}

// AssistantSearchRequest paginates an assistant search.
type AssistantSearchRequest struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// Search returns registered assistants ordered by id, paginated.
func (s *AssistantService) Search(ctx context.Context, req *AssistantSearchRequest) ([]*assistant.Assistant, error) {
	if req == nil {
		req = &AssistantSearchRequest{}
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 10
	}

	// The registry map has no order; sort for stable pagination.
	all := s.assistants.List()
	sort.Slice(all, func(i, j int) bool { return all[i].AssistantID < all[j].AssistantID })

	if req.Offset >= len(all) {
		return []*assistant.Assistant{}, nil
	}
	all = all[req.Offset:]
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}
