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
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yyquiet/fast-graph/assistant"
	"github.com/yyquiet/fast-graph/errs"
	"github.com/yyquiet/fast-graph/executor"
	"github.com/yyquiet/fast-graph/graph"
	"github.com/yyquiet/fast-graph/log"
	"github.com/yyquiet/fast-graph/queue"
	"github.com/yyquiet/fast-graph/run"
)

// StatelessRunService orchestrates runs with no thread resolution and no
// locking.
type StatelessRunService struct {
	queues     queue.Manager
	graphs     *graph.Registry
	assistants *assistant.Registry
	executor   *executor.StatelessExecutor
}

// NewStatelessRunService creates a stateless run service.
func NewStatelessRunService(
	queues queue.Manager,
	graphs *graph.Registry,
	assistants *assistant.Registry,
) *StatelessRunService {
	return &StatelessRunService{
		queues:     queues,
		graphs:     graphs,
		assistants: assistants,
		executor:   executor.NewStatelessExecutor(),
	}
}

// CreateRunStream starts a stateless run and returns its event stream.
func (s *StatelessRunService) CreateRunStream(ctx context.Context, req *run.StatelessRunRequest) (*RunStream, error) {
	a, ok := s.assistants.GetByID(req.AssistantID)
	if !ok {
		return nil, errs.GraphNotFoundf("graph not found for assistant_id: %s", req.AssistantID)
	}
	g, err := s.graphs.Get(a.GraphID)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, errs.GraphNotFoundf("graph not found for assistant_id: %s", req.AssistantID)
	}

	queueID := fmt.Sprintf("stateless_run_%s", uuid.New().String())
	q, err := s.queues.CreateQueue(ctx, queueID, queue.DefaultTTL)
	if err != nil {
		return nil, fmt.Errorf("create queue %s: %w", queueID, err)
	}

	execCtx := context.WithoutCancel(ctx)
	go func() {
		if err := s.executor.Execute(execCtx, g, req, q); err != nil {
			// Already surfaced to the queue as an error event.
			log.Errorf("stateless run for assistant %s failed: %v", req.AssistantID, err)
		}
		time.Sleep(cleanupGrace)
		if err := q.Cleanup(execCtx); err != nil {
			log.Errorf("cleanup queue %s: %v", queueID, err)
		}
	}()

	return &RunStream{queue: q, events: q.Receive(ctx)}, nil
}
