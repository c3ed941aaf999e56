//
// Tencent is pleased to support the open source community by making fast-graph available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// fast-graph is licensed under the Apache License Version 2.0.
//
//

// Package service orchestrates threads, queues, graphs and executors into
// the run lifecycle exposed to transport layers.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yyquiet/fast-graph/assistant"
	"github.com/yyquiet/fast-graph/checkpoint"
	"github.com/yyquiet/fast-graph/errs"
	"github.com/yyquiet/fast-graph/event"
	"github.com/yyquiet/fast-graph/executor"
	"github.com/yyquiet/fast-graph/graph"
	"github.com/yyquiet/fast-graph/log"
	"github.com/yyquiet/fast-graph/queue"
	"github.com/yyquiet/fast-graph/run"
	"github.com/yyquiet/fast-graph/thread"
)

// cleanupGrace lets a concurrent consumer drain remaining messages before
// the queue is reclaimed.
const cleanupGrace = time.Second

// RunStream is a live run's event stream handed to the transport layer.
type RunStream struct {
	queue  queue.StreamQueue
	events <-chan *event.EventMessage
}

// Events yields the run's messages through the terminal event.
func (s *RunStream) Events() <-chan *event.EventMessage {
	return s.events
}

// Cancel cancels the underlying queue so the background executor's writes
// go nowhere and the consumer observes a terminal event.
func (s *RunStream) Cancel(ctx context.Context) error {
	return s.queue.Cancel(ctx)
}

// RunService orchestrates stateful runs.
type RunService struct {
	threads     thread.Manager
	queues      queue.Manager
	checkpoints checkpoint.Manager
	graphs      *graph.Registry
	assistants  *assistant.Registry
	executor    *executor.Executor
}

// NewRunService creates a stateful run service.
func NewRunService(
	threads thread.Manager,
	queues queue.Manager,
	checkpoints checkpoint.Manager,
	graphs *graph.Registry,
	assistants *assistant.Registry,
) *RunService {
	return &RunService{
		threads:     threads,
		queues:      queues,
		checkpoints: checkpoints,
		graphs:      graphs,
		assistants:  assistants,
		executor:    executor.NewExecutor(threads),
	}
}

// CreateRunStream starts a run on the given thread and returns its event
// stream. Errors raised here - thread resolution, lock acquisition, graph
// resolution - propagate synchronously; everything after the launch is
// surfaced on the stream itself.
func (s *RunService) CreateRunStream(ctx context.Context, threadID string, req *run.RunRequest) (*RunStream, error) {
	if err := s.resolveThread(ctx, threadID, req.IfNotExists); err != nil {
		return nil, err
	}

	locked, err := s.threads.AcquireLock(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if !locked {
		return nil, errs.Validationf(
			"thread %s is currently busy, only one run can execute at a time per thread", threadID)
	}

	g, err := s.resolveGraph(req.AssistantID)
	if err != nil {
		// The lock was taken but no run will start; release it.
		if uerr := s.threads.Update(ctx, threadID, &thread.Update{Status: thread.StatusIdle}); uerr != nil {
			log.Errorf("release lock on thread %s: %v", threadID, uerr)
		}
		return nil, err
	}
	g.SetCheckpointer(s.checkpoints.Saver())

	queueID := fmt.Sprintf("run_%s_%s", threadID, uuid.New().String())
	q, err := s.queues.CreateQueue(ctx, queueID, queue.DefaultTTL)
	if err != nil {
		// No run will start here either; leave the thread lockable.
		if uerr := s.threads.Update(ctx, threadID, &thread.Update{Status: thread.StatusIdle}); uerr != nil {
			log.Errorf("release lock on thread %s: %v", threadID, uerr)
		}
		return nil, fmt.Errorf("create queue %s: %w", queueID, err)
	}

	// The run outlives the request: detach the execution context so a
	// client disconnect does not kill the graph mid-step.
	execCtx := context.WithoutCancel(ctx)
	go func() {
		if err := s.executor.Execute(execCtx, g, req, q, threadID); err != nil {
			// Already surfaced to the queue as __stream_error__.
			log.Errorf("run on thread %s failed: %v", threadID, err)
		}
		time.Sleep(cleanupGrace)
		if err := q.Cleanup(execCtx); err != nil {
			log.Errorf("cleanup queue %s: %v", queueID, err)
		}
	}()

	return &RunStream{queue: q, events: q.Receive(ctx)}, nil
}

// resolveThread applies the missing-thread policy: create runs an atomic
// create-or-fetch, reject requires the thread to exist.
func (s *RunService) resolveThread(ctx context.Context, threadID, ifNotExists string) error {
	if ifNotExists == run.IfNotExistsCreate {
		_, err := s.threads.Create(ctx, threadID, nil, thread.IfExistsDoNothing)
		return err
	}
	_, err := s.threads.Get(ctx, threadID)
	return err
}

// resolveGraph maps assistant id -> graph id -> freshly compiled instance.
func (s *RunService) resolveGraph(assistantID string) (graph.CompiledGraph, error) {
	a, ok := s.assistants.GetByID(assistantID)
	if !ok {
		return nil, errs.GraphNotFoundf("graph not found for assistant_id: %s", assistantID)
	}
	g, err := s.graphs.Get(a.GraphID)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, errs.GraphNotFoundf("graph not found for assistant_id: %s", assistantID)
	}
	return g, nil
}
