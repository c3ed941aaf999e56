//
// Tencent is pleased to support the open source community by making fast-graph available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// fast-graph is licensed under the Apache License Version 2.0.
//
//

// Package executor drives graph executions, multiplexing their internal
// event streams onto run queues and tracking thread lifecycle state.
package executor

import (
	"context"

	"github.com/yyquiet/fast-graph/errs"
	"github.com/yyquiet/fast-graph/event"
	"github.com/yyquiet/fast-graph/graph"
	"github.com/yyquiet/fast-graph/queue"
	"github.com/yyquiet/fast-graph/run"
	"github.com/yyquiet/fast-graph/thread"
)

// Executor executes compiled graphs against threads. It drives the thread
// status through busy -> {idle | interrupted | error} and pushes normalized
// events to the run's queue.
type Executor struct {
	threads thread.Manager
}

// NewExecutor creates a stateful graph executor.
func NewExecutor(threads thread.Manager) *Executor {
	return &Executor{threads: threads}
}

// Execute runs one compiled graph instance against one thread. Any error is
// first surfaced to the queue as a terminal __stream_error__ event, then
// returned; the caller decides how to log or isolate it.
func (e *Executor) Execute(ctx context.Context, g graph.CompiledGraph, req *run.RunRequest, q queue.StreamQueue, threadID string) error {
	if err := e.stream(ctx, g, req, q, threadID); err != nil {
		e.handleError(ctx, err, q, threadID)
		return err
	}
	return nil
}

func (e *Executor) stream(ctx context.Context, g graph.CompiledGraph, req *run.RunRequest, q queue.StreamQueue, threadID string) error {
	if err := e.threads.Update(ctx, threadID, &thread.Update{Status: thread.StatusBusy}); err != nil {
		return err
	}

	if err := q.Push(ctx, event.New(event.EventMetadata, map[string]any{
		"thread_id":    threadID,
		"assistant_id": req.AssistantID,
	})); err != nil {
		return err
	}

	opts := &graph.StreamOptions{
		Config:          buildConfig(threadID, req),
		StreamModes:     normalizeStreamModes(req.StreamMode),
		InterruptBefore: req.InterruptBefore,
		InterruptAfter:  req.InterruptAfter,
		Subgraphs:       req.StreamSubgraphs,
		Context:         req.Context,
	}

	events, err := g.Stream(ctx, prepareInput(req.Command, req.Input), opts)
	if err != nil {
		return err
	}
	for ev := range events {
		if err := e.handleEvent(ctx, ev, q, threadID); err != nil {
			return err
		}
	}
	if err := g.Err(); err != nil {
		return err
	}
	return e.finalize(ctx, q, threadID)
}

// handleEvent normalizes one engine event into a queue message, flipping the
// thread to interrupted when the payload carries the interrupt marker.
func (e *Executor) handleEvent(ctx context.Context, ev graph.StreamEvent, q queue.StreamQueue, threadID string) error {
	if ev.IsInterrupt() {
		if err := e.threads.Update(ctx, threadID, &thread.Update{Status: thread.StatusInterrupted}); err != nil {
			return err
		}
	}
	return q.Push(ctx, toMessage(ev))
}

// finalize pushes the terminal event after the engine's stream is exhausted.
// An interrupted thread keeps its status so a later resume finds it; a
// completed one returns to idle.
func (e *Executor) finalize(ctx context.Context, q queue.StreamQueue, threadID string) error {
	t, err := e.threads.Get(ctx, threadID)
	if err != nil {
		return err
	}
	if t.Status == thread.StatusInterrupted {
		return q.Push(ctx, event.New(event.EventStreamEnd, map[string]any{
			"status": "interrupted",
		}))
	}
	if err := q.Push(ctx, event.New(event.EventStreamEnd, map[string]any{
		"status": "success",
	})); err != nil {
		return err
	}
	return e.threads.Update(ctx, threadID, &thread.Update{Status: thread.StatusIdle})
}

// handleError surfaces the failure on the stream and marks the thread. Push
// and update failures here are secondary; the original error is what the
// caller sees.
func (e *Executor) handleError(ctx context.Context, execErr error, q queue.StreamQueue, threadID string) {
	_ = q.Push(ctx, event.New(event.EventStreamError, map[string]any{
		"error": execErr.Error(),
		"type":  errs.KindOf(execErr).String(),
	}))
	_ = e.threads.Update(ctx, threadID, &thread.Update{Status: thread.StatusError})
}

// buildConfig assembles the engine run config. The thread id stays fixed to
// the selected thread; caller-supplied configurable keys override
// checkpoint-derived values for everything else.
func buildConfig(threadID string, req *run.RunRequest) graph.RunConfig {
	cfg := graph.RunConfig{
		Configurable: map[string]any{
			graph.ConfigKeyThreadID: threadID,
		},
	}
	if req.Checkpoint != nil {
		if req.Checkpoint.CheckpointID != "" {
			cfg.Configurable[graph.ConfigKeyCheckpointID] = req.Checkpoint.CheckpointID
		}
		if req.Checkpoint.CheckpointNS != "" {
			cfg.Configurable[graph.ConfigKeyCheckpointNS] = req.Checkpoint.CheckpointNS
		}
	}
	if req.Config != nil {
		for k, v := range req.Config.Configurable {
			if k == graph.ConfigKeyThreadID {
				continue
			}
			cfg.Configurable[k] = v
		}
		cfg.Tags = req.Config.Tags
		cfg.RecursionLimit = req.Config.RecursionLimit
	}
	return cfg
}

// prepareInput selects the graph input: a resume command takes precedence
// over a fresh input, which defaults to an empty object.
func prepareInput(cmd *graph.Command, input any) any {
	if cmd != nil {
		return cmd
	}
	if input == nil {
		return map[string]any{}
	}
	return input
}

// normalizeStreamModes applies the default mode selection.
func normalizeStreamModes(modes run.StreamModes) []string {
	if len(modes) == 0 {
		return []string{graph.StreamModeValues}
	}
	return modes
}

// toMessage converts an engine event into the queue envelope. Namespaced
// events wrap the payload so clients can attribute it to the sub-execution.
func toMessage(ev graph.StreamEvent) *event.EventMessage {
	mode := ev.Mode
	if mode == "" {
		mode = graph.StreamModeValues
	}
	data := ev.Data
	if ev.Namespace != "" {
		data = map[string]any{
			"namespace": ev.Namespace,
			"data":      ev.Data,
		}
	}
	return event.New(mode, data)
}
