//
// Tencent is pleased to support the open source community by making fast-graph available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// fast-graph is licensed under the Apache License Version 2.0.
//
//

package executor

import (
	"context"

	"github.com/yyquiet/fast-graph/errs"
	"github.com/yyquiet/fast-graph/event"
	"github.com/yyquiet/fast-graph/graph"
	"github.com/yyquiet/fast-graph/queue"
	"github.com/yyquiet/fast-graph/run"
)

// StatelessExecutor executes compiled graphs with no persisted thread or
// state: no locking, no status transitions, no checkpoint to resume from.
// Interrupt detection still selects the terminal status label, but a
// stateless interrupt is reported only; it cannot be resumed.
type StatelessExecutor struct{}

// NewStatelessExecutor creates a stateless graph executor.
func NewStatelessExecutor() *StatelessExecutor {
	return &StatelessExecutor{}
}

// Execute runs one compiled graph instance. Any error is first surfaced to
// the queue as a terminal error event, then returned.
func (e *StatelessExecutor) Execute(ctx context.Context, g graph.CompiledGraph, req *run.StatelessRunRequest, q queue.StreamQueue) error {
	if err := e.stream(ctx, g, req, q); err != nil {
		_ = q.Push(ctx, event.New(event.EventError, map[string]any{
			"error": err.Error(),
			"type":  errs.KindOf(err).String(),
		}))
		return err
	}
	return nil
}

func (e *StatelessExecutor) stream(ctx context.Context, g graph.CompiledGraph, req *run.StatelessRunRequest, q queue.StreamQueue) error {
	if err := q.Push(ctx, event.New(event.EventMetadata, map[string]any{
		"assistant_id": req.AssistantID,
	})); err != nil {
		return err
	}

	opts := &graph.StreamOptions{
		Config:      buildStatelessConfig(req),
		StreamModes: normalizeStreamModes(req.StreamMode),
		Subgraphs:   req.StreamSubgraphs,
		Context:     req.Context,
	}

	events, err := g.Stream(ctx, prepareInput(nil, req.Input), opts)
	if err != nil {
		return err
	}
	interrupted := false
	for ev := range events {
		// Without a thread record the only interrupt signal is the payload
		// marker itself, so detection needs values or updates among the
		// selected modes.
		if ev.IsInterrupt() {
			interrupted = true
		}
		if err := q.Push(ctx, toMessage(ev)); err != nil {
			return err
		}
	}
	if err := g.Err(); err != nil {
		return err
	}

	status := "success"
	if interrupted {
		status = "interrupted"
	}
	return q.Push(ctx, event.New(event.EventStreamEnd, map[string]any{
		"status": status,
	}))
}

// buildStatelessConfig starts from an empty configurable map; there is no
// thread to pin the execution to.
func buildStatelessConfig(req *run.StatelessRunRequest) graph.RunConfig {
	cfg := graph.RunConfig{Configurable: map[string]any{}}
	if req.Config != nil {
		for k, v := range req.Config.Configurable {
			cfg.Configurable[k] = v
		}
		cfg.Tags = req.Config.Tags
		cfg.RecursionLimit = req.Config.RecursionLimit
	}
	return cfg
}
