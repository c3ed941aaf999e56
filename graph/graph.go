//
// Tencent is pleased to support the open source community by making fast-graph available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// fast-graph is licensed under the Apache License Version 2.0.
//
//

// Package graph defines the boundary to the graph execution engine: graph
// definitions, compiled instances, their streaming contract and the registry
// mapping graph ids to definitions.
package graph

import (
	"context"

	"github.com/yyquiet/fast-graph/checkpoint"
)

// Configurable keys recognized by engines in RunConfig.Configurable.
const (
	// ConfigKeyThreadID pins an execution to a thread's checkpoint history.
	ConfigKeyThreadID = "thread_id"
	// ConfigKeyCheckpointID selects the checkpoint to resume from.
	ConfigKeyCheckpointID = "checkpoint_id"
	// ConfigKeyCheckpointNS selects the checkpoint namespace.
	ConfigKeyCheckpointNS = "checkpoint_ns"
)

// InterruptKey is the reserved payload key signalling that execution paused
// pending external input.
const InterruptKey = "__interrupt__"

// Stream mode tags. An engine surfaces only the event categories selected by
// the run request.
const (
	StreamModeValues   = "values"
	StreamModeUpdates  = "updates"
	StreamModeMessages = "messages"
	StreamModeDebug    = "debug"
	StreamModeCustom   = "custom"
)

// RunConfig is the execution configuration handed to a compiled graph.
type RunConfig struct {
	// Configurable carries free-form engine configuration. The executor
	// always sets ConfigKeyThreadID for stateful runs.
	Configurable map[string]any `json:"configurable,omitempty"`
	// Tags annotate the execution.
	Tags []string `json:"tags,omitempty"`
	// RecursionLimit bounds engine iteration; zero means engine default.
	RecursionLimit int `json:"recursion_limit,omitempty"`
}

// StreamOptions selects what a Stream call executes and surfaces.
type StreamOptions struct {
	// Config is the execution configuration.
	Config RunConfig
	// StreamModes selects the event categories to surface. Empty defaults
	// to values.
	StreamModes []string
	// InterruptBefore lists nodes to interrupt immediately before execution.
	InterruptBefore []string
	// InterruptAfter lists nodes to interrupt immediately after execution.
	InterruptAfter []string
	// Subgraphs enables streaming of namespaced events from nested
	// sub-executions.
	Subgraphs bool
	// Context is static context made available to node functions.
	Context map[string]any
}

// StreamEvent is one event produced by a graph execution, decoded once at
// the engine boundary from the engine's bare / (mode, payload) /
// (namespace, mode, payload) shapes.
type StreamEvent struct {
	// Namespace identifies the nested subgraph the event originated from.
	// Empty for top-level events.
	Namespace string
	// Mode is the stream mode tag. Empty means a bare payload, implicitly
	// StreamModeValues.
	Mode string
	// Data is the event payload.
	Data any
}

// ValueEvent creates a bare payload event.
func ValueEvent(data any) StreamEvent {
	return StreamEvent{Data: data}
}

// ModeEvent creates a (mode, payload) event.
func ModeEvent(mode string, data any) StreamEvent {
	return StreamEvent{Mode: mode, Data: data}
}

// NamespacedEvent creates a (namespace, mode, payload) event.
func NamespacedEvent(namespace, mode string, data any) StreamEvent {
	return StreamEvent{Namespace: namespace, Mode: mode, Data: data}
}

// IsInterrupt reports whether the event payload carries the reserved
// interrupt key.
func (e StreamEvent) IsInterrupt() bool {
	data, ok := e.Data.(map[string]any)
	if !ok {
		return false
	}
	_, ok = data[InterruptKey]
	return ok
}

// CompiledGraph is one executable instance of a graph definition. Instances
// are not shared between runs.
type CompiledGraph interface {
	// Stream drives the execution and returns its event sequence. The
	// channel closes when the execution finishes; a failed execution is
	// reported through the returned error or an error read from the
	// channel's producer via StreamError.
	Stream(ctx context.Context, input any, opts *StreamOptions) (<-chan StreamEvent, error)

	// Err reports the terminal error of the execution after the event
	// channel has closed, nil on success or interrupt.
	Err() error

	// SetCheckpointer attaches a checkpoint store so execution state
	// survives interruption.
	SetCheckpointer(saver checkpoint.Saver)
}

// Graph is a registrable graph definition. Compile returns a fresh
// executable instance so no state leaks between runs.
type Graph interface {
	Compile() (CompiledGraph, error)
}
