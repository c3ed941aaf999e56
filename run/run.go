//
// Tencent is pleased to support the open source community by making fast-graph available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// fast-graph is licensed under the Apache License Version 2.0.
//
//

// Package run defines the request types for stateful and stateless runs.
package run

import (
	"encoding/json"
	"fmt"

	"github.com/yyquiet/fast-graph/graph"
)

// Missing-thread policies for stateful runs.
const (
	// IfNotExistsReject fails when the thread does not exist.
	IfNotExistsReject = "reject"
	// IfNotExistsCreate creates the thread on first use.
	IfNotExistsCreate = "create"
)

// CheckpointConfig references a prior checkpoint to resume from.
type CheckpointConfig struct {
	ThreadID     string `json:"thread_id,omitempty"`
	CheckpointID string `json:"checkpoint_id,omitempty"`
	CheckpointNS string `json:"checkpoint_ns,omitempty"`
}

// StreamModes is a stream mode selection decoded from either a single
// string or a list of strings.
type StreamModes []string

// UnmarshalJSON accepts "values" and ["values", "updates"] alike.
func (s *StreamModes) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*s = StreamModes{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("decode stream_mode: %w", err)
	}
	*s = StreamModes(many)
	return nil
}

// StringList decodes either a single string or a list of strings, used by
// the interrupt node lists.
type StringList []string

// UnmarshalJSON accepts "node" and ["a", "b"] alike.
func (s *StringList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*s = StringList{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("decode string list: %w", err)
	}
	*s = StringList(many)
	return nil
}

// RunRequest creates a stateful run against a thread.
type RunRequest struct {
	// AssistantID selects the graph to run through the assistant directory.
	AssistantID string `json:"assistant_id"`
	// Checkpoint optionally resumes from a prior checkpoint.
	Checkpoint *CheckpointConfig `json:"checkpoint,omitempty"`
	// Input is the graph input. Ignored when Command is present.
	Input any `json:"input,omitempty"`
	// Command resumes a previously interrupted run; takes precedence over
	// Input.
	Command *graph.Command `json:"command,omitempty"`
	// Config is the execution configuration.
	Config *graph.RunConfig `json:"config,omitempty"`
	// Context is static context made available to the graph.
	Context map[string]any `json:"context,omitempty"`
	// InterruptBefore lists nodes to interrupt immediately before execution.
	InterruptBefore StringList `json:"interrupt_before,omitempty"`
	// InterruptAfter lists nodes to interrupt immediately after execution.
	InterruptAfter StringList `json:"interrupt_after,omitempty"`
	// StreamMode selects the event categories to surface.
	StreamMode StreamModes `json:"stream_mode,omitempty"`
	// StreamSubgraphs enables namespaced events from nested sub-executions.
	StreamSubgraphs bool `json:"stream_subgraphs,omitempty"`
	// IfNotExists selects the missing-thread policy. Defaults to reject.
	IfNotExists string `json:"if_not_exists,omitempty"`
}

// StatelessRunRequest creates a run with no persisted thread or state.
type StatelessRunRequest struct {
	// AssistantID selects the graph to run through the assistant directory.
	AssistantID string `json:"assistant_id"`
	// Input is the graph input.
	Input any `json:"input,omitempty"`
	// Config is the execution configuration.
	Config *graph.RunConfig `json:"config,omitempty"`
	// Context is static context made available to the graph.
	Context map[string]any `json:"context,omitempty"`
	// StreamMode selects the event categories to surface.
	StreamMode StreamModes `json:"stream_mode,omitempty"`
	// StreamSubgraphs enables namespaced events from nested sub-executions.
	StreamSubgraphs bool `json:"stream_subgraphs,omitempty"`
}
