//
// Tencent is pleased to support the open source community by making fast-graph available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// fast-graph is licensed under the Apache License Version 2.0.
//
//

// Package event provides the event envelope streamed from graph executions
// to clients.
package event

import (
	"time"

	"github.com/google/uuid"
)

// Control event kinds. Everything else carries graph output and is named
// after the stream mode it belongs to ("values", "updates", "messages", ...).
const (
	// EventMetadata is pushed once at run start and carries run identifiers.
	EventMetadata = "metadata"
	// EventStreamEnd terminates a stream after a successful or interrupted run.
	EventStreamEnd = "__stream_end__"
	// EventStreamError terminates a stateful stream after a failed run.
	EventStreamError = "__stream_error__"
	// EventError terminates a stateless stream after a failed run.
	EventError = "error"
	// EventStreamCancel terminates a stream after external cancellation.
	EventStreamCancel = "__stream_cancel__"
)

// EventMessage is a single message on a run's stream queue. It is immutable
// once constructed.
type EventMessage struct {
	// ID is the unique identifier of the message.
	ID string `json:"id"`
	// Event is the event kind tag.
	Event string `json:"event"`
	// Data is the event payload.
	Data any `json:"data"`
	// Timestamp is the creation time in ISO-8601 format.
	Timestamp string `json:"timestamp"`
}

// New creates an EventMessage with a generated ID and timestamp.
func New(event string, data any) *EventMessage {
	return &EventMessage{
		ID:        uuid.New().String(),
		Event:     event,
		Data:      data,
		Timestamp: time.Now().Format(time.RFC3339Nano),
	}
}

// IsTerminal reports whether an event kind terminates a stream.
func IsTerminal(kind string) bool {
	switch kind {
	case EventStreamEnd, EventStreamError, EventError, EventStreamCancel:
		return true
	}
	return false
}
