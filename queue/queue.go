//
// Tencent is pleased to support the open source community by making fast-graph available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// fast-graph is licensed under the Apache License Version 2.0.
//
//

// Package queue defines the per-run stream queue abstraction bridging the
// background graph executor and the streamed response.
package queue

import (
	"context"
	"time"

	"github.com/yyquiet/fast-graph/event"
)

// DefaultTTL bounds how long an abandoned queue's data persists in a
// distributed backend. It is not an execution timeout.
const DefaultTTL = 300 * time.Second

// StreamQueue is an ordered, appendable, cancellable channel of event
// messages. A queue belongs to exactly one run: one producer, one consumer.
type StreamQueue interface {
	// ID returns the queue identifier.
	ID() string

	// Push appends a message to the queue. Pushes to a cancelled queue are
	// still accepted; nobody reads them and Cleanup reclaims them later.
	Push(ctx context.Context, msg *event.EventMessage) error

	// GetAll returns a snapshot of all messages currently queued, in push
	// order.
	GetAll(ctx context.Context) ([]*event.EventMessage, error)

	// Receive returns a channel yielding messages as they arrive. The
	// channel closes after a terminal event has been yielded, when the queue
	// is cancelled, or when ctx is done. At most one receiver per queue.
	Receive(ctx context.Context) <-chan *event.EventMessage

	// Cancel sets the cancellation flag and pushes a __stream_cancel__
	// message so in-flight receivers observe a terminal event. Idempotent.
	Cancel(ctx context.Context) error

	// CopyTo snapshot-copies the current messages into a newly created
	// queue. Cancellation state is not copied. A ttl of zero inherits this
	// queue's TTL.
	CopyTo(ctx context.Context, toID string, ttl time.Duration) (StreamQueue, error)

	// Cleanup releases the queue's resources. Idempotent, and safe to call
	// after Cancel.
	Cleanup(ctx context.Context) error
}

// Manager creates and tracks queue instances.
type Manager interface {
	// CreateQueue creates a queue with the given id and TTL.
	CreateQueue(ctx context.Context, queueID string, ttl time.Duration) (StreamQueue, error)

	// GetQueue returns an existing queue, or a not-found error.
	GetQueue(queueID string) (StreamQueue, error)

	// CancelQueue cancels and removes a queue. Unknown ids are a no-op.
	CancelQueue(ctx context.Context, queueID string) error
}
