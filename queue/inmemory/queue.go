//
// Tencent is pleased to support the open source community by making fast-graph available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// fast-graph is licensed under the Apache License Version 2.0.
//
//

// Package inmemory provides the in-process stream queue implementation.
package inmemory

import (
	"context"
	"sync"
	"time"

	"github.com/yyquiet/fast-graph/errs"
	"github.com/yyquiet/fast-graph/event"
	"github.com/yyquiet/fast-graph/queue"
)

var _ queue.StreamQueue = (*StreamQueue)(nil)

// StreamQueue stores event messages in memory. Suitable for tests and
// single-node deployments; no external dependencies.
type StreamQueue struct {
	id  string
	ttl time.Duration

	mu        sync.Mutex
	cond      *sync.Cond
	messages  []*event.EventMessage
	cancelled bool
	cleaned   bool
}

// NewStreamQueue creates an in-memory stream queue.
func NewStreamQueue(queueID string, ttl time.Duration) *StreamQueue {
	if ttl <= 0 {
		ttl = queue.DefaultTTL
	}
	q := &StreamQueue{id: queueID, ttl: ttl}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// ID returns the queue identifier.
func (q *StreamQueue) ID() string { return q.id }

// Push appends a message and wakes any waiting receiver.
func (q *StreamQueue) Push(ctx context.Context, msg *event.EventMessage) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.messages = append(q.messages, msg)
	q.cond.Broadcast()
	return nil
}

// GetAll returns a snapshot of all queued messages in push order.
func (q *StreamQueue) GetAll(ctx context.Context) ([]*event.EventMessage, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*event.EventMessage, len(q.messages))
	copy(out, q.messages)
	return out, nil
}

// Receive yields messages as they arrive until a terminal event, queue
// cancellation or ctx done. The wait is condition-variable based; a ticker
// bounds the interval between cancellation checks so a done context is
// observed without a dedicated waker goroutine.
func (q *StreamQueue) Receive(ctx context.Context) <-chan *event.EventMessage {
	out := make(chan *event.EventMessage)

	// Waker: broadcast periodically and on ctx done so the cond wait below
	// re-checks its predicates.
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				q.cond.Broadcast()
				return
			case <-ticker.C:
				q.cond.Broadcast()
			}
		}
	}()

	go func() {
		defer close(out)
		defer close(done)
		next := 0
		for {
			q.mu.Lock()
			for next >= len(q.messages) && !q.cancelled && ctx.Err() == nil {
				q.cond.Wait()
			}
			if ctx.Err() != nil {
				q.mu.Unlock()
				return
			}
			if next >= len(q.messages) && q.cancelled {
				q.mu.Unlock()
				return
			}
			msg := q.messages[next]
			next++
			q.mu.Unlock()

			select {
			case out <- msg:
			case <-ctx.Done():
				return
			}
			if event.IsTerminal(msg.Event) {
				return
			}
		}
	}()
	return out
}

// Cancel sets the cancellation flag and pushes a __stream_cancel__ message.
// Idempotent.
func (q *StreamQueue) Cancel(ctx context.Context) error {
	q.mu.Lock()
	if q.cancelled {
		q.mu.Unlock()
		return nil
	}
	q.cancelled = true
	q.messages = append(q.messages, event.New(event.EventStreamCancel, map[string]any{
		"message": "queue cancelled",
	}))
	q.cond.Broadcast()
	q.mu.Unlock()
	return nil
}

// CopyTo snapshot-copies the current messages into a new queue. The copy does
// not inherit cancellation state.
func (q *StreamQueue) CopyTo(ctx context.Context, toID string, ttl time.Duration) (queue.StreamQueue, error) {
	if ttl <= 0 {
		ttl = q.ttl
	}
	dst := NewStreamQueue(toID, ttl)
	q.mu.Lock()
	dst.messages = make([]*event.EventMessage, len(q.messages))
	copy(dst.messages, q.messages)
	q.mu.Unlock()
	return dst, nil
}

// Cleanup drops all messages and unblocks receivers. Idempotent.
func (q *StreamQueue) Cleanup(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.messages = nil
	q.cancelled = true
	q.cleaned = true
	q.cond.Broadcast()
	return nil
}

// Count returns the number of queued messages. Test helper.
func (q *StreamQueue) Count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.messages)
}

var _ queue.Manager = (*Manager)(nil)

// Manager tracks in-memory queues by id.
type Manager struct {
	mu     sync.RWMutex
	queues map[string]*StreamQueue
}

// NewManager creates an in-memory queue manager.
func NewManager() *Manager {
	return &Manager{queues: make(map[string]*StreamQueue)}
}

// CreateQueue creates and tracks a queue.
func (m *Manager) CreateQueue(ctx context.Context, queueID string, ttl time.Duration) (queue.StreamQueue, error) {
	q := NewStreamQueue(queueID, ttl)
	m.mu.Lock()
	m.queues[queueID] = q
	m.mu.Unlock()
	return q, nil
}

// GetQueue returns a tracked queue.
func (m *Manager) GetQueue(queueID string) (queue.StreamQueue, error) {
	m.mu.RLock()
	q, ok := m.queues[queueID]
	m.mu.RUnlock()
	if !ok {
		return nil, errs.NotFoundf("queue %s not found", queueID)
	}
	return q, nil
}

// CancelQueue cancels and removes a queue.
func (m *Manager) CancelQueue(ctx context.Context, queueID string) error {
	m.mu.Lock()
	q, ok := m.queues[queueID]
	delete(m.queues, queueID)
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return q.Cancel(ctx)
}
