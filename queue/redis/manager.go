//
// Tencent is pleased to support the open source community by making fast-graph available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// fast-graph is licensed under the Apache License Version 2.0.
//
//

package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/yyquiet/fast-graph/errs"
	"github.com/yyquiet/fast-graph/queue"
)

var _ queue.Manager = (*Manager)(nil)

// Manager creates and tracks Redis stream queues on a shared client.
type Manager struct {
	opts   managerOpts
	client redis.UniversalClient

	mu     sync.RWMutex
	queues map[string]*StreamQueue
}

type managerOpts struct {
	url       string
	keyPrefix string
	client    redis.UniversalClient
}

var defaultOptions = managerOpts{
	url:       "redis://127.0.0.1:6379",
	keyPrefix: defaultKeyPrefix,
}

// ManagerOpt configures the Manager.
type ManagerOpt func(*managerOpts)

// WithURL sets the Redis connection URL.
func WithURL(url string) ManagerOpt {
	return func(o *managerOpts) { o.url = url }
}

// WithKeyPrefix sets the key prefix for queue keys.
func WithKeyPrefix(prefix string) ManagerOpt {
	return func(o *managerOpts) { o.keyPrefix = prefix }
}

// WithClient provides a pre-built Redis client, bypassing URL parsing.
func WithClient(client redis.UniversalClient) ManagerOpt {
	return func(o *managerOpts) { o.client = client }
}

// NewManager creates a Redis queue manager.
func NewManager(options ...ManagerOpt) (*Manager, error) {
	opts := defaultOptions
	for _, option := range options {
		option(&opts)
	}

	client := opts.client
	if client == nil {
		redisOpts, err := redis.ParseURL(opts.url)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client = redis.NewClient(redisOpts)
	}

	return &Manager{
		opts:   opts,
		client: client,
		queues: make(map[string]*StreamQueue),
	}, nil
}

// CreateQueue creates and tracks a stream queue.
func (m *Manager) CreateQueue(ctx context.Context, queueID string, ttl time.Duration) (queue.StreamQueue, error) {
	q := newStreamQueue(m.client, m.opts.keyPrefix, queueID, ttl)
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

// Close releases the underlying Redis client.
func (m *Manager) Close() error {
	return m.client.Close()
}
