//
// Tencent is pleased to support the open source community by making fast-graph available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// fast-graph is licensed under the Apache License Version 2.0.
//
//

// Package redis provides the Redis Streams stream queue implementation for
// distributed deployments.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/yyquiet/fast-graph/event"
	"github.com/yyquiet/fast-graph/log"
	"github.com/yyquiet/fast-graph/queue"
)

const (
	defaultKeyPrefix = "fastgraph"

	// readBlock bounds how long a blocking read waits before re-checking the
	// cancellation flag.
	readBlock = time.Second
	readCount = 10

	// maxRetries bounds retry-with-backoff on transient transport errors.
	maxRetries = 3
)

var _ queue.StreamQueue = (*StreamQueue)(nil)

// StreamQueue stores event messages in a Redis stream (XADD/XRANGE/XREAD)
// with TTL-based expiry. Supports distributed deployments and survives
// server restarts within the TTL window.
type StreamQueue struct {
	id  string
	ttl time.Duration

	client    redis.UniversalClient
	streamKey string
	cancelKey string

	mu        sync.Mutex
	cancelled bool
}

// newStreamQueue creates a Redis stream queue on an existing client.
func newStreamQueue(client redis.UniversalClient, keyPrefix, queueID string, ttl time.Duration) *StreamQueue {
	if ttl <= 0 {
		ttl = queue.DefaultTTL
	}
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &StreamQueue{
		id:        queueID,
		ttl:       ttl,
		client:    client,
		streamKey: fmt.Sprintf("%s:queue:%s", keyPrefix, queueID),
		cancelKey: fmt.Sprintf("%s:queue:%s:cancel", keyPrefix, queueID),
	}
}

// ID returns the queue identifier.
func (q *StreamQueue) ID() string { return q.id }

// Push serializes the message to JSON and appends it to the stream, renewing
// the stream TTL.
func (q *StreamQueue) Push(ctx context.Context, msg *event.EventMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal event message: %w", err)
	}
	if err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.streamKey,
		Values: map[string]any{"data": string(data)},
	}).Err(); err != nil {
		return fmt.Errorf("xadd to %s: %w", q.streamKey, err)
	}
	if err := q.client.Expire(ctx, q.streamKey, q.ttl).Err(); err != nil {
		return fmt.Errorf("expire %s: %w", q.streamKey, err)
	}
	return nil
}

// GetAll reads the whole stream with XRANGE.
func (q *StreamQueue) GetAll(ctx context.Context) ([]*event.EventMessage, error) {
	entries, err := q.client.XRange(ctx, q.streamKey, "-", "+").Result()
	if err != nil {
		return nil, fmt.Errorf("xrange %s: %w", q.streamKey, err)
	}
	messages := make([]*event.EventMessage, 0, len(entries))
	for _, entry := range entries {
		msg, err := decodeEntry(entry)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// Receive reads the stream with blocking XREAD, polling the cancellation key
// between reads. Transient transport errors are retried a bounded number of
// times with linear backoff before the loop gives up.
func (q *StreamQueue) Receive(ctx context.Context) <-chan *event.EventMessage {
	out := make(chan *event.EventMessage)
	go func() {
		defer close(out)

		lastID := "0"
		retries := 0
		for {
			if ctx.Err() != nil || q.isCancelled() {
				return
			}
			cancelled, err := q.client.Exists(ctx, q.cancelKey).Result()
			if err == nil && cancelled > 0 {
				log.Infof("queue %s cancelled, stopping receive", q.id)
				return
			}

			streams, err := q.client.XRead(ctx, &redis.XReadArgs{
				Streams: []string{q.streamKey, lastID},
				Block:   readBlock,
				Count:   readCount,
			}).Result()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					// Block timeout, no new messages.
					retries = 0
					continue
				}
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return
				}
				retries++
				log.Errorf("queue %s: read stream failed (retry %d/%d): %v", q.id, retries, maxRetries, err)
				if retries >= maxRetries {
					log.Errorf("queue %s: max retries reached, stopping receive", q.id)
					return
				}
				backoff := time.Duration(retries) * 2 * time.Second
				if backoff > 10*time.Second {
					backoff = 10 * time.Second
				}
				select {
				case <-time.After(backoff):
				case <-ctx.Done():
					return
				}
				continue
			}
			retries = 0

			for _, stream := range streams {
				for _, entry := range stream.Messages {
					msg, err := decodeEntry(entry)
					if err != nil {
						log.Errorf("queue %s: decode entry %s: %v", q.id, entry.ID, err)
						// Skip past the bad entry so the next XRead does not
						// return it again.
						lastID = entry.ID
						continue
					}
					select {
					case out <- msg:
					case <-ctx.Done():
						return
					}
					lastID = entry.ID
					if event.IsTerminal(msg.Event) {
						return
					}
				}
			}
		}
	}()
	return out
}

// Cancel sets the cancellation flag in Redis and pushes a __stream_cancel__
// message. Idempotent.
func (q *StreamQueue) Cancel(ctx context.Context) error {
	q.mu.Lock()
	if q.cancelled {
		q.mu.Unlock()
		return nil
	}
	q.cancelled = true
	q.mu.Unlock()

	if err := q.client.Set(ctx, q.cancelKey, "1", time.Minute).Err(); err != nil {
		return fmt.Errorf("set cancel key %s: %w", q.cancelKey, err)
	}
	return q.Push(ctx, event.New(event.EventStreamCancel, map[string]any{
		"message": "queue cancelled",
	}))
}

// CopyTo copies all current messages into a new stream.
func (q *StreamQueue) CopyTo(ctx context.Context, toID string, ttl time.Duration) (queue.StreamQueue, error) {
	if ttl <= 0 {
		ttl = q.ttl
	}
	prefix := q.streamKey[:len(q.streamKey)-len(":queue:"+q.id)]
	dst := newStreamQueue(q.client, prefix, toID, ttl)
	messages, err := q.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	for _, msg := range messages {
		if err := dst.Push(ctx, msg); err != nil {
			return nil, err
		}
	}
	return dst, nil
}

// Cleanup deletes the stream and cancel keys. Idempotent.
func (q *StreamQueue) Cleanup(ctx context.Context) error {
	if err := q.client.Del(ctx, q.streamKey, q.cancelKey).Err(); err != nil {
		return fmt.Errorf("del queue keys for %s: %w", q.id, err)
	}
	return nil
}

func (q *StreamQueue) isCancelled() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.cancelled
}

func decodeEntry(entry redis.XMessage) (*event.EventMessage, error) {
	raw, ok := entry.Values["data"].(string)
	if !ok {
		return nil, fmt.Errorf("stream entry %s has no data field", entry.ID)
	}
	var msg event.EventMessage
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return nil, fmt.Errorf("unmarshal stream entry %s: %w", entry.ID, err)
	}
	return &msg, nil
}
