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
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/yyquiet/fast-graph/event"
)

func newTestManager(t *testing.T) (*Manager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	m, err := NewManager(WithURL("redis://" + mr.Addr()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m, mr
}

func TestPushGetAll(t *testing.T) {
	ctx := context.Background()
	m, mr := newTestManager(t)

	q, err := m.CreateQueue(ctx, "q1", 0)
	require.NoError(t, err)

	first := event.New("values", map[string]any{"step": float64(1)})
	second := event.New("values", map[string]any{"step": float64(2)})
	require.NoError(t, q.Push(ctx, first))
	require.NoError(t, q.Push(ctx, second))

	messages, err := q.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	require.Equal(t, first.ID, messages[0].ID)
	require.Equal(t, second.ID, messages[1].ID)
	require.Equal(t, map[string]any{"step": float64(1)}, messages[0].Data)

	// Pushes renew the stream TTL.
	require.Greater(t, mr.TTL("fastgraph:queue:q1"), time.Duration(0))
}

func TestReceiveUntilTerminal(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)

	q, err := m.CreateQueue(ctx, "q1", 0)
	require.NoError(t, err)

	require.NoError(t, q.Push(ctx, event.New(event.EventMetadata, map[string]any{"thread_id": "t1"})))
	require.NoError(t, q.Push(ctx, event.New("values", map[string]any{"content": "x"})))
	require.NoError(t, q.Push(ctx, event.New(event.EventStreamEnd, map[string]any{"status": "success"})))

	var kinds []string
	for msg := range q.Receive(ctx) {
		kinds = append(kinds, msg.Event)
	}
	require.Equal(t, []string{event.EventMetadata, "values", event.EventStreamEnd}, kinds)
}

func TestReceiveSkipsMalformedEntries(t *testing.T) {
	ctx := context.Background()
	m, mr := newTestManager(t)

	q, err := m.CreateQueue(ctx, "q1", 0)
	require.NoError(t, err)

	// An entry without a data field cannot be decoded; Receive must read
	// past it instead of re-reading it forever.
	_, err = mr.XAdd("fastgraph:queue:q1", "*", []string{"junk", "x"})
	require.NoError(t, err)
	_, err = mr.XAdd("fastgraph:queue:q1", "*", []string{"data", "not json"})
	require.NoError(t, err)
	require.NoError(t, q.Push(ctx, event.New("values", map[string]any{"content": "x"})))
	require.NoError(t, q.Push(ctx, event.New(event.EventStreamEnd, map[string]any{"status": "success"})))

	recvCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	var kinds []string
	for msg := range q.Receive(recvCtx) {
		kinds = append(kinds, msg.Event)
	}
	require.Equal(t, []string{"values", event.EventStreamEnd}, kinds)
}

func TestReceiveObservesCancelKey(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)

	q, err := m.CreateQueue(ctx, "q1", 0)
	require.NoError(t, err)
	require.NoError(t, q.Push(ctx, event.New("values", nil)))
	require.NoError(t, q.Cancel(ctx))

	// A receiver attached after cancellation stops before reading anything.
	var kinds []string
	for msg := range q.Receive(ctx) {
		kinds = append(kinds, msg.Event)
	}
	require.Empty(t, kinds)
}

func TestCancelPushesTerminalMessage(t *testing.T) {
	ctx := context.Background()
	m, mr := newTestManager(t)

	q, err := m.CreateQueue(ctx, "q1", 0)
	require.NoError(t, err)
	require.NoError(t, q.Cancel(ctx))
	require.NoError(t, q.Cancel(ctx))

	require.True(t, mr.Exists("fastgraph:queue:q1:cancel"))
	messages, err := q.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	require.Equal(t, event.EventStreamCancel, messages[0].Event)
}

func TestCopyTo(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)

	q, err := m.CreateQueue(ctx, "q1", 0)
	require.NoError(t, err)
	require.NoError(t, q.Push(ctx, event.New(event.EventMetadata, nil)))
	require.NoError(t, q.Push(ctx, event.New("values", map[string]any{"step": float64(1)})))

	dst, err := q.CopyTo(ctx, "q2", 0)
	require.NoError(t, err)
	require.Equal(t, "q2", dst.ID())

	messages, err := dst.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	require.Equal(t, event.EventMetadata, messages[0].Event)
}

func TestCleanup(t *testing.T) {
	ctx := context.Background()
	m, mr := newTestManager(t)

	q, err := m.CreateQueue(ctx, "q1", 0)
	require.NoError(t, err)
	require.NoError(t, q.Push(ctx, event.New("values", nil)))
	require.NoError(t, q.Cancel(ctx))

	require.NoError(t, q.Cleanup(ctx))
	require.NoError(t, q.Cleanup(ctx))
	require.False(t, mr.Exists("fastgraph:queue:q1"))
	require.False(t, mr.Exists("fastgraph:queue:q1:cancel"))
}

func TestManagerKeyPrefix(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	m, err := NewManager(WithURL("redis://"+mr.Addr()), WithKeyPrefix("custom"))
	require.NoError(t, err)
	defer m.Close()

	q, err := m.CreateQueue(ctx, "q1", 0)
	require.NoError(t, err)
	require.NoError(t, q.Push(ctx, event.New("values", nil)))
	require.True(t, mr.Exists("custom:queue:q1"))
}

func TestManagerTracksQueues(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)

	q, err := m.CreateQueue(ctx, "q1", 0)
	require.NoError(t, err)

	got, err := m.GetQueue("q1")
	require.NoError(t, err)
	require.Equal(t, q, got)

	_, err = m.GetQueue("missing")
	require.Error(t, err)

	require.NoError(t, m.CancelQueue(ctx, "q1"))
	_, err = m.GetQueue("q1")
	require.Error(t, err)
	require.NoError(t, m.CancelQueue(ctx, "missing"))
}

func TestNewManagerBadURL(t *testing.T) {
	_, err := NewManager(WithURL("not-a-url"))
	require.Error(t, err)
}
