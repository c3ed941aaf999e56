//
// Tencent is pleased to support the open source community by making fast-graph available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// fast-graph is licensed under the Apache License Version 2.0.
//
//

package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yyquiet/fast-graph/errs"
	"github.com/yyquiet/fast-graph/thread"
	threadinmemory "github.com/yyquiet/fast-graph/thread/inmemory"
)

func newThreadService() *ThreadService {
	return NewThreadService(threadinmemory.NewManager())
}

func TestThreadServiceCreate(t *testing.T) {
	ctx := context.Background()
	svc := newThreadService()

	created, err := svc.Create(ctx, &ThreadCreateRequest{
		ThreadID: "t1",
		Metadata: map[string]any{"user": "alice"},
	})
	require.NoError(t, err)
	require.Equal(t, "t1", created.ThreadID)
	require.Equal(t, thread.StatusIdle, created.Status)

	// Default policy raises on duplicates.
	_, err = svc.Create(ctx, &ThreadCreateRequest{ThreadID: "t1"})
	require.True(t, errs.Is(err, errs.KindExists))

	existing, err := svc.Create(ctx, &ThreadCreateRequest{ThreadID: "t1", IfExists: "do_nothing"})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"user": "alice"}, existing.Metadata)

	_, err = svc.Create(ctx, &ThreadCreateRequest{ThreadID: "t2", IfExists: "replace"})
	require.True(t, errs.Is(err, errs.KindValidation))
}

func TestThreadServiceSearch(t *testing.T) {
	ctx := context.Background()
	svc := newThreadService()

	_, err := svc.Create(ctx, &ThreadCreateRequest{ThreadID: "t1"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, &ThreadCreateRequest{ThreadID: "t2"})
	require.NoError(t, err)

	threads, err := svc.Search(ctx, &ThreadSearchRequest{Status: "idle"})
	require.NoError(t, err)
	require.Len(t, threads, 2)

	_, err = svc.Search(ctx, &ThreadSearchRequest{Status: "sleeping"})
	require.True(t, errs.Is(err, errs.KindValidation))
}

func TestThreadServiceUpdate(t *testing.T) {
	ctx := context.Background()
	svc := newThreadService()

	_, err := svc.Create(ctx, &ThreadCreateRequest{ThreadID: "t1"})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, "t1", &ThreadUpdateRequest{
		Metadata: map[string]any{"note": "x"},
		Status:   "interrupted",
	})
	require.NoError(t, err)
	require.Equal(t, thread.StatusInterrupted, updated.Status)
	require.Equal(t, map[string]any{"note": "x"}, updated.Metadata)

	_, err = svc.Update(ctx, "t1", &ThreadUpdateRequest{Status: "sleeping"})
	require.True(t, errs.Is(err, errs.KindValidation))

	_, err = svc.Update(ctx, "missing", &ThreadUpdateRequest{Status: "idle"})
	require.True(t, errs.Is(err, errs.KindNotFound))
}

func TestThreadServiceDelete(t *testing.T) {
	ctx := context.Background()
	svc := newThreadService()

	_, err := svc.Create(ctx, &ThreadCreateRequest{ThreadID: "t1"})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, "t1"))

	_, err = svc.Get(ctx, "t1")
	require.True(t, errs.Is(err, errs.KindNotFound))
	require.True(t, errs.Is(svc.Delete(ctx, "t1"), errs.KindNotFound))
}
