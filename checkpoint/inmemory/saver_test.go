//
// Tencent is pleased to support the open source community by making fast-graph available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// fast-graph is licensed under the Apache License Version 2.0.
//
//

package inmemory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yyquiet/fast-graph/checkpoint"
)

func TestPutGet(t *testing.T) {
	ctx := context.Background()
	s := NewSaver()

	first := checkpoint.New("t1", "", map[string]any{"step": 1})
	second := checkpoint.New("t1", "", map[string]any{"step": 2})
	require.NoError(t, s.Put(ctx, first))
	require.NoError(t, s.Put(ctx, second))

	// Empty id resolves to the latest checkpoint.
	latest, err := s.Get(ctx, "t1", "", "")
	require.NoError(t, err)
	require.Equal(t, second.ID, latest.ID)

	byID, err := s.Get(ctx, "t1", "", first.ID)
	require.NoError(t, err)
	require.Equal(t, first.ID, byID.ID)
	require.Equal(t, map[string]any{"step": 1}, byID.State)
}

func TestGetMissing(t *testing.T) {
	ctx := context.Background()
	s := NewSaver()

	got, err := s.Get(ctx, "unknown", "", "")
	require.NoError(t, err)
	require.Nil(t, got)

	require.NoError(t, s.Put(ctx, checkpoint.New("t1", "", nil)))
	got, err = s.Get(ctx, "t1", "", "no-such-id")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestNamespaceIsolation(t *testing.T) {
	ctx := context.Background()
	s := NewSaver()

	root := checkpoint.New("t1", "", map[string]any{"scope": "root"})
	sub := checkpoint.New("t1", "sub", map[string]any{"scope": "sub"})
	require.NoError(t, s.Put(ctx, root))
	require.NoError(t, s.Put(ctx, sub))

	got, err := s.Get(ctx, "t1", "", "")
	require.NoError(t, err)
	require.Equal(t, root.ID, got.ID)

	got, err = s.Get(ctx, "t1", "sub", "")
	require.NoError(t, err)
	require.Equal(t, sub.ID, got.ID)
}

func TestListNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := NewSaver()

	first := checkpoint.New("t1", "", nil)
	second := checkpoint.New("t1", "", nil)
	require.NoError(t, s.Put(ctx, first))
	require.NoError(t, s.Put(ctx, second))

	ckpts, err := s.List(ctx, "t1", "")
	require.NoError(t, err)
	require.Len(t, ckpts, 2)
	require.Equal(t, second.ID, ckpts[0].ID)
	require.Equal(t, first.ID, ckpts[1].ID)
}

func TestDeleteThread(t *testing.T) {
	ctx := context.Background()
	s := NewSaver()

	require.NoError(t, s.Put(ctx, checkpoint.New("t1", "", nil)))
	require.NoError(t, s.Put(ctx, checkpoint.New("t1", "sub", nil)))
	require.NoError(t, s.Put(ctx, checkpoint.New("t2", "", nil)))

	require.NoError(t, s.DeleteThread(ctx, "t1"))

	got, err := s.Get(ctx, "t1", "", "")
	require.NoError(t, err)
	require.Nil(t, got)
	got, err = s.Get(ctx, "t1", "sub", "")
	require.NoError(t, err)
	require.Nil(t, got)

	got, err = s.Get(ctx, "t2", "", "")
	require.NoError(t, err)
	require.NotNil(t, got)
}

func TestManagerLifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewManager()
	require.NoError(t, m.Init(ctx))
	require.NotNil(t, m.Saver())
	require.NoError(t, m.Close())
}
