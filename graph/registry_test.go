//
// Tencent is pleased to support the open source community by making fast-graph available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// fast-graph is licensed under the Apache License Version 2.0.
//
//

package graph

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yyquiet/fast-graph/checkpoint"
)

type stubCompiled struct{}

func (s *stubCompiled) Stream(ctx context.Context, input any, opts *StreamOptions) (<-chan StreamEvent, error) {
	out := make(chan StreamEvent)
	close(out)
	return out, nil
}
func (s *stubCompiled) Err() error { return nil }

func (s *stubCompiled) SetCheckpointer(saver checkpoint.Saver) {}

type stubGraph struct {
	compileErr error
	compiles   int
}

func (g *stubGraph) Compile() (CompiledGraph, error) {
	g.compiles++
	if g.compileErr != nil {
		return nil, g.compileErr
	}
	return &stubCompiled{}, nil
}

func TestRegistryGetCompilesFreshInstances(t *testing.T) {
	r := NewRegistry()
	def := &stubGraph{}
	r.Register("g1", def)

	first, err := r.Get("g1")
	require.NoError(t, err)
	require.NotNil(t, first)
	second, err := r.Get("g1")
	require.NoError(t, err)
	require.NotNil(t, second)
	require.Equal(t, 2, def.compiles)
}

func TestRegistryGetUnknown(t *testing.T) {
	r := NewRegistry()
	g, err := r.Get("missing")
	require.NoError(t, err)
	require.Nil(t, g)
}

func TestRegistryGetCompileError(t *testing.T) {
	r := NewRegistry()
	r.Register("broken", &stubGraph{compileErr: errors.New("no nodes")})
	g, err := r.Get("broken")
	require.Error(t, err)
	require.Nil(t, g)
}

func TestRegistryRegisterOverwrites(t *testing.T) {
	r := NewRegistry()
	first := &stubGraph{}
	second := &stubGraph{}
	r.Register("g1", first)
	r.Register("g1", second)

	_, err := r.Get("g1")
	require.NoError(t, err)
	require.Equal(t, 0, first.compiles)
	require.Equal(t, 1, second.compiles)
	require.Equal(t, []string{"g1"}, r.IDs())
}
