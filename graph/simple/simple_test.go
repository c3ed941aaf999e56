//
// Tencent is pleased to support the open source community by making fast-graph available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// fast-graph is licensed under the Apache License Version 2.0.
//
//

package simple

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	checkpointinmemory "github.com/yyquiet/fast-graph/checkpoint/inmemory"
	"github.com/yyquiet/fast-graph/graph"
)

func appendNode(tag string) NodeFunc {
	return func(ctx context.Context, state State) (State, error) {
		content, _ := state["content"].(string)
		return State{"content": content + tag}, nil
	}
}

func collect(t *testing.T, events <-chan graph.StreamEvent) []graph.StreamEvent {
	t.Helper()
	var out []graph.StreamEvent
	for ev := range events {
		out = append(out, ev)
	}
	return out
}

func streamOpts(threadID string, modes ...string) *graph.StreamOptions {
	opts := &graph.StreamOptions{StreamModes: modes}
	if threadID != "" {
		opts.Config.Configurable = map[string]any{graph.ConfigKeyThreadID: threadID}
	}
	return opts
}

func TestSequentialExecution(t *testing.T) {
	g := New("demo").
		AddNode("a", appendNode("[a]")).
		AddNode("b", appendNode("[b]"))
	compiled, err := g.Compile()
	require.NoError(t, err)

	events, err := compiled.Stream(context.Background(), map[string]any{"content": ""}, streamOpts(""))
	require.NoError(t, err)
	got := collect(t, events)
	require.NoError(t, compiled.Err())

	require.Len(t, got, 2)
	require.Equal(t, graph.StreamModeValues, got[0].Mode)
	require.Equal(t, map[string]any{"content": "[a]"}, got[0].Data)
	require.Equal(t, map[string]any{"content": "[a][b]"}, got[1].Data)
}

func TestUpdatesMode(t *testing.T) {
	g := New("demo").
		AddNode("a", appendNode("[a]")).
		AddNode("b", appendNode("[b]"))
	compiled, err := g.Compile()
	require.NoError(t, err)

	events, err := compiled.Stream(context.Background(), map[string]any{"content": ""},
		streamOpts("", graph.StreamModeValues, graph.StreamModeUpdates))
	require.NoError(t, err)
	got := collect(t, events)

	// Each node emits one event per selected mode.
	require.Len(t, got, 4)
	require.Equal(t, graph.StreamModeUpdates, got[1].Mode)
	require.Equal(t, map[string]any{"a": map[string]any{"content": "[a]"}}, got[1].Data)
	require.Equal(t, map[string]any{"b": map[string]any{"content": "[a][b]"}}, got[3].Data)
}

func TestCompileEmptyGraph(t *testing.T) {
	_, err := New("empty").Compile()
	require.Error(t, err)
}

func TestNodeError(t *testing.T) {
	boom := errors.New("node exploded")
	g := New("demo").
		AddNode("a", appendNode("[a]")).
		AddNode("fail", func(ctx context.Context, state State) (State, error) {
			return nil, boom
		}).
		AddNode("never", appendNode("[never]"))
	compiled, err := g.Compile()
	require.NoError(t, err)

	events, err := compiled.Stream(context.Background(), nil, streamOpts(""))
	require.NoError(t, err)
	got := collect(t, events)

	require.Len(t, got, 1)
	require.ErrorIs(t, compiled.Err(), boom)
}

func TestInterruptAndResume(t *testing.T) {
	ctx := context.Background()
	saver := checkpointinmemory.NewSaver()

	build := func() graph.CompiledGraph {
		g := New("demo").
			AddNode("a", appendNode("[a]")).
			AddNode("approve", func(ctx context.Context, state State) (State, error) {
				v, resumed := ResumeValue(state)
				if !resumed {
					return nil, NewInterrupt(map[string]any{"message": "approval required"})
				}
				content, _ := state["content"].(string)
				return State{"content": content + "[" + v.(string) + "]"}, nil
			}).
			AddNode("b", appendNode("[b]"))
		compiled, err := g.Compile()
		require.NoError(t, err)
		compiled.SetCheckpointer(saver)
		return compiled
	}

	first := build()
	events, err := first.Stream(ctx, map[string]any{"content": ""}, streamOpts("t1"))
	require.NoError(t, err)
	got := collect(t, events)
	require.NoError(t, first.Err())

	// One value event for node a, then the interrupt payload.
	require.Len(t, got, 2)
	require.True(t, got[1].IsInterrupt())
	payload := got[1].Data.(map[string]any)[graph.InterruptKey].([]any)
	require.Equal(t, map[string]any{"message": "approval required"},
		payload[0].(map[string]any)["value"])

	// Resume on a fresh instance: the checkpoint restores state and restarts
	// the interrupted node with the resume value.
	second := build()
	events, err = second.Stream(ctx, &graph.Command{Resume: "approved"}, streamOpts("t1"))
	require.NoError(t, err)
	got = collect(t, events)
	require.NoError(t, second.Err())

	require.Len(t, got, 2)
	require.Equal(t, map[string]any{"content": "[a][approved]"}, got[0].Data)
	require.Equal(t, map[string]any{"content": "[a][approved][b]"}, got[1].Data)
}

func TestResumeWithUpdateAndGoto(t *testing.T) {
	ctx := context.Background()
	saver := checkpointinmemory.NewSaver()

	g := New("demo").
		AddNode("a", appendNode("[a]")).
		AddNode("b", appendNode("[b]")).
		AddNode("c", appendNode("[c]"))
	compiled, err := g.Compile()
	require.NoError(t, err)
	compiled.SetCheckpointer(saver)

	// The goto directive overrides the checkpoint's next node; the update
	// patch replaces checkpoint state.
	events, err := compiled.Stream(ctx, &graph.Command{
		Update: map[string]any{"content": "reset"},
		Goto:   []graph.Send{{Node: "c", Input: map[string]any{"extra": true}}},
	}, streamOpts("t1"))
	require.NoError(t, err)
	got := collect(t, events)
	require.NoError(t, compiled.Err())

	require.Len(t, got, 1)
	require.Equal(t, map[string]any{"content": "reset[c]", "extra": true}, got[0].Data)
}

func TestInterruptBeforeAndAfter(t *testing.T) {
	ctx := context.Background()

	g := New("demo").
		AddNode("a", appendNode("[a]")).
		AddNode("b", appendNode("[b]"))
	compiled, err := g.Compile()
	require.NoError(t, err)

	opts := streamOpts("")
	opts.InterruptBefore = []string{"b"}
	events, err := compiled.Stream(ctx, nil, opts)
	require.NoError(t, err)
	got := collect(t, events)
	require.Len(t, got, 2)
	require.True(t, got[1].IsInterrupt())

	compiled, err = g.Compile()
	require.NoError(t, err)
	opts = streamOpts("")
	opts.InterruptAfter = []string{"a"}
	events, err = compiled.Stream(ctx, nil, opts)
	require.NoError(t, err)
	got = collect(t, events)
	require.Len(t, got, 2)
	require.True(t, got[1].IsInterrupt())
}

func TestRecursionLimit(t *testing.T) {
	g := New("deep")
	for i := 0; i < 5; i++ {
		g.AddNode(string(rune('a'+i)), appendNode("."))
	}
	compiled, err := g.Compile()
	require.NoError(t, err)

	opts := streamOpts("")
	opts.Config.RecursionLimit = 3
	events, err := compiled.Stream(context.Background(), nil, opts)
	require.NoError(t, err)
	got := collect(t, events)

	require.Len(t, got, 3)
	require.ErrorContains(t, compiled.Err(), "recursion limit")
}

func TestSubgraphStreaming(t *testing.T) {
	sub := New("inner").
		AddNode("x", appendNode("[x]")).
		AddNode("y", appendNode("[y]"))
	g := New("outer").
		AddNode("a", appendNode("[a]")).
		AddSubgraphNode("nested", sub)
	compiled, err := g.Compile()
	require.NoError(t, err)

	opts := streamOpts("")
	opts.Subgraphs = true
	events, err := compiled.Stream(context.Background(), map[string]any{"content": ""}, opts)
	require.NoError(t, err)
	got := collect(t, events)
	require.NoError(t, compiled.Err())

	// a, then x and y namespaced under "nested", then the subgraph node's own
	// top-level event.
	require.Len(t, got, 4)
	require.Empty(t, got[0].Namespace)
	require.Equal(t, "nested", got[1].Namespace)
	require.Equal(t, "nested", got[2].Namespace)
	require.Empty(t, got[3].Namespace)
	require.Equal(t, map[string]any{"content": "[a][x][y]"}, got[3].Data)
}

func TestSubgraphEventsHiddenByDefault(t *testing.T) {
	sub := New("inner").AddNode("x", appendNode("[x]"))
	g := New("outer").AddSubgraphNode("nested", sub)
	compiled, err := g.Compile()
	require.NoError(t, err)

	events, err := compiled.Stream(context.Background(), map[string]any{"content": ""}, streamOpts(""))
	require.NoError(t, err)
	got := collect(t, events)

	require.Len(t, got, 1)
	require.Empty(t, got[0].Namespace)
}

func TestRunContext(t *testing.T) {
	g := New("demo").AddNode("a", func(ctx context.Context, state State) (State, error) {
		rc := RunContext(ctx)
		return State{"user": rc["user"]}, nil
	})
	compiled, err := g.Compile()
	require.NoError(t, err)

	opts := streamOpts("")
	opts.Context = map[string]any{"user": "alice"}
	events, err := compiled.Stream(context.Background(), nil, opts)
	require.NoError(t, err)
	got := collect(t, events)

	require.Equal(t, map[string]any{"user": "alice"}, got[0].Data)
}

func TestScalarInput(t *testing.T) {
	g := New("demo").AddNode("a", func(ctx context.Context, state State) (State, error) {
		return State{"echo": state["input"]}, nil
	})
	compiled, err := g.Compile()
	require.NoError(t, err)

	events, err := compiled.Stream(context.Background(), "hello", streamOpts(""))
	require.NoError(t, err)
	got := collect(t, events)
	require.Equal(t, map[string]any{"input": "hello", "echo": "hello"}, got[0].Data)
}
