//
// Tencent is pleased to support the open source community by making fast-graph available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// fast-graph is licensed under the Apache License Version 2.0.
//
//

// Package simple provides a minimal sequential state-graph engine behind the
// graph boundary. Nodes run in registration order against a shared state
// map, may pause execution with an interrupt, and resume from checkpoints.
// It backs the demo binary and the test suites; production deployments plug
// a full engine in behind the same interfaces.
package simple

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/yyquiet/fast-graph/checkpoint"
	"github.com/yyquiet/fast-graph/graph"
)

// State is the mutable state shared by a graph's nodes.
type State map[string]any

// resumeKey carries the resume value of a Command into the re-executed node.
const resumeKey = "__resume__"

// defaultRecursionLimit bounds steps when the run config does not.
const defaultRecursionLimit = 25

// NodeFunc executes one node. It returns a state delta merged into the
// shared state, or an error. Returning an interrupt error pauses the run.
type NodeFunc func(ctx context.Context, state State) (State, error)

// interruptError signals a pause from inside a node.
type interruptError struct {
	value any
}

func (e *interruptError) Error() string {
	return fmt.Sprintf("interrupt: %v", e.value)
}

// NewInterrupt creates an error that pauses execution, surfacing value to
// the client so an external process can decide how to resume.
func NewInterrupt(value any) error {
	return &interruptError{value: value}
}

// ResumeValue returns the value supplied by a resume command to the
// interrupted node, consuming it.
func ResumeValue(state State) (any, bool) {
	v, ok := state[resumeKey]
	if ok {
		delete(state, resumeKey)
	}
	return v, ok
}

// RunContext returns the static context attached to the run, if any.
func RunContext(ctx context.Context) map[string]any {
	v, _ := ctx.Value(runContextKey{}).(map[string]any)
	return v
}

type runContextKey struct{}

type node struct {
	name     string
	fn       NodeFunc
	subgraph *Graph
}

// Graph is a sequential state-graph definition.
type Graph struct {
	name string

	mu    sync.RWMutex
	nodes []node
}

// New creates a graph definition with the given name.
func New(name string) *Graph {
	return &Graph{name: name}
}

// AddNode appends a node to the chain.
func (g *Graph) AddNode(name string, fn NodeFunc) *Graph {
	g.mu.Lock()
	g.nodes = append(g.nodes, node{name: name, fn: fn})
	g.mu.Unlock()
	return g
}

// AddSubgraphNode appends a nested graph executed as one node. With subgraph
// streaming enabled its inner events surface under the node's namespace.
func (g *Graph) AddSubgraphNode(name string, sub *Graph) *Graph {
	g.mu.Lock()
	g.nodes = append(g.nodes, node{name: name, subgraph: sub})
	g.mu.Unlock()
	return g
}

// Compile returns a fresh executable instance. Instances do not share
// mutable state.
func (g *Graph) Compile() (graph.CompiledGraph, error) {
	g.mu.RLock()
	nodes := make([]node, len(g.nodes))
	copy(nodes, g.nodes)
	g.mu.RUnlock()
	if len(nodes) == 0 {
		return nil, fmt.Errorf("graph %s has no nodes", g.name)
	}
	return &compiledGraph{name: g.name, nodes: nodes}, nil
}

var _ graph.CompiledGraph = (*compiledGraph)(nil)

type compiledGraph struct {
	name  string
	nodes []node
	saver checkpoint.Saver

	mu  sync.Mutex
	err error
}

// SetCheckpointer attaches a checkpoint store.
func (c *compiledGraph) SetCheckpointer(saver checkpoint.Saver) {
	c.saver = saver
}

// Err reports the terminal error of the execution.
func (c *compiledGraph) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *compiledGraph) setErr(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
}

// Stream drives the execution and emits events per the stream options.
func (c *compiledGraph) Stream(ctx context.Context, input any, opts *graph.StreamOptions) (<-chan graph.StreamEvent, error) {
	if opts == nil {
		opts = &graph.StreamOptions{}
	}
	run, err := c.prepareRun(ctx, input, opts)
	if err != nil {
		return nil, err
	}

	out := make(chan graph.StreamEvent)
	go func() {
		defer close(out)
		c.setErr(c.execute(run.ctx, run, opts, out))
	}()
	return out, nil
}

type runState struct {
	ctx       context.Context
	state     State
	startNode string
	threadID  string
	namespace string
	limit     int
}

// prepareRun resolves the input (fresh input vs. resume command) into the
// initial state and start node.
func (c *compiledGraph) prepareRun(ctx context.Context, input any, opts *graph.StreamOptions) (*runState, error) {
	run := &runState{ctx: ctx, state: State{}, limit: defaultRecursionLimit}
	if opts.Config.RecursionLimit > 0 {
		run.limit = opts.Config.RecursionLimit
	}
	if len(opts.Context) > 0 {
		run.ctx = context.WithValue(ctx, runContextKey{}, opts.Context)
	}
	if threadID, ok := opts.Config.Configurable[graph.ConfigKeyThreadID].(string); ok {
		run.threadID = threadID
	}
	if ns, ok := opts.Config.Configurable[graph.ConfigKeyCheckpointNS].(string); ok {
		run.namespace = ns
	}

	cmd, isResume := input.(*graph.Command)
	if !isResume {
		if m, ok := input.(map[string]any); ok {
			for k, v := range m {
				run.state[k] = v
			}
		} else if input != nil {
			run.state["input"] = input
		}
		return run, nil
	}

	// Resume: restore state from the checkpoint referenced by the config.
	if c.saver != nil && run.threadID != "" {
		checkpointID, _ := opts.Config.Configurable[graph.ConfigKeyCheckpointID].(string)
		ckpt, err := c.saver.Get(ctx, run.threadID, run.namespace, checkpointID)
		if err != nil {
			return nil, fmt.Errorf("load checkpoint: %w", err)
		}
		if ckpt != nil {
			for k, v := range ckpt.State {
				run.state[k] = v
			}
			run.startNode = ckpt.NextNode
		}
	}
	if update, ok := cmd.Update.(map[string]any); ok {
		for k, v := range update {
			run.state[k] = v
		}
	}
	if cmd.Resume != nil {
		run.state[resumeKey] = cmd.Resume
	}
	if len(cmd.Goto) > 0 {
		// Single-target redirection; sends with payloads merge the payload
		// into state before the target runs.
		target := cmd.Goto[0]
		run.startNode = target.Node
		if payload, ok := target.Input.(map[string]any); ok {
			for k, v := range payload {
				run.state[k] = v
			}
		}
	}
	return run, nil
}

func (c *compiledGraph) execute(ctx context.Context, run *runState, opts *graph.StreamOptions, out chan<- graph.StreamEvent) error {
	start := 0
	if run.startNode != "" {
		for i, n := range c.nodes {
			if n.name == run.startNode {
				start = i
				break
			}
		}
	}

	interruptBefore := toSet(opts.InterruptBefore)
	interruptAfter := toSet(opts.InterruptAfter)

	steps := 0
	for i := start; i < len(c.nodes); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		steps++
		if steps > run.limit {
			return fmt.Errorf("recursion limit %d reached", run.limit)
		}
		n := c.nodes[i]

		if _, ok := interruptBefore[n.name]; ok && run.startNode != n.name {
			return c.interrupt(ctx, run, opts, out, n.name,
				fmt.Sprintf("interrupt before node %s", n.name))
		}

		var (
			delta State
			err   error
		)
		if n.subgraph != nil {
			delta, err = c.runSubgraph(ctx, run, opts, out, n)
		} else {
			delta, err = n.fn(ctx, run.state)
		}
		if err != nil {
			var intr *interruptError
			if errors.As(err, &intr) {
				return c.interrupt(ctx, run, opts, out, n.name, intr.value)
			}
			return err
		}
		for k, v := range delta {
			run.state[k] = v
		}

		c.emit(ctx, opts, out, n.name, delta, run.state)
		c.saveCheckpoint(ctx, run, nextNodeName(c.nodes, i), steps)

		if _, ok := interruptAfter[n.name]; ok && i+1 < len(c.nodes) {
			return c.interrupt(ctx, run, opts, out, c.nodes[i+1].name,
				fmt.Sprintf("interrupt after node %s", n.name))
		}

		// A node re-run after an interrupt-before must not trip again.
		run.startNode = ""
	}
	return nil
}

// runSubgraph executes a nested graph against the shared state. Its inner
// events surface namespaced when subgraph streaming is on.
func (c *compiledGraph) runSubgraph(ctx context.Context, run *runState, opts *graph.StreamOptions, out chan<- graph.StreamEvent, n node) (State, error) {
	delta := State{}
	for _, inner := range n.subgraph.nodes {
		if inner.subgraph != nil {
			return nil, fmt.Errorf("nested subgraphs are not supported")
		}
		d, err := inner.fn(ctx, run.state)
		if err != nil {
			return nil, err
		}
		for k, v := range d {
			run.state[k] = v
			delta[k] = v
		}
		if opts.Subgraphs {
			c.emitNamespaced(ctx, opts, out, n.name, inner.name, d)
		}
	}
	return delta, nil
}

// interrupt persists a checkpoint pointing at the node to resume from and
// emits the interrupt payload on every selected state mode.
func (c *compiledGraph) interrupt(ctx context.Context, run *runState, opts *graph.StreamOptions, out chan<- graph.StreamEvent, nextNode string, value any) error {
	run.startNode = nextNode
	c.saveCheckpoint(ctx, run, nextNode, 0)

	payload := map[string]any{
		graph.InterruptKey: []any{map[string]any{"value": value}},
	}
	for _, mode := range normalizeModes(opts.StreamModes) {
		if mode != graph.StreamModeValues && mode != graph.StreamModeUpdates {
			continue
		}
		select {
		case out <- graph.ModeEvent(mode, payload):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (c *compiledGraph) emit(ctx context.Context, opts *graph.StreamOptions, out chan<- graph.StreamEvent, nodeName string, delta, state State) {
	for _, mode := range normalizeModes(opts.StreamModes) {
		var data any
		switch mode {
		case graph.StreamModeValues:
			data = copyState(state)
		case graph.StreamModeUpdates:
			data = map[string]any{nodeName: map[string]any(delta)}
		default:
			continue
		}
		select {
		case out <- graph.ModeEvent(mode, data):
		case <-ctx.Done():
			return
		}
	}
}

func (c *compiledGraph) emitNamespaced(ctx context.Context, opts *graph.StreamOptions, out chan<- graph.StreamEvent, namespace, nodeName string, delta State) {
	for _, mode := range normalizeModes(opts.StreamModes) {
		var data any
		switch mode {
		case graph.StreamModeValues:
			data = copyState(delta)
		case graph.StreamModeUpdates:
			data = map[string]any{nodeName: map[string]any(delta)}
		default:
			continue
		}
		select {
		case out <- graph.NamespacedEvent(namespace, mode, data):
		case <-ctx.Done():
			return
		}
	}
}

func (c *compiledGraph) saveCheckpoint(ctx context.Context, run *runState, nextNode string, step int) {
	if c.saver == nil || run.threadID == "" {
		return
	}
	ckpt := checkpoint.New(run.threadID, run.namespace, copyState(run.state))
	ckpt.NextNode = nextNode
	ckpt.Step = step
	// Checkpoint persistence failures do not abort the run.
	_ = c.saver.Put(ctx, ckpt)
}

func nextNodeName(nodes []node, i int) string {
	if i+1 < len(nodes) {
		return nodes[i+1].name
	}
	return ""
}

func normalizeModes(modes []string) []string {
	if len(modes) == 0 {
		return []string{graph.StreamModeValues}
	}
	return modes
}

func toSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}
	return set
}

func copyState(state State) map[string]any {
	out := make(map[string]any, len(state))
	for k, v := range state {
		if k == resumeKey {
			continue
		}
		out[k] = v
	}
	return out
}
