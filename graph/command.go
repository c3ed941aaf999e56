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
	"encoding/json"
	"fmt"
)

// Send directs a node to be executed with a provided input.
type Send struct {
	// Node is the node to send the input to.
	Node string `json:"node"`
	// Input is the payload delivered to the node. Nil when the goto was a
	// plain node name.
	Input any `json:"input,omitempty"`
}

// Command resumes a previously interrupted run. When a run request carries
// both a command and an input, the command takes precedence: it represents
// resuming existing state rather than starting fresh.
type Command struct {
	// Update is an optional patch applied to the graph state.
	Update any `json:"update,omitempty"`
	// Resume is an optional value delivered to the paused node.
	Resume any `json:"resume,omitempty"`
	// Goto optionally redirects control flow. Decoded from a single node
	// name, a list of names, a send object or a list of send objects; all
	// shapes normalize to a list of sends here at the boundary.
	Goto []Send `json:"goto,omitempty"`
}

// commandWire mirrors Command with the goto field left raw.
type commandWire struct {
	Update json.RawMessage `json:"update"`
	Resume json.RawMessage `json:"resume"`
	Goto   json.RawMessage `json:"goto"`
}

// UnmarshalJSON decodes the heterogeneous goto shapes into []Send.
func (c *Command) UnmarshalJSON(data []byte) error {
	var wire commandWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	if len(wire.Update) > 0 {
		if err := json.Unmarshal(wire.Update, &c.Update); err != nil {
			return fmt.Errorf("decode command update: %w", err)
		}
	}
	if len(wire.Resume) > 0 {
		if err := json.Unmarshal(wire.Resume, &c.Resume); err != nil {
			return fmt.Errorf("decode command resume: %w", err)
		}
	}
	if len(wire.Goto) == 0 || string(wire.Goto) == "null" {
		return nil
	}
	sends, err := decodeGoto(wire.Goto)
	if err != nil {
		return err
	}
	c.Goto = sends
	return nil
}

func decodeGoto(raw json.RawMessage) ([]Send, error) {
	// Single node name.
	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		return []Send{{Node: name}}, nil
	}
	// Single send object.
	var send Send
	if err := json.Unmarshal(raw, &send); err == nil && send.Node != "" {
		return []Send{send}, nil
	}
	// List of names and/or send objects.
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode command goto: unsupported shape %s", raw)
	}
	sends := make([]Send, 0, len(items))
	for _, item := range items {
		var itemName string
		if err := json.Unmarshal(item, &itemName); err == nil {
			sends = append(sends, Send{Node: itemName})
			continue
		}
		var itemSend Send
		if err := json.Unmarshal(item, &itemSend); err != nil || itemSend.Node == "" {
			return nil, fmt.Errorf("decode command goto: unsupported element %s", item)
		}
		sends = append(sends, itemSend)
	}
	return sends, nil
}
