// Copyright 2024 Gustavo C. Viegas. All rights reserved.

// Package graph implements the per-frame declarative render graph:
// nodes of GPU work are registered by a stable identifier, wired
// together by pin connections into a GraphTemplate, and instantiated
// into a FrameGraph that is re-planned, built, resource-allocated,
// barrier-stitched and executed once per frame.
package graph

import "reflect"

// NodeID identifies a node type in a Registry.
// It is stable across process runs (e.g. a string constant),
// unlike the node's instance index in a GraphTemplate.
type NodeID string

// PinDir is the direction of a Pin.
type PinDir uint8

const (
	In PinDir = iota
	Out
)

func (d PinDir) String() string {
	if d == Out {
		return "out"
	}
	return "in"
}

// PinKind is the kind of value a Pin carries.
type PinKind uint8

const (
	// KindData pins carry a CPU value, reset every frame unless
	// their producer is stable.
	KindData PinKind = iota
	// KindResource pins carry a transient or stable GPU buffer
	// or image handle.
	KindResource
	// KindSink pins accumulate contributions from many producers
	// as an unordered multiset, readable only after every
	// contributor has run.
	KindSink
)

func (k PinKind) String() string {
	switch k {
	case KindResource:
		return "resource"
	case KindSink:
		return "data-sink"
	default:
		return "data"
	}
}

// PinDesc describes a single pin of a node type, declared once at
// registration (§4.1).
type PinDesc struct {
	// Name identifies the pin within its node, for error messages
	// and Connection authoring by name (see NodeInst/Connection).
	Name string
	Dir  PinDir
	Kind PinKind
	// Type is the payload's static type: the element type for
	// KindData and KindSink pins, or the resource's logical type
	// (e.g. reflect.TypeOf(Buffer{}) or reflect.TypeOf(Image{}))
	// for KindResource pins. GraphTemplate validation rejects
	// connections whose Type values differ (type-mismatch, §4.2).
	Type reflect.Type
}

// Node is the interface every node type's per-instance state must
// implement. It is the idiomatic-Go analogue of the original engine's
// render_graph_node "concept" (a node is any default-constructible type
// exposing build/execute); Go expresses that constraint as an interface
// rather than a compile-time concept.
type Node interface {
	// Build declares this node's resource and data accesses for the
	// current frame and, for nodes that record GPU commands, the
	// pass kind (§4.5).
	Build(*BuildContext) error
	// Execute records the node's GPU commands using handles resolved
	// from the accesses declared in Build (§4.8).
	Execute(*ExecuteContext) error
}

// Initializer is implemented by node types that need one-time setup
// (e.g. allocating a stable resource, looking up a pipeline) when the
// node is first instantiated into a live FrameGraph.
type Initializer interface {
	Init(*InitContext) error
}

// Ctor creates a new, zero-valued instance of a node type's state.
type Ctor func() Node

// NodeDesc is what NodeRegistry.Register binds a NodeID to: a
// constructor and the node type's fixed pin layout (§4.1).
type NodeDesc struct {
	ID   NodeID
	New  Ctor
	Pins []PinDesc
}

// pinSlot returns the index of the named pin in d.Pins, or -1.
func (d *NodeDesc) pinSlot(name string) int {
	for i := range d.Pins {
		if d.Pins[i].Name == name {
			return i
		}
	}
	return -1
}
