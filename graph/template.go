// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package graph

import (
	"fmt"
)

// NodeInst instantiates a registered node type within a GraphTemplate.
type NodeInst struct {
	ID NodeID
	// Label is a debug name for logs and introspection. Defaults to
	// "<ID>#<index>" when empty.
	Label string
}

// PinRef addresses a single pin by the name it was declared with at
// registration, on the node instance at index Node within the
// GraphTemplate's node list (§3 "A pin is addressed by (node index,
// pin slot)"; PinRef resolves the friendlier name form of that
// address at validation time).
type PinRef struct {
	Node int
	Pin  string
}

// Connection wires one output pin to one input pin. Resource and data
// inputs accept at most one incoming Connection; data-sink inputs
// accept any number, each contributed by a different output pin
// (§3).
type Connection struct {
	From PinRef
	To   PinRef
}

// BuildError is returned by NewGraphTemplate for construction
// failures, and by BuildContext accessors for build-phase failures
// (§4.2/§7's taxonomy); Phase distinguishes the two.
type BuildError struct {
	Phase string // PhaseConstruction or PhaseBuild
	Kind  string // e.g. "unknown-node-type", "unknown-pin", ...
	Node  int
	Pin   string
	Msg   string
}

func (e *BuildError) Error() string {
	if e.Pin != "" {
		return fmt.Sprintf("graph: %s: %s: node %d, pin %q: %s", e.Phase, e.Kind, e.Node, e.Pin, e.Msg)
	}
	if e.Node >= 0 {
		return fmt.Sprintf("graph: %s: %s: node %d: %s", e.Phase, e.Kind, e.Node, e.Msg)
	}
	return fmt.Sprintf("graph: %s: %s: %s", e.Phase, e.Kind, e.Msg)
}

// compiledPin is one entry of a GraphTemplate's flat pin-storage
// arena (§4.3): every (node, pin-slot) pair in the template gets
// exactly one entry, addressed by its position in the arena.
type compiledPin struct {
	desc  PinDesc
	owner int // node index
	local int // slot within owner's NodeDesc.Pins

	// aliasTo is, for a non-sink input pin, the arena index of the
	// output pin it is wired to (or -1 if unconnected). Input pins
	// have no storage of their own; they alias the producer's cell,
	// avoiding the copy a separate storage slot would force.
	aliasTo int

	// fanout is, for a sink output pin, the arena indices of every
	// sink input pin it is connected to. A push() targeting this
	// pin is mirrored into every indexed slot.
	fanout []int
}

// templateNode is one node instance within a GraphTemplate.
type templateNode struct {
	id    NodeID
	label string
	desc  *NodeDesc
	// base is the offset of this node's first pin within
	// GraphTemplate.pins.
	base int
}

// edge is a planner dependency: node Before must be ordered strictly
// before node After.
type edge struct{ before, after int }

// GraphTemplate is the immutable, validated authored description of a
// frame graph (C2). It is built once with NewGraphTemplate and
// instantiated (possibly many times, e.g. one FrameGraph per
// swapchain) with NewFrameGraph.
type GraphTemplate struct {
	reg   *Registry
	nodes []templateNode
	pins  []compiledPin
	edges []edge

	// sinkReader[slot] is the node index that owns the sink input
	// pin occupying arena slot `slot`; used to validate that every
	// contributor precedes its reader (§3).
	sinkReader map[int]int

	// order is the planner's last computed topological order, cached
	// since connections never change after NewGraphTemplate validates
	// them once.
	order []int
}

// NewGraphTemplate validates nodes and connections against reg and
// produces an immutable GraphTemplate, or the first BuildError
// encountered (§4.2). Nodes are validated in order, then connections;
// within connections, both endpoints are resolved before the
// kind/type compatibility checks run.
func NewGraphTemplate(reg *Registry, nodes []NodeInst, conns []Connection) (*GraphTemplate, error) {
	t := &GraphTemplate{reg: reg, sinkReader: map[int]int{}}
	t.nodes = make([]templateNode, len(nodes))

	for i, n := range nodes {
		desc, ok := reg.Find(n.ID)
		if !ok {
			return nil, &BuildError{Phase: PhaseConstruction, Kind: "unknown-node-type", Node: i, Msg: string(n.ID)}
		}
		label := n.Label
		if label == "" {
			label = fmt.Sprintf("%s#%d", n.ID, i)
		}
		t.nodes[i] = templateNode{id: n.ID, label: label, desc: desc, base: len(t.pins)}
		for slot, pd := range desc.Pins {
			t.pins = append(t.pins, compiledPin{desc: pd, owner: i, local: slot, aliasTo: -1})
			if pd.Kind == KindSink && pd.Dir == In {
				t.sinkReader[t.nodes[i].base+slot] = i
			}
		}
	}

	seenInput := map[int]bool{}
	for _, c := range conns {
		fromSlot, err := t.resolve(c.From)
		if err != nil {
			return nil, err
		}
		toSlot, err := t.resolve(c.To)
		if err != nil {
			return nil, err
		}
		from := &t.pins[fromSlot]
		to := &t.pins[toSlot]
		if from.desc.Dir != Out {
			return nil, &BuildError{Phase: PhaseConstruction, Kind: "pin-kind-mismatch", Node: c.From.Node, Pin: c.From.Pin, Msg: "connection source must be an output pin"}
		}
		if to.desc.Dir != In {
			return nil, &BuildError{Phase: PhaseConstruction, Kind: "pin-kind-mismatch", Node: c.To.Node, Pin: c.To.Pin, Msg: "connection destination must be an input pin"}
		}
		if from.desc.Kind != to.desc.Kind {
			return nil, &BuildError{Phase: PhaseConstruction, Kind: "pin-kind-mismatch", Node: c.To.Node, Pin: c.To.Pin, Msg: "connection endpoints differ in pin kind"}
		}
		if from.desc.Type != to.desc.Type {
			return nil, &BuildError{Phase: PhaseConstruction, Kind: "type-mismatch", Node: c.To.Node, Pin: c.To.Pin, Msg: fmt.Sprintf("%s != %s", from.desc.Type, to.desc.Type)}
		}
		if to.desc.Kind == KindSink {
			from.fanout = append(from.fanout, toSlot)
		} else {
			if seenInput[toSlot] {
				return nil, &BuildError{Phase: PhaseConstruction, Kind: "duplicate-input", Node: c.To.Node, Pin: c.To.Pin, Msg: "input pin already has a source"}
			}
			seenInput[toSlot] = true
			to.aliasTo = fromSlot
		}
		t.edges = append(t.edges, edge{before: c.From.Node, after: c.To.Node})
	}

	if _, err := t.plan(); err != nil {
		return nil, err
	}
	return t, nil
}

// resolve looks up the arena slot for a PinRef, failing with
// unknown-pin/unknown-node-type as appropriate.
func (t *GraphTemplate) resolve(ref PinRef) (int, error) {
	if ref.Node < 0 || ref.Node >= len(t.nodes) {
		return 0, &BuildError{Phase: PhaseConstruction, Kind: "unknown-node-type", Node: ref.Node, Msg: "node index out of range"}
	}
	n := &t.nodes[ref.Node]
	slot := n.desc.pinSlot(ref.Pin)
	if slot < 0 {
		return 0, &BuildError{Phase: PhaseConstruction, Kind: "unknown-pin", Node: ref.Node, Pin: ref.Pin, Msg: "no such pin on " + string(n.id)}
	}
	return n.base + slot, nil
}

// Describe returns read-only introspection data about the template:
// node labels and the currently planned order. It exists to support
// an external graph-debugger view the way the original engine's
// frame_graph_window does, without exposing live frame state
// (SPEC_FULL "SUPPLEMENTED FEATURES" item 5).
func (t *GraphTemplate) Describe() []string {
	order, _ := t.plan()
	out := make([]string, len(order))
	for i, n := range order {
		out[i] = t.nodes[n].label
	}
	return out
}
