// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package graph

import (
	"fmt"

	"forge/driver"
)

// Buffer and Image are marker payload types for ResourcePin: a node
// declares ResourcePinDesc[Buffer] or ResourcePinDesc[Image] rather
// than carrying the driver handle itself, which is only resolved once
// the transient pool has run (§4.8).
type Buffer struct{}

// Image is the marker payload type for image resource pins.
type Image struct{}

// globalSlot converts a node-local pin slot to its arena index.
func (t *GraphTemplate) globalSlot(node, local int) int {
	return t.nodes[node].base + local
}

// InitContext is passed to Initializer.Init exactly once, when a node
// is first instantiated into a live FrameGraph (§4.1, §4.5). It
// exposes the GPU for one-time setup such as allocating a stable
// resource or compiling a pipeline, the way engine/internal/ctxt
// exposes the GPU to engine package setup code.
type InitContext struct {
	fg   *FrameGraph
	node int
}

// GPU returns the driver.GPU the live FrameGraph was created with.
func (c *InitContext) GPU() driver.GPU { return c.fg.gpu }

// Env returns the user-supplied environment value the FrameGraph was
// created with (SPEC_FULL "SUPPLEMENTED FEATURES" item 4): arbitrary
// shared state (e.g. a shader cache or a scene database) nodes need
// at setup time but which the graph itself has no opinion about.
func (c *InitContext) Env() any { return c.fg.env }

// BuildContext is passed to Node.Build once per frame (C5, §4.5). A
// node declares, through this context, every resource it creates or
// acquires and every sink contribution it pushes; the frame graph
// uses those declarations to plan barriers (C7) and allocate
// transient storage (C6) before Execute ever runs.
type BuildContext struct {
	fg    *FrameGraph
	node  int
	pass  passRecord
	began bool
}

// BeginPass declares the kind of GPU work this node performs this
// frame. It must be called at most once per Build, before any
// Acquire/Create call (§4.5). Nodes that only move CPU data (no GPU
// commands) may skip it; PassNone is assumed.
func (c *BuildContext) BeginPass(kind PassKind) {
	c.pass.kind = kind
}

// Data returns the value connected to a data input pin. Reading an
// input pin whose producer hasn't run this frame, or that has no
// connection at all, is a programming error reported by Execute's
// caller as a build-phase failure rather than a panic, matching §7's
// "resource read with no producer" category (the same check applies
// uniformly to data and resource pins).
func Data[T any](c *BuildContext, pin DataPin[T]) (T, error) {
	var zero T
	slot := c.fg.tmpl.globalSlot(c.node, pin.slot)
	src := c.fg.tmpl.resolveData(slot)
	if src < 0 {
		return zero, &BuildError{Phase: PhaseBuild, Kind: "unconnected-input", Node: c.node, Msg: "data pin has no source"}
	}
	v := c.fg.arena.data[src]
	if v == nil {
		return zero, &BuildError{Phase: PhaseBuild, Kind: "no-producer", Node: c.node, Msg: "data pin's producer has not run"}
	}
	return v.(T), nil
}

// SetData publishes the value of one of this node's own output data
// pins for the current frame.
func SetData[T any](c *BuildContext, pin DataPin[T], v T) {
	slot := c.fg.tmpl.globalSlot(c.node, pin.slot)
	c.fg.arena.data[slot] = v
}

// CreateBuffer declares that this node produces the buffer resource
// connected to an output ResourcePin[Buffer] this frame, with the
// given descriptor. The actual driver.Buffer is not available until
// Execute; Build only declares intent, matching the original engine's
// two-phase build/execute split (render_graph_node.hpp).
func CreateBuffer(c *BuildContext, pin ResourcePin[Buffer], desc BufferDesc) resourceHandle {
	slot := c.fg.tmpl.globalSlot(c.node, pin.slot)
	c.fg.arena.resources[slot] = resourceState{produced: true, bufDesc: desc}
	return resourceHandle(slot)
}

// CreateImage is CreateBuffer's counterpart for ResourcePin[Image].
func CreateImage(c *BuildContext, pin ResourcePin[Image], desc ImageDesc) resourceHandle {
	slot := c.fg.tmpl.globalSlot(c.node, pin.slot)
	layouts := map[driver.Layout]bool{desc.Usage: true}
	c.fg.arena.resources[slot] = resourceState{produced: true, isImage: true, imgDesc: desc, layouts: layouts}
	return resourceHandle(slot)
}

// acquire resolves pin to its resource's arena slot (following
// aliasTo for inputs), validates it was produced this frame, folds in
// the requested layout for images, and records an access (access.go)
// entry with default stage/mask for the node's declared PassKind.
func (c *BuildContext) acquire(local int, kind AccessKind, isImage bool) (resourceHandle, error) {
	slot := c.fg.tmpl.globalSlot(c.node, local)
	rslot := c.fg.tmpl.resolveResource(slot)
	if rslot < 0 {
		return 0, &BuildError{Phase: PhaseBuild, Kind: "unconnected-input", Node: c.node, Msg: "resource pin has no source"}
	}
	st := &c.fg.arena.resources[rslot]
	if !st.produced {
		return 0, &BuildError{Phase: PhaseBuild, Kind: "no-producer", Node: c.node, Msg: "resource pin's producer has not run"}
	}
	stage, mask := stageMaskFor(c.pass.kind, kind, isImage)
	var layout driver.Layout
	if isImage {
		if slot == rslot {
			// The node acquiring its own just-created output: the
			// descriptor's Usage is an explicit declaration of the
			// layout it wants, not a default to derive.
			layout = st.imgDesc.Usage
		} else {
			layout = layoutFor(c.pass.kind, kind)
		}
		if st.layouts == nil {
			st.layouts = map[driver.Layout]bool{}
		}
		st.layouts[layout] = true
	}
	c.pass.accesses = append(c.pass.accesses, access{
		resource: resourceHandle(rslot), node: c.node, kind: kind, stage: stage, mask: mask, layout: layout,
	})
	return resourceHandle(rslot), nil
}

// AcquireBuffer declares this node's access to the buffer connected
// to pin (its own, if pin is an output that already called
// CreateBuffer, or an upstream producer's, if pin is an input).
func AcquireBuffer(c *BuildContext, pin ResourcePin[Buffer], kind AccessKind) (resourceHandle, error) {
	return c.acquire(pin.slot, kind, false)
}

// AcquireImage is AcquireBuffer's counterpart for ResourcePin[Image].
func AcquireImage(c *BuildContext, pin ResourcePin[Image], kind AccessKind) (resourceHandle, error) {
	return c.acquire(pin.slot, kind, true)
}

// Push contributes v to every sink input pin connected to an output
// SinkPin[T] (§3, §4.5).
func Push[T any](c *BuildContext, pin SinkPin[T], v T) {
	slot := c.fg.tmpl.globalSlot(c.node, pin.slot)
	for _, target := range c.fg.tmpl.pins[slot].fanout {
		c.fg.arena.sinks[target] = append(c.fg.arena.sinks[target], v)
	}
}

// Sink returns every contribution pushed to a sink input pin so far
// this frame. Since every contributor is ordered before the reader
// (enforced once at template validation), calling this from the
// reader's own Build always observes the complete multiset.
func Sink[T any](c *BuildContext, pin SinkPin[T]) ([]T, error) {
	slot := c.fg.tmpl.globalSlot(c.node, pin.slot)
	if c.fg.tmpl.pins[slot].desc.Dir != In {
		return nil, fmt.Errorf("graph: Sink called on an output pin")
	}
	raw := c.fg.arena.sinks[slot]
	out := make([]T, len(raw))
	for i, v := range raw {
		out[i] = v.(T)
	}
	return out, nil
}
