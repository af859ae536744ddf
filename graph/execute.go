// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package graph

import (
	"fmt"

	"forge/driver"
)

// ExecuteContext is passed to Node.Execute once per frame, after the
// transient pool has resolved every resource and the barrier tracker
// has computed the hazards that must be recorded ahead of this node's
// own commands (C8, §4.8).
type ExecuteContext struct {
	fg     *FrameGraph
	node   int
	cb     driver.CmdBuffer
	bufBar []driver.Barrier
	imgBar []driver.Transition
}

// CmdBuffer returns the driver.CmdBuffer commands for this node
// should be recorded into. Matches the original engine's
// execution_context::get_command_buffer (frame_graph_context.cpp),
// supplemented per SPEC_FULL's "Node-as-interface" item since Go
// nodes are plain Execute implementations rather than members of a
// runtime_context wrapper.
func (c *ExecuteContext) CmdBuffer() driver.CmdBuffer { return c.cb }

// Env mirrors InitContext.Env for nodes that need shared state during
// Execute as well as Init (e.g. a bindless descriptor table owner).
func (c *ExecuteContext) Env() any { return c.fg.env }

// recordBarriers inserts every barrier/transition the Barrier Tracker
// computed for this node ahead of its own commands (§4.7). It must
// run before Node.Execute is invoked.
func (c *ExecuteContext) recordBarriers() {
	if len(c.bufBar) > 0 {
		c.cb.Barrier(c.bufBar)
	}
	if len(c.imgBar) > 0 {
		c.cb.Transition(c.imgBar)
	}
}

// ExecBuffer resolves a resource pin to the driver.Buffer backing it
// this frame, for recording GPU commands.
func ExecBuffer(c *ExecuteContext, pin ResourcePin[Buffer]) (driver.Buffer, error) {
	slot := c.fg.tmpl.resolveResource(c.fg.tmpl.globalSlot(c.node, pin.slot))
	st := &c.fg.arena.resources[slot]
	if !st.produced || st.ref.isImage {
		return nil, fmt.Errorf("graph: resource pin has no buffer this frame")
	}
	return st.ref.buf, nil
}

// ExecImage is ExecBuffer's counterpart for ResourcePin[Image].
func ExecImage(c *ExecuteContext, pin ResourcePin[Image]) (driver.Image, error) {
	slot := c.fg.tmpl.resolveResource(c.fg.tmpl.globalSlot(c.node, pin.slot))
	st := &c.fg.arena.resources[slot]
	if !st.produced || !st.ref.isImage {
		return nil, fmt.Errorf("graph: resource pin has no image this frame")
	}
	return st.ref.img, nil
}

// UploadBuffer stages data for upload into dst and records the copy
// the next time the node (or a later one) flushes the uploader
// through Flush. Most nodes should instead rely on
// BufferDesc.Initial for data known at create() time; this exists for
// per-frame payloads only known during Execute (e.g. a CPU-skinned
// vertex buffer).
func (c *ExecuteContext) UploadBuffer(data []byte, dst driver.Buffer, off int64) error {
	return c.fg.staging.UploadBuffer(data, dst, off)
}

// Flush records every staged upload queued so far this frame into
// cb's data-transfer block.
func (c *ExecuteContext) Flush() {
	c.cb.BeginBlit(true)
	c.fg.staging.Flush(c.cb)
	c.cb.EndBlit()
}

// ExecData reads a data pin's value during Execute (e.g. a draw count
// computed during Build). It has the same aliasing/no-producer rules
// as Data.
func ExecData[T any](c *ExecuteContext, pin DataPin[T]) (T, error) {
	var zero T
	slot := c.fg.tmpl.globalSlot(c.node, pin.slot)
	src := c.fg.tmpl.resolveData(slot)
	if src < 0 {
		return zero, fmt.Errorf("graph: data pin has no source")
	}
	v := c.fg.arena.data[src]
	if v == nil {
		return zero, fmt.Errorf("graph: data pin's producer has not run")
	}
	return v.(T), nil
}
