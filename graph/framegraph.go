// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package graph

import (
	"fmt"

	"forge/driver"
)

// FrameGraph is a live instantiation of a GraphTemplate (C2 → the
// runtime object C4-C8 operate on). One is typically created per
// swapchain/output and driven once per frame via ExecuteFrame
// (§4.4-§4.8).
type FrameGraph struct {
	tmpl    *GraphTemplate
	gpu     driver.GPU
	env     any
	nodes   []Node
	pool    *TransientPool
	arena   *pinArena
	staging *StagingUploader
}

// NewFrameGraph instantiates tmpl against gpu, constructing every
// node (NodeDesc.New) and running Initializer.Init where implemented
// (§4.1, §4.5). env is made available to nodes through
// InitContext.Env/ExecuteContext.Env for state the graph itself has
// no opinion about (a shader cache, a scene database, ...).
//
// cfg tunes pool/staging behavior; pass nil for DefaultConfig.
func NewFrameGraph(tmpl *GraphTemplate, gpu driver.GPU, env any, cfg *Config) (*FrameGraph, error) {
	c := DefaultConfig()
	if cfg != nil {
		c = *cfg
	}
	c.setDefaults()
	fg := &FrameGraph{
		tmpl:    tmpl,
		gpu:     gpu,
		env:     env,
		nodes:   make([]Node, len(tmpl.nodes)),
		pool:    NewTransientPool(gpu),
		arena:   newPinArena(len(tmpl.pins)),
		staging: NewStagingUploader(gpu, c.StagingRingChunks),
	}
	for i, tn := range tmpl.nodes {
		n := tn.desc.New()
		if n == nil {
			return nil, &BuildError{Phase: PhaseConstruction, Kind: "nil-node-instance", Node: i, Msg: string(tn.id)}
		}
		fg.nodes[i] = n
		if init, ok := n.(Initializer); ok {
			if err := init.Init(&InitContext{fg: fg, node: i}); err != nil {
				return nil, fmt.Errorf("graph: init node %d (%s): %w", i, tn.label, err)
			}
		}
	}
	return fg, nil
}

// ExecuteFrame runs one full frame: plans the node order if the
// template has none yet (NewGraphTemplate always sets one), calls
// every node's Build in planned order, allocates transient/stable
// resources from the declared accesses, computes the barrier plan,
// then calls every node's Execute in the same order, recording into
// cb (§4.4).
//
// cb must already be begun (driver.CmdBuffer.Begin) and is left ended
// (driver.CmdBuffer.End) by ExecuteFrame's caller — resource
// lifetime spans exactly one cb the way the teacher's own Renderer
// commits one CmdBuffer per frame (engine/renderer.go).
func (fg *FrameGraph) ExecuteFrame(cb driver.CmdBuffer) error {
	fg.arena.reset(fg.tmpl)

	order := fg.tmpl.order
	if order == nil {
		var err error
		order, err = fg.tmpl.plan()
		if err != nil {
			return err
		}
	}

	passes := make([]passRecord, len(order))
	for i, n := range order {
		bc := &BuildContext{fg: fg, node: n}
		if err := fg.nodes[n].Build(bc); err != nil {
			Logger("graph: dropped frame: build node %d (%s): %v", n, fg.tmpl.nodes[n].label, err)
			return fmt.Errorf("graph: build node %d (%s): %w", n, fg.tmpl.nodes[n].label, err)
		}
		bc.pass.node = n
		passes[i] = bc.pass
	}

	if err := fg.pool.allocate(fg.tmpl, fg.arena, order, passes); err != nil {
		return err
	}

	if err := fg.uploadInitialData(cb); err != nil {
		return err
	}

	seed := fg.pool.seedTimelines(fg.arena)
	plan, final := planBarriers(passes, len(fg.tmpl.pins), seed)
	fg.pool.commitTimelines(fg.arena, final)

	for i, n := range order {
		ec := &ExecuteContext{fg: fg, node: n, cb: cb, bufBar: plan.bufBarriers[i], imgBar: plan.imgBarriers[i]}
		ec.recordBarriers()
		if err := fg.nodes[n].Execute(ec); err != nil {
			Logger("graph: dropped frame: execute node %d (%s): %v", n, fg.tmpl.nodes[n].label, err)
			return &ExecError{Node: n, Msg: fg.tmpl.nodes[n].label, Err: err}
		}
	}
	return nil
}

// uploadInitialData stages and records the copy for every buffer
// created this frame with BufferDesc.Initial set (§4.9). It is a
// no-op for frames where nothing requested initial data.
func (fg *FrameGraph) uploadInitialData(cb driver.CmdBuffer) error {
	queued := false
	for i := range fg.arena.resources {
		st := &fg.arena.resources[i]
		if !st.produced || st.isImage || len(st.bufDesc.Initial) == 0 {
			continue
		}
		if err := fg.staging.UploadBuffer(st.bufDesc.Initial, st.ref.buf, 0); err != nil {
			return fmt.Errorf("graph: initial upload: arena slot %d: %w", i, err)
		}
		queued = true
	}
	if queued && cb != nil {
		cb.BeginBlit(true)
		fg.staging.Flush(cb)
		cb.EndBlit()
	}
	return nil
}

// Close releases every GPU resource the frame graph's transient pool
// and staging uploader have allocated. The FrameGraph must not be
// used afterward.
func (fg *FrameGraph) Close() {
	fg.pool.Close()
	fg.staging.Close()
}

// Template returns the GraphTemplate this FrameGraph was instantiated
// from, for introspection (GraphTemplate.Describe).
func (fg *FrameGraph) Template() *GraphTemplate { return fg.tmpl }

// Stats reports read-only counters about the live pool and staging
// uploader for a debugger/overlay to display (SPEC_FULL "SUPPLEMENTED
// FEATURES" item 5 — the data a frame_graph_window-style view would
// need, without exposing live execution state).
type Stats struct {
	TransientSlots int
	StableSlots    int
	StagingRings   int
}

func (fg *FrameGraph) Stats() Stats {
	return Stats{
		TransientSlots: len(fg.pool.slots),
		StableSlots:    len(fg.pool.stable),
		StagingRings:   len(fg.staging.rings),
	}
}
