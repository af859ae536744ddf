// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package graph

import "forge/driver"

// resourceTimeline tracks one resource's most recently recorded
// access, across the whole graph, so the Barrier Tracker can compute
// each subsequent access's required driver.Barrier or driver.Transition
// against whatever came immediately before it (C7, §4.7).
type resourceTimeline struct {
	valid   bool
	isImage bool
	stage   driver.Sync
	mask    driver.Access
	layout  driver.Layout
}

// barrierPlan is the Barrier & Layout Tracker's output: one
// driver.Barrier or driver.Transition inserted immediately before
// each access that needs one, in planned order (§4.7).
type barrierPlan struct {
	// bufBarriers[i] and imgBarriers[i] hold the barriers/transitions
	// that must be recorded immediately before passes[i] executes.
	bufBarriers [][]driver.Barrier
	imgBarriers [][]driver.Transition
}

// needsBarrier reports whether going from prev's access to a new
// access of kind is a hazard: two reads back to back never are.
func needsBarrier(prev resourceTimeline, kind AccessKind) bool {
	return prev.mask&driver.AAnyWrite != 0 || kind != Read
}

// planBarriers walks passes in planned order and computes the barrier list
// each one needs, given every access recorded during Build (C7). Two
// consecutive accesses to the same resource never both need a
// barrier entry unless at least one of them is a write or, for
// images, the required layout changes — read-after-read is a no-op,
// matching the original engine's execution_context transition
// elision (execution_context.hpp "Transitions are only recorded when
// necessary").
//
// seed carries each resource's timeline forward from where the
// previous frame left it off, indexed the same way as this frame's
// arena (template wiring never changes, so arena slot N always means
// the same resource). It is nil, or has a zero-value (invalid) entry,
// for any resource with no prior frame — a transient resource, or a
// stable one on its first use — which correctly forces the same
// "from undefined" transition S1 expects. planBarriers returns the
// timeline each resource was left in at the end of this frame so the
// caller (TransientPool, for stable resources only; §8 property 5
// "preserves last layout") can feed it back in as next frame's seed.
func planBarriers(passes []passRecord, resourceCount int, seed []resourceTimeline) (barrierPlan, []resourceTimeline) {
	timelines := make([]resourceTimeline, resourceCount)
	copy(timelines, seed)
	plan := barrierPlan{
		bufBarriers: make([][]driver.Barrier, len(passes)),
		imgBarriers: make([][]driver.Transition, len(passes)),
	}
	for i, pr := range passes {
		for _, a := range pr.accesses {
			prev := timelines[a.resource]
			isImage := a.layout != driver.LUndefined || prev.isImage
			if prev.valid && (needsBarrier(prev, a.kind) || (isImage && prev.layout != a.layout)) {
				if isImage {
					plan.imgBarriers[i] = append(plan.imgBarriers[i], driver.Transition{
						Barrier:      driver.Barrier{SyncBefore: prev.stage, SyncAfter: a.stage, AccessBefore: prev.mask, AccessAfter: a.mask},
						LayoutBefore: prev.layout,
						LayoutAfter:  a.layout,
					})
				} else {
					plan.bufBarriers[i] = append(plan.bufBarriers[i], driver.Barrier{
						SyncBefore: prev.stage, SyncAfter: a.stage, AccessBefore: prev.mask, AccessAfter: a.mask,
					})
				}
			} else if !prev.valid && isImage {
				plan.imgBarriers[i] = append(plan.imgBarriers[i], driver.Transition{
					Barrier:      driver.Barrier{SyncBefore: driver.SNone, SyncAfter: a.stage, AccessBefore: driver.ANone, AccessAfter: a.mask},
					LayoutBefore: driver.LUndefined,
					LayoutAfter:  a.layout,
				})
			}
			timelines[a.resource] = resourceTimeline{valid: true, isImage: isImage, stage: a.stage, mask: a.mask, layout: a.layout}
		}
	}
	return plan, timelines
}
