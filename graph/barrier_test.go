// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package graph

import (
	"testing"

	"forge/driver"
)

// checkBarrierSoundness verifies property 3 against an arbitrary
// access pattern: for every two consecutive accesses to the same
// resource where the first is a write (or either access is an image
// whose layout differs), a barrier or transition must exist at the
// second access's pass whose before-side mask/stage/layout matches the
// first access and whose after-side matches the second. Two
// consecutive reads of identical layout must NOT get a barrier, so
// this also rules out over-synchronization.
func checkBarrierSoundness(t *testing.T, passes []passRecord, plan barrierPlan) {
	t.Helper()
	last := map[resourceHandle]access{}
	for i, pr := range passes {
		for _, a := range pr.accesses {
			prev, ok := last[a.resource]
			last[a.resource] = a
			if !ok {
				continue
			}
			isImage := a.layout != driver.LUndefined || prev.layout != driver.LUndefined
			needed := prev.mask&driver.AAnyWrite != 0 || a.kind != Read || (isImage && prev.layout != a.layout)
			if !needed {
				// Two reads, same layout: must NOT synchronize.
				for _, b := range plan.bufBarriers[i] {
					if b.SyncBefore == prev.stage && b.AccessBefore == prev.mask {
						t.Fatalf("pass %d: unnecessary buffer barrier recorded for read-after-read on resource %d", i, a.resource)
					}
				}
				continue
			}
			found := false
			if isImage {
				for _, tr := range plan.imgBarriers[i] {
					if tr.SyncBefore == prev.stage && tr.AccessBefore == prev.mask && tr.LayoutBefore == prev.layout &&
						tr.SyncAfter == a.stage && tr.AccessAfter == a.mask && tr.LayoutAfter == a.layout {
						found = true
						break
					}
				}
			} else {
				for _, b := range plan.bufBarriers[i] {
					if b.SyncBefore == prev.stage && b.AccessBefore == prev.mask && b.SyncAfter == a.stage && b.AccessAfter == a.mask {
						found = true
						break
					}
				}
			}
			if !found {
				t.Fatalf("pass %d: no barrier covers resource %d's producer(stage=%v,mask=%v,layout=%v) -> consumer(stage=%v,mask=%v,layout=%v)",
					i, a.resource, prev.stage, prev.mask, prev.layout, a.stage, a.mask, a.layout)
			}
		}
	}
}

// acc is a terse constructor for the access literals the tests below
// build adversarial pass sequences out of.
func acc(r resourceHandle, kind AccessKind, stage driver.Sync, mask driver.Access, layout driver.Layout) access {
	return access{resource: r, kind: kind, stage: stage, mask: mask, layout: layout}
}

// TestBarrierSoundnessAdversarial runs planBarriers over a collection
// of deliberately tricky orderings (§4.7's "MUST be tested with
// adversarial orderings"): interleaved reads and writes across
// multiple resources, write-after-write, read-after-read elision, and
// image layout churn.
func TestBarrierSoundnessAdversarial(t *testing.T) {
	cases := [][]passRecord{
		// write, read, read: only one barrier, before the first read.
		{
			{accesses: []access{acc(0, Write, driver.SComputeShading, driver.AShaderWrite, driver.LUndefined)}},
			{accesses: []access{acc(0, Read, driver.SFragmentShading, driver.AShaderRead, driver.LUndefined)}},
			{accesses: []access{acc(0, Read, driver.SFragmentShading, driver.AShaderRead, driver.LUndefined)}},
		},
		// write, write, write: a barrier before every subsequent write.
		{
			{accesses: []access{acc(0, Write, driver.SComputeShading, driver.AShaderWrite, driver.LUndefined)}},
			{accesses: []access{acc(0, Write, driver.SComputeShading, driver.AShaderWrite, driver.LUndefined)}},
			{accesses: []access{acc(0, Write, driver.SComputeShading, driver.AShaderWrite, driver.LUndefined)}},
		},
		// two independent resources interleaved: neither should pick up
		// the other's barrier.
		{
			{accesses: []access{
				acc(0, Write, driver.SComputeShading, driver.AShaderWrite, driver.LUndefined),
				acc(1, Write, driver.SCopy, driver.ACopyWrite, driver.LUndefined),
			}},
			{accesses: []access{
				acc(1, Read, driver.SCopy, driver.ACopyRead, driver.LUndefined),
				acc(0, Read, driver.SFragmentShading, driver.AShaderRead, driver.LUndefined),
			}},
			{accesses: []access{
				acc(0, Write, driver.SColorOutput, driver.AColorWrite, driver.LUndefined),
			}},
		},
		// image layout churn: read-read at the same layout elides, but
		// a layout change between two reads still synchronizes (this is
		// the main way images differ from buffers).
		{
			{accesses: []access{acc(2, Write, driver.SColorOutput, driver.AColorWrite, driver.LColorTarget)}},
			{accesses: []access{acc(2, Read, driver.SFragmentShading, driver.AShaderRead, driver.LShaderRead)}},
			{accesses: []access{acc(2, Read, driver.SFragmentShading, driver.AShaderRead, driver.LShaderRead)}},
			{accesses: []access{acc(2, Read, driver.SCopy, driver.ACopyRead, driver.LCopySrc)}},
		},
		// reverse registration order feeding the same hazards: a
		// later-numbered resource accessed first must not confuse the
		// per-resource timeline indexed by resourceHandle.
		{
			{accesses: []access{
				acc(5, Write, driver.SComputeShading, driver.AShaderWrite, driver.LUndefined),
				acc(3, Write, driver.SComputeShading, driver.AShaderWrite, driver.LUndefined),
			}},
			{accesses: []access{
				acc(3, Read, driver.SFragmentShading, driver.AShaderRead, driver.LUndefined),
				acc(5, Read, driver.SFragmentShading, driver.AShaderRead, driver.LUndefined),
			}},
		},
	}
	for i, passes := range cases {
		plan, _ := planBarriers(passes, 8, nil)
		checkBarrierSoundness(t, passes, plan)
		if len(plan.bufBarriers) != len(passes) || len(plan.imgBarriers) != len(passes) {
			t.Fatalf("case %d: barrier plan length mismatch", i)
		}
	}
}

// TestScenarioS1Triangle implements §8's S1 literally: a Producer
// writes an 800x600 RGBA8 color-attachment image, Present reads it as
// transfer-src. Expects exactly two image transitions (undefined ->
// color-attachment before Producer, color-attachment -> transfer-src
// before Present) and a single image allocated from the pool.
func TestScenarioS1Triangle(t *testing.T) {
	reg := NewRegistry()
	mustRegister(t, reg, imgProducerDesc("producer", 800, 600, driver.LColorTarget))
	mustRegister(t, reg, imgConsumerDesc("present", Read, true))

	tmpl, err := NewGraphTemplate(reg, []NodeInst{
		{ID: "producer"}, {ID: "present"},
	}, []Connection{
		{From: PinRef{0, "out"}, To: PinRef{1, "in"}},
	})
	if err != nil {
		t.Fatalf("NewGraphTemplate: %v", err)
	}
	gpu := newFakeGPU()
	fg, err := NewFrameGraph(tmpl, gpu, nil, nil)
	if err != nil {
		t.Fatalf("NewFrameGraph: %v", err)
	}
	cb := &fakeCmdBuffer{gpu: gpu}
	if err := fg.ExecuteFrame(cb); err != nil {
		t.Fatalf("ExecuteFrame: %v", err)
	}
	if len(gpu.images) != 1 {
		t.Fatalf("expected 1 image allocated, got %d", len(gpu.images))
	}
	if len(cb.trans) != 2 {
		t.Fatalf("expected 2 transitions, got %d: %+v", len(cb.trans), cb.trans)
	}
	if cb.trans[0].LayoutBefore != driver.LUndefined || cb.trans[0].LayoutAfter != driver.LColorTarget {
		t.Fatalf("transition 0 = %+v, want undefined -> color-target", cb.trans[0])
	}
	if cb.trans[1].LayoutBefore != driver.LColorTarget || cb.trans[1].LayoutAfter != driver.LCopySrc {
		t.Fatalf("transition 1 = %+v, want color-target -> transfer-src", cb.trans[1])
	}
}

// TestScenarioS2PingPong implements §8's S2: Blur-H reads In, writes
// Tmp; Blur-V reads Tmp, writes Out. Checks the planned order
// [Blur-H, Blur-V] and the number of images the pool allocates.
func TestScenarioS2PingPong(t *testing.T) {
	reg := NewRegistry()
	mustRegister(t, reg, imgProducerDesc("in", 256, 256, driver.LShaderRead))
	mustRegister(t, reg, imgPassthroughDesc("blur-h", 256, 256))
	mustRegister(t, reg, imgPassthroughDesc("blur-v", 256, 256))

	tmpl, err := NewGraphTemplate(reg, []NodeInst{
		{ID: "in"},      // 0
		{ID: "blur-h"},  // 1
		{ID: "blur-v"},  // 2
	}, []Connection{
		{From: PinRef{0, "out"}, To: PinRef{1, "in"}},
		{From: PinRef{1, "out"}, To: PinRef{2, "in"}},
	})
	if err != nil {
		t.Fatalf("NewGraphTemplate: %v", err)
	}
	pos := map[int]int{}
	for i, n := range tmpl.order {
		pos[n] = i
	}
	if pos[1] >= pos[2] {
		t.Fatalf("expected Blur-H before Blur-V, got order %v", tmpl.order)
	}

	gpu := newFakeGPU()
	fg, err := NewFrameGraph(tmpl, gpu, nil, nil)
	if err != nil {
		t.Fatalf("NewFrameGraph: %v", err)
	}
	cb := &fakeCmdBuffer{gpu: gpu}
	if err := fg.ExecuteFrame(cb); err != nil {
		t.Fatalf("ExecuteFrame: %v", err)
	}
	// Two images total: In and Out (blur-v's out) have disjoint
	// windows and share one slot; Tmp (blur-h's out) overlaps both.
	if len(gpu.images) != 2 {
		t.Fatalf("expected 2 images allocated, got %d", len(gpu.images))
	}
}

// TestUsageUnion checks property 7: a buffer declared with both
// storage-write and uniform usage is created with the union of both
// driver.Usage flags (BufferDesc.Usage is itself the union a node
// declares across every access it makes to the resource over the
// frame, per §3; resource.go's bufferUsageToDriver is where that union
// is translated to the GPU wrapper's bitmask).
func TestUsageUnion(t *testing.T) {
	reg := NewRegistry()
	wantUsage := UsageStorageWrite | UsageUniform
	mustRegister(t, reg, bufProducerDesc("both", 1024, wantUsage, false, ""))
	tmpl2, err := NewGraphTemplate(reg, []NodeInst{{ID: "both"}}, nil)
	if err != nil {
		t.Fatalf("NewGraphTemplate: %v", err)
	}
	gpu2 := newFakeGPU()
	fg2, err := NewFrameGraph(tmpl2, gpu2, nil, nil)
	if err != nil {
		t.Fatalf("NewFrameGraph: %v", err)
	}
	if err := fg2.ExecuteFrame(nil); err != nil {
		t.Fatalf("ExecuteFrame: %v", err)
	}
	got := gpu2.buffers[0].usage
	want := bufferUsageToDriver(wantUsage)
	if got != want {
		t.Fatalf("usage union: got %v, want %v", got, want)
	}
	if got&driver.UShaderWrite == 0 || got&driver.UShaderConst == 0 {
		t.Fatalf("expected both UShaderWrite and UShaderConst bits set, got %v", got)
	}
}
