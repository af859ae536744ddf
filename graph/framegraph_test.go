// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package graph

import (
	"testing"

	"forge/driver"
)

// TestExecuteFrameDeterminism implements §8 property 1 end to end
// (not just at the planner): two independently constructed FrameGraphs
// over the same template, driven for several frames each, must record
// identical command logs — same operation tags in the same order —
// since nothing in this package consults wall-clock time, map
// iteration order, or any other nondeterministic input.
func TestExecuteFrameDeterminism(t *testing.T) {
	build := func() (*GraphTemplate, *Registry) {
		reg := NewRegistry()
		mustRegister(t, reg, imgProducerDesc("producer", 64, 64, driver.LColorTarget))
		mustRegister(t, reg, imgPassthroughDesc("mid", 64, 64))
		mustRegister(t, reg, imgConsumerDesc("present", Read, true))
		tmpl, err := NewGraphTemplate(reg, []NodeInst{
			{ID: "producer"}, {ID: "mid"}, {ID: "present"},
		}, []Connection{
			{From: PinRef{0, "out"}, To: PinRef{1, "in"}},
			{From: PinRef{1, "out"}, To: PinRef{2, "in"}},
		})
		if err != nil {
			t.Fatalf("NewGraphTemplate: %v", err)
		}
		return tmpl, reg
	}

	run := func() []string {
		tmpl, _ := build()
		gpu := newFakeGPU()
		fg, err := NewFrameGraph(tmpl, gpu, nil, nil)
		if err != nil {
			t.Fatalf("NewFrameGraph: %v", err)
		}
		var logs []string
		for frame := 0; frame < 3; frame++ {
			cb := &fakeCmdBuffer{gpu: gpu}
			if err := fg.ExecuteFrame(cb); err != nil {
				t.Fatalf("frame %d: ExecuteFrame: %v", frame, err)
			}
			logs = append(logs, cb.log...)
		}
		return logs
	}

	want := run()
	for i := 0; i < 10; i++ {
		got := run()
		if len(got) != len(want) {
			t.Fatalf("run %d: log length = %d, want %d", i, len(got), len(want))
		}
		for j := range got {
			if got[j] != want[j] {
				t.Fatalf("run %d: log[%d] = %q, want %q", i, j, got[j], want[j])
			}
		}
	}
}
