// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package graph

import (
	"fmt"

	"forge/driver"
)

// frameResourceRef is what a resourceState resolves to once the
// TransientPool has run: the actual driver object backing it for this
// frame.
type frameResourceRef struct {
	isImage bool
	buf     driver.Buffer
	img     driver.Image
}

// poolSlot is one physical GPU allocation owned by a TransientPool.
// Slots outlive any single frame; which resourceState cell a slot
// backs changes from frame to frame as lifetime windows shift (§4.6).
type poolSlot struct {
	fp fingerprint
	ref frameResourceRef
	// freeAt is the planned-order position through which the current
	// occupant's lifetime window extends. A slot is available to a
	// new resource whose window starts after freeAt.
	freeAt int
}

// stableSlot is a poolSlot kept forever under a Label, independent of
// any lifetime window (§3 "Stable resources persist across frames").
type stableSlot struct {
	fp  fingerprint
	ref frameResourceRef
	// timeline is the resourceTimeline the Barrier Tracker left this
	// resource in at the end of the last frame it participated in,
	// carried forward so the next frame's first access synchronizes
	// against the real last-known state instead of assuming undefined
	// (§8 property 5 "preserves last layout").
	timeline resourceTimeline
}

// TransientPool owns every GPU buffer and image a FrameGraph uses,
// transient and stable alike (C6). It is grounded on the slot/bitmap
// bookkeeping style of internal/bitm.Bitm, generalized here from a
// single flat free-bit bitmap to a fingerprint-keyed slot list because
// reuse additionally depends on each candidate's lifetime window, not
// merely whether it is currently free.
type TransientPool struct {
	gpu    driver.GPU
	slots  []poolSlot
	stable map[string]stableSlot
}

// NewTransientPool creates an empty pool bound to gpu.
func NewTransientPool(gpu driver.GPU) *TransientPool {
	return &TransientPool{gpu: gpu, stable: map[string]stableSlot{}}
}

// window is a resource's first-write/last-read extent expressed as
// positions in the planned node order (§4.6 step 2).
type window struct{ start, end int }

// allocate resolves every KindResource output produced this frame to
// a frameResourceRef, reusing transient pool slots by fingerprint and
// lifetime window, or fetching/creating the persistent slot for
// stable resources.
func (p *TransientPool) allocate(t *GraphTemplate, arena *pinArena, order []int, passes []passRecord) error {
	pos := make([]int, len(order))
	for i, n := range order {
		pos[n] = i
	}

	windows := map[int]window{}
	for slot, st := range arena.resources {
		if !st.produced {
			continue
		}
		owner := t.pins[slot].owner
		windows[slot] = window{start: pos[owner], end: pos[owner]}
	}
	for _, pr := range passes {
		for _, a := range pr.accesses {
			slot := int(a.resource)
			w := windows[slot]
			np := pos[a.node]
			if np < w.start {
				w.start = np
			}
			if np > w.end {
				w.end = np
			}
			windows[slot] = w
		}
	}

	// Deterministic assignment order: by window start, tie-broken by
	// arena slot index (itself a function of registration order),
	// matching the planner's own tie-break discipline (§8 S1).
	order2 := make([]int, 0, len(windows))
	for slot := range windows {
		order2 = append(order2, slot)
	}
	for i := 1; i < len(order2); i++ {
		for j := i; j > 0; j-- {
			a, b := order2[j-1], order2[j]
			if windows[a].start > windows[b].start || (windows[a].start == windows[b].start && a > b) {
				order2[j-1], order2[j] = order2[j], order2[j-1]
			} else {
				break
			}
		}
	}

	for _, slot := range order2 {
		st := &arena.resources[slot]
		if st.isImage && st.imgDesc.Usage == driver.LUndefined {
			// Fold any acquired layouts that weren't known at
			// create() time (e.g. a pure sampled-read with no
			// explicit initial layout).
			for l := range st.layouts {
				st.imgDesc.Usage = l
				break
			}
		}
		var err error
		if (st.isImage && st.imgDesc.Stable) || (!st.isImage && st.bufDesc.Stable) {
			err = p.assignStable(st)
		} else {
			err = p.assignTransient(st, windows[slot])
		}
		if err != nil {
			return fmt.Errorf("graph: pool: arena slot %d: %w", slot, err)
		}
	}
	return nil
}

func (p *TransientPool) assignTransient(st *resourceState, w window) error {
	var fp fingerprint
	if st.isImage {
		fp = imageFingerprint(st.imgDesc)
	} else {
		fp = bufferFingerprint(st.bufDesc)
	}
	for i := range p.slots {
		s := &p.slots[i]
		if s.fp != fp || s.freeAt >= w.start {
			continue
		}
		s.freeAt = w.end
		st.ref = s.ref
		return nil
	}
	ref, err := p.create(fp, st)
	if err != nil {
		return err
	}
	p.slots = append(p.slots, poolSlot{fp: fp, ref: ref, freeAt: w.end})
	st.ref = ref
	return nil
}

func (p *TransientPool) assignStable(st *resourceState) error {
	label := st.bufDesc.Label
	var fp fingerprint
	if st.isImage {
		label = st.imgDesc.Label
		fp = imageFingerprint(st.imgDesc)
	} else {
		fp = bufferFingerprint(st.bufDesc)
	}
	if label == "" {
		return fmt.Errorf("stable resource requires a non-empty Label")
	}
	if existing, ok := p.stable[label]; ok {
		if existing.fp != fp {
			return fmt.Errorf("stable resource %q descriptor changed between frames", label)
		}
		st.ref = existing.ref
		return nil
	}
	ref, err := p.create(fp, st)
	if err != nil {
		return err
	}
	p.stable[label] = stableSlot{fp: fp, ref: ref}
	st.ref = ref
	return nil
}

func (p *TransientPool) create(fp fingerprint, st *resourceState) (frameResourceRef, error) {
	if st.isImage {
		d := st.imgDesc
		usg := imageUsageToDriver(st.layouts)
		img, err := p.gpu.NewImage(d.Format, driver.Dim3D{Width: d.Width, Height: d.Height, Depth: 1}, 1, 1, 1, usg)
		if err != nil {
			return frameResourceRef{}, err
		}
		// Images carry no inline initial payload (see ImageDesc); any
		// initial contents go through the StagingUploader after
		// allocation (§4.9).
		return frameResourceRef{isImage: true, img: img}, nil
	}
	d := st.bufDesc
	buf, err := p.gpu.NewBuffer(roundUpSize(d.Size), false, bufferUsageToDriver(d.Usage))
	if err != nil {
		return frameResourceRef{}, err
	}
	return frameResourceRef{buf: buf}, nil
}

// stableLabel returns st's stable-pool label and whether st is stable
// at all; non-stable (transient) resources have no entry in p.stable.
func stableLabel(st *resourceState) (string, bool) {
	if st.isImage {
		return st.imgDesc.Label, st.imgDesc.Stable
	}
	return st.bufDesc.Label, st.bufDesc.Stable
}

// seedTimelines returns this frame's starting Barrier Tracker state
// per arena resource slot: a stable resource continues from the
// timeline its previous frame left in p.stable, while a transient
// resource (or a stable one on its first frame) starts from the zero
// value, forcing the initial "from undefined" transition (§8 S1).
func (p *TransientPool) seedTimelines(arena *pinArena) []resourceTimeline {
	seed := make([]resourceTimeline, len(arena.resources))
	for slot := range arena.resources {
		st := &arena.resources[slot]
		if !st.produced {
			continue
		}
		label, stable := stableLabel(st)
		if !stable {
			continue
		}
		if s, ok := p.stable[label]; ok {
			seed[slot] = s.timeline
		}
	}
	return seed
}

// commitTimelines stores each stable resource's end-of-frame timeline
// back into p.stable, for seedTimelines to hand to the next frame.
func (p *TransientPool) commitTimelines(arena *pinArena, final []resourceTimeline) {
	for slot := range arena.resources {
		st := &arena.resources[slot]
		if !st.produced {
			continue
		}
		label, stable := stableLabel(st)
		if !stable {
			continue
		}
		if s, ok := p.stable[label]; ok {
			s.timeline = final[slot]
			p.stable[label] = s
		}
	}
}

// Initial returns the buffer descriptor's initial upload payload, or
// nil for an image (images never carry inline initial data; see
// ImageDesc).
func (st *resourceState) Initial() []byte {
	if st.isImage {
		return nil
	}
	return st.bufDesc.Initial
}

// Close releases every slot the pool has ever allocated, transient
// and stable alike. It must only be called once the owning FrameGraph
// is no longer in use.
func (p *TransientPool) Close() {
	for _, s := range p.slots {
		destroy(s.ref)
	}
	for _, s := range p.stable {
		destroy(s.ref)
	}
	p.slots = nil
	p.stable = map[string]stableSlot{}
}

func destroy(ref frameResourceRef) {
	if ref.isImage {
		ref.img.Destroy()
		return
	}
	ref.buf.Destroy()
}
