// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package graph

import "forge/driver"

// This file collects small, reusable Node implementations the rest of
// this package's tests wire into GraphTemplates. Each constructor
// returns a fully formed NodeDesc, following the same
// NewResourcePin/NewDataPin-against-the-not-yet-registered-desc
// pattern real node authors use (pin.go): build the Pins slice first,
// bind typed handles against it, then close over those handles in New.

// imgProducerDesc registers a node with a single output image pin that
// creates and writes an image of the given size/format/usage.
func imgProducerDesc(id NodeID, w, h int, usage driver.Layout) NodeDesc {
	desc := NodeDesc{ID: id, Pins: []PinDesc{ResourcePinDesc[Image]("out", Out)}}
	out := NewResourcePin[Image](&desc, "out")
	desc.New = func() Node {
		return &imgProducerNode{out: out, w: w, h: h, usage: usage}
	}
	return desc
}

type imgProducerNode struct {
	out   ResourcePin[Image]
	w, h  int
	usage driver.Layout
}

func (n *imgProducerNode) Build(c *BuildContext) error {
	c.BeginPass(PassGraphics)
	CreateImage(c, n.out, ImageDesc{Width: n.w, Height: n.h, Format: driver.RGBA8un, Usage: n.usage})
	_, err := AcquireImage(c, n.out, Write)
	return err
}

func (n *imgProducerNode) Execute(c *ExecuteContext) error { return nil }

// imgConsumerDesc registers a node with a single input image pin that
// acquires the image with the given access kind; transfer selects
// PassTransfer (for a "present" style read) instead of PassGraphics.
func imgConsumerDesc(id NodeID, kind AccessKind, transfer bool) NodeDesc {
	desc := NodeDesc{ID: id, Pins: []PinDesc{ResourcePinDesc[Image]("in", In)}}
	in := NewResourcePin[Image](&desc, "in")
	desc.New = func() Node {
		return &imgConsumerNode{in: in, kind: kind, transfer: transfer}
	}
	return desc
}

type imgConsumerNode struct {
	in       ResourcePin[Image]
	kind     AccessKind
	transfer bool
}

func (n *imgConsumerNode) Build(c *BuildContext) error {
	if n.transfer {
		c.BeginPass(PassTransfer)
	} else {
		c.BeginPass(PassGraphics)
	}
	_, err := AcquireImage(c, n.in, n.kind)
	return err
}

func (n *imgConsumerNode) Execute(c *ExecuteContext) error { return nil }

// imgPassthroughDesc registers a node with one input and one output
// image pin, useful for a ping-pong style blur stage: it reads "in"
// and produces a brand-new image on "out" (Blur-H/Blur-V of S2).
func imgPassthroughDesc(id NodeID, w, h int) NodeDesc {
	desc := NodeDesc{ID: id, Pins: []PinDesc{
		ResourcePinDesc[Image]("in", In),
		ResourcePinDesc[Image]("out", Out),
	}}
	in := NewResourcePin[Image](&desc, "in")
	out := NewResourcePin[Image](&desc, "out")
	desc.New = func() Node {
		return &imgPassthroughNode{in: in, out: out, w: w, h: h}
	}
	return desc
}

type imgPassthroughNode struct {
	in, out ResourcePin[Image]
	w, h    int
}

func (n *imgPassthroughNode) Build(c *BuildContext) error {
	c.BeginPass(PassCompute)
	if _, err := AcquireImage(c, n.in, Read); err != nil {
		return err
	}
	CreateImage(c, n.out, ImageDesc{Width: n.w, Height: n.h, Format: driver.RGBA8un, Usage: driver.LShaderRead})
	_, err := AcquireImage(c, n.out, Write)
	return err
}

func (n *imgPassthroughNode) Execute(c *ExecuteContext) error { return nil }

// bufProducerDesc registers a node that creates and writes a buffer of
// the given size/usage, optionally stable under label.
func bufProducerDesc(id NodeID, size int64, usage BufferUsage, stable bool, label string) NodeDesc {
	desc := NodeDesc{ID: id, Pins: []PinDesc{ResourcePinDesc[Buffer]("out", Out)}}
	out := NewResourcePin[Buffer](&desc, "out")
	desc.New = func() Node {
		return &bufProducerNode{out: out, size: size, usage: usage, stable: stable, label: label}
	}
	return desc
}

type bufProducerNode struct {
	out          ResourcePin[Buffer]
	size         int64
	usage        BufferUsage
	stable       bool
	label        string
}

func (n *bufProducerNode) Build(c *BuildContext) error {
	c.BeginPass(PassCompute)
	CreateBuffer(c, n.out, BufferDesc{Size: n.size, Usage: n.usage, Stable: n.stable, Label: n.label})
	_, err := AcquireBuffer(c, n.out, Write)
	return err
}

func (n *bufProducerNode) Execute(c *ExecuteContext) error { return nil }

// bufConsumerDesc registers a node that acquires an input buffer with
// the given access kind, under PassCompute.
func bufConsumerDesc(id NodeID, kind AccessKind) NodeDesc {
	desc := NodeDesc{ID: id, Pins: []PinDesc{ResourcePinDesc[Buffer]("in", In)}}
	in := NewResourcePin[Buffer](&desc, "in")
	desc.New = func() Node {
		return &bufConsumerNode{in: in, kind: kind}
	}
	return desc
}

type bufConsumerNode struct {
	in   ResourcePin[Buffer]
	kind AccessKind
}

func (n *bufConsumerNode) Build(c *BuildContext) error {
	c.BeginPass(PassCompute)
	_, err := AcquireBuffer(c, n.in, n.kind)
	return err
}

func (n *bufConsumerNode) Execute(c *ExecuteContext) error { return nil }

// shadowContribution is S3's sink payload.
type shadowContribution struct {
	lightIndex int
	shadow     string
}

// sinkPusherDesc registers a node that pushes a single shadowContribution
// onto its output sink pin.
func sinkPusherDesc(id NodeID, v shadowContribution) NodeDesc {
	desc := NodeDesc{ID: id, Pins: []PinDesc{SinkPinDesc[shadowContribution]("out", Out)}}
	out := NewSinkPin[shadowContribution](&desc, "out")
	desc.New = func() Node {
		return &sinkPusherNode{out: out, v: v}
	}
	return desc
}

type sinkPusherNode struct {
	out SinkPin[shadowContribution]
	v   shadowContribution
}

func (n *sinkPusherNode) Build(c *BuildContext) error {
	Push(c, n.out, n.v)
	return nil
}

func (n *sinkPusherNode) Execute(c *ExecuteContext) error { return nil }

// sinkReaderDesc registers a node that reads every contribution pushed
// to its input sink pin and records it into *out.
func sinkReaderDesc(id NodeID, out *[]shadowContribution) NodeDesc {
	desc := NodeDesc{ID: id, Pins: []PinDesc{SinkPinDesc[shadowContribution]("in", In)}}
	in := NewSinkPin[shadowContribution](&desc, "in")
	desc.New = func() Node {
		return &sinkReaderNode{in: in, out: out}
	}
	return desc
}

type sinkReaderNode struct {
	in  SinkPin[shadowContribution]
	out *[]shadowContribution
}

func (n *sinkReaderNode) Build(c *BuildContext) error {
	v, err := Sink(c, n.in)
	if err != nil {
		return err
	}
	*n.out = v
	return nil
}

func (n *sinkReaderNode) Execute(c *ExecuteContext) error { return nil }

// dataPassthroughDesc registers a node that copies an int input data
// pin to an int output data pin, doubling it; useful for determinism
// and data-flow tests that don't need GPU resources at all.
func dataPassthroughDesc(id NodeID) NodeDesc {
	desc := NodeDesc{ID: id, Pins: []PinDesc{
		DataPinDesc[int]("in", In),
		DataPinDesc[int]("out", Out),
	}}
	in := NewDataPin[int](&desc, "in")
	out := NewDataPin[int](&desc, "out")
	desc.New = func() Node {
		return &dataPassthroughNode{in: in, out: out}
	}
	return desc
}

type dataPassthroughNode struct {
	in, out DataPin[int]
}

func (n *dataPassthroughNode) Build(c *BuildContext) error {
	v, err := Data(c, n.in)
	if err != nil {
		return err
	}
	SetData(c, n.out, v*2)
	return nil
}

func (n *dataPassthroughNode) Execute(c *ExecuteContext) error { return nil }

// dataSourceDesc registers a node with a single int output data pin
// publishing a fixed value.
func dataSourceDesc(id NodeID, v int) NodeDesc {
	desc := NodeDesc{ID: id, Pins: []PinDesc{DataPinDesc[int]("out", Out)}}
	out := NewDataPin[int](&desc, "out")
	desc.New = func() Node {
		return &dataSourceNode{out: out, v: v}
	}
	return desc
}

type dataSourceNode struct {
	out DataPin[int]
	v   int
}

func (n *dataSourceNode) Build(c *BuildContext) error {
	SetData(c, n.out, n.v)
	return nil
}

func (n *dataSourceNode) Execute(c *ExecuteContext) error { return nil }

// uploadDesc registers a node that creates a buffer with Initial data
// set, so FrameGraph.uploadInitialData stages it through the
// StagingUploader (round-trip property, §8 item 8).
func uploadDesc(id NodeID, data []byte) NodeDesc {
	desc := NodeDesc{ID: id, Pins: []PinDesc{ResourcePinDesc[Buffer]("out", Out)}}
	out := NewResourcePin[Buffer](&desc, "out")
	desc.New = func() Node {
		return &uploadNode{out: out, data: data}
	}
	return desc
}

type uploadNode struct {
	out  ResourcePin[Buffer]
	data []byte
}

func (n *uploadNode) Build(c *BuildContext) error {
	c.BeginPass(PassTransfer)
	CreateBuffer(c, n.out, BufferDesc{Size: int64(len(n.data)), Usage: UsageStorageUpload, Initial: n.data})
	_, err := AcquireBuffer(c, n.out, Write)
	return err
}

func (n *uploadNode) Execute(c *ExecuteContext) error { return nil }

// downloadDesc registers a node that reads its input buffer's bytes
// during Execute and stores a copy of them in *out, completing a round trip
// from uploadDesc through the transient pool.
func downloadDesc(id NodeID, out *[]byte) NodeDesc {
	desc := NodeDesc{ID: id, Pins: []PinDesc{ResourcePinDesc[Buffer]("in", In)}}
	in := NewResourcePin[Buffer](&desc, "in")
	desc.New = func() Node {
		return &downloadNode{in: in, out: out}
	}
	return desc
}

type downloadNode struct {
	in  ResourcePin[Buffer]
	out *[]byte
}

func (n *downloadNode) Build(c *BuildContext) error {
	c.BeginPass(PassTransfer)
	_, err := AcquireBuffer(c, n.in, Read)
	return err
}

func (n *downloadNode) Execute(c *ExecuteContext) error {
	buf, err := ExecBuffer(c, n.in)
	if err != nil {
		return err
	}
	// Pool buffers are not host visible, so Bytes returns nil; read
	// the fake's backing store, trimmed to the declared size.
	slot := c.fg.tmpl.resolveResource(c.fg.tmpl.globalSlot(c.node, n.in.slot))
	size := c.fg.arena.resources[slot].bufDesc.Size
	*n.out = append([]byte(nil), buf.(*fakeBuffer).data[:size]...)
	return nil
}
