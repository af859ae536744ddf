// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package graph

import (
	"fmt"
	"sync"

	"forge/driver"
)

// fakeGPU is an in-memory stand-in for driver.GPU used throughout this
// package's tests. No mock GPU backend exists anywhere in the retrieved
// example pack — the teacher's own driver tests (driver/example_test.go)
// talk to a real Vulkan device — so this implements driver.GPU's
// contract directly from its documented behavior rather than being
// grounded on a pack file. Buffers and images are backed by plain Go
// byte slices, which is enough to exercise every graph operation that
// matters here: allocation bookkeeping, barrier recording and staging
// round-trips never inspect GPU-side memory, only call counts and the
// bytes a CmdBuffer copies between fake resources.
type fakeGPU struct {
	mu       sync.Mutex
	buffers  []*fakeBuffer
	images   []*fakeImage
	commits  int
	failNew  bool // if true, NewBuffer/NewImage fail (out-of-memory simulation)
}

func newFakeGPU() *fakeGPU { return &fakeGPU{} }

func (g *fakeGPU) Driver() driver.Driver { return nil }

func (g *fakeGPU) Commit(cb []driver.CmdBuffer, ch chan<- error) {
	g.mu.Lock()
	g.commits++
	g.mu.Unlock()
	if ch != nil {
		ch <- nil
	}
}

func (g *fakeGPU) NewCmdBuffer() (driver.CmdBuffer, error) {
	return &fakeCmdBuffer{gpu: g}, nil
}

func (g *fakeGPU) NewRenderPass([]driver.Attachment, []driver.Subpass) (driver.RenderPass, error) {
	return nil, nil
}

func (g *fakeGPU) NewShaderCode([]byte) (driver.ShaderCode, error) { return nil, nil }

func (g *fakeGPU) NewDescHeap([]driver.Descriptor) (driver.DescHeap, error) { return nil, nil }

func (g *fakeGPU) NewDescTable([]driver.DescHeap) (driver.DescTable, error) { return nil, nil }

func (g *fakeGPU) NewPipeline(any) (driver.Pipeline, error) { return nil, nil }

func (g *fakeGPU) NewBuffer(size int64, visible bool, usg driver.Usage) (driver.Buffer, error) {
	if g.failNew {
		return nil, fmt.Errorf("fakeGPU: out of memory")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	b := &fakeBuffer{data: make([]byte, size), visible: visible, usage: usg}
	g.buffers = append(g.buffers, b)
	return b, nil
}

// pixelSize approximates driver.PixelFmt.Size() for the handful of
// formats these tests create images with, since the real method lives
// on a concrete type this package doesn't import test helpers from.
func pixelSize(pf driver.PixelFmt) int {
	switch pf {
	case driver.RGBA32f:
		return 16
	case driver.RGBA16f, driver.RG32f:
		return 8
	case driver.RGBA8un, driver.RGBA8n, driver.RGBA8sRGB, driver.BGRA8un, driver.BGRA8sRGB, driver.RG16f, driver.D32fS8ui:
		return 4
	case driver.RG8un, driver.RG8n, driver.R16f, driver.D16un:
		return 2
	default:
		return 1
	}
}

func (g *fakeGPU) NewImage(pf driver.PixelFmt, size driver.Dim3D, layers, levels, samples int, usg driver.Usage) (driver.Image, error) {
	if g.failNew {
		return nil, fmt.Errorf("fakeGPU: out of memory")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	img := &fakeImage{
		pf: pf, width: size.Width, height: size.Height, usage: usg,
		data: make([]byte, size.Width*size.Height*pixelSize(pf)),
	}
	g.images = append(g.images, img)
	return img, nil
}

func (g *fakeGPU) NewSampler(*driver.Sampling) (driver.Sampler, error) { return nil, nil }

func (g *fakeGPU) Limits() driver.Limits { return driver.Limits{} }

// fakeBuffer is a driver.Buffer backed by a plain byte slice; Bytes
// returns nil unless it was created host visible.
type fakeBuffer struct {
	data    []byte
	visible bool
	usage   driver.Usage
}

func (b *fakeBuffer) Destroy()       {}
func (b *fakeBuffer) Visible() bool  { return b.visible }
func (b *fakeBuffer) Cap() int64     { return int64(len(b.data)) }
func (b *fakeBuffer) Bytes() []byte {
	if !b.visible {
		return nil
	}
	return b.data
}

// fakeImage is a driver.Image backed by a plain byte slice, indexed as
// a single mip/layer tightly packed row-major.
type fakeImage struct {
	pf            driver.PixelFmt
	width, height int
	usage         driver.Usage
	data          []byte
}

func (i *fakeImage) Destroy() {}
func (i *fakeImage) NewView(driver.ViewType, int, int, int, int) (driver.ImageView, error) {
	return nil, nil
}

// fakeCmdBuffer records every barrier/transition/copy it is asked to
// record, so tests can assert on both the order of operations and the
// bytes a copy actually moved. Draw/dispatch/pipeline-state calls are
// accepted and ignored: nothing under test in this package issues
// drawing commands of its own.
type fakeCmdBuffer struct {
	gpu *fakeGPU

	began     bool
	barriers  []driver.Barrier
	trans     []driver.Transition
	copies    []driver.BufferCopy
	imgCopies []driver.BufImgCopy
	// log records, in order, one tag per recorded operation that this
	// package's tests care about serializing against node Execute
	// calls ("barrier", "transition", "copy-buffer", "copy-buf-to-img", ...).
	log []string
}

func (c *fakeCmdBuffer) Destroy() {}

func (c *fakeCmdBuffer) Begin() error { c.began = true; return nil }

func (c *fakeCmdBuffer) BeginPass(driver.RenderPass, driver.Framebuf, []driver.ClearValue) {}
func (c *fakeCmdBuffer) NextSubpass()                                                      {}
func (c *fakeCmdBuffer) EndPass()                                                          {}
func (c *fakeCmdBuffer) BeginWork(bool)                                                    {}
func (c *fakeCmdBuffer) EndWork()                                                          {}
func (c *fakeCmdBuffer) BeginBlit(bool)                                                    {}
func (c *fakeCmdBuffer) EndBlit()                                                          {}
func (c *fakeCmdBuffer) SetPipeline(driver.Pipeline)                                       {}
func (c *fakeCmdBuffer) SetViewport([]driver.Viewport)                                     {}
func (c *fakeCmdBuffer) SetScissor([]driver.Scissor)                                       {}
func (c *fakeCmdBuffer) SetBlendColor(float32, float32, float32, float32)                  {}
func (c *fakeCmdBuffer) SetStencilRef(uint32)                                              {}
func (c *fakeCmdBuffer) SetVertexBuf(int, []driver.Buffer, []int64)                        {}
func (c *fakeCmdBuffer) SetIndexBuf(driver.IndexFmt, driver.Buffer, int64)                 {}
func (c *fakeCmdBuffer) SetDescTableGraph(driver.DescTable, int, []int)                    {}
func (c *fakeCmdBuffer) SetDescTableComp(driver.DescTable, int, []int)                     {}
func (c *fakeCmdBuffer) Draw(int, int, int, int)                                           {}
func (c *fakeCmdBuffer) DrawIndexed(int, int, int, int, int)                               {}
func (c *fakeCmdBuffer) Dispatch(int, int, int)                                            {}

func (c *fakeCmdBuffer) CopyBuffer(p *driver.BufferCopy) {
	c.copies = append(c.copies, *p)
	from := p.From.(*fakeBuffer)
	to := p.To.(*fakeBuffer)
	n := copy(to.data[p.ToOff:], from.data[p.FromOff:p.FromOff+p.Size])
	_ = n
	c.log = append(c.log, "copy-buffer")
}

func (c *fakeCmdBuffer) CopyImage(p *driver.ImageCopy) { c.log = append(c.log, "copy-image") }

func (c *fakeCmdBuffer) CopyBufToImg(p *driver.BufImgCopy) {
	c.imgCopies = append(c.imgCopies, *p)
	buf := p.Buf.(*fakeBuffer)
	img := p.Img.(*fakeImage)
	n := p.Size.Width * p.Size.Height * pixelSize(img.pf)
	if n > len(img.data) {
		n = len(img.data)
	}
	copy(img.data, buf.data[p.BufOff:p.BufOff+int64(n)])
	c.log = append(c.log, "copy-buf-to-img")
}

func (c *fakeCmdBuffer) CopyImgToBuf(p *driver.BufImgCopy) {
	buf := p.Buf.(*fakeBuffer)
	img := p.Img.(*fakeImage)
	n := p.Size.Width * p.Size.Height * pixelSize(img.pf)
	if n > len(img.data) {
		n = len(img.data)
	}
	copy(buf.data[p.BufOff:], img.data[:n])
	c.log = append(c.log, "copy-img-to-buf")
}

func (c *fakeCmdBuffer) Fill(driver.Buffer, int64, byte, int64) {}

func (c *fakeCmdBuffer) Barrier(b []driver.Barrier) {
	c.barriers = append(c.barriers, b...)
	c.log = append(c.log, "barrier")
}

func (c *fakeCmdBuffer) Transition(t []driver.Transition) {
	c.trans = append(c.trans, t...)
	c.log = append(c.log, "transition")
}

func (c *fakeCmdBuffer) End() error   { return nil }
func (c *fakeCmdBuffer) Reset() error { c.barriers, c.trans, c.copies, c.imgCopies, c.log = nil, nil, nil, nil, nil; return nil }
