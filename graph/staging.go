// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package graph

import (
	"fmt"

	"forge/driver"
	"forge/internal/bitm"
)

// stagingBlock is the granularity at which a StagingUploader's ring
// buffers grow, mirroring engine/staging.go's stagingBuffer, whose
// bitm.Bitm[uint32] free-bit bookkeeping this type reuses verbatim
// (C9, §4.9). This package reimplements the pattern rather than
// importing engine/staging.go directly because that file is written
// against a newer driver.GPU surface (driver.WorkItem) that the
// driver package kept here does not define; the upload/copy
// mechanics below target the GPU/CmdBuffer interfaces that are
// actually present.
const stagingBlock = 1 << 17

// stagingRingChunks is the default number of stagingBlock-sized chunks
// held by a single ring's backing buffer: one bitm.Bitm[uint32]
// extent's worth of bits, so a ring's free list is exactly one
// Grow(1) call. Config.StagingRingChunks overrides it per uploader.
const stagingRingChunks = 32

// stagingRing is one host-visible buffer subdivided into
// stagingRingChunks chunks of stagingBlock bytes each, tracked by a
// bitmap of which chunks are currently reserved.
type stagingRing struct {
	buf driver.Buffer
	bm  bitm.Bitm[uint32]
}

// pendingCopy is one outstanding upload queued against a stagingRing
// chunk, to be recorded into a CmdBuffer's blit block and released
// once the transfer completes.
type pendingCopy struct {
	chunk  int
	dst    driver.Buffer
	dstImg driver.Image
	off    int64
	size   Dim
}

// Dim is a 2D copy extent; Dim{} (zero) means "buffer copy, no
// width/height".
type Dim struct{ Width, Height int }

// StagingUploader ferries CPU data into transient/stable buffers and
// images through a small pool of host-visible ring buffers (C9). It
// is the single-threaded cooperative design of §5: nodes call Upload
// during Build or Execute and the uploader records the actual copy
// commands once Flush is invoked for the frame's transfer pass.
type StagingUploader struct {
	gpu    driver.GPU
	chunks int // ring capacity, rounded up to a Bitm[uint32] extent
	rings  []*stagingRing
	pend   []pendingCopy
}

// NewStagingUploader creates an uploader with no rings; rings are
// added lazily under Upload pressure, mirroring
// engine/staging.go's newStaging/commitStaging growth-on-demand
// behavior. chunks is rounded up to a multiple of 32 (a
// bitm.Bitm[uint32] extent), so Config.StagingRingChunks of 32 or less
// yields exactly one Grow(1) per ring.
func NewStagingUploader(gpu driver.GPU, chunks int) *StagingUploader {
	if chunks <= 0 {
		chunks = stagingRingChunks
	}
	extents := (chunks + 31) / 32
	return &StagingUploader{gpu: gpu, chunks: extents * 32}
}

func (u *StagingUploader) addRing() (*stagingRing, error) {
	buf, err := u.gpu.NewBuffer(stagingBlock*int64(u.chunks), true, 0)
	if err != nil {
		return nil, err
	}
	r := &stagingRing{buf: buf}
	r.bm.Grow(u.chunks / 32)
	u.rings = append(u.rings, r)
	return r, nil
}

// reserve finds a free chunk in any existing ring, growing the pool
// by one ring if none has room, and returns the ring plus the chunk
// index reserved within it.
func (u *StagingUploader) reserve() (*stagingRing, int, error) {
	for _, r := range u.rings {
		if idx, ok := r.bm.Search(); ok {
			r.bm.Set(idx)
			return r, idx, nil
		}
	}
	r, err := u.addRing()
	if err != nil {
		return nil, 0, err
	}
	idx, _ := r.bm.Search()
	r.bm.Set(idx)
	return r, idx, nil
}

// UploadBuffer stages data and queues a copy into dst at off. The
// copy is recorded the next time Flush runs.
func (u *StagingUploader) UploadBuffer(data []byte, dst driver.Buffer, off int64) error {
	if len(data) > stagingBlock {
		return fmt.Errorf("graph: staging: upload of %d bytes exceeds block size %d", len(data), stagingBlock)
	}
	r, idx, err := u.reserve()
	if err != nil {
		return err
	}
	if !r.buf.Visible() {
		return fmt.Errorf("graph: staging: ring buffer is not host visible")
	}
	copy(r.buf.Bytes()[idx*stagingBlock:], data)
	u.pend = append(u.pend, pendingCopy{chunk: u.chunkHandle(r, idx), dst: dst, off: off, size: Dim{Width: len(data)}})
	return nil
}

// UploadImage stages data and queues a copy into the top mip/layer of
// dst, sized width by height pixels in dst's own format.
func (u *StagingUploader) UploadImage(data []byte, dst driver.Image, width, height int) error {
	if len(data) > stagingBlock {
		return fmt.Errorf("graph: staging: upload of %d bytes exceeds block size %d", len(data), stagingBlock)
	}
	r, idx, err := u.reserve()
	if err != nil {
		return err
	}
	if !r.buf.Visible() {
		return fmt.Errorf("graph: staging: ring buffer is not host visible")
	}
	copy(r.buf.Bytes()[idx*stagingBlock:], data)
	u.pend = append(u.pend, pendingCopy{chunk: u.chunkHandle(r, idx), dstImg: dst, size: Dim{Width: width, Height: height}})
	return nil
}

// chunkHandle packs a ring's identity and a chunk index into a single
// int the pendingCopy list can carry without holding a second pointer
// field per entry, using u.chunks (every ring's uniform chunk count)
// as the packing's stride.
func (u *StagingUploader) chunkHandle(r *stagingRing, idx int) int {
	for i, ring := range u.rings {
		if ring == r {
			return i*u.chunks + idx
		}
	}
	return -1
}

// Flush records every queued copy into cb's data-transfer block and
// releases the chunks once recorded. The caller is responsible for
// wrapping this in BeginBlit/EndBlit.
func (u *StagingUploader) Flush(cb driver.CmdBuffer) {
	for _, p := range u.pend {
		ring, idx := p.chunk/u.chunks, p.chunk%u.chunks
		r := u.rings[ring]
		if p.dstImg != nil {
			cb.CopyBufToImg(&driver.BufImgCopy{
				Buf:    r.buf,
				BufOff: int64(idx) * stagingBlock,
				Img:    p.dstImg,
				Size:   driver.Dim3D{Width: p.size.Width, Height: p.size.Height, Depth: 1},
			})
		} else {
			cb.CopyBuffer(&driver.BufferCopy{
				To:      p.dst,
				ToOff:   p.off,
				From:    r.buf,
				FromOff: int64(idx) * stagingBlock,
				Size:    int64(p.size.Width),
			})
		}
		r.bm.Unset(idx)
	}
	u.pend = u.pend[:0]
}

// Close releases every staging ring the uploader allocated.
func (u *StagingUploader) Close() {
	for _, r := range u.rings {
		r.buf.Destroy()
	}
	u.rings = nil
}
