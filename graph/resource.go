// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package graph

import "forge/driver"

// BufferUsage is the set of ways a transient or stable buffer may be
// used across a frame (§3). It is the frame graph's own vocabulary,
// narrower and domain-specific compared to driver.Usage, and is
// translated to driver.Usage when the buffer is actually created
// (see bufferUsageToDriver in pool.go). Names are grounded on
// original_source's oblo::buffer_access enum
// (oblo/renderer/include/oblo/renderer/graph/enums.hpp).
type BufferUsage uint16

const (
	UsageStorageRead BufferUsage = 1 << iota
	UsageStorageWrite
	UsageStorageUpload
	UsageDownload
	UsageUniform
	UsageVertex
	UsageIndex
	UsageIndirect
)

// BufferDesc describes a buffer resource request (§3).
type BufferDesc struct {
	Size  int64
	Usage BufferUsage
	// Initial, if non-nil, is uploaded to the buffer as part of its
	// creation (the "create-with-initial-data" operation of §4.9).
	Initial []byte
	// Stable resources persist across frames (§3); the pool keys
	// them by Label plus descriptor fingerprint rather than lifetime
	// window (§4.6 step 3).
	Stable bool
	Label  string
}

// ImageUsage is the declared usage-state vocabulary for a transient
// or stable image (§3). It reuses driver.Layout directly: both
// enumerate (undefined, general/common, shader-read, color-attachment,
// depth-attachment, transfer-src/dst, present), so no separate
// translation table is needed the way BufferUsage needs one for
// driver.Usage. Declared usage is the union of every driver.Layout an
// access (access.go) requests for the image over the frame.
type ImageUsage = driver.Layout

// ImageDesc describes an image resource request (§3).
type ImageDesc struct {
	Width, Height int
	Format        driver.PixelFmt
	// Usage starts as the layout the producing create() call
	// requests; BuildContext.Acquire folds in further layouts as
	// the union (§3 "mismatched usage raises a build-time failure"
	// does not apply to images the way it does to buffers, since
	// every driver.Layout is a valid image usage — only the
	// computed driver.Usage creation flags can be incompatible,
	// e.g. requesting both color-attachment and depth-attachment).
	Usage  ImageUsage
	Stable bool
	Label  string
}

// fingerprint is the match-key the transient pool groups requests by
// (§4.6 step 1): same kind, same descriptor shape, can share a slot.
type fingerprint struct {
	isImage bool
	// Buffer fields.
	size  int64
	usage BufferUsage
	// Image fields.
	width, height int
	format        driver.PixelFmt
}

func bufferFingerprint(d BufferDesc) fingerprint {
	return fingerprint{size: roundUpSize(d.Size), usage: d.Usage}
}

func imageFingerprint(d ImageDesc) fingerprint {
	return fingerprint{isImage: true, width: d.Width, height: d.Height, format: d.Format}
}

// roundUpSize rounds a buffer size request up to a coarse granularity
// so that requests of similar but not identical size can still share
// a pool slot fingerprint, matching §4.6's "size-rounded-up" wording.
func roundUpSize(n int64) int64 {
	const grain = 65536
	return (n + grain - 1) &^ (grain - 1)
}

// bufferUsageToDriver maps the frame graph's domain-specific buffer
// usage flags onto the GPU wrapper's coarser driver.Usage bitmask.
// storage-upload/download/indirect have no dedicated driver.Usage bit
// (the teacher's driver package treats copies and indirect args as
// always permitted on any buffer), so they fold into UGeneric; this
// mirrors the teacher's own staging buffers, which are created with
// usg=0 (engine/staging.go's stagingBuffer.reserve) and rely on the
// wrapper not gating copy commands behind a usage flag.
func bufferUsageToDriver(u BufferUsage) driver.Usage {
	var out driver.Usage
	if u&UsageStorageRead != 0 {
		out |= driver.UShaderRead
	}
	if u&UsageStorageWrite != 0 {
		out |= driver.UShaderWrite
	}
	if u&UsageUniform != 0 {
		out |= driver.UShaderConst
	}
	if u&UsageVertex != 0 {
		out |= driver.UVertexData
	}
	if u&UsageIndex != 0 {
		out |= driver.UIndexData
	}
	if u&(UsageStorageUpload|UsageDownload|UsageIndirect) != 0 {
		out |= driver.UGeneric
	}
	return out
}

// imageUsageToDriver maps the union of declared layouts to the
// driver.Usage flags required to create the image.
func imageUsageToDriver(layouts map[driver.Layout]bool) driver.Usage {
	var out driver.Usage
	for l := range layouts {
		switch l {
		case driver.LColorTarget, driver.LDSTarget, driver.LDSRead:
			out |= driver.URenderTarget
		case driver.LShaderRead:
			out |= driver.UShaderSample
		case driver.LCommon:
			out |= driver.UShaderRead | driver.UShaderWrite
		default:
			out |= driver.UGeneric
		}
	}
	return out
}
