// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package graph

import "forge/driver"

// AccessKind is how a node's Build step touches a resource.
type AccessKind uint8

const (
	Read AccessKind = iota
	Write
	ReadWrite
)

// PassKind is the kind of GPU work a node performs, declared once per
// node via BuildContext.BeginPass (§3 "Pass record", §4.5).
type PassKind uint8

const (
	// PassNone denotes a build-only node that records no commands.
	PassNone PassKind = iota
	PassGraphics
	PassCompute
	PassRaytracing
	PassTransfer
)

func (k PassKind) String() string {
	switch k {
	case PassGraphics:
		return "graphics"
	case PassCompute:
		return "compute"
	case PassRaytracing:
		return "raytracing"
	case PassTransfer:
		return "transfer"
	default:
		return "none"
	}
}

// access is the internal representation of a declared resource touch
// (§3 "Access record"): (resource, node, direction, stage/phase,
// layout-if-image). The ordered list of these, in planned order, is
// the Barrier Tracker's sole input.
type access struct {
	resource resourceHandle
	node     int
	kind     AccessKind
	stage    driver.Sync
	mask     driver.Access
	// layout is only meaningful when resource refers to an image;
	// it is the layout the node requires for its access.
	layout driver.Layout
}

// layoutFor returns the driver.Layout a consumer's access conventionally
// implies, given the pass kind it declared (the image counterpart of
// stageMaskFor). It is only consulted for a resource pin an access
// does NOT own (build.go's acquire uses the producer's own explicitly
// declared ImageDesc.Usage for a node acquiring the resource it just
// created, since that declaration is authoritative) — matching the
// original engine's convention that a pass's declared kind implies a
// default resource state for anything it merely reads or writes
// without a bespoke layout request.
func layoutFor(kind PassKind, dir AccessKind) driver.Layout {
	switch kind {
	case PassGraphics:
		if dir == Read {
			return driver.LShaderRead
		}
		return driver.LColorTarget
	case PassCompute:
		return driver.LCommon
	case PassTransfer:
		if dir == Read {
			return driver.LCopySrc
		}
		return driver.LCopyDst
	default:
		return driver.LUndefined
	}
}

// stageMaskFor returns the (Sync, Access) pair conventionally implied
// by a pass kind and an access direction, used when a node doesn't
// specify an explicit stage/access mask (the common case — most
// nodes only care about "I read/write this as a fragment shader
// resource", not the exact scope).
func stageMaskFor(kind PassKind, dir AccessKind, isImage bool) (driver.Sync, driver.Access) {
	switch kind {
	case PassGraphics:
		if isImage {
			if dir == Read {
				return driver.SFragmentShading, driver.AShaderRead
			}
			return driver.SColorOutput, driver.AColorWrite
		}
		if dir == Read {
			return driver.SVertexShading | driver.SFragmentShading, driver.AShaderRead
		}
		return driver.SFragmentShading, driver.AShaderWrite
	case PassCompute:
		if dir == Read {
			return driver.SComputeShading, driver.AShaderRead
		}
		if dir == ReadWrite {
			return driver.SComputeShading, driver.AShaderRead | driver.AShaderWrite
		}
		return driver.SComputeShading, driver.AShaderWrite
	case PassTransfer:
		if dir == Read {
			return driver.SCopy, driver.ACopyRead
		}
		return driver.SCopy, driver.ACopyWrite
	default:
		return driver.SNone, driver.ANone
	}
}

// passRecord is produced by Build (§3 "Pass record"): the kind of GPU
// work plus the node's accesses for the frame.
type passRecord struct {
	node     int
	kind     PassKind
	accesses []access
}
