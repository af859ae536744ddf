// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package graph

import (
	"fmt"
	"reflect"

	"forge/driver"
)

// resourceHandle identifies a resource cell in a live FrameGraph's pin
// arena: the arena index of the KindResource output pin that produces
// it. It is stable across frames (the template's wiring never
// changes), even though the transient pool slot it resolves to may
// differ frame to frame.
type resourceHandle int

// DataPin, ResourcePin and SinkPin are typed handles a node type
// embeds (or closes over) to reference its own declared pins without
// repeating the pin's name and type at every BuildContext/
// ExecuteContext call site. They carry no storage themselves — only
// the local pin slot index — so they are cheap to copy and safe to
// keep as struct fields on the node's state.
//
// This is the idiomatic-Go stand-in for the original engine's
// data_pin<T>/resource_pin<T> templates (render_graph_node.hpp): Go's
// lack of non-type template parameters on methods makes a free
// function the natural shape for the typed accessors (Data,
// AcquireBuffer/AcquireImage, Push, Sink) rather than methods on these
// handle types themselves.
type DataPin[T any] struct{ slot int }

// ResourcePin references a KindResource pin of payload type T, where
// T is typically Buffer or Image.
type ResourcePin[T any] struct{ slot int }

// SinkPin references a KindSink pin of element type T.
type SinkPin[T any] struct{ slot int }

// NewDataPin, NewResourcePin and NewSinkPin bind a handle to the
// local pin slot declared in a NodeDesc.Pins, found by name. Node
// constructors call these once, at registration or construction time,
// and keep the resulting handle for the node's lifetime.
func NewDataPin[T any](desc *NodeDesc, name string) DataPin[T] {
	return DataPin[T]{slot: mustSlot(desc, name, KindData)}
}

func NewResourcePin[T any](desc *NodeDesc, name string) ResourcePin[T] {
	return ResourcePin[T]{slot: mustSlot(desc, name, KindResource)}
}

func NewSinkPin[T any](desc *NodeDesc, name string) SinkPin[T] {
	return SinkPin[T]{slot: mustSlot(desc, name, KindSink)}
}

func mustSlot(desc *NodeDesc, name string, kind PinKind) int {
	slot := desc.pinSlot(name)
	if slot < 0 {
		panic(fmt.Sprintf("graph: node %q declares no pin %q", desc.ID, name))
	}
	if desc.Pins[slot].Kind != kind {
		panic(fmt.Sprintf("graph: node %q pin %q is not a %s pin", desc.ID, name, kind))
	}
	return slot
}

func dataPinDesc(name string, dir PinDir, t reflect.Type) PinDesc {
	return PinDesc{Name: name, Dir: dir, Kind: KindData, Type: t}
}

func resourcePinDesc(name string, dir PinDir, t reflect.Type) PinDesc {
	return PinDesc{Name: name, Dir: dir, Kind: KindResource, Type: t}
}

func sinkPinDesc(name string, dir PinDir, t reflect.Type) PinDesc {
	return PinDesc{Name: name, Dir: dir, Kind: KindSink, Type: t}
}

// DataPinDesc, ResourcePinDesc and SinkPinDesc are the exported
// constructors node types use in their registration's Pins list, kept
// as free functions (rather than methods on the generic handle types)
// since a method can't introduce its own type parameter in Go.
func DataPinDesc[T any](name string, dir PinDir) PinDesc {
	return dataPinDesc(name, dir, reflect.TypeOf((*T)(nil)).Elem())
}

func ResourcePinDesc[T any](name string, dir PinDir) PinDesc {
	return resourcePinDesc(name, dir, reflect.TypeOf((*T)(nil)).Elem())
}

func SinkPinDesc[T any](name string, dir PinDir) PinDesc {
	return sinkPinDesc(name, dir, reflect.TypeOf((*T)(nil)).Elem())
}

// resourceState is the live, per-frame state of one KindResource
// output pin's arena cell (§3 "Resource record"). desc/isImage are
// set by the producing node's create() call; ref is filled in by the
// transient pool (or the stable-resource table) once the lifetime
// window is known.
type resourceState struct {
	produced bool
	isImage  bool
	bufDesc  BufferDesc
	imgDesc  ImageDesc
	ref      frameResourceRef
	// layouts accumulates every driver.Layout an access (access.go)
	// requests for this resource over the frame, folded as a union
	// before the image is actually created (§3).
	layouts map[driver.Layout]bool
}

// pinArena is the per-frame storage backing a GraphTemplate's
// compiled pin list: one cell per arena slot, typed by the pin's Kind
// (§4.3 "a single contiguous pin storage arena is allocated per
// graph"). Input pins don't get their own cell; readers resolve
// through compiledPin.aliasTo to the producer's cell instead.
type pinArena struct {
	resources []resourceState
	data      []any
	sinks     [][]any
}

func newPinArena(n int) *pinArena {
	return &pinArena{
		resources: make([]resourceState, n),
		data:      make([]any, n),
		sinks:     make([][]any, n),
	}
}

// reset clears every cell ahead of a frame's Build phase. A node that
// declares a Stable resource still calls Create every frame, the same
// as any other producer; it is the TransientPool's stable table, not
// the arena, that actually persists the backing GPU object across
// frames (§3 "Stable resources persist across frames").
func (a *pinArena) reset(t *GraphTemplate) {
	for i, p := range t.pins {
		switch {
		case p.desc.Kind == KindResource && p.desc.Dir == Out:
			a.resources[i] = resourceState{}
		case p.desc.Kind == KindData && p.desc.Dir == Out:
			a.data[i] = nil
		case p.desc.Kind == KindSink && p.desc.Dir == In:
			a.sinks[i] = a.sinks[i][:0]
		}
	}
}

// resolveData follows aliasTo for a data input pin, returning the
// arena slot actually holding the value.
func (t *GraphTemplate) resolveData(slot int) int {
	if t.pins[slot].desc.Dir == In {
		return t.pins[slot].aliasTo
	}
	return slot
}

// resolveResource follows aliasTo for a resource input pin.
func (t *GraphTemplate) resolveResource(slot int) int {
	if t.pins[slot].desc.Dir == In {
		return t.pins[slot].aliasTo
	}
	return slot
}
