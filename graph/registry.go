// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package graph

import (
	"fmt"
	"log"
	"sync"
)

// Registry is a type-erased mapping from a stable node identifier to
// its NodeDesc (C1). It is grounded on driver.Register/driver.Drivers
// (driver/driver.go), which use the same register-by-name-then-find
// pattern for GPU driver backends.
type Registry struct {
	mu    sync.Mutex
	descs map[NodeID]*NodeDesc
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{descs: make(map[NodeID]*NodeDesc)}
}

// ErrDuplicateNode is returned by Register when id is already bound.
type ErrDuplicateNode NodeID

func (e ErrDuplicateNode) Error() string {
	return fmt.Sprintf("graph: node id %q already registered", NodeID(e))
}

// Register binds desc.ID to desc. Unlike driver.Register, which
// replaces an existing entry of the same name, node identifiers must
// be unique: registering a node under an id that is already bound is
// a programming error, not a hot-reload, so Register fails instead of
// silently replacing it.
func (r *Registry) Register(desc NodeDesc) error {
	if desc.ID == "" {
		return fmt.Errorf("graph: empty node id")
	}
	if desc.New == nil {
		return fmt.Errorf("graph: node %q has nil constructor", desc.ID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.descs[desc.ID]; ok {
		return ErrDuplicateNode(desc.ID)
	}
	cp := desc
	cp.Pins = append([]PinDesc(nil), desc.Pins...)
	r.descs[desc.ID] = &cp
	log.Printf("graph: node %q registered (%d pins)", desc.ID, len(desc.Pins))
	return nil
}

// Find returns a borrow of the NodeDesc bound to id, or (nil, false)
// if no node is registered under that identifier.
func (r *Registry) Find(id NodeID) (*NodeDesc, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.descs[id]
	return d, ok
}
