// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package graph

// plan computes a deterministic topological order over the template's
// nodes (C4). Ties are broken by ascending node index, so two
// templates built from the same nodes and connections always produce
// the same order regardless of map/slice iteration order elsewhere
// (§8 S1 "determinism").
//
// Every Connection, including ones that target a data-sink's fan-in,
// contributes a dependency edge: a sink's reader must run after every
// node that pushes into it, exactly as a resource's reader must run
// after its producer.
func (t *GraphTemplate) plan() ([]int, error) {
	n := len(t.nodes)
	indeg := make([]int, n)
	adj := make([][]int, n)
	for _, e := range t.edges {
		if e.before == e.after {
			return nil, &BuildError{Phase: PhaseConstruction, Kind: "cycle", Node: e.before, Msg: "node depends on itself"}
		}
		adj[e.before] = append(adj[e.before], e.after)
		indeg[e.after]++
	}

	// A min-heap keyed by node index would be the general tool; a
	// template has at most a few hundred nodes, so a linear scan for
	// the smallest ready index keeps this simple and branch-free.
	ready := make([]bool, n)
	for i := 0; i < n; i++ {
		ready[i] = indeg[i] == 0
	}
	order := make([]int, 0, n)
	done := make([]bool, n)
	for len(order) < n {
		next := -1
		for i := 0; i < n; i++ {
			if ready[i] && !done[i] {
				next = i
				break
			}
		}
		if next < 0 {
			return nil, t.cycleError(indeg)
		}
		done[next] = true
		order = append(order, next)
		for _, to := range adj[next] {
			indeg[to]--
			if indeg[to] == 0 {
				ready[to] = true
			}
		}
	}

	if err := t.validateSinkOrder(order); err != nil {
		return nil, err
	}
	t.order = order
	return order, nil
}

// cycleError reports the first (lowest-index) node still owed
// dependencies once no node remains ready, as a representative member
// of the cycle.
func (t *GraphTemplate) cycleError(indeg []int) error {
	idx := -1
	for i, d := range indeg {
		if d > 0 {
			idx = i
			break
		}
	}
	return &BuildError{Phase: PhaseConstruction, Kind: "cycle", Node: idx, Msg: "connection graph contains a cycle"}
}

// validateSinkOrder enforces that every contribution to a data-sink
// pin is produced before the node that reads it (§3; a write after the
// first read is a graph error, checked once here since the order is
// fully determined by the static connection graph).
func (t *GraphTemplate) validateSinkOrder(order []int) error {
	pos := make([]int, len(order))
	for i, n := range order {
		pos[n] = i
	}
	for slot, readerNode := range t.sinkReader {
		for srcSlot, pin := range t.pins {
			for _, fan := range pin.fanout {
				if fan != slot {
					continue
				}
				if pos[t.pins[srcSlot].owner] >= pos[readerNode] {
					return &BuildError{
						Phase: PhaseConstruction,
						Kind:  "sink-write-after-read",
						Node:  t.pins[srcSlot].owner,
						Msg:   "sink contribution is not ordered before its reader",
					}
				}
			}
		}
	}
	return nil
}
