// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package graph

import "fmt"

// Error phases distinguish when in a frame graph's life cycle a
// failure happened, matching §7's three-tier taxonomy: construction
// (NewGraphTemplate), build (a node's Build this frame), and
// execution (a node's Execute, or a driver.GPU call beneath it).
const (
	PhaseConstruction = "construction"
	PhaseBuild        = "build"
	PhaseExecution    = "execution"
)

// ExecError reports a failure during Execute, mirroring BuildError's
// shape for the execution phase (§7).
type ExecError struct {
	Node int
	Msg  string
	Err  error
}

func (e *ExecError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("graph: execute: node %d: %s: %v", e.Node, e.Msg, e.Err)
	}
	return fmt.Sprintf("graph: execute: node %d: %s", e.Node, e.Msg)
}

func (e *ExecError) Unwrap() error { return e.Err }

// Phase classifies err by which of NewGraphTemplate/Build/Execute
// raised it, for callers that want to react differently to a graph
// wiring mistake than to a transient GPU allocation failure (§7).
func Phase(err error) string {
	switch e := err.(type) {
	case *BuildError:
		return e.Phase
	case *ExecError:
		return PhaseExecution
	default:
		return ""
	}
}
