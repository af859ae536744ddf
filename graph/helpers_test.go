// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package graph

import "testing"

// mustRegister registers desc into reg or fails the test immediately;
// nearly every test in this package builds a fresh Registry and wires
// in a handful of the node types from testnodes_test.go, so this
// collapses the repeated error-check boilerplate.
func mustRegister(t *testing.T, reg *Registry, desc NodeDesc) {
	t.Helper()
	if err := reg.Register(desc); err != nil {
		t.Fatalf("Register(%q): %v", desc.ID, err)
	}
}
