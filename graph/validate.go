// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"github.com/pkg/errors"
)

// Validate checks that the graph is acyclic and that every inplace binding is safe: a destroyed
// input must be produced by a node of the graph (parameters and constants are never overwritten),
// must not be an output of the graph, and must have no other reader than the node destroying it.
//
// It returns a *ReplaceError of kind Inconsistency or DestroyConflict.
func (g *Graph) Validate() error {
	if err := g.validate(""); err != nil {
		return err
	}
	return nil
}

func (g *Graph) validate(reason string) *ReplaceError {
	nodes, err := g.TopoSort()
	if err != nil {
		return &ReplaceError{Kind: Inconsistency, Reason: reason, Err: err}
	}
	for _, node := range nodes {
		for outIdx, inIdx := range node.destroyMap {
			if err := g.checkDestroy(node, outIdx, inIdx); err != nil {
				return &ReplaceError{Kind: DestroyConflict, Reason: reason, Err: err}
			}
		}
	}
	return nil
}

func (g *Graph) checkDestroy(node *Node, outIdx, inIdx int) error {
	input := node.inputs[inIdx]
	if input.owner == nil {
		return errors.Errorf("node %s overwrites %s, which is a graph input or a constant", node, input)
	}
	for _, c := range g.clients[input] {
		if c.IsOutput() {
			return errors.Errorf("node %s overwrites %s, which is an output of the graph", node, input)
		}
		if c.Node != node || c.Input != inIdx {
			return errors.Errorf("node %s overwrites %s (output #%d over input #%d), which is also read by %s",
				node, input, outIdx, inIdx, c.Node)
		}
	}
	return nil
}
