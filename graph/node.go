// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/gomlx/graphopt/types/shapes"
)

// Node is the application of an operation to its inputs, producing its outputs.
//
// Nodes are created by the op constructors (Add, Mul, DimShuffle, ...) and adopted by a Graph
// when it is created or when they are part of a replacement. A node belongs to at most one Graph.
type Node struct {
	id     NodeId
	graph  *Graph
	opType OpType
	params Params

	inputs  []*Value
	outputs []*Value

	// destroyMap maps an output index to the input index whose storage it overwrites.
	destroyMap map[int]int
}

// Id of the node, unique within the process.
func (n *Node) Id() NodeId { return n.id }

// Graph the node belongs to, or nil if it hasn't been adopted by any graph.
func (n *Node) Graph() *Graph { return n.graph }

// OpType of the node.
func (n *Node) OpType() OpType { return n.opType }

// Params of the node, nil for operations without parameters.
func (n *Node) Params() Params { return n.params }

// Inputs of the node. The returned slice must not be modified.
func (n *Node) Inputs() []*Value { return n.inputs }

// Outputs of the node. The returned slice must not be modified.
func (n *Node) Outputs() []*Value { return n.outputs }

// Out returns the first output, for single output nodes (all nodes of the current vocabulary).
func (n *Node) Out() *Value { return n.outputs[0] }

// NumInputs returns the number of inputs of the node.
func (n *Node) NumInputs() int { return len(n.inputs) }

// Input returns the i-th input of the node.
func (n *Node) Input(i int) *Value { return n.inputs[i] }

// Shape of the first output.
func (n *Node) Shape() shapes.Shape { return n.outputs[0].shape }

// IsElementwise returns whether the node's operation is element-wise.
func (n *Node) IsElementwise() bool { return n.opType.IsElementwise() }

// DestroyMap returns a copy of the inplace bindings of the node: output index to the input index
// whose storage the output overwrites. It is nil for non-destructive nodes.
func (n *Node) DestroyMap() map[int]int {
	if len(n.destroyMap) == 0 {
		return nil
	}
	return maps.Clone(n.destroyMap)
}

// IsDestructive returns whether the node overwrites any of its inputs.
func (n *Node) IsDestructive() bool { return len(n.destroyMap) > 0 }

// String implements fmt.Stringer, e.g.: "#12=Mul(x, #10)".
func (n *Node) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "#%d=%s", n.id, n.opType)
	if n.params != nil {
		fmt.Fprintf(&sb, "{%s}", n.params)
	}
	sb.WriteString("(")
	for ii, input := range n.inputs {
		if ii > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(input.String())
	}
	sb.WriteString(")")
	if len(n.destroyMap) > 0 {
		outs := slices.Sorted(maps.Keys(n.destroyMap))
		sb.WriteString(" inplace{")
		for ii, out := range outs {
			if ii > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "%d<-%d", out, n.destroyMap[out])
		}
		sb.WriteString("}")
	}
	fmt.Fprintf(&sb, " %s", n.outputs[0].shape)
	return sb.String()
}
