// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Merge implementation: remove duplicated expressions, also known as "common subexpression elimination".

// nodeDedupKey is used to index candidate nodes with the same operation type and input structure.
type nodeDedupKey struct {
	opType     OpType
	inputCount int
	firstInput *Value // nil if there are no inputs.
}

func makeNodeDedupKey(node *Node) nodeDedupKey {
	key := nodeDedupKey{opType: node.opType, inputCount: len(node.inputs)}
	if len(node.inputs) > 0 {
		key.firstInput = node.inputs[0]
	}
	return key
}

// valuesEqual checks if two slices of values are equal (same pointers).
func valuesEqual(a, b []*Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Merge replaces constants holding equal literals (with the same shape) by one of them, and then
// nodes with the same operation, params and inputs by one of them. Inplace nodes are never merged.
//
// It returns the number of values replaced.
func (g *Graph) Merge() (merged int, err error) {
	nodes, err := g.TopoSort()
	if err != nil {
		return 0, err
	}

	// Constants, visited in a deterministic order.
	var kept []*Value
	visited := make(map[*Value]bool)
	for _, node := range nodes {
		for _, input := range node.inputs {
			if !input.IsConstant() || visited[input] {
				continue
			}
			visited[input] = true
			var same *Value
			for _, candidate := range kept {
				if candidate.shape.Equal(input.shape) && candidate.literal.Equal(input.literal) {
					same = candidate
					break
				}
			}
			if same == nil {
				kept = append(kept, input)
				continue
			}
			if err := g.Replace(input, same, "merge"); err != nil {
				if IsReplaceError(err, DestroyConflict) {
					klog.V(1).Infof("graph %q: not merging constant %s: %v", g.name, input, err)
					continue
				}
				return merged, errors.WithMessagef(err, "merging constant %s", input)
			}
			merged++
		}
	}

	// Nodes, in topological order so inputs are merged before their clients are compared.
	index := make(map[nodeDedupKey][]*Node)
	for _, node := range nodes {
		if node.graph != g || node.IsDestructive() {
			continue
		}
		key := makeNodeDedupKey(node)
		var duplicate *Node
		for _, candidate := range index[key] {
			if candidate.graph == g && valuesEqual(candidate.inputs, node.inputs) &&
				paramsEqual(candidate.params, node.params) {
				duplicate = candidate
				break
			}
		}
		if duplicate == nil {
			index[key] = append(index[key], node)
			continue
		}
		if err := g.ReplaceAllValidate(node.outputs, duplicate.outputs, "merge"); err != nil {
			if IsReplaceError(err, DestroyConflict) {
				klog.V(1).Infof("graph %q: not merging node %s: %v", g.name, node, err)
				continue
			}
			return merged, errors.WithMessagef(err, "merging node %s", node)
		}
		merged++
	}
	return merged, nil
}

// SameExpression returns whether a and b are structurally the same expression: the same value, constants
// with equal literals and shapes, or outputs of nodes with the same operation, params and (recursively)
// the same input expressions. Parameters are only the same as themselves.
func SameExpression(a, b *Value) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil || !a.shape.Equal(b.shape) {
		return false
	}
	if a.IsConstant() || b.IsConstant() {
		return a.IsConstant() && b.IsConstant() && a.literal.Equal(b.literal)
	}
	if a.owner == nil || b.owner == nil {
		return false
	}
	na, nb := a.owner, b.owner
	if a.index != b.index || na.opType != nb.opType || len(na.inputs) != len(nb.inputs) ||
		!paramsEqual(na.params, nb.params) {
		return false
	}
	for ii := range na.inputs {
		if !SameExpression(na.inputs[ii], nb.inputs[ii]) {
			return false
		}
	}
	return true
}
