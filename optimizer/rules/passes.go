// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package rules

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/graphopt/graph"
	"github.com/gomlx/graphopt/optimizer"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// MergeNodes returns the pass that merges equal constants and duplicate nodes, see graph.Graph.Merge.
func MergeNodes() optimizer.Pass {
	return optimizer.PassFunc("merge", func(g *graph.Graph) (int, error) {
		return g.Merge()
	})
}

// InsertInplace returns the pass that makes element-wise operations write their output over one of their
// inputs, whenever the graph stays valid: the input must be computed by a node (not a parameter or a
// constant), not be an output of the graph, and not be read by any other node.
//
// It is greedy: nodes are visited in topological order, and for each node inputs are tried in order. E.g.:
//
//	x + y + z         -> (x += y) += z
//	(x + y) * (x * y) -> (x += y) *= (x * y)
//
// It should run last, once the operations are final.
func InsertInplace() optimizer.Pass {
	return optimizer.PassFunc("insert_inplace", insertInplace)
}

func insertInplace(g *graph.Graph) (int, error) {
	nodes, err := g.TopoSort()
	if err != nil {
		return 0, errors.WithMessage(err, "insert_inplace")
	}
	count := 0
	for _, node := range nodes {
		if !g.Has(node) || !node.IsElementwise() || node.IsDestructive() {
			continue
		}
		for inputIdx, input := range node.Inputs() {
			if input.Owner() == nil || !input.Shape().Equal(node.Shape()) {
				continue
			}
			var inplace *graph.Value
			err := exceptions.TryCatch[error](func() {
				inplace = graph.ApplyInplace(node.OpType(), node.Params(), map[int]int{0: inputIdx}, node.Inputs()...)
			})
			if err != nil {
				klog.V(2).Infof("insert_inplace: %s on input #%d: %v", node, inputIdx, err)
				continue
			}
			if err := g.ReplaceAllValidate(node.Outputs(), []*graph.Value{inplace}, "insert_inplace"); err != nil {
				if !graph.IsReplaceError(err, graph.DestroyConflict) {
					return count, errors.WithMessagef(err, "insert_inplace on %s", node)
				}
				klog.V(2).Infof("insert_inplace: %v", err)
				continue
			}
			klog.V(1).Infof("insert_inplace: %s", inplace.Owner())
			count++
			break
		}
	}
	return count, nil
}
