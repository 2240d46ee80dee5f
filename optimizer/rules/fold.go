// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package rules

import (
	"github.com/gomlx/graphopt/graph"
	"github.com/gomlx/graphopt/optimizer"
	"github.com/gomlx/graphopt/types/tensors"
	"k8s.io/klog/v2"
)

// ConstantFolding replaces nodes whose inputs are all constants by constants holding their result,
// computed with graph.Perform.
//
// Every operation in the graph vocabulary is pure and deterministic, so folding the same node twice
// yields bit-identical literals.
func ConstantFolding() optimizer.Rule {
	return optimizer.RuleFunc("constant_folding", foldConstants)
}

func foldConstants(node *graph.Node) optimizer.Match {
	literals := make([]*tensors.Tensor, node.NumInputs())
	for ii, input := range node.Inputs() {
		if !input.IsConstant() {
			return optimizer.NoMatch
		}
		// Clone: an inplace node would overwrite the literal.
		literals[ii] = input.Literal().Clone()
	}
	results, err := graph.Perform(node, literals)
	if err != nil {
		klog.V(1).Infof("constant_folding: %v", err)
		return optimizer.NoMatch
	}
	folded := make([]*graph.Value, len(results))
	for ii, result := range results {
		folded[ii] = graph.ConstAs(result, node.Outputs()[ii].Shape())
	}
	return optimizer.Replace(folded...)
}
