// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package rules

import (
	"github.com/gomlx/graphopt/graph"
	"github.com/gomlx/graphopt/optimizer"
)

// DimShuffleLift moves DimShuffle operations towards the inputs of the graph, and merges consecutive ones:
//
//	DimShuffle(DimShuffle(x)) -> DimShuffle(x), or x if the composition is the identity.
//	DimShuffle(f(x, y)) -> f(DimShuffle(x), DimShuffle(y)), for an element-wise f only used there.
//	DimShuffle(x) -> x, if it is the identity.
//
// After it, clusters of element-wise operations are free of DimShuffle operations, and the arithmetic
// rules can see through them.
func DimShuffleLift() optimizer.Rule {
	return optimizer.RuleFunc("dimshuffle_lift", dimShuffleLift, graph.OpTypeDimShuffle)
}

func dimShuffleLift(node *graph.Node) optimizer.Match {
	order := node.Params().(*graph.DimShuffleParams).Order
	input := node.Input(0)
	if isIdentityShuffle(order, input.Rank()) {
		return optimizer.Replace(input)
	}
	inode := input.Owner()
	if inode == nil {
		return optimizer.NoMatch
	}
	if inode.OpType() == graph.OpTypeDimShuffle {
		inner := inode.Params().(*graph.DimShuffleParams).Order
		composed := make([]int, len(order))
		for ii, axis := range order {
			composed[ii] = graph.NewAxis
			if axis != graph.NewAxis {
				composed[ii] = inner[axis]
			}
		}
		x := inode.Input(0)
		if isIdentityShuffle(composed, x.Rank()) {
			return optimizer.Replace(x)
		}
		return optimizer.Replace(graph.DimShuffle(x, composed...))
	}
	if !inode.IsElementwise() || !singleClient(input) {
		return optimizer.NoMatch
	}
	inputs := make([]*graph.Value, inode.NumInputs())
	for ii, x := range inode.Inputs() {
		// Inputs of lower rank are implicitly padded on the left.
		pad := input.Rank() - x.Rank()
		xOrder := make([]int, len(order))
		for jj, axis := range order {
			xOrder[jj] = graph.NewAxis
			if axis != graph.NewAxis && axis >= pad {
				xOrder[jj] = axis - pad
			}
		}
		if isIdentityShuffle(xOrder, x.Rank()) {
			inputs[ii] = x
		} else {
			inputs[ii] = graph.DimShuffle(x, xOrder...)
		}
	}
	return optimizer.Replace(graph.Rebuild(inode, inputs...))
}

func isIdentityShuffle(order []int, inputRank int) bool {
	return (&graph.DimShuffleParams{Order: order}).IsIdentity(inputRank)
}

// TransposedDot rewrites Transpose(Dot(x, y)) -> Dot(Transpose(y), Transpose(x)), for matrices x and y,
// if the Dot is not used elsewhere. DimShuffleLift then cancels transposes of transposes.
func TransposedDot() optimizer.Rule {
	return optimizer.RuleFunc("transposed_dot", func(node *graph.Node) optimizer.Match {
		if !node.Params().(*graph.DimShuffleParams).IsTranspose() {
			return optimizer.NoMatch
		}
		dot := node.Input(0)
		if dot.OpType() != graph.OpTypeDot || !singleClient(dot) {
			return optimizer.NoMatch
		}
		x, y := dot.Owner().Input(0), dot.Owner().Input(1)
		if x.Rank() != 2 || y.Rank() != 2 {
			return optimizer.NoMatch
		}
		return optimizer.Replace(graph.Dot(graph.Transpose(y), graph.Transpose(x)))
	}, graph.OpTypeDimShuffle)
}

// ReshapeChain rewrites Reshape(Reshape(x, s1), s2) -> Reshape(x, s2).
func ReshapeChain() optimizer.Rule {
	return optimizer.RuleFunc("reshape_chain", func(node *graph.Node) optimizer.Match {
		inner := node.Input(0)
		if inner.OpType() != graph.OpTypeReshape {
			return optimizer.NoMatch
		}
		return optimizer.Replace(graph.Rebuild(node, inner.Owner().Input(0), node.Input(1)))
	}, graph.OpTypeReshape)
}

// RemoveCopy rewrites Copy(x) -> x.
func RemoveCopy() optimizer.Rule {
	return optimizer.RuleFunc("remove_tensor_copy", func(node *graph.Node) optimizer.Match {
		return optimizer.Replace(node.Input(0))
	}, graph.OpTypeCopy)
}
