// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package rules

import (
	"slices"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/graphopt/graph"
	"github.com/gomlx/graphopt/optimizer"
)

// Shape lifters: ShapeOf(op(...)) is rewritten in terms of the shapes of op's inputs, so op doesn't need to
// be computed if nothing else uses it.

// ShapeLiftElementwise rewrites ShapeOf(f(..., x, ...)) -> ShapeOf(x), for an element-wise f and an input x
// with the same broadcast pattern as the result (hence the same runtime dimensions).
func ShapeLiftElementwise() optimizer.Rule {
	return optimizer.RuleFunc("shape_lift_elementwise", func(node *graph.Node) optimizer.Match {
		parent := node.Input(0).Owner()
		if parent == nil || !parent.IsElementwise() {
			return optimizer.NoMatch
		}
		for _, input := range parent.Inputs() {
			if input.Shape().EqualPattern(parent.Shape()) {
				return optimizer.Replace(graph.ShapeOf(input))
			}
		}
		return optimizer.NoMatch
	}, graph.OpTypeShape)
}

// ShapeLiftSum rewrites ShapeOf(ReduceSum(x, axes)) -> [ShapeOf(x)[i] for i not in axes].
func ShapeLiftSum() optimizer.Rule {
	return optimizer.RuleFunc("shape_lift_sum", func(node *graph.Node) optimizer.Match {
		parent := node.Input(0).Owner()
		if parent == nil || parent.OpType() != graph.OpTypeReduceSum {
			return optimizer.NoMatch
		}
		x := parent.Input(0)
		axes := parent.Params().(*graph.ReduceParams).Axes
		var dims []*graph.Value
		if axes != nil {
			xShape := graph.ShapeOf(x)
			for axis := range x.Rank() {
				if !slices.Contains(axes, axis) {
					dims = append(dims, graph.Subtensor(xShape, axis))
				}
			}
		}
		return optimizer.Replace(graph.MakeVector(dims...))
	}, graph.OpTypeShape)
}

// ShapeLiftDot rewrites ShapeOf(Dot(a, b)) -> [ShapeOf(a)[0], ShapeOf(b)[1]], dropping the dimensions of
// vector operands.
func ShapeLiftDot() optimizer.Rule {
	return optimizer.RuleFunc("shape_lift_dot", func(node *graph.Node) optimizer.Match {
		parent := node.Input(0).Owner()
		if parent == nil || parent.OpType() != graph.OpTypeDot {
			return optimizer.NoMatch
		}
		a, b := parent.Input(0), parent.Input(1)
		var dims []*graph.Value
		if a.Rank() == 2 {
			dims = append(dims, graph.Subtensor(graph.ShapeOf(a), 0))
		}
		if b.Rank() == 2 {
			dims = append(dims, graph.Subtensor(graph.ShapeOf(b), 1))
		}
		return optimizer.Replace(graph.MakeVector(dims...))
	}, graph.OpTypeShape)
}

// SubtensorMakeVector rewrites indexing of a vector built with MakeVector:
//
//	MakeVector(a, b, c)[1]   -> b
//	MakeVector(a, b, c)[0:2] -> MakeVector(a, b)
func SubtensorMakeVector() optimizer.Rule {
	return optimizer.RuleFunc("subtensor_make_vector", func(node *graph.Node) optimizer.Match {
		parent := node.Input(0).Owner()
		if parent == nil || parent.OpType() != graph.OpTypeMakeVector {
			return optimizer.NoMatch
		}
		elements := parent.Inputs()
		switch p := node.Params().(type) {
		case *graph.SubtensorParams:
			idx := p.Index
			if idx < 0 {
				idx += len(elements)
			}
			if idx < 0 || idx >= len(elements) {
				return optimizer.NoMatch
			}
			return optimizer.Replace(elements[idx])
		case *graph.SliceParams:
			start, stop := graph.SliceBounds(p.Start, p.Stop, len(elements))
			if start == stop && node.Shape().DType != dtypes.Int64 {
				// An empty MakeVector is Int64.
				return optimizer.NoMatch
			}
			return optimizer.Replace(graph.MakeVector(elements[start:stop]...))
		}
		return optimizer.NoMatch
	}, graph.OpTypeSubtensor, graph.OpTypeSlice)
}
