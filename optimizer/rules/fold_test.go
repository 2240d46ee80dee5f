// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package rules

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/graphopt/graph"
	"github.com/gomlx/graphopt/graph/graphtest"
	"github.com/gomlx/graphopt/types/shapes"
	"github.com/gomlx/graphopt/types/tensors"
	"github.com/stretchr/testify/require"
)

func TestConstantFolding(t *testing.T) {
	g := graphtest.RunRewrite(t, build(func(xs []*graph.Value) *graph.Value {
		return graph.Add(xs[0], graph.Mul(scalar(2), graph.Exp(scalar(0))))
	}, "x"), rewriteWith(t, ConstantFolding()), 1e-6)
	require.Equal(t, "Add", graphtest.Summary(g))
	c := g.Outputs()[0].Owner().Input(1)
	require.True(t, c.IsConstant())
	require.Equal(t, 2.0, c.Literal().Value())

	// Nodes with non-constant inputs are left alone.
	x := graph.Parameter("x", matrix())
	require.False(t, ConstantFolding().Transform(graph.Add(x, scalar(1)).Owner()).Matched())

	// The folded constant keeps the static type of the folded value.
	row := graph.Const(tensors.FromFlat(f32, []float64{1, 2, 3}, 1, 3))
	col := graph.Const(tensors.FromFlat(f32, []float64{1, 2}, 2, 1))
	match := ConstantFolding().Transform(graph.Mul(row, col).Owner())
	require.True(t, match.Matched())
	folded := match.Outputs()[0]
	require.True(t, folded.Shape().Equal(shapes.Make(f32, false, false)))
	require.Equal(t, []float64{1, 2, 3, 2, 4, 6}, folded.Literal().Flat())

	// Evaluation errors are not folded.
	bad := graph.Reshape(graph.Const(tensors.FromFlat(f32, []float64{1, 2, 3}, 3)),
		graph.Const(tensors.FromFlat(dtypes.Int64, []float64{2, 2}, 2)), 2)
	require.False(t, ConstantFolding().Transform(bad.Owner()).Matched())
}

func TestConstantFoldingDeterministic(t *testing.T) {
	fold := func() *tensors.Tensor {
		v := graph.Const(tensors.FromFlat(f32, []float64{0.1, 0.7, 1.3}, 3))
		expr := graph.Div(graph.Log(graph.Exp(graph.Sqrt(v))), scalar(3))
		g := graph.MustNew("fold", nil, []*graph.Value{expr})
		rewriteWith(t, ConstantFolding())(g)
		require.True(t, g.Outputs()[0].IsConstant())
		return g.Outputs()[0].Literal()
	}
	first, second := fold(), fold()
	require.True(t, first.Equal(second), "folding twice gave %s and %s", first, second)
}

func TestConstantFoldingInplace(t *testing.T) {
	// Folding an inplace node must not overwrite the literal it reads.
	literal := tensors.FromFlat(f32, []float64{1, 2}, 2)
	c := graph.Const(literal)
	inplace := graph.ApplyInplace(graph.OpTypeNeg, nil, map[int]int{0: 0}, c)
	match := ConstantFolding().Transform(inplace.Owner())
	require.True(t, match.Matched())
	require.Equal(t, []float64{-1, -2}, match.Outputs()[0].Literal().Flat())
	require.Equal(t, []float64{1, 2}, literal.Flat())
}
