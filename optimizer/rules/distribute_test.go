// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package rules

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/graphopt/graph"
	"github.com/gomlx/graphopt/graph/graphtest"
	"github.com/gomlx/graphopt/types/shapes"
	"github.com/stretchr/testify/require"
)

func TestGreedyDistributor(t *testing.T) {
	testCases := []struct {
		name  string
		build func(xs []*graph.Value) *graph.Value
		// wantMul and wantDiv are the number of Mul and Div nodes after the rewrite.
		wantMul, wantDiv int
	}{
		{"(a/x + b/y) * x * y", func(xs []*graph.Value) *graph.Value {
			a, b, x, y := xs[0], xs[1], xs[2], xs[3]
			return graph.Mul(graph.Add(graph.Div(a, x), graph.Div(b, y)), x, y)
		}, 2, 0},
		{"(a/x + b) * x", func(xs []*graph.Value) *graph.Value {
			a, b, x := xs[0], xs[1], xs[2]
			return graph.Mul(graph.Add(graph.Div(a, x), b), x)
		}, 1, 0},
		{"(a + b) * x", func(xs []*graph.Value) *graph.Value {
			a, b, x := xs[0], xs[1], xs[2]
			return graph.Mul(graph.Add(a, b), x)
		}, 1, 0},
		{"(a/x - b/x) * x", func(xs []*graph.Value) *graph.Value {
			a, b, x := xs[0], xs[1], xs[2]
			return graph.Mul(graph.Sub(graph.Div(a, x), graph.Div(b, x)), x)
		}, 0, 0},
		{"c / ((a/y + b/y) * y)", func(xs []*graph.Value) *graph.Value {
			a, b, c, y := xs[0], xs[1], xs[2], xs[3]
			return graph.Div(c, graph.Mul(graph.Add(graph.Div(a, y), graph.Div(b, y)), y))
		}, 0, 1},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			g := graphtest.RunRewrite(t, build(tc.build, "a", "b", "c", "d"), rewriteWith(t, GreedyDistributor()), 1e-4)
			require.Equalf(t, tc.wantMul, graphtest.CountOps(g, graph.OpTypeMul), "Mul nodes in:\n%s", g)
			require.Equalf(t, tc.wantDiv, graphtest.CountOps(g, graph.OpTypeDiv), "Div nodes in:\n%s", g)
		})
	}
}

func TestDistributeGreedyScore(t *testing.T) {
	d := &distributor{mul: MulCanonizer(), add: AddCanonizer()}
	a, b, x := graph.Parameter("a", matrix()), graph.Parameter("b", matrix()), graph.Parameter("x", matrix())
	pos := []Terms{{Num: []*graph.Value{a}, Denum: []*graph.Value{x}}, {Num: []*graph.Value{b}}}

	ok, newPos, newNeg := d.distributeGreedy(pos, nil, []*graph.Value{x}, nil, f32)
	require.True(t, ok)
	require.Empty(t, newNeg)
	require.Equal(t, []*graph.Value{a}, newPos[0].Num)
	require.Empty(t, newPos[0].Denum)
	require.Equal(t, []*graph.Value{b, x}, newPos[1].Num)

	// Distributing a factor that cancels nothing costs one multiplication per term.
	ok, newPos, _ = d.distributeGreedy(pos[1:], nil, []*graph.Value{a}, nil, f32)
	require.False(t, ok)
	require.Equal(t, pos[1:], newPos)
}

func TestGreedyDistributorIgnoresIntegers(t *testing.T) {
	intMatrix := shapes.Make(dtypes.Int32, false, false)
	a, b, x := graph.Parameter("a", intMatrix), graph.Parameter("b", intMatrix), graph.Parameter("x", intMatrix)
	out := graph.Mul(graph.Add(graph.Div(a, x), b), x)
	require.False(t, GreedyDistributor().Transform(out.Owner()).Matched())
}
