// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package rules

import (
	"testing"

	"github.com/gomlx/graphopt/graph"
	"github.com/gomlx/graphopt/graph/graphtest"
	"github.com/stretchr/testify/require"
)

func TestFillSink(t *testing.T) {
	g := graphtest.RunRewrite(t, build(func(xs []*graph.Value) *graph.Value {
		return graph.Add(graph.Fill(xs[0], xs[1]), xs[2])
	}, "x", "y", "z"), rewriteWith(t, FillSink()), 1e-6)
	require.Equal(t, "Add Fill", graphtest.Summary(g))

	g = graphtest.RunRewrite(t, build(func(xs []*graph.Value) *graph.Value {
		return graph.Mul(graph.Fill(xs[0], scalar(2)), graph.Fill(xs[1], scalar(3)))
	}, "x", "y"), rewriteWith(t, FillSink()), 1e-6)
	require.Equal(t, "Mul Fill Fill", graphtest.Summary(g))
	out := g.Outputs()[0].Owner()
	require.Equal(t, "x", out.Input(0).Name(), "the first model must be the outermost Fill")

	// Fill itself is not sunk through.
	x := graph.Parameter("x", matrix())
	require.False(t, FillSink().Transform(graph.Fill(graph.Fill(x, scalar(1)), scalar(2)).Owner()).Matched())
}

func TestFillCut(t *testing.T) {
	g := graphtest.RunRewrite(t, build(func(xs []*graph.Value) *graph.Value {
		return graph.Mul(graph.Fill(xs[0], scalar(2)), xs[1])
	}, "x", "y"), rewriteWith(t, FillCut()), 1e-6)
	require.Equal(t, "Mul", graphtest.Summary(g))

	// Without a reference input of the result type, the Fill must stay.
	x := graph.Parameter("x", matrix())
	v := graph.Parameter("v", vector())
	require.False(t, FillCut().Transform(graph.Mul(graph.Fill(x, scalar(2)), v).Owner()).Matched())
}

func TestFillLift(t *testing.T) {
	g := graphtest.RunRewrite(t, func() *graph.Graph {
		x, y := graph.Parameter("x", matrix()), graph.Parameter("y", matrix())
		v := graph.Parameter("v", vector())
		out := graph.Fill(graph.Exp(graph.Add(x, y)), v)
		return graph.MustNew("lift", []*graph.Value{x, y, v}, []*graph.Value{out})
	}, rewriteWith(t, FillLift()), 1e-6)
	require.Equal(t, "Fill", graphtest.Summary(g))
	require.Equal(t, "x", g.Outputs()[0].Owner().Input(0).Name())

	// A value that already has the result type replaces the Fill.
	g = graphtest.RunRewrite(t, build(func(xs []*graph.Value) *graph.Value {
		return graph.Fill(xs[0], xs[1])
	}, "x", "y"), rewriteWith(t, FillLift()), 1e-6)
	require.Equal(t, "", graphtest.Summary(g))
	require.Equal(t, "y", g.Outputs()[0].Name())
}
