// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package graphtest holds test utilities for packages that depend on the graph package.
package graphtest

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/gomlx/graphopt/graph"
	"github.com/gomlx/graphopt/types/tensors"
	"github.com/stretchr/testify/require"
)

// DefaultDimension is the dimension used for the non-broadcastable axes of random inputs.
const DefaultDimension = 3

// BuildFn builds a graph to test. It is usually called once per graph instance needed by a test, since
// nodes belong to only one graph.
type BuildFn func() *graph.Graph

// RandomInputs returns random tensors for the inputs of g. Broadcastable axes have dimension 1, all
// others DefaultDimension. Float values are drawn from [0.5, 2), so they are safe to use with Log, Sqrt and
// divisions, and integer values from [1, 3].
func RandomInputs(g *graph.Graph, rng *rand.Rand) []*tensors.Tensor {
	inputs := make([]*tensors.Tensor, len(g.Inputs()))
	for ii, param := range g.Inputs() {
		shape := param.Shape()
		dims := make([]int, shape.Rank())
		for axis, bc := range shape.Broadcastable {
			dims[axis] = DefaultDimension
			if bc {
				dims[axis] = 1
			}
		}
		flat := make([]float64, tensors.SizeOf(dims))
		for jj := range flat {
			if shape.DType.IsFloat() {
				flat[jj] = 0.5 + 1.5*rng.Float64()
			} else {
				flat[jj] = float64(1 + rng.IntN(3))
			}
		}
		inputs[ii] = tensors.FromFlat(shape.DType, flat, dims...)
	}
	return inputs
}

// AssertEquivalent checks that reference and optimized graphs compute the same outputs, within delta,
// for numSamples random inputs.
func AssertEquivalent(t *testing.T, reference, optimized *graph.Graph, numSamples int, delta float64) {
	t.Helper()
	require.Equal(t, len(reference.Inputs()), len(optimized.Inputs()), "graphs have different number of inputs")
	rng := rand.New(rand.NewPCG(42, uint64(numSamples)))
	for sample := range numSamples {
		inputs := RandomInputs(reference, rng)
		want, err := reference.Evaluate(cloneAll(inputs)...)
		require.NoErrorf(t, err, "evaluating reference graph:\n%s", reference)
		got, err := optimized.Evaluate(cloneAll(inputs)...)
		require.NoErrorf(t, err, "evaluating optimized graph:\n%s", optimized)
		require.Len(t, got, len(want))
		for ii := range want {
			require.Truef(t, want[ii].InDelta(got[ii], delta),
				"sample #%d, output #%d: optimized graph returned %s, wanted %s\nreference: %s\noptimized: %s",
				sample, ii, got[ii], want[ii], reference, optimized)
		}
	}
}

func cloneAll(ts []*tensors.Tensor) []*tensors.Tensor {
	clones := make([]*tensors.Tensor, len(ts))
	for ii, t := range ts {
		clones[ii] = t.Clone()
	}
	return clones
}

// RunRewrite builds a graph with buildFn, transforms it with rewriteFn, and checks that the result is
// equivalent to an untouched graph built the same way. It returns the transformed graph, for further checks.
func RunRewrite(t *testing.T, buildFn BuildFn, rewriteFn func(g *graph.Graph), delta float64) *graph.Graph {
	t.Helper()
	reference := buildFn()
	g := buildFn()
	rewriteFn(g)
	require.NoError(t, g.Validate())
	AssertEquivalent(t, reference, g, 5, delta)
	return g
}

// CountOps returns the number of nodes in g with any of the given operation types.
func CountOps(g *graph.Graph, ops ...graph.OpType) int {
	count := 0
	for _, node := range g.Nodes() {
		for _, op := range ops {
			if node.OpType() == op {
				count++
				break
			}
		}
	}
	return count
}

// Summary returns a compact, one line, description of the operations in g, in topological order.
// E.g.: "Mul Div Add".
func Summary(g *graph.Graph) string {
	s := ""
	for ii, node := range g.Nodes() {
		if ii > 0 {
			s += " "
		}
		s += fmt.Sprint(node.OpType())
	}
	return s
}
