// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package rules

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/graphopt/graph"
	"github.com/gomlx/graphopt/graph/graphtest"
	"github.com/gomlx/graphopt/optimizer"
	"github.com/gomlx/graphopt/types/shapes"
	"github.com/gomlx/graphopt/types/tensors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const f32 = dtypes.Float32

func matrix() shapes.Shape { return shapes.Make(f32, false, false) }

func vector() shapes.Shape { return shapes.Make(f32, false) }

func scalar(v float64) *graph.Value { return graph.Scalar(f32, v) }

func params(names ...string) []*graph.Value {
	values := make([]*graph.Value, len(names))
	for ii, name := range names {
		values[ii] = graph.Parameter(name, matrix())
	}
	return values
}

// rewriteWith returns a function that applies the rules to a graph until a fixed point.
func rewriteWith(t *testing.T, rules ...optimizer.Rule) func(g *graph.Graph) {
	return func(g *graph.Graph) {
		topo := &optimizer.TopoOptimizer{Name: "test", Rules: rules, Order: optimizer.InToOut, MaxIterations: 50}
		stats, err := topo.Apply(g)
		require.NoError(t, err)
		require.Truef(t, stats.Converged, "rules didn't converge on graph:\n%s", g)
	}
}

// build returns a graphtest.BuildFn that creates matrix parameters with the given names, and the graph
// output with fn.
func build(fn func(xs []*graph.Value) *graph.Value, names ...string) graphtest.BuildFn {
	return func() *graph.Graph {
		xs := params(names...)
		return graph.MustNew("test", xs, []*graph.Value{fn(xs)})
	}
}

func TestDecompose(t *testing.T) {
	c := MulCanonizer()
	a, b, cc, d := graph.Parameter("a", matrix()), graph.Parameter("b", matrix()), graph.Parameter("c", matrix()),
		graph.Parameter("d", matrix())
	v := graph.Parameter("v", vector())
	logA := graph.Log(a)

	testCases := []struct {
		name       string
		expr       *graph.Value
		num, denum []*graph.Value
	}{
		{"product", graph.Mul(a, b), []*graph.Value{a, b}, nil},
		{"reciprocals", graph.Mul(graph.Inv(a), graph.Inv(b)), nil, []*graph.Value{a, b}},
		{"nested", graph.Div(graph.Mul(graph.Div(a, b), cc), d), []*graph.Value{a, cc}, []*graph.Value{b, d}},
		{"divisor", graph.Div(a, graph.Div(b, cc)), []*graph.Value{a, cc}, []*graph.Value{b}},
		{"leaf", logA, []*graph.Value{logA}, nil},
		{"left pad", graph.Mul(graph.PadLeft(v, 2), a), []*graph.Value{v, a}, nil},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			terms := c.Decompose(tc.expr)
			assert.Equal(t, tc.num, terms.Num, "numerator of %s", terms)
			assert.Equal(t, tc.denum, terms.Denum, "denominator of %s", terms)
		})
	}

	// A transposition is not transparent.
	transposed := graph.Transpose(graph.Mul(a, b))
	require.Equal(t, []*graph.Value{transposed}, c.Decompose(transposed).Num)

	// Additive family.
	add := AddCanonizer()
	terms := add.Decompose(graph.Sub(graph.Add(a, graph.Neg(b)), graph.Sub(cc, d)))
	require.Equal(t, []*graph.Value{a, d}, terms.Num)
	require.Equal(t, []*graph.Value{b, cc}, terms.Denum)
}

func TestSimplifyFactors(t *testing.T) {
	c := MulCanonizer()
	x, y, z := graph.Parameter("x", matrix()), graph.Parameter("y", matrix()), graph.Parameter("z", matrix())

	got := c.SimplifyFactors(Terms{Num: []*graph.Value{x, y}, Denum: []*graph.Value{x}})
	assert.Equal(t, []*graph.Value{y}, got.Num)
	assert.Empty(t, got.Denum)

	got = c.SimplifyFactors(Terms{Num: []*graph.Value{x}, Denum: []*graph.Value{x}})
	assert.Empty(t, got.Num)
	assert.Empty(t, got.Denum)

	// Only one occurrence is cancelled for each match.
	got = c.SimplifyFactors(Terms{Num: []*graph.Value{x, x, z}, Denum: []*graph.Value{y, x}})
	assert.Equal(t, []*graph.Value{x, z}, got.Num)
	assert.Equal(t, []*graph.Value{y}, got.Denum)

	// Input terms are not modified.
	orig := Terms{Num: []*graph.Value{x, y}, Denum: []*graph.Value{y}}
	_ = c.SimplifyFactors(orig)
	assert.Equal(t, []*graph.Value{x, y}, orig.Num)
	assert.Equal(t, []*graph.Value{y}, orig.Denum)
}

func TestSimplifyConstants(t *testing.T) {
	c := MulCanonizer()
	x, y, z := graph.Parameter("x", matrix()), graph.Parameter("y", matrix()), graph.Parameter("z", matrix())

	// [2, 3, x], [] -> [6, x], []
	got := c.Simplify(Terms{Num: []*graph.Value{scalar(2), scalar(3), x}}, f32)
	require.Len(t, got.Num, 2)
	require.True(t, got.Num[0].IsConstant())
	assert.Equal(t, 6.0, got.Num[0].Literal().Value())
	assert.Equal(t, x, got.Num[1])
	assert.Empty(t, got.Denum)

	// [x, y, 2], [4, z] -> [0.5, x, y], [z]
	got = c.Simplify(Terms{Num: []*graph.Value{x, y, scalar(2)}, Denum: []*graph.Value{scalar(4), z}}, f32)
	require.Len(t, got.Num, 3)
	assert.Equal(t, 0.5, got.Num[0].Literal().Value())
	assert.Equal(t, []*graph.Value{x, y}, got.Num[1:])
	assert.Equal(t, []*graph.Value{z}, got.Denum)

	// [x, 2, y], [z, 2] -> [x, y], [z]: the neutral element is dropped.
	got = c.Simplify(Terms{Num: []*graph.Value{x, scalar(2), y}, Denum: []*graph.Value{z, scalar(2)}}, f32)
	assert.Equal(t, []*graph.Value{x, y}, got.Num)
	assert.Equal(t, []*graph.Value{z}, got.Denum)

	// A single constant that doesn't change is kept as is, wherever it is.
	two := scalar(2)
	orig := Terms{Num: []*graph.Value{x, two}, Denum: []*graph.Value{z}}
	got = c.Simplify(orig, f32)
	assert.Equal(t, orig.Num, got.Num)
	assert.Equal(t, orig.Denum, got.Denum)

	// Without reciprocal, an empty numerator gets the neutral element.
	got = c.Simplify(Terms{Denum: []*graph.Value{x}}, f32)
	require.Len(t, got.Num, 1)
	assert.Equal(t, 1.0, got.Num[0].Literal().Value())

	// With reciprocal it stays empty.
	add := AddCanonizer()
	got = add.Simplify(Terms{Num: []*graph.Value{scalar(3)}, Denum: []*graph.Value{x, scalar(3)}}, f32)
	assert.Empty(t, got.Num)
	assert.Equal(t, []*graph.Value{x}, got.Denum)

	// Constants are rounded to the dtype.
	got = c.Simplify(Terms{
		Num:   []*graph.Value{graph.Scalar(dtypes.Int32, 7), x},
		Denum: []*graph.Value{graph.Scalar(dtypes.Int32, 2)},
	}, dtypes.Int32)
	assert.Equal(t, 3.0, got.Num[0].Literal().Value())
}

func TestSimplifyIdempotent(t *testing.T) {
	x, y, z := graph.Parameter("x", matrix()), graph.Parameter("y", matrix()), graph.Parameter("z", matrix())
	row := graph.Const(tensors.FromFlat(f32, []float64{2, 5}, 1, 2))
	testCases := []Terms{
		{Num: []*graph.Value{x, y}, Denum: []*graph.Value{x}},
		{Num: []*graph.Value{scalar(2), scalar(3), x}},
		{Num: []*graph.Value{x, y, scalar(2)}, Denum: []*graph.Value{scalar(4), z}},
		{Num: []*graph.Value{x, scalar(2), y}, Denum: []*graph.Value{z, scalar(2)}},
		{Denum: []*graph.Value{x, y}},
		{Num: []*graph.Value{row, x, scalar(3)}, Denum: []*graph.Value{x, y, x}},
		{},
	}
	for _, c := range []*Canonizer{MulCanonizer(), AddCanonizer()} {
		for ii, terms := range testCases {
			once := c.Simplify(terms, f32)
			twice := c.Simplify(once, f32)
			require.Truef(t, once.Equal(twice), "%s, case #%d: simplify(%s) = %s, but simplify(%s) = %s",
				c.Name(), ii, terms, once, once, twice)
		}
	}
}

func TestRecombine(t *testing.T) {
	x, y, z := graph.Parameter("x", matrix()), graph.Parameter("y", matrix()), graph.Parameter("z", matrix())
	mul, add := MulCanonizer(), AddCanonizer()

	neutral := mul.Recombine(Terms{}, f32)
	require.True(t, neutral.IsConstant())
	require.Equal(t, 1.0, neutral.Literal().Value())
	require.Equal(t, 0.0, add.Recombine(Terms{}, f32).Literal().Value())

	require.Equal(t, x, mul.Recombine(Terms{Num: []*graph.Value{x}}, f32))

	inv := mul.Recombine(Terms{Denum: []*graph.Value{x}}, f32)
	require.Equal(t, graph.OpTypeDiv, inv.OpType())
	require.True(t, isConstantEqual(inv.Owner().Input(0), 1))

	neg := add.Recombine(Terms{Denum: []*graph.Value{x, y}}, f32)
	require.Equal(t, graph.OpTypeNeg, neg.OpType())
	require.Equal(t, graph.OpTypeAdd, neg.Owner().Input(0).OpType())

	div := mul.Recombine(Terms{Num: []*graph.Value{x}, Denum: []*graph.Value{y, z}}, f32)
	require.Equal(t, graph.OpTypeDiv, div.OpType())
	require.Equal(t, x, div.Owner().Input(0))
	require.Equal(t, []*graph.Value{y, z}, div.Owner().Input(1).Owner().Inputs())
}

func TestMulCanonizer(t *testing.T) {
	testCases := []struct {
		name  string
		build func(xs []*graph.Value) *graph.Value
		// summary of the operations in the rewritten graph.
		want string
	}{
		{"x/x", func(xs []*graph.Value) *graph.Value { return graph.Div(xs[0], xs[0]) }, "Fill"},
		{"(x*y)/x", func(xs []*graph.Value) *graph.Value { return graph.Div(graph.Mul(xs[0], xs[1]), xs[0]) }, ""},
		{"x/y/z", func(xs []*graph.Value) *graph.Value { return graph.Div(graph.Div(xs[0], xs[1]), xs[2]) }, "Mul Div"},
		{"x/(y/z)", func(xs []*graph.Value) *graph.Value { return graph.Div(xs[0], graph.Div(xs[1], xs[2])) }, "Mul Div"},
		{"(2*x)/(4*y)", func(xs []*graph.Value) *graph.Value {
			return graph.Div(graph.Mul(scalar(2), xs[0]), graph.Mul(scalar(4), xs[1]))
		}, "Mul Div"},
		{"2*x/2", func(xs []*graph.Value) *graph.Value { return graph.Div(graph.Mul(scalar(2), xs[0]), scalar(2)) }, ""},
		{"(x/y)*(y/z)", func(xs []*graph.Value) *graph.Value {
			return graph.Mul(graph.Div(xs[0], xs[1]), graph.Div(xs[1], xs[2]))
		}, "Div"},
		{"x*inv(y)", func(xs []*graph.Value) *graph.Value { return graph.Mul(xs[0], graph.Inv(xs[1])) }, "Div"},
		{"inv(x)", func(xs []*graph.Value) *graph.Value { return graph.Inv(xs[0]) }, "Div"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			g := graphtest.RunRewrite(t, build(tc.build, "x", "y", "z"), rewriteWith(t, MulCanonizer()), 1e-5)
			require.Equalf(t, tc.want, graphtest.Summary(g), "rewritten graph:\n%s", g)
		})
	}
}

func TestMulCanonizerFixedPoint(t *testing.T) {
	// Expressions already canonical are not rewritten.
	for _, fn := range []func(xs []*graph.Value) *graph.Value{
		func(xs []*graph.Value) *graph.Value { return graph.Mul(scalar(2), xs[0]) },
		func(xs []*graph.Value) *graph.Value { return graph.Mul(xs[0], scalar(2)) },
		func(xs []*graph.Value) *graph.Value { return graph.Div(scalar(1), xs[0]) },
		func(xs []*graph.Value) *graph.Value { return graph.Div(graph.Mul(xs[0], xs[1]), xs[2]) },
	} {
		g := build(fn, "x", "y", "z")()
		stats, err := (&optimizer.TopoOptimizer{Name: "test", Rules: []optimizer.Rule{MulCanonizer()}}).Apply(g)
		require.NoError(t, err)
		require.Zerof(t, stats.Rewrites, "graph rewritten:\n%s", g)
		require.Equal(t, 1, stats.Iterations)
	}

	// Integer expressions are left alone.
	x := graph.Parameter("x", shapes.Make(dtypes.Int32, false))
	g := graph.MustNew("int", []*graph.Value{x}, []*graph.Value{graph.Div(x, x)})
	require.False(t, MulCanonizer().Transform(g.Outputs()[0].Owner()).Matched())
}

func TestMulCanonizerBroadcast(t *testing.T) {
	// Terms of different ranks and broadcast patterns: the rewritten value must keep the type of the original.
	g := graphtest.RunRewrite(t, func() *graph.Graph {
		x := graph.Parameter("x", matrix())
		v := graph.Parameter("v", vector())
		row := graph.Parameter("row", shapes.Make(f32, true, false))
		out := graph.Div(graph.Mul(graph.PadLeft(v, 2), x, row), graph.Mul(x, scalar(2)))
		return graph.MustNew("broadcast", []*graph.Value{x, v, row}, []*graph.Value{out})
	}, rewriteWith(t, MulCanonizer(), FillLift()), 1e-5)
	require.Zero(t, graphtest.CountOps(g, graph.OpTypeDiv), "graph:\n%s", g)

	g = graphtest.RunRewrite(t, func() *graph.Graph {
		x := graph.Parameter("x", matrix())
		v := graph.Parameter("v", vector())
		out := graph.Div(graph.Mul(v, x), v)
		return graph.MustNew("lost axis", []*graph.Value{x, v}, []*graph.Value{out})
	}, rewriteWith(t, MulCanonizer()), 1e-5)
	require.True(t, g.Outputs()[0].IsParameter())
}

func TestAddCanonizer(t *testing.T) {
	testCases := []struct {
		name  string
		build func(xs []*graph.Value) *graph.Value
		want  string
	}{
		{"x-x", func(xs []*graph.Value) *graph.Value { return graph.Sub(xs[0], xs[0]) }, "Fill"},
		{"x+neg(y)", func(xs []*graph.Value) *graph.Value { return graph.Add(xs[0], graph.Neg(xs[1])) }, "Sub"},
		{"(x+y)-x", func(xs []*graph.Value) *graph.Value { return graph.Sub(graph.Add(xs[0], xs[1]), xs[0]) }, ""},
		{"x-(y-z)", func(xs []*graph.Value) *graph.Value { return graph.Sub(xs[0], graph.Sub(xs[1], xs[2])) }, "Add Sub"},
		{"neg(x)-y", func(xs []*graph.Value) *graph.Value { return graph.Sub(graph.Neg(xs[0]), xs[1]) }, "Add Neg"},
		{"(x+1)+(y+2)", func(xs []*graph.Value) *graph.Value {
			return graph.Add(graph.Add(xs[0], scalar(1)), graph.Add(xs[1], scalar(2)))
		}, "Add"},
		{"(x+2)-2", func(xs []*graph.Value) *graph.Value { return graph.Sub(graph.Add(xs[0], scalar(2)), scalar(2)) }, ""},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			g := graphtest.RunRewrite(t, build(tc.build, "x", "y", "z"), rewriteWith(t, AddCanonizer()), 1e-5)
			require.Equalf(t, tc.want, graphtest.Summary(g), "rewritten graph:\n%s", g)
		})
	}

	// Integers are handled by the additive family.
	x := graph.Parameter("x", shapes.Make(dtypes.Int64, false))
	three := graph.Scalar(dtypes.Int64, 3)
	g := graph.MustNew("int", []*graph.Value{x}, []*graph.Value{graph.Add(graph.Sub(x, three), three)})
	rewriteWith(t, AddCanonizer())(g)
	require.Equal(t, x, g.Outputs()[0])
}
