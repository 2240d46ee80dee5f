// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package rules

import (
	"slices"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/graphopt/graph"
	"github.com/gomlx/graphopt/optimizer"
	"github.com/gomlx/graphopt/pkg/support/xslices"
	"github.com/gomlx/graphopt/types/tensors"
	"github.com/janpfeifer/must"
	"k8s.io/klog/v2"
)

// Terms is the decomposition of an expression of a Canonizer family as Inverse(Main(Num...), Main(Denum...)).
//
// Num and Denum are multisets: order is irrelevant for the value, but it is kept stable so rewrites are
// deterministic. Terms are never modified in place, all methods return new slices.
type Terms struct {
	Num, Denum []*graph.Value
}

// Equal returns whether t and other have the same terms, in the same order. Constants are compared by value.
func (t Terms) Equal(other Terms) bool {
	return slices.EqualFunc(t.Num, other.Num, sameTerm) && slices.EqualFunc(t.Denum, other.Denum, sameTerm)
}

// String implements fmt.Stringer.
func (t Terms) String() string {
	return "(" + valuesString(t.Num) + ") / (" + valuesString(t.Denum) + ")"
}

func valuesString(values []*graph.Value) string {
	s := ""
	for ii, v := range values {
		if ii > 0 {
			s += ", "
		}
		s += v.String()
	}
	return s
}

func sameTerm(a, b *graph.Value) bool {
	if a == b {
		return true
	}
	return a.IsConstant() && b.IsConstant() && a.Shape().Equal(b.Shape()) && a.Literal().Equal(b.Literal())
}

// Canonizer is a rule that normalizes expressions built from a family of operations: a commutative and
// associative Main operation (e.g. Mul), its binary Inverse (e.g. Div) and its unary Reciprocal (e.g. Inv),
// such that Inverse(x, y) == Main(x, Reciprocal(y)).
//
// The expression rooted at a node is decomposed into numerator and denominator terms, terms present in both
// are cancelled, constants are combined into one, and the expression is rebuilt with as few operations as
// possible. Examples for the multiplicative family:
//
//	x / x             -> 1
//	(x * y) / x       -> y
//	x / y / z         -> x / (y * z)
//	x / (y / z)       -> (x * z) / y
//	(a/b) * (b/c)     -> a / c
//	(2 * x) / (4 * y) -> (0.5 * x) / y
//
// It is best used in a TopoOptimizer with InToOut order.
type Canonizer struct {
	name                      string
	Main, Inverse, Reciprocal graph.OpType

	// Neutral is the neutral element of Main.
	Neutral float64

	// UseReciprocal allows the Reciprocal operation in rebuilt expressions. If false, 1/x is expressed
	// as Inverse(Neutral, x).
	UseReciprocal bool

	// calculate returns Inverse(Main(num...), Main(denum...)) for the scalars given.
	calculate func(num, denum []float64) float64

	// accepts returns whether the canonizer applies to expressions of the given dtype.
	accepts func(dtype dtypes.DType) bool
}

var (
	_ optimizer.Rule    = (*Canonizer)(nil)
	_ optimizer.Tracker = (*Canonizer)(nil)
)

// MulCanonizer returns the Canonizer of the multiplicative family (Mul, Div, Inv).
//
// It only applies to float dtypes: integer divisions are truncated, and x*y/y is not x for integers.
func MulCanonizer() *Canonizer {
	return &Canonizer{
		name:       "mul_canonizer",
		Main:       graph.OpTypeMul,
		Inverse:    graph.OpTypeDiv,
		Reciprocal: graph.OpTypeInv,
		Neutral:    1,
		calculate: func(num, denum []float64) float64 {
			n, d := 1.0, 1.0
			for _, v := range num {
				n *= v
			}
			for _, v := range denum {
				d *= v
			}
			return n / d
		},
		accepts: func(dtype dtypes.DType) bool { return dtype.IsFloat() },
	}
}

// AddCanonizer returns the Canonizer of the additive family (Add, Sub, Neg).
func AddCanonizer() *Canonizer {
	return &Canonizer{
		name:          "add_canonizer",
		Main:          graph.OpTypeAdd,
		Inverse:       graph.OpTypeSub,
		Reciprocal:    graph.OpTypeNeg,
		Neutral:       0,
		UseReciprocal: true,
		calculate: func(num, denum []float64) float64 {
			sum := 0.0
			for _, v := range num {
				sum += v
			}
			for _, v := range denum {
				sum -= v
			}
			return sum
		},
		accepts: func(dtype dtypes.DType) bool { return dtype != dtypes.Bool && tensors.IsSupported(dtype) },
	}
}

// Name implements optimizer.Rule.
func (c *Canonizer) Name() string { return c.name }

// Tracks implements optimizer.Tracker.
func (c *Canonizer) Tracks() []graph.OpType {
	return []graph.OpType{c.Main, c.Inverse, c.Reciprocal}
}

// inFamily returns whether op is one of the operations of the family.
func (c *Canonizer) inFamily(op graph.OpType) bool {
	return op == c.Main || op == c.Inverse || op == c.Reciprocal
}

// Decompose returns the terms of the expression v.
//
// Values not produced by an operation of the family are leaves, returned alone in the numerator. A
// DimShuffle that only prepends broadcastable axes is looked through, since element-wise operations
// broadcast missing leading axes anyway:
//
//	x*y              -> ([x, y], [])
//	Inv(x) * Inv(y)  -> ([], [x, y])
//	(((a/b) * c) / d) -> ([a, c], [b, d])
//	a / (b / c)      -> ([a, c], [b])
//	Log(x)           -> ([Log(x)], [])
func (c *Canonizer) Decompose(v *graph.Value) Terms {
	node := v.Owner()
	if node == nil {
		return Terms{Num: []*graph.Value{v}}
	}
	switch node.OpType() {
	case graph.OpTypeDimShuffle:
		if node.Params().(*graph.DimShuffleParams).IsLeftPad(node.Input(0).Rank()) {
			return c.Decompose(node.Input(0))
		}
	case c.Main:
		var t Terms
		for _, input := range node.Inputs() {
			sub := c.Decompose(input)
			t.Num = append(t.Num, sub.Num...)
			t.Denum = append(t.Denum, sub.Denum...)
		}
		return t
	case c.Inverse:
		t0, t1 := c.Decompose(node.Input(0)), c.Decompose(node.Input(1))
		return Terms{
			Num:   xslices.Concat(t0.Num, t1.Denum),
			Denum: xslices.Concat(t0.Denum, t1.Num),
		}
	case c.Reciprocal:
		t := c.Decompose(node.Input(0))
		return Terms{Num: t.Denum, Denum: t.Num}
	}
	return Terms{Num: []*graph.Value{v}}
}

// Simplify cancels terms and combines constants, see SimplifyFactors and SimplifyConstants.
func (c *Canonizer) Simplify(t Terms, dtype dtypes.DType) Terms {
	return c.SimplifyConstants(c.SimplifyFactors(t), dtype)
}

// SimplifyFactors removes one occurrence from each side of any value present in both the numerator and
// the denominator:
//
//	[x], [x]       -> [], []
//	[x, y], [x]    -> [y], []
//	[a, b], [c, d] -> [a, b], [c, d]
func (c *Canonizer) SimplifyFactors(t Terms) Terms {
	num := make([]*graph.Value, 0, len(t.Num))
	denum := slices.Clone(t.Denum)
	for _, v := range t.Num {
		var found bool
		if denum, found = xslices.RemoveFirst(denum, v); !found {
			num = append(num, v)
		}
	}
	return Terms{Num: num, Denum: denum}
}

// SimplifyConstants combines all constants of t into a single constant of the given dtype, placed first in
// the numerator. It is omitted if it is the neutral element (unless the numerator would be left empty and the
// reciprocal form is not allowed). For the multiplicative family:
//
//	[2, 3, x], []     -> [6, x], []
//	[x, y, 2], [4, z] -> [0.5, x, y], [z]
//	[x, 2, y], [z, 2] -> [x, y], [z]
//
// If there is exactly one constant, in the numerator, and combining it gives back the same constant, t is
// returned unchanged: otherwise the expression would be rewritten into itself forever.
func (c *Canonizer) SimplifyConstants(t Terms, dtype dtypes.DType) Terms {
	var num, denum []*graph.Value
	var numCt, denumCt []*tensors.Tensor
	for _, v := range t.Num {
		if v.IsConstant() {
			numCt = append(numCt, v.Literal())
		} else {
			num = append(num, v)
		}
	}
	for _, v := range t.Denum {
		if v.IsConstant() {
			denumCt = append(denumCt, v.Literal())
		} else {
			denum = append(denum, v)
		}
	}

	combined := c.combineLiterals(numCt, denumCt, dtype)
	keep := !combined.AllEqual(c.Neutral) || (!c.UseReciprocal && len(num) == 0)
	if len(numCt) == 1 && len(denumCt) == 0 && keep && combined.Equal(numCt[0]) {
		return Terms{Num: slices.Clone(t.Num), Denum: slices.Clone(t.Denum)}
	}
	if keep {
		num = xslices.Concat([]*graph.Value{graph.Const(combined)}, num)
	}
	return Terms{Num: num, Denum: denum}
}

// combineLiterals returns calculate(num, denum) computed element-wise over the broadcast literals, and
// rounded to dtype. With no literals it returns the calculation over empty lists, as a scalar.
func (c *Canonizer) combineLiterals(num, denum []*tensors.Tensor, dtype dtypes.DType) *tensors.Tensor {
	all := xslices.Concat(num, denum)
	allDims := make([][]int, len(all))
	for ii, t := range all {
		allDims[ii] = t.Dimensions()
	}
	dims := must.M1(tensors.BroadcastDimensions(allDims...))
	broadcast := make([][]float64, len(all))
	for ii, t := range all {
		broadcast[ii] = must.M1(t.BroadcastTo(dims)).Flat()
	}
	flat := make([]float64, tensors.SizeOf(dims))
	numArgs := make([]float64, len(num))
	denumArgs := make([]float64, len(denum))
	for jj := range flat {
		for ii := range num {
			numArgs[ii] = broadcast[ii][jj]
		}
		for ii := range denum {
			denumArgs[ii] = broadcast[len(num)+ii][jj]
		}
		flat[jj] = c.calculate(numArgs, denumArgs)
	}
	return tensors.FromFlat(dtype, flat, dims...)
}

// Recombine builds the expression Inverse(Main(t.Num...), Main(t.Denum...)) of the given dtype, with as few
// operations as possible:
//
//	n=0, d=0: Neutral
//	n=1, d=0: Num[0]
//	n=0, d>0: Reciprocal(Main(Denum...)), or Inverse(Neutral, Main(Denum...)) if UseReciprocal is false
//	n>1, d=0: Main(Num...)
//	n>0, d>0: Inverse(Main(Num...), Main(Denum...)), where Main of a single term is the term itself
func (c *Canonizer) Recombine(t Terms, dtype dtypes.DType) *graph.Value {
	if len(t.Num) == 0 && len(t.Denum) == 0 {
		return graph.Scalar(dtype, c.Neutral)
	}
	num := t.Num
	if len(num) == 0 {
		if c.UseReciprocal {
			return graph.Apply(c.Reciprocal, nil, c.combine(t.Denum))
		}
		num = []*graph.Value{graph.Scalar(dtype, c.Neutral)}
	}
	if len(t.Denum) == 0 {
		return c.combine(num)
	}
	return graph.Apply(c.Inverse, nil, c.combine(num), c.combine(t.Denum))
}

func (c *Canonizer) combine(values []*graph.Value) *graph.Value {
	if len(values) == 1 {
		return values[0]
	}
	return graph.Apply(c.Main, nil, values...)
}

// reorganizable returns whether the inputs of node have operations of the family that could be merged into
// it, even if no term simplifies.
func (c *Canonizer) reorganizable(node *graph.Node) bool {
	for _, input := range node.Inputs() {
		switch input.OpType() {
		case c.Inverse, c.Reciprocal:
			return true
		case c.Main:
			if node.OpType() == c.Main {
				return true
			}
		}
	}
	return false
}

// Transform implements optimizer.Rule.
func (c *Canonizer) Transform(node *graph.Node) optimizer.Match {
	if !c.inFamily(node.OpType()) {
		return optimizer.NoMatch
	}
	out := node.Out()
	if !c.accepts(out.DType()) {
		return optimizer.NoMatch
	}
	orig := c.Decompose(out)
	simplified := c.Simplify(orig, out.DType())
	if !c.reorganizable(node) && orig.Equal(simplified) {
		return optimizer.NoMatch
	}
	recombined := c.Recombine(simplified, out.DType())
	restored := restoreType(recombined, out.Shape(), node.Inputs())
	if restored == nil {
		klog.Errorf("%s: cannot restore type %s for %s, rebuilt from %s as %s", c.name, out.Shape(), node,
			simplified, recombined)
		return optimizer.NoMatch
	}
	if graph.SameExpression(restored, out) {
		return optimizer.NoMatch
	}
	return optimizer.Replace(restored)
}
