// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package rules

import (
	"github.com/gomlx/graphopt/graph"
	"github.com/gomlx/graphopt/optimizer"
	"github.com/gomlx/graphopt/types/shapes"
)

// Canonical forms, used in the canonicalize phase so that the canonizers see fewer operation types.

// NegToMul rewrites Neg(x) -> Mul(-1, x).
func NegToMul() optimizer.Rule {
	return optimizer.RuleFunc("neg_to_mul", func(node *graph.Node) optimizer.Match {
		x := node.Input(0)
		if !x.DType().IsFloat() && !x.DType().IsInt() {
			return optimizer.NoMatch
		}
		return optimizer.Replace(graph.Mul(graph.Scalar(x.DType(), -1), x))
	}, graph.OpTypeNeg)
}

// InvCanon rewrites Inv(x) -> Pow(x, -1), for floats.
func InvCanon() optimizer.Rule {
	return optimizer.RuleFunc("inv_canon", func(node *graph.Node) optimizer.Match {
		x := node.Input(0)
		if !x.DType().IsFloat() {
			return optimizer.NoMatch
		}
		return optimizer.Replace(graph.Pow(x, graph.Scalar(x.DType(), -1)))
	}, graph.OpTypeInv)
}

// PowCanonicalize rewrites powers with a constant exponent y of all ones or all zeros. The Fill keep the
// shape of the result:
//
//	Pow(x, 1) -> Fill(y, x)
//	Pow(x, 0) -> Fill(x, Fill(y, 1))
func PowCanonicalize() optimizer.Rule {
	return optimizer.RuleFunc("pow_canonicalize", func(node *graph.Node) optimizer.Match {
		x, y := node.Input(0), node.Input(1)
		switch {
		case isConstantEqual(y, 1):
			return optimizer.Replace(graph.Fill(y, x))
		case isConstantEqual(y, 0):
			return optimizer.Replace(graph.Fill(x, graph.Fill(y, graph.Scalar(x.DType(), 1))))
		}
		return optimizer.NoMatch
	}, graph.OpTypePow)
}

// Specialized forms, used in the specialize phase to pick the cheapest operations.

// MulToNeg rewrites Mul(-1, xs...) -> Neg(Mul(xs...)).
func MulToNeg() optimizer.Rule {
	return optimizer.RuleFunc("mul_to_neg", func(node *graph.Node) optimizer.Match {
		if node.NumInputs() < 2 || !isConstantEqual(node.Input(0), -1) {
			return optimizer.NoMatch
		}
		rest := node.Inputs()[1:]
		product := rest[0]
		if len(rest) > 1 {
			product = graph.Mul(rest...)
		}
		return replaceRestored(graph.Neg(product), node)
	}, graph.OpTypeMul)
}

// DivToInv rewrites Div(1, x) -> Inv(x), for floats.
func DivToInv() optimizer.Rule {
	return optimizer.RuleFunc("div_to_inv", func(node *graph.Node) optimizer.Match {
		if !node.Shape().DType.IsFloat() || !isConstantEqual(node.Input(0), 1) {
			return optimizer.NoMatch
		}
		return replaceRestored(graph.Inv(node.Input(1)), node)
	}, graph.OpTypeDiv)
}

// PowSpecialize rewrites powers with a constant exponent y, if y broadcasts to x:
//
//	Pow(x, 2) -> Sqr(x)
//	Pow(x, 1) -> x
//	Pow(x, 0) -> Fill(x, 1)
//
// And for floats:
//
//	Pow(x, 0.5)  -> Sqrt(x)
//	Pow(x, -0.5) -> Inv(Sqrt(x))
//	Pow(x, -1)   -> Inv(x)
//	Pow(x, -2)   -> Inv(Sqr(x))
func PowSpecialize() optimizer.Rule {
	return optimizer.RuleFunc("pow_specialize", func(node *graph.Node) optimizer.Match {
		x, y := node.Input(0), node.Input(1)
		exponent, ok := y.ScalarValue()
		if !ok || !shapes.Encompasses(x.Shape().Broadcastable, y.Shape().Broadcastable) {
			return optimizer.NoMatch
		}
		switch exponent {
		case 2:
			return optimizer.Replace(graph.Sqr(x))
		case 1:
			return optimizer.Replace(x)
		case 0:
			return optimizer.Replace(graph.Fill(x, graph.Scalar(x.DType(), 1)))
		}
		if !x.DType().IsFloat() {
			return optimizer.NoMatch
		}
		switch exponent {
		case 0.5:
			return optimizer.Replace(graph.Sqrt(x))
		case -0.5:
			return optimizer.Replace(graph.Inv(graph.Sqrt(x)))
		case -1:
			return optimizer.Replace(graph.Inv(x))
		case -2:
			return optimizer.Replace(graph.Inv(graph.Sqr(x)))
		}
		return optimizer.NoMatch
	}, graph.OpTypePow)
}

// MulSpecialize simplifies products with constant factors of all ones, minus ones or zeros:
// ones are dropped, each minus one toggles a negation of the result, and a zero makes the whole product
// zero.
func MulSpecialize() optimizer.Rule {
	return optimizer.RuleFunc("mul_specialize", mulSpecialize, graph.OpTypeMul)
}

func mulSpecialize(node *graph.Node) optimizer.Match {
	dtype := node.Shape().DType
	neg := false
	var kept []*graph.Value
	for _, input := range node.Inputs() {
		value, ok := input.ScalarValue()
		switch {
		case !ok:
			kept = append(kept, input)
		case value == 1:
		case value == -1:
			neg = !neg
		case value == 0:
			return replaceRestored(graph.Scalar(dtype, 0), node)
		default:
			kept = append(kept, input)
		}
	}
	if len(kept) == node.NumInputs() {
		return optimizer.NoMatch
	}
	var result *graph.Value
	switch len(kept) {
	case 0:
		result = graph.Scalar(dtype, 1)
		if neg {
			result = graph.Scalar(dtype, -1)
		}
		return replaceRestored(result, node)
	case 1:
		result = kept[0]
	default:
		result = graph.Mul(kept...)
	}
	if neg {
		result = graph.Neg(result)
	}
	return replaceRestored(result, node)
}

// replaceRestored returns a Match replacing the output of node by v, after restoring the node's output
// type. If the type can't be restored it returns NoMatch.
func replaceRestored(v *graph.Value, node *graph.Node) optimizer.Match {
	restored := restoreType(v, node.Shape(), node.Inputs())
	if restored == nil {
		return optimizer.NoMatch
	}
	return optimizer.Replace(restored)
}
