// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package rules implements the standard rewrite rules and passes of the optimizer.
//
// The core of it is the Canonizer, an algebraic normalizer for families of operations (Mul/Div/Inv and
// Add/Sub/Neg) that cancels terms and combines constants. Around it there are rules that fold constants,
// move shape carriers (Fill, DimShuffle, Shape) out of the way of the arithmetic, canonical and specialized
// forms of some operations, a greedy distributor of products over sums, and the inplace pass.
//
// Default returns a RuleSet with all of them, registered in the phases run by optimizer.Optimizer:
//
//	g := graph.MustNew("f", inputs, outputs)
//	report, err := optimizer.New(rules.Default()).Optimize(g)
package rules

import (
	"github.com/gomlx/graphopt/optimizer"
)

// Tags used to register the rules in Default.
const (
	// TagFastRun is set on every rule and pass of Default.
	TagFastRun = "fast_run"

	TagShapeLift = "shape_lift"
	TagFillLift  = "fill_lift"
	TagInplace   = "inplace"
)

// Default returns a new RuleSet with the standard rules and passes:
//
//   - merge: MergeNodes.
//   - canonicalize: DimShuffleLift, ShapeLiftElementwise, ShapeLiftSum, ShapeLiftDot, FillLift,
//     SubtensorMakeVector, ReshapeChain, FillCut, RemoveCopy, FillSink, MulCanonizer, NegToMul, InvCanon,
//     PowCanonicalize, AddCanonizer, GreedyDistributor, ConstantFolding, TransposedDot.
//   - specialize: MulToNeg, DivToInv, PowSpecialize, MulSpecialize, ConstantFolding.
//   - inplace: InsertInplace.
//
// For each node, rules are tried in this order.
func Default() *optimizer.RuleSet {
	rs := optimizer.NewRuleSet()
	rs.RegisterPass(MergeNodes(), optimizer.PhaseMerge, TagFastRun)

	canonicalize := func(rule optimizer.Rule, tags ...string) {
		rs.Register(rule, optimizer.PhaseCanonicalize, append([]string{TagFastRun}, tags...)...)
	}
	canonicalize(DimShuffleLift())
	canonicalize(ShapeLiftElementwise(), TagShapeLift)
	canonicalize(ShapeLiftSum(), TagShapeLift)
	canonicalize(ShapeLiftDot(), TagShapeLift)
	canonicalize(FillLift(), TagFillLift)
	canonicalize(SubtensorMakeVector())
	canonicalize(ReshapeChain())
	canonicalize(FillCut())
	canonicalize(RemoveCopy())
	canonicalize(FillSink())
	canonicalize(MulCanonizer())
	canonicalize(NegToMul())
	canonicalize(InvCanon())
	canonicalize(PowCanonicalize())
	canonicalize(AddCanonizer())
	canonicalize(GreedyDistributor())
	canonicalize(ConstantFolding())
	canonicalize(TransposedDot())

	specialize := func(rule optimizer.Rule, tags ...string) {
		rs.Register(rule, optimizer.PhaseSpecialize, append([]string{TagFastRun}, tags...)...)
	}
	specialize(MulToNeg())
	specialize(DivToInv())
	specialize(PowSpecialize())
	specialize(MulSpecialize())
	specialize(ConstantFolding())

	rs.RegisterPass(InsertInplace(), optimizer.PhaseInplace, TagFastRun, TagInplace)
	return rs
}
