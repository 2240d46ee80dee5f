// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package rules

import (
	"slices"

	"github.com/gomlx/graphopt/graph"
	"github.com/gomlx/graphopt/optimizer"
	"github.com/gomlx/graphopt/types/shapes"
)

// Fill(model, value) only uses model for its shape. The rules here move those shape carriers around
// so they don't get in the way of the arithmetic rules, and remove them when they are redundant.

// FillLift rewrites:
//
//	Fill(f(a, ...), b) -> Fill(a, b), if f is element-wise and a has the same type as f(a, ...).
//	Fill(a, b) -> b, if b already has the type of the result.
func FillLift() optimizer.Rule {
	return optimizer.RuleFunc("fill_lift", fillLift, graph.OpTypeFill)
}

func fillLift(node *graph.Node) optimizer.Match {
	model, value := node.Input(0), node.Input(1)
	if value.Shape().Equal(node.Shape()) {
		return optimizer.Replace(value)
	}
	parent := model.Owner()
	if parent == nil || !parent.IsElementwise() {
		return optimizer.NoMatch
	}
	for _, input := range parent.Inputs() {
		if input.Shape().Equal(model.Shape()) {
			return optimizer.Replace(graph.Fill(input, value))
		}
	}
	return optimizer.NoMatch
}

// FillCut rewrites f(Fill(a, b), c) -> f(b, c), for an element-wise f, if c has the type of the result
// and is not itself a Fill, and b broadcasts to c.
func FillCut() optimizer.Rule {
	return optimizer.RuleFunc("fill_cut", fillCut)
}

func fillCut(node *graph.Node) optimizer.Match {
	if !node.IsElementwise() {
		return optimizer.NoMatch
	}
	var reference *graph.Value
	for _, input := range node.Inputs() {
		if input.OpType() != graph.OpTypeFill && input.Shape().Equal(node.Shape()) {
			reference = input
			break
		}
	}
	if reference == nil {
		return optimizer.NoMatch
	}
	inputs := slices.Clone(node.Inputs())
	changed := false
	for ii, input := range inputs {
		if input.OpType() != graph.OpTypeFill {
			continue
		}
		filling := input.Owner().Input(1)
		if shapes.Encompasses(reference.Shape().Broadcastable, filling.Shape().Broadcastable) {
			inputs[ii] = filling
			changed = true
		}
	}
	if !changed {
		return optimizer.NoMatch
	}
	return optimizer.Replace(graph.Rebuild(node, inputs...))
}

// FillSink moves Fill nodes out of element-wise operations:
//
//	f(Fill(a, b), Fill(c, d), e) -> Fill(a, Fill(c, f(b, d, e)))
func FillSink() optimizer.Rule {
	return optimizer.RuleFunc("fill_sink", fillSink)
}

func fillSink(node *graph.Node) optimizer.Match {
	if !node.IsElementwise() || node.OpType() == graph.OpTypeFill {
		return optimizer.NoMatch
	}
	var models []*graph.Value
	inputs := slices.Clone(node.Inputs())
	for ii, input := range inputs {
		if input.OpType() == graph.OpTypeFill {
			models = append(models, input.Owner().Input(0))
			inputs[ii] = input.Owner().Input(1)
		}
	}
	if len(models) == 0 {
		return optimizer.NoMatch
	}
	result := graph.Rebuild(node, inputs...)
	for _, model := range slices.Backward(models) {
		result = graph.Fill(model, result)
	}
	return optimizer.Replace(result)
}
