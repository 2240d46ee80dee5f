// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package rules

import (
	"github.com/gomlx/graphopt/graph"
	"github.com/gomlx/graphopt/pkg/support/xslices"
	"github.com/gomlx/graphopt/types/shapes"
)

// restoreType adapts v, an expression equivalent to a value of shape want, so that it has exactly that
// static type. It returns nil if it can't.
//
// Rewrites may lose type information, e.g. x/x -> 1 is a scalar where x was a matrix. The dtype is restored
// with a conversion; missing leading axes with a left-padding DimShuffle; extra leading broadcastable axes
// are dropped; and axes that lost their non-broadcastable status are recovered by filling with the given
// models (usually the inputs of the node being replaced, whose runtime dimensions broadcast to the
// original value's).
func restoreType(v *graph.Value, want shapes.Shape, models []*graph.Value) *graph.Value {
	if v.DType() != want.DType {
		v = graph.ConvertDType(v, want.DType)
	}
	if v.Shape().Equal(want) {
		return v
	}
	if v.Rank() < want.Rank() {
		if padded := graph.PadLeft(v, want.Rank()); padded.Shape().Equal(want) {
			return padded
		}
	}
	if v.Rank() > want.Rank() {
		extra := v.Rank() - want.Rank()
		for _, bc := range v.Shape().Broadcastable[:extra] {
			if !bc {
				return nil
			}
		}
		v = graph.DimShuffle(v, xslices.Iota(extra, want.Rank())...)
		if v.Shape().Equal(want) {
			return v
		}
	}
	for _, model := range models {
		if v.Shape().Equal(want) {
			break
		}
		if !shapes.Encompasses(want.Broadcastable, model.Shape().Broadcastable) {
			continue
		}
		v = graph.Fill(model, v)
	}
	if !v.Shape().Equal(want) {
		return nil
	}
	return v
}

// isConstantEqual returns whether v is a constant with all elements equal to value.
func isConstantEqual(v *graph.Value, value float64) bool {
	c, ok := v.ScalarValue()
	return ok && c == value
}

// singleClient returns whether v is only used once in its graph, and it is not an output of the graph.
func singleClient(v *graph.Value) bool {
	node := v.Owner()
	if node == nil || node.Graph() == nil {
		return false
	}
	g := node.Graph()
	return g.NumClients(v) == 1 && !g.IsOutput(v)
}
