// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package optimizer rewrites computation graphs (see package graph) into equivalent, cheaper or more
// numerically stable ones, by applying local rewrite rules until a fixed point is reached.
//
// The main elements in the package are:
//
//   - Rule: a local rewrite. It inspects one node (and its neighborhood) and either declines (NoMatch)
//     or proposes replacement values for the node's outputs, of exactly the same shapes.
//   - Pass: a whole-graph optimization, e.g. merging of common sub-expressions.
//   - RuleSet: rules and passes registered per phase, with tags to select them.
//   - TopoOptimizer: the driver that applies a list of rules over the graph, in topological order,
//     until no rule matches anymore.
//   - Optimizer: the pipeline running the phases "merge", "canonicalize", "specialize" and "inplace"
//     in order, and returning a Report.
//
// The rules themselves live in the sub-package rules, and rules.Default() returns the standard RuleSet:
//
//	report, err := optimizer.New(rules.Default()).Optimize(g)
//
// The graph is only ever changed through graph.Graph.ReplaceAllValidate: a rewrite that would make it
// invalid is rejected and the graph left as it was. Optimization failures never change the semantics
// of the graph, at worst it is left less optimized.
package optimizer

import (
	"slices"

	"github.com/gomlx/graphopt/graph"
)

// Rule is a local rewrite rule.
//
// Transform must not change the graph: it builds the replacement values with the graph op constructors,
// and the driver substitutes them. Rules are stateless, and may be called any number of times.
//
// If Transform panics (e.g. when building a replacement with invalid shapes) the driver takes it as a
// NoMatch.
type Rule interface {
	// Name of the rule, used in logs, reports and to exclude rules.
	Name() string

	// Transform returns the values to replace the outputs of node, or NoMatch.
	Transform(node *graph.Node) Match
}

// Tracker is optionally implemented by rules that only apply to nodes of some operation types.
// The driver will only call Transform on those.
type Tracker interface {
	Tracks() []graph.OpType
}

// Match is the result of Rule.Transform. The zero value is NoMatch.
type Match struct {
	outputs []*graph.Value
}

// NoMatch is returned by rules that don't apply to a node.
var NoMatch = Match{}

// Replace returns a Match replacing the outputs of the node by the given values.
func Replace(outputs ...*graph.Value) Match {
	return Match{outputs: slices.Clone(outputs)}
}

// Matched returns whether a replacement was proposed.
func (m Match) Matched() bool { return len(m.outputs) > 0 }

// Outputs returns the replacement values.
func (m Match) Outputs() []*graph.Value { return m.outputs }

type ruleFunc struct {
	name   string
	fn     func(node *graph.Node) Match
	tracks []graph.OpType
}

// RuleFunc creates a Rule from a function. If ops are given, the rule only applies to nodes with
// those operation types.
func RuleFunc(name string, fn func(node *graph.Node) Match, ops ...graph.OpType) Rule {
	return &ruleFunc{name: name, fn: fn, tracks: slices.Clone(ops)}
}

func (r *ruleFunc) Name() string                     { return r.name }
func (r *ruleFunc) Transform(node *graph.Node) Match { return r.fn(node) }
func (r *ruleFunc) Tracks() []graph.OpType           { return r.tracks }

var _ Tracker = (*ruleFunc)(nil)

// tracks returns whether rule applies to nodes of the given operation type.
func tracks(rule Rule, op graph.OpType) bool {
	tracker, ok := rule.(Tracker)
	if !ok {
		return true
	}
	ops := tracker.Tracks()
	return len(ops) == 0 || slices.Contains(ops, op)
}

// Pass is a whole-graph optimization.
type Pass interface {
	// Name of the pass, used in logs, reports and to exclude passes.
	Name() string

	// Apply changes g, and returns the number of rewrites done. If it returns an error the graph must
	// still be valid.
	Apply(g *graph.Graph) (rewrites int, err error)
}

type passFunc struct {
	name string
	fn   func(g *graph.Graph) (int, error)
}

// PassFunc creates a Pass from a function.
func PassFunc(name string, fn func(g *graph.Graph) (int, error)) Pass {
	return &passFunc{name: name, fn: fn}
}

func (p *passFunc) Name() string                      { return p.name }
func (p *passFunc) Apply(g *graph.Graph) (int, error) { return p.fn(g) }
