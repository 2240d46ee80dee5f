// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package optimizer

import (
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/graphopt/graph"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Order in which TopoOptimizer visits the nodes of the graph.
type Order int

const (
	// InToOut visits nodes from the inputs to the outputs of the graph (topological order).
	InToOut Order = iota

	// OutToIn visits nodes from the outputs to the inputs of the graph (reverse topological order).
	OutToIn
)

func (o Order) String() string {
	if o == OutToIn {
		return "out_to_in"
	}
	return "in_to_out"
}

// DefaultMaxIterations is the default bound on the number of passes over the graph a TopoOptimizer does.
const DefaultMaxIterations = 1000

// TopoOptimizer applies Rules to the nodes of a graph until a fixed point is reached: a full pass over
// the graph where no rule matches.
//
// For each node, rules are tried in order and the first one whose replacement is accepted by the graph
// is applied. Rejected replacements are logged and the next rule is tried.
type TopoOptimizer struct {
	Name  string
	Rules []Rule
	Order Order

	// MaxIterations bounds the number of passes over the graph. If it is reached the optimization stops
	// with a warning, and the graph is left valid but not fully optimized. If <= 0, DefaultMaxIterations is used.
	MaxIterations int
}

// PhaseStats reports what an optimization phase did.
type PhaseStats struct {
	Phase string

	// Iterations is the number of passes over the graph.
	Iterations int

	// Rewrites is the number of replacements applied.
	Rewrites int

	// Rejected is the number of replacements proposed by rules but rejected by the graph validation.
	Rejected int

	// Converged is false if the phase stopped because it reached the maximum number of iterations.
	Converged bool

	// PerRule holds the number of rewrites per rule or pass name.
	PerRule map[string]int
}

func newPhaseStats(phase string) *PhaseStats {
	return &PhaseStats{Phase: phase, Converged: true, PerRule: make(map[string]int)}
}

// merge adds the counts of other into s.
func (s *PhaseStats) merge(other *PhaseStats) {
	s.Iterations += other.Iterations
	s.Rewrites += other.Rewrites
	s.Rejected += other.Rejected
	s.Converged = s.Converged && other.Converged
	for name, count := range other.PerRule {
		s.PerRule[name] += count
	}
}

// Apply runs the rules over g until a fixed point, or until MaxIterations passes are done.
func (o *TopoOptimizer) Apply(g *graph.Graph) (*PhaseStats, error) {
	stats := newPhaseStats(o.Name)
	maxIterations := o.MaxIterations
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	if len(o.Rules) == 0 {
		return stats, nil
	}
	for {
		if stats.Iterations >= maxIterations {
			klog.Warningf("optimizer %q on graph %q: no fixed point after %d iterations, stopping (%d rewrites)",
				o.Name, g.Name(), maxIterations, stats.Rewrites)
			stats.Converged = false
			return stats, nil
		}
		stats.Iterations++
		nodes, err := g.TopoSort()
		if err != nil {
			return stats, errors.WithMessagef(err, "optimizer %q", o.Name)
		}
		if o.Order == OutToIn {
			slices.Reverse(nodes)
		}
		changed := 0
		for _, node := range nodes {
			if !g.Has(node) {
				// Removed by a previous rewrite in this pass.
				continue
			}
			if o.applyToNode(g, node, stats) {
				changed++
			}
		}
		klog.V(2).Infof("optimizer %q on graph %q: iteration %d, %d rewrites", o.Name, g.Name(), stats.Iterations, changed)
		if changed == 0 {
			return stats, nil
		}
	}
}

// applyToNode tries each rule on node, and applies the first accepted replacement.
func (o *TopoOptimizer) applyToNode(g *graph.Graph, node *graph.Node, stats *PhaseStats) bool {
	for _, rule := range o.Rules {
		if !tracks(rule, node.OpType()) {
			continue
		}
		match := transform(rule, node)
		if !match.Matched() {
			continue
		}
		if len(match.outputs) != len(node.Outputs()) {
			klog.Errorf("rule %q proposed %d outputs to replace %s", rule.Name(), len(match.outputs), node)
			continue
		}
		if slices.Equal(match.outputs, node.Outputs()) {
			continue
		}
		err := g.ReplaceAllValidate(node.Outputs(), match.outputs, rule.Name())
		if err != nil {
			stats.Rejected++
			if graph.IsReplaceError(err, graph.TypeMismatch) {
				klog.Errorf("rule %q: %v", rule.Name(), err)
			} else {
				klog.V(1).Infof("rule %q: %v", rule.Name(), err)
			}
			continue
		}
		klog.V(1).Infof("rule %q rewrote %s", rule.Name(), node)
		stats.Rewrites++
		stats.PerRule[rule.Name()]++
		return true
	}
	return false
}

// transform calls rule.Transform, converting a panic into a NoMatch.
func transform(rule Rule, node *graph.Node) (match Match) {
	err := exceptions.TryCatch[error](func() { match = rule.Transform(node) })
	if err != nil {
		klog.V(1).Infof("rule %q failed on %s: %v", rule.Name(), node, err)
		return NoMatch
	}
	return match
}
