// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package optimizer

import (
	"slices"
	"time"

	"github.com/gomlx/graphopt/graph"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Stage of the optimization pipeline: a phase of the RuleSet and the order its rules visit the graph.
type Stage struct {
	Phase string
	Order Order
}

// DefaultSchedule is the sequence of stages run by Optimizer.Optimize.
//
// Canonicalization runs before specialization, which runs before the inplace phase, since the latter
// must act on the final selection of operations. Each stage runs to its own fixed point, and the
// pipeline runs once: the canonical and the specialized forms of some expressions are the inverse of
// each other (e.g. neg(x) and mul(-1, x)).
var DefaultSchedule = []Stage{
	{Phase: PhaseMerge},
	{Phase: PhaseCanonicalize, Order: InToOut},
	{Phase: PhaseSpecialize, Order: InToOut},
	{Phase: PhaseMerge},
	{Phase: PhaseInplace},
}

// Optimizer runs the phases of a RuleSet over graphs.
//
// Create it with New, and configure it with the With... methods:
//
//	report, err := optimizer.New(rules.Default()).Exclude("fill_lift").WithInplace(false).Optimize(g)
type Optimizer struct {
	ruleSet  *RuleSet
	config   Config
	schedule []Stage
}

// New returns an Optimizer for the given rule set, configured with ConfigFromEnv.
func New(ruleSet *RuleSet) *Optimizer {
	return &Optimizer{
		ruleSet:  ruleSet,
		config:   ConfigFromEnv(),
		schedule: slices.Clone(DefaultSchedule),
	}
}

// WithConfig replaces the configuration of the Optimizer.
func (o *Optimizer) WithConfig(cfg Config) *Optimizer {
	o.config = cfg
	o.config.Exclude = slices.Clone(cfg.Exclude)
	return o
}

// WithMaxIterations sets the bound on the number of passes over the graph of each phase.
func (o *Optimizer) WithMaxIterations(maxIterations int) *Optimizer {
	o.config.MaxIterations = maxIterations
	return o
}

// Exclude rules and passes with any of the given names or tags.
func (o *Optimizer) Exclude(namesOrTags ...string) *Optimizer {
	o.config.Exclude = append(o.config.Exclude, namesOrTags...)
	return o
}

// WithInplace enables or disables the inplace phase.
func (o *Optimizer) WithInplace(enabled bool) *Optimizer {
	o.config.Inplace = enabled
	return o
}

// WithSchedule replaces the stages run by Optimize. The default is DefaultSchedule.
func (o *Optimizer) WithSchedule(stages ...Stage) *Optimizer {
	o.schedule = slices.Clone(stages)
	return o
}

// Config returns the current configuration.
func (o *Optimizer) Config() Config { return o.config }

// Optimize rewrites g in place, running each stage of the schedule to its fixed point.
//
// Non-convergence of a phase is not an error: it is logged and reported (Report.Converged), and the
// remaining phases still run. An error is only returned if a pass fails, in which case the graph is
// still valid.
func (o *Optimizer) Optimize(g *graph.Graph) (*Report, error) {
	start := time.Now()
	report := &Report{GraphName: g.Name(), GraphId: g.Id(), NodesBefore: g.NumNodes()}
	query := Query{Exclude: o.config.Exclude}
	for _, stage := range o.schedule {
		if stage.Phase == PhaseInplace && !o.config.Inplace {
			continue
		}
		stats, err := o.runPhase(g, stage, query)
		if stats != nil {
			report.Phases = append(report.Phases, stats)
		}
		if err != nil {
			report.NodesAfter = g.NumNodes()
			report.Elapsed = time.Since(start)
			return report, errors.WithMessagef(err, "optimizing graph %q, phase %q", g.Name(), stage.Phase)
		}
	}
	report.NodesAfter = g.NumNodes()
	report.Elapsed = time.Since(start)
	if klog.V(1).Enabled() {
		klog.Infof("optimized %s", report)
	}
	return report, nil
}

// runPhase runs the rules of the phase to a fixed point, then its passes, and repeats while the passes
// change the graph.
func (o *Optimizer) runPhase(g *graph.Graph, stage Stage, query Query) (*PhaseStats, error) {
	rules := o.ruleSet.Rules(stage.Phase, query)
	passes := o.ruleSet.Passes(stage.Phase, query)
	stats := newPhaseStats(stage.Phase)
	if len(rules) == 0 && len(passes) == 0 {
		return nil, nil
	}
	topo := &TopoOptimizer{Name: stage.Phase, Rules: rules, Order: stage.Order, MaxIterations: o.config.MaxIterations}
	maxIterations := o.config.MaxIterations
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	for round := 0; ; round++ {
		if round >= maxIterations {
			klog.Warningf("phase %q on graph %q: passes still changing the graph after %d rounds, stopping",
				stage.Phase, g.Name(), round)
			stats.Converged = false
			return stats, nil
		}
		topoStats, err := topo.Apply(g)
		stats.merge(topoStats)
		if err != nil {
			return stats, err
		}
		if len(passes) == 0 || !topoStats.Converged {
			return stats, nil
		}
		passRewrites := 0
		for _, pass := range passes {
			rewrites, err := pass.Apply(g)
			stats.Rewrites += rewrites
			stats.PerRule[pass.Name()] += rewrites
			passRewrites += rewrites
			if err != nil {
				return stats, errors.WithMessagef(err, "pass %q", pass.Name())
			}
		}
		if len(rules) == 0 {
			// Without rules, passes are expected to reach their own fixed point in one call.
			stats.Iterations++
			return stats, nil
		}
		if passRewrites == 0 {
			return stats, nil
		}
	}
}
