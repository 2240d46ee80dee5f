// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package optimizer

import (
	"strings"
	"testing"
	"time"

	"github.com/gomlx/graphopt/graph"
	"github.com/gomlx/graphopt/graph/graphtest"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// expLog rewrites Exp(Log(x)) -> x.
func expLog() Rule {
	return RuleFunc("exp_log", func(node *graph.Node) Match {
		input := node.Input(0)
		if input.OpType() != graph.OpTypeLog {
			return NoMatch
		}
		return Replace(input.Owner().Input(0))
	}, graph.OpTypeExp)
}

// wrapOnce returns a pass that, the first time it runs, rewrites the first Log(x) of the graph as
// Log(Neg(Neg(x))).
func wrapOnce() Pass {
	done := false
	return PassFunc("wrap_once", func(g *graph.Graph) (int, error) {
		if done {
			return 0, nil
		}
		done = true
		for _, node := range g.Nodes() {
			if node.OpType() == graph.OpTypeLog {
				return 1, g.Replace(node.Out(), graph.Log(graph.Neg(graph.Neg(node.Input(0)))), "wrap_once")
			}
		}
		return 0, nil
	})
}

func TestOptimize(t *testing.T) {
	rs := NewRuleSet().
		RegisterPass(noopPass("noop_merge"), PhaseMerge).
		Register(negNeg(), PhaseCanonicalize).
		RegisterPass(wrapOnce(), PhaseCanonicalize).
		Register(expLog(), PhaseSpecialize)

	var report *Report
	g := graphtest.RunRewrite(t, func() *graph.Graph {
		x := graph.Parameter("x", matrix())
		out := graph.Add(graph.Exp(graph.Log(graph.Neg(graph.Neg(x)))), x)
		return graph.MustNew("pipeline", []*graph.Value{x}, []*graph.Value{out})
	}, func(g *graph.Graph) {
		var err error
		report, err = New(rs).WithConfig(DefaultConfig()).Optimize(g)
		require.NoError(t, err)
	}, 1e-5)
	require.Equal(t, "Add", graphtest.Summary(g))

	require.True(t, report.Converged())
	require.Equal(t, "pipeline", report.GraphName)
	require.Equal(t, g.Id(), report.GraphId)
	require.Equal(t, 5, report.NodesBefore)
	require.Equal(t, 1, report.NodesAfter)
	phases := make([]string, len(report.Phases))
	for ii, p := range report.Phases {
		phases[ii] = p.Phase
	}
	require.Equal(t, []string{PhaseMerge, PhaseCanonicalize, PhaseSpecialize, PhaseMerge}, phases)
	require.Equal(t, 2, report.RuleRewrites("neg_neg"))
	require.Equal(t, 1, report.RuleRewrites("wrap_once"))
	require.Equal(t, 1, report.RuleRewrites("exp_log"))
	require.Equal(t, 4, report.Rewrites())
}

func TestOptimizeExclude(t *testing.T) {
	rs := NewRuleSet().
		Register(negNeg(), PhaseCanonicalize, "arith").
		Register(expLog(), PhaseSpecialize, "arith", "log")
	build := func() *graph.Graph {
		x := graph.Parameter("x", matrix())
		return graph.MustNew("exclude", []*graph.Value{x},
			[]*graph.Value{graph.Exp(graph.Log(graph.Neg(graph.Neg(x))))})
	}

	g := build()
	_, err := New(rs).WithConfig(DefaultConfig()).Exclude("log").Optimize(g)
	require.NoError(t, err)
	require.Equal(t, "Log Exp", graphtest.Summary(g))

	g = build()
	_, err = New(rs).WithConfig(Config{Exclude: []string{"arith"}}).Optimize(g)
	require.NoError(t, err)
	require.Equal(t, "Neg Neg Log Exp", graphtest.Summary(g))
}

func TestOptimizePassErrors(t *testing.T) {
	failing := PassFunc("failing", func(g *graph.Graph) (int, error) {
		return 0, errors.New("pass failed")
	})
	rs := NewRuleSet().
		Register(negNeg(), PhaseCanonicalize).
		RegisterPass(failing, PhaseSpecialize)
	g := buildNegNeg()
	report, err := New(rs).WithConfig(DefaultConfig()).Optimize(g)
	require.Error(t, err)
	require.Contains(t, err.Error(), "pass failed")
	require.Contains(t, err.Error(), PhaseSpecialize)
	require.NotNil(t, report)
	require.Len(t, report.Phases, 2)
	require.NoError(t, g.Validate())
	require.Equal(t, "Exp", graphtest.Summary(g))
}

func TestOptimizePassesNotConverging(t *testing.T) {
	always := PassFunc("always", func(g *graph.Graph) (int, error) { return 1, nil })
	rs := NewRuleSet().
		Register(noop("noop"), PhaseCanonicalize).
		RegisterPass(always, PhaseCanonicalize)
	report, err := New(rs).WithConfig(DefaultConfig()).WithMaxIterations(2).Optimize(buildNegNeg())
	require.NoError(t, err)
	require.False(t, report.Converged())
	require.Equal(t, 2, report.RuleRewrites("always"))
}

func TestOptimizeSchedule(t *testing.T) {
	rs := NewRuleSet().
		Register(negNeg(), "custom").
		RegisterPass(noopPass("inplace_noop"), PhaseInplace)

	g := buildNegNeg()
	report, err := New(rs).WithConfig(DefaultConfig()).WithSchedule(Stage{Phase: "custom", Order: OutToIn}).Optimize(g)
	require.NoError(t, err)
	require.Len(t, report.Phases, 1)
	require.Equal(t, "Exp", graphtest.Summary(g))

	// The default schedule doesn't know about the custom phase, and the inplace phase can be disabled.
	report, err = New(rs).WithConfig(DefaultConfig()).Optimize(buildNegNeg())
	require.NoError(t, err)
	require.Len(t, report.Phases, 1)
	require.Equal(t, PhaseInplace, report.Phases[0].Phase)
	report, err = New(rs).WithConfig(DefaultConfig()).WithInplace(false).Optimize(buildNegNeg())
	require.NoError(t, err)
	require.Empty(t, report.Phases)
}

func TestConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.Equal(t, DefaultMaxIterations, cfg.MaxIterations)
	require.True(t, cfg.Inplace)
	require.Empty(t, cfg.Exclude)

	require.Equal(t, []string{"a", "b"}, splitList(" a, ,b ,"))
	require.Empty(t, splitList(""))

	// WithConfig and Exclude don't share the list of exclusions with the caller.
	exclude := []string{"x"}
	o := New(NewRuleSet()).WithConfig(Config{MaxIterations: 3, Exclude: exclude}).Exclude("y")
	require.Equal(t, []string{"x"}, exclude)
	require.Equal(t, Config{MaxIterations: 3, Exclude: []string{"x", "y"}}, o.Config())
	require.True(t, o.WithInplace(true).Config().Inplace)
	require.Equal(t, 7, o.WithMaxIterations(7).Config().MaxIterations)
}

func TestReportString(t *testing.T) {
	r := &Report{
		GraphName:   "big",
		GraphId:     uuid.New(),
		NodesBefore: 12345,
		NodesAfter:  1234,
		Elapsed:     time.Millisecond,
		Phases: []*PhaseStats{
			{Phase: PhaseCanonicalize, Iterations: 3, Rewrites: 1500, Converged: true,
				PerRule: map[string]int{"b_rule": 1000, "a_rule": 500}},
			{Phase: PhaseSpecialize, Iterations: 1000, Rewrites: 1000, Rejected: 2, Converged: false,
				PerRule: map[string]int{"c_rule": 1000}},
		},
	}
	s := r.String()
	assert.Contains(t, s, `graph "big"`)
	assert.Contains(t, s, "12,345 -> 1,234 nodes, 2,500 rewrites")
	assert.Contains(t, s, "(not converged)")
	assert.Less(t, strings.Index(s, "a_rule"), strings.Index(s, "b_rule"))
	assert.False(t, r.Converged())
	assert.Equal(t, 2500, r.Rewrites())
	assert.Equal(t, 1000, r.RuleRewrites("c_rule"))
	assert.Zero(t, r.RuleRewrites("d_rule"))
}
