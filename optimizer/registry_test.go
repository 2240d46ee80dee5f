// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package optimizer

import (
	"testing"

	"github.com/gomlx/graphopt/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(name string) Rule {
	return RuleFunc(name, func(node *graph.Node) Match { return NoMatch })
}

func noopPass(name string) Pass {
	return PassFunc(name, func(g *graph.Graph) (int, error) { return 0, nil })
}

func ruleNames(rules []Rule) []string {
	names := make([]string, len(rules))
	for ii, r := range rules {
		names[ii] = r.Name()
	}
	return names
}

func TestRuleSet(t *testing.T) {
	rs := NewRuleSet().
		Register(noop("a"), PhaseCanonicalize, "fast", "arith").
		Register(noop("b"), PhaseCanonicalize, "fast").
		Register(noop("c"), PhaseCanonicalize).
		Register(noop("a"), PhaseSpecialize, "fast").
		RegisterPass(noopPass("p"), PhaseCanonicalize, "fast")
	rs.RegisterPass(noopPass("m"), PhaseMerge)

	require.Equal(t, []string{PhaseCanonicalize, PhaseSpecialize, PhaseMerge}, rs.Phases())
	assert.Equal(t, []string{"a", "b", "c"}, ruleNames(rs.Rules(PhaseCanonicalize, Query{})))
	assert.Equal(t, []string{"a", "b"}, ruleNames(rs.Rules(PhaseCanonicalize, Query{Include: []string{"fast"}})))
	assert.Equal(t, []string{"a", "c"}, ruleNames(rs.Rules(PhaseCanonicalize, Query{Include: []string{"arith", "c"}})))
	assert.Equal(t, []string{"b"}, ruleNames(rs.Rules(PhaseCanonicalize,
		Query{Include: []string{"fast"}, Exclude: []string{"arith"}})))
	assert.Equal(t, []string{"c"}, ruleNames(rs.Rules(PhaseCanonicalize, Query{Exclude: []string{"fast"}})))
	assert.Empty(t, rs.Rules(PhaseInplace, Query{}))

	passes := rs.Passes(PhaseCanonicalize, Query{})
	require.Len(t, passes, 1)
	assert.Equal(t, "p", passes[0].Name())
	assert.Empty(t, rs.Passes(PhaseCanonicalize, Query{Exclude: []string{"p"}}))
	assert.Empty(t, rs.Rules(PhaseMerge, Query{}))

	// Names are unique within a phase, rules and passes alike.
	require.Panics(t, func() { rs.Register(noop("b"), PhaseCanonicalize) })
	require.Panics(t, func() { rs.RegisterPass(noopPass("a"), PhaseCanonicalize) })
	require.Panics(t, func() { rs.Register(noop("d"), "") })
	require.Panics(t, func() { rs.Register(noop(""), PhaseCanonicalize) })
}

func TestTracks(t *testing.T) {
	require.True(t, tracks(noop("all"), graph.OpTypeAdd))
	only := RuleFunc("only", func(node *graph.Node) Match { return NoMatch }, graph.OpTypeMul, graph.OpTypeDiv)
	require.True(t, tracks(only, graph.OpTypeDiv))
	require.False(t, tracks(only, graph.OpTypeAdd))
}
