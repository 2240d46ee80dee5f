// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package optimizer

import (
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/graphopt/pkg/support/sets"
)

// Standard phases, run by the Optimizer in this order (merge runs again after specialize).
const (
	PhaseMerge        = "merge"
	PhaseCanonicalize = "canonicalize"
	PhaseSpecialize   = "specialize"
	PhaseInplace      = "inplace"
)

// entry is a rule or a pass registered in a RuleSet.
type entry struct {
	name string
	rule Rule
	pass Pass
	tags sets.Set[string]
}

// RuleSet holds rules and passes registered per phase, in registration order, each with a set of tags.
//
// A RuleSet is populated once, before optimizing, and is only read by the optimizers afterward.
// It is not safe to register new rules concurrently with its use.
type RuleSet struct {
	phases  []string
	entries map[string][]*entry
}

// NewRuleSet returns an empty RuleSet.
func NewRuleSet() *RuleSet {
	return &RuleSet{entries: make(map[string][]*entry)}
}

// Register a rule in the given phase, with optional tags. The rule's name must be unique within the phase.
//
// It returns the RuleSet itself, so calls can be chained.
func (rs *RuleSet) Register(rule Rule, phase string, tags ...string) *RuleSet {
	rs.add(&entry{name: rule.Name(), rule: rule, tags: sets.MakeWith(tags...)}, phase)
	return rs
}

// RegisterPass registers a whole-graph pass in the given phase, with optional tags. Within a phase, passes
// run after the local rules reach their fixed point.
func (rs *RuleSet) RegisterPass(pass Pass, phase string, tags ...string) *RuleSet {
	rs.add(&entry{name: pass.Name(), pass: pass, tags: sets.MakeWith(tags...)}, phase)
	return rs
}

func (rs *RuleSet) add(e *entry, phase string) {
	if phase == "" || e.name == "" {
		exceptions.Panicf("RuleSet: rules and passes must have a name (%q) and a phase (%q)", e.name, phase)
	}
	for _, other := range rs.entries[phase] {
		if other.name == e.name {
			exceptions.Panicf("RuleSet: %q registered twice in phase %q", e.name, phase)
		}
	}
	if _, found := rs.entries[phase]; !found {
		rs.phases = append(rs.phases, phase)
	}
	rs.entries[phase] = append(rs.entries[phase], e)
}

// Phases returns the phases with registered rules or passes, in order of first registration.
func (rs *RuleSet) Phases() []string { return slices.Clone(rs.phases) }

// Query selects rules and passes by their names or tags.
type Query struct {
	// Include, if not empty, selects only the entries whose name or any tag is listed.
	Include []string

	// Exclude removes the entries whose name or any tag is listed. It takes precedence over Include.
	Exclude []string
}

func (e *entry) matchesAny(namesOrTags []string) bool {
	for _, s := range namesOrTags {
		if e.name == s || e.tags.Has(s) {
			return true
		}
	}
	return false
}

func (q Query) selects(e *entry) bool {
	if len(q.Include) > 0 && !e.matchesAny(q.Include) {
		return false
	}
	return !e.matchesAny(q.Exclude)
}

// Rules returns the rules of the phase selected by the query, in registration order.
func (rs *RuleSet) Rules(phase string, q Query) []Rule {
	var rules []Rule
	for _, e := range rs.entries[phase] {
		if e.rule != nil && q.selects(e) {
			rules = append(rules, e.rule)
		}
	}
	return rules
}

// Passes returns the passes of the phase selected by the query, in registration order.
func (rs *RuleSet) Passes(phase string, q Query) []Pass {
	var passes []Pass
	for _, e := range rs.entries[phase] {
		if e.pass != nil && q.selects(e) {
			passes = append(passes, e.pass)
		}
	}
	return passes
}
