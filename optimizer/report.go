// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package optimizer

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

// Report of an Optimizer run.
type Report struct {
	GraphName string
	GraphId   uuid.UUID

	NodesBefore, NodesAfter int

	// Phases in the order they were run.
	Phases []*PhaseStats

	Elapsed time.Duration
}

// Rewrites returns the total number of rewrites applied.
func (r *Report) Rewrites() int {
	total := 0
	for _, p := range r.Phases {
		total += p.Rewrites
	}
	return total
}

// Converged returns whether every phase reached its fixed point.
func (r *Report) Converged() bool {
	for _, p := range r.Phases {
		if !p.Converged {
			return false
		}
	}
	return true
}

// RuleRewrites returns the number of rewrites applied by the named rule or pass, over all phases.
func (r *Report) RuleRewrites(name string) int {
	total := 0
	for _, p := range r.Phases {
		total += p.PerRule[name]
	}
	return total
}

// String returns a multi-line human-readable summary.
func (r *Report) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "graph %q (%s): %s -> %s nodes, %s rewrites in %s\n", r.GraphName, r.GraphId,
		humanize.Comma(int64(r.NodesBefore)), humanize.Comma(int64(r.NodesAfter)),
		humanize.Comma(int64(r.Rewrites())), r.Elapsed)
	for _, p := range r.Phases {
		converged := ""
		if !p.Converged {
			converged = " (not converged)"
		}
		fmt.Fprintf(&sb, "  %-13s %s rewrites, %s rejected, %s iterations%s\n", p.Phase,
			humanize.Comma(int64(p.Rewrites)), humanize.Comma(int64(p.Rejected)),
			humanize.Comma(int64(p.Iterations)), converged)
		for _, name := range slices.Sorted(maps.Keys(p.PerRule)) {
			fmt.Fprintf(&sb, "    %-28s %s\n", name, humanize.Comma(int64(p.PerRule[name])))
		}
	}
	return sb.String()
}
