// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package rules

import (
	"slices"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/graphopt/graph"
	"github.com/gomlx/graphopt/optimizer"
	"github.com/gomlx/graphopt/pkg/support/xslices"
	"k8s.io/klog/v2"
)

// DivCost is the cost of a division, relative to a multiplication, used by the GreedyDistributor to decide
// whether distributing a factor over a sum pays off.
const DivCost = 1.5

// distributor holds the canonizers used to decompose products (mul) and sums (add).
type distributor struct {
	mul, add *Canonizer
}

// GreedyDistributor applies the distributivity of multiplication over addition when it reduces the number of
// multiplications and divisions (a division costs DivCost multiplications):
//
//	((a/x + b/y) * x * y) -> a*y + b*x
//	((a/x + b) * x)       -> a + b*x
//
// But not:
//
//	((a + b) * x) -> a*x + b*x
//
// Besides being cheaper, the result is often more numerically stable, e.g. in the first example when x and y
// tend to 0. It only applies to float dtypes.
func GreedyDistributor() optimizer.Rule {
	d := &distributor{mul: MulCanonizer(), add: AddCanonizer()}
	return optimizer.RuleFunc("greedy_distributor", d.transform, graph.OpTypeMul, graph.OpTypeDiv, graph.OpTypeInv)
}

// cost of a product term.
func cost(t Terms) float64 {
	return float64(len(t.Num)) + DivCost*float64(len(t.Denum))
}

// distributeGreedy multiplies each of the product terms pos and neg by num/denum, and returns whether it
// saves operations, with the new terms. If not, pos and neg are returned unchanged.
func (d *distributor) distributeGreedy(pos, neg []Terms, num, denum []*graph.Value, dtype dtypes.DType) (
	bool, []Terms, []Terms) {
	// Operations saved, higher is better.
	score := cost(Terms{Num: num, Denum: denum})
	distribute := func(terms []Terms) []Terms {
		newTerms := make([]Terms, len(terms))
		for ii, t := range terms {
			product := Terms{Num: xslices.Concat(t.Num, num), Denum: xslices.Concat(t.Denum, denum)}
			newTerms[ii] = d.mul.Simplify(product, dtype)
			score += cost(t) - cost(newTerms[ii])
		}
		return newTerms
	}
	newPos, newNeg := distribute(pos), distribute(neg)
	if score <= 0 {
		return false, pos, neg
	}
	return true, newPos, newNeg
}

// attemptDistribution tries to distribute each of num and denum into factor, if it is a sum.
//
// It returns whether anything was distributed, the new factor, and the terms of num and denum that were not
// distributed.
func (d *distributor) attemptDistribution(factor *graph.Value, num, denum []*graph.Value, dtype dtypes.DType) (
	changed bool, newFactor *graph.Value, keptNum, keptDenum []*graph.Value) {
	sum := d.add.Decompose(factor)
	if len(sum.Num) == 1 && len(sum.Denum) == 0 {
		return false, factor, num, denum
	}
	pos := xslices.Map(sum.Num, d.mul.Decompose)
	neg := xslices.Map(sum.Denum, d.mul.Decompose)
	for _, n := range num {
		ok, newPos, newNeg := d.distributeGreedy(pos, neg, []*graph.Value{n}, nil, dtype)
		if !ok {
			keptNum = append(keptNum, n)
			continue
		}
		changed, pos, neg = true, newPos, newNeg
	}
	for _, dn := range denum {
		ok, newPos, newNeg := d.distributeGreedy(pos, neg, nil, []*graph.Value{dn}, dtype)
		if !ok {
			keptDenum = append(keptDenum, dn)
			continue
		}
		changed, pos, neg = true, newPos, newNeg
	}
	if !changed {
		return false, factor, num, denum
	}
	recombine := func(t Terms) *graph.Value { return d.mul.Recombine(t, dtype) }
	newFactor = d.add.Recombine(Terms{Num: xslices.Map(pos, recombine), Denum: xslices.Map(neg, recombine)}, dtype)
	return true, newFactor, keptNum, keptDenum
}

func (d *distributor) transform(node *graph.Node) optimizer.Match {
	out := node.Out()
	dtype := out.DType()
	if !dtype.IsFloat() {
		return optimizer.NoMatch
	}
	t := d.mul.Decompose(out)
	if len(t.Num) == 1 && len(t.Denum) == 0 {
		return optimizer.NoMatch
	}

	// Each successful distribution consumes at least one term, so the loops below terminate.
	num, denum := slices.Clone(t.Num), slices.Clone(t.Denum)
	changed := false
	for ii := 0; ii < len(num); ii++ {
		others := slices.Delete(slices.Clone(num), ii, ii+1)
		ok, factor, keptNum, keptDenum := d.attemptDistribution(num[ii], others, denum, dtype)
		if !ok {
			continue
		}
		changed = true
		num = xslices.Concat([]*graph.Value{factor}, keptNum)
		denum = keptDenum
		ii = -1
	}
	for ii := 0; ii < len(denum); ii++ {
		// Sums in the denominator are only multiplied by the other denominators.
		others := slices.Delete(slices.Clone(denum), ii, ii+1)
		ok, factor, keptDenum, _ := d.attemptDistribution(denum[ii], others, nil, dtype)
		if !ok {
			continue
		}
		changed = true
		denum = xslices.Concat([]*graph.Value{factor}, keptDenum)
		ii = -1
	}
	if !changed {
		return optimizer.NoMatch
	}

	rebuilt := d.mul.Recombine(Terms{Num: num, Denum: denum}, dtype)
	restored := restoreType(rebuilt, out.Shape(), node.Inputs())
	if restored == nil {
		klog.Errorf("greedy_distributor: rebuilt %s as %s, with type %s instead of %s", node, rebuilt,
			rebuilt.Shape(), out.Shape())
		return optimizer.NoMatch
	}
	return optimizer.Replace(restored)
}
