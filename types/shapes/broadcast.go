// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shapes

// Encompasses returns true if the broadcast patterns b1 and b2 are such that b2 is broadcast to b1's
// shape and not the opposite: b1 must have at least the rank of b2, and no axis of b1 (aligned to the right)
// may be broadcastable where b2's axis is not.
func Encompasses(b1, b2 []bool) bool {
	if len(b1) < len(b2) {
		return false
	}
	b1 = b1[len(b1)-len(b2):]
	for ii, v1 := range b1 {
		if v1 && !b2[ii] {
			return false
		}
	}
	return true
}

// MergeBroadcastable returns the broadcast pattern of the result of an element-wise operation
// over values with the given patterns.
//
// Patterns are aligned to the right (missing leading axes are implicitly broadcastable), and the resulting
// axis is broadcastable only if it is broadcastable in every pattern that has it.
func MergeBroadcastable(patterns ...[]bool) []bool {
	rank := 0
	for _, p := range patterns {
		rank = max(rank, len(p))
	}
	merged := make([]bool, rank)
	for ii := range merged {
		merged[ii] = true
	}
	for _, p := range patterns {
		offset := rank - len(p)
		for ii, b := range p {
			if !b {
				merged[offset+ii] = false
			}
		}
	}
	return merged
}

// LeftPadded returns the broadcast pattern of s left-padded with broadcastable axes up to the given rank.
// If s already has rank >= rank, it returns a copy of its pattern.
func (s Shape) LeftPadded(rank int) []bool {
	if s.Rank() >= rank {
		return append([]bool(nil), s.Broadcastable...)
	}
	padded := make([]bool, rank)
	offset := rank - s.Rank()
	for ii := 0; ii < offset; ii++ {
		padded[ii] = true
	}
	copy(padded[offset:], s.Broadcastable)
	return padded
}
