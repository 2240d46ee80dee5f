// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"fmt"
	"reflect"
	"slices"

	"github.com/gomlx/gopjrt/dtypes"
)

// Params holds the static parameters of a node, for the operations that take any.
//
// Params are immutable once the node is created.
type Params interface {
	fmt.Stringer

	// EqualParams returns true if this is semantically equivalent to other.
	// The other parameter is guaranteed to be the same concrete type.
	EqualParams(other Params) bool
}

// paramsEqual compares node params for equality, handling nil.
func paramsEqual(a, b Params) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if reflect.TypeOf(a) != reflect.TypeOf(b) {
		return false
	}
	return a.EqualParams(b)
}

// NewAxis is used in DimShuffleParams.Order to insert a new broadcastable axis.
const NewAxis = -1

// DimShuffleParams for OpTypeDimShuffle.
//
// Order lists, for each output axis, the input axis it takes, or NewAxis for a new
// broadcastable axis. Input axes not listed are dropped, and must be broadcastable.
type DimShuffleParams struct {
	Order []int
}

func (p *DimShuffleParams) String() string {
	parts := make([]string, len(p.Order))
	for ii, axis := range p.Order {
		if axis == NewAxis {
			parts[ii] = "x"
		} else {
			parts[ii] = fmt.Sprintf("%d", axis)
		}
	}
	return fmt.Sprintf("%v", parts)
}

// EqualParams implements Params.
func (p *DimShuffleParams) EqualParams(other Params) bool {
	return slices.Equal(p.Order, other.(*DimShuffleParams).Order)
}

// IsLeftPad returns whether the DimShuffle only prepends broadcastable axes to an input of the given rank:
// that is, Order is (NewAxis, ..., NewAxis, 0, 1, ..., inputRank-1).
func (p *DimShuffleParams) IsLeftPad(inputRank int) bool {
	pad := len(p.Order) - inputRank
	if pad < 0 {
		return false
	}
	for ii, axis := range p.Order {
		if ii < pad {
			if axis != NewAxis {
				return false
			}
		} else if axis != ii-pad {
			return false
		}
	}
	return true
}

// IsIdentity returns whether the DimShuffle returns its input of the given rank unchanged.
func (p *DimShuffleParams) IsIdentity(inputRank int) bool {
	return len(p.Order) == inputRank && p.IsLeftPad(inputRank)
}

// IsTranspose returns whether the DimShuffle swaps the two axes of a matrix.
func (p *DimShuffleParams) IsTranspose() bool {
	return slices.Equal(p.Order, []int{1, 0})
}

// ReduceParams for OpTypeReduceSum. Axes are sorted and unique; nil means all axes.
type ReduceParams struct {
	Axes []int
}

func (p *ReduceParams) String() string {
	if p.Axes == nil {
		return "axes=all"
	}
	return fmt.Sprintf("axes=%v", p.Axes)
}

// EqualParams implements Params.
func (p *ReduceParams) EqualParams(other Params) bool {
	o := other.(*ReduceParams)
	if (p.Axes == nil) != (o.Axes == nil) {
		return false
	}
	return slices.Equal(p.Axes, o.Axes)
}

// SubtensorParams for OpTypeSubtensor: Index of the first axis to select, negative values
// count from the end.
type SubtensorParams struct {
	Index int
}

func (p *SubtensorParams) String() string { return fmt.Sprintf("[%d]", p.Index) }

// EqualParams implements Params.
func (p *SubtensorParams) EqualParams(other Params) bool {
	return p.Index == other.(*SubtensorParams).Index
}

// SliceParams for OpTypeSlice: the range [Start, Stop) of the first axis to take.
// Negative values count from the end, and values are clamped to the dimension, as in Python.
type SliceParams struct {
	Start, Stop int
}

func (p *SliceParams) String() string { return fmt.Sprintf("[%d:%d]", p.Start, p.Stop) }

// EqualParams implements Params.
func (p *SliceParams) EqualParams(other Params) bool {
	o := other.(*SliceParams)
	return p.Start == o.Start && p.Stop == o.Stop
}

// ReshapeParams for OpTypeReshape: the rank of the output, which must match the length of the
// shape vector given at runtime.
type ReshapeParams struct {
	Rank int
}

func (p *ReshapeParams) String() string { return fmt.Sprintf("rank=%d", p.Rank) }

// EqualParams implements Params.
func (p *ReshapeParams) EqualParams(other Params) bool {
	return p.Rank == other.(*ReshapeParams).Rank
}

// ConvertParams for OpTypeConvertDType.
type ConvertParams struct {
	DType dtypes.DType
}

func (p *ConvertParams) String() string { return p.DType.String() }

// EqualParams implements Params.
func (p *ConvertParams) EqualParams(other Params) bool {
	return p.DType == other.(*ConvertParams).DType
}
