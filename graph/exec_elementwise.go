// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"math"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/graphopt/types/tensors"
	"github.com/pkg/errors"
)

// elementwiseDimensions returns the runtime dimensions of the output of an element-wise node.
//
// Inputs are aligned to the right. Axes statically broadcastable must have dimension 1, all the
// others must have the same dimension.
func elementwiseDimensions(node *Node, inputs []*tensors.Tensor) ([]int, error) {
	rank := node.outputs[0].Rank()
	dims := make([]int, rank)
	known := make([]bool, rank)
	for ii, input := range inputs {
		staticShape := node.inputs[ii].shape
		offset := rank - input.Rank()
		for axis, dim := range input.Dimensions() {
			if staticShape.Broadcastable[axis] {
				continue
			}
			outAxis := offset + axis
			if known[outAxis] && dims[outAxis] != dim {
				return nil, errors.Errorf("input #%d has dimension %d on axis %d, but others have %d",
					ii, dim, axis, dims[outAxis])
			}
			dims[outAxis] = dim
			known[outAxis] = true
		}
	}
	for axis := range dims {
		if !known[axis] {
			dims[axis] = 1
		}
	}
	return dims, nil
}

// performElementwise evaluates an element-wise node. Values are computed in float64 and rounded to the
// output dtype.
func performElementwise(node *Node, inputs []*tensors.Tensor) (*tensors.Tensor, error) {
	dims, err := elementwiseDimensions(node, inputs)
	if err != nil {
		return nil, err
	}
	flats := make([][]float64, len(inputs))
	for ii, input := range inputs {
		broadcast, err := input.BroadcastTo(dims)
		if err != nil {
			return nil, errors.WithMessagef(err, "input #%d", ii)
		}
		flats[ii] = broadcast.Flat()
	}
	dtype := node.outputs[0].shape.DType
	truncate := dtype.IsInt()
	size := tensors.SizeOf(dims)
	result := make([]float64, size)
	args := make([]float64, len(inputs))
	for pos := range size {
		for ii := range flats {
			args[ii] = flats[ii][pos]
		}
		result[pos] = scalarOp(node, args, truncate)
	}

	if inIdx, found := node.destroyMap[0]; found {
		destroyed := inputs[inIdx]
		if destroyed.Size() != size {
			return nil, errors.Errorf("inplace output with dims %v cannot be written over input #%d with dims %v",
				dims, inIdx, destroyed.Dimensions())
		}
		destroyed.MutableFlat(func(flat []float64) { copy(flat, result) })
		return destroyed, nil
	}
	return tensors.FromFlat(dtype, result, dims...), nil
}

// scalarOp computes one element of an element-wise operation. Divisions are truncated towards zero
// for integer dtypes.
func scalarOp(node *Node, args []float64, truncate bool) float64 {
	div := func(a, b float64) float64 {
		if truncate {
			return math.Trunc(a / b)
		}
		return a / b
	}
	switch node.opType {
	case OpTypeAdd:
		sum := 0.0
		for _, v := range args {
			sum += v
		}
		return sum
	case OpTypeSub:
		return args[0] - args[1]
	case OpTypeMul:
		prod := 1.0
		for _, v := range args {
			prod *= v
		}
		return prod
	case OpTypeDiv:
		return div(args[0], args[1])
	case OpTypeNeg:
		return -args[0]
	case OpTypeInv:
		return div(1, args[0])
	case OpTypePow:
		return math.Pow(args[0], args[1])
	case OpTypeSqr:
		return args[0] * args[0]
	case OpTypeSqrt:
		return math.Sqrt(args[0])
	case OpTypeExp:
		return math.Exp(args[0])
	case OpTypeLog:
		return math.Log(args[0])
	case OpTypeFill:
		return args[1]
	case OpTypeConvertDType, OpTypeCopy:
		return args[0]
	}
	exceptions.Panicf("%s is not an element-wise operation", node.opType)
	return 0
}
