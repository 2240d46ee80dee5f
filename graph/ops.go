// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/graphopt/types/shapes"
)

// Apply creates a new node applying op with the given params to the inputs, and returns its output.
//
// The output shape is inferred from the inputs. It panics (with an error that can be recovered with
// exceptions.TryCatch) if the inputs or the params are invalid for the operation.
func Apply(op OpType, params Params, inputs ...*Value) *Value {
	return newNode(op, params, nil, inputs).outputs[0]
}

// ApplyInplace is like Apply, but the created node writes its outputs over the storage of some of its
// inputs, as given by destroyMap (output index to input index).
//
// Only element-wise operations can be made inplace, and each destroyed input must have the same shape
// as the output written over it. It panics otherwise.
func ApplyInplace(op OpType, params Params, destroyMap map[int]int, inputs ...*Value) *Value {
	if !op.IsElementwise() {
		exceptions.Panicf("ApplyInplace(%s): only element-wise operations can be inplace", op)
	}
	node := newNode(op, params, destroyMap, inputs)
	claimed := make(map[int]bool, len(destroyMap))
	for outIdx, inIdx := range destroyMap {
		if outIdx < 0 || outIdx >= len(node.outputs) || inIdx < 0 || inIdx >= len(inputs) {
			exceptions.Panicf("ApplyInplace(%s): invalid binding of output #%d to input #%d", op, outIdx, inIdx)
		}
		if claimed[inIdx] {
			exceptions.Panicf("ApplyInplace(%s): input #%d bound to more than one output", op, inIdx)
		}
		claimed[inIdx] = true
		if !node.outputs[outIdx].shape.Equal(inputs[inIdx].shape) {
			exceptions.Panicf("ApplyInplace(%s): output #%d shape %s cannot be written over input #%d shape %s",
				op, outIdx, node.outputs[outIdx].shape, inIdx, inputs[inIdx].shape)
		}
	}
	return node.outputs[0]
}

// Rebuild returns the output of a new node with the same operation and params as node, applied to
// the given inputs. The new node is never inplace.
func Rebuild(node *Node, inputs ...*Value) *Value {
	return Apply(node.opType, node.params, inputs...)
}

func newNode(op OpType, params Params, destroyMap map[int]int, inputs []*Value) *Node {
	for ii, input := range inputs {
		if input == nil {
			exceptions.Panicf("%s: input #%d is nil", op, ii)
		}
	}
	shape := inferShape(op, params, inputs)
	node := &Node{
		id:     NodeId(nodeIdCounter.Add(1)),
		opType: op,
		params: params,
		inputs: slices.Clone(inputs),
	}
	if len(destroyMap) > 0 {
		node.destroyMap = make(map[int]int, len(destroyMap))
		for k, v := range destroyMap {
			node.destroyMap[k] = v
		}
	}
	node.outputs = []*Value{{id: ValueId(valueIdCounter.Add(1)), shape: shape, owner: node, index: 0}}
	return node
}

// inferShape returns the output shape of op applied to inputs, or panics if they are invalid.
func inferShape(op OpType, params Params, inputs []*Value) shapes.Shape {
	if !op.IsAOpType() || op == OpTypeInvalid || op == OpTypeLast {
		exceptions.Panicf("invalid OpType %d", op)
	}
	arity := op.arity()
	if arity >= 0 && len(inputs) != arity {
		exceptions.Panicf("%s takes %d inputs, %d given", op, arity, len(inputs))
	}
	if arity < 0 && len(inputs) == 0 && op != OpTypeMakeVector {
		exceptions.Panicf("%s requires at least one input", op)
	}

	if op.IsElementwise() {
		return inferElementwise(op, params, inputs)
	}
	switch op {
	case OpTypeDimShuffle:
		p := paramsAs[*DimShuffleParams](op, params)
		x := inputs[0].shape
		seen := make([]bool, x.Rank())
		bc := make([]bool, len(p.Order))
		for ii, axis := range p.Order {
			if axis == NewAxis {
				bc[ii] = true
				continue
			}
			if axis < 0 || axis >= x.Rank() || seen[axis] {
				exceptions.Panicf("DimShuffle%s: invalid or repeated axis %d for input shape %s", p, axis, x)
			}
			seen[axis] = true
			bc[ii] = x.Broadcastable[axis]
		}
		for axis, kept := range seen {
			if !kept && !x.Broadcastable[axis] {
				exceptions.Panicf("DimShuffle%s: cannot drop non-broadcastable axis %d of input shape %s", p, axis, x)
			}
		}
		return shapes.Make(x.DType, bc...)

	case OpTypeReduceSum:
		p := paramsAs[*ReduceParams](op, params)
		x := inputs[0].shape
		if p.Axes == nil {
			return shapes.Scalar(x.DType)
		}
		if !slices.IsSorted(p.Axes) || len(slices.Compact(slices.Clone(p.Axes))) != len(p.Axes) {
			exceptions.Panicf("ReduceSum(%s): axes must be sorted and unique", p)
		}
		var bc []bool
		for axis, b := range x.Broadcastable {
			if !slices.Contains(p.Axes, axis) {
				bc = append(bc, b)
			}
		}
		for _, axis := range p.Axes {
			if axis < 0 || axis >= x.Rank() {
				exceptions.Panicf("ReduceSum(%s): invalid axis for input shape %s", p, x)
			}
		}
		return shapes.Make(x.DType, bc...)

	case OpTypeDot:
		assertNoParams(op, params)
		a, b := inputs[0].shape, inputs[1].shape
		dtype := shapes.AssertSameDType(a, b)
		if a.Rank() < 1 || a.Rank() > 2 || b.Rank() < 1 || b.Rank() > 2 {
			exceptions.Panicf("Dot: only vectors and matrices are supported, got %s and %s", a, b)
		}
		var bc []bool
		if a.Rank() == 2 {
			bc = append(bc, a.Broadcastable[0])
		}
		if b.Rank() == 2 {
			bc = append(bc, b.Broadcastable[1])
		}
		return shapes.Make(dtype, bc...)

	case OpTypeShape:
		assertNoParams(op, params)
		return shapes.Vector(dtypes.Int64)

	case OpTypeMakeVector:
		assertNoParams(op, params)
		if len(inputs) == 0 {
			return shapes.Vector(dtypes.Int64)
		}
		dtype := shapes.AssertSameDType(valuesAsHasShape(inputs)...)
		shapes.AssertRank(0, valuesAsHasShape(inputs)...)
		return shapes.Vector(dtype)

	case OpTypeSubtensor:
		paramsAs[*SubtensorParams](op, params)
		x := inputs[0].shape
		if x.Rank() < 1 {
			exceptions.Panicf("Subtensor: input must have rank >= 1, got %s", x)
		}
		return shapes.Make(x.DType, x.Broadcastable[1:]...)

	case OpTypeSlice:
		paramsAs[*SliceParams](op, params)
		x := inputs[0].shape
		if x.Rank() < 1 {
			exceptions.Panicf("Slice: input must have rank >= 1, got %s", x)
		}
		bc := slices.Clone(x.Broadcastable)
		bc[0] = false
		return shapes.Make(x.DType, bc...)

	case OpTypeReshape:
		p := paramsAs[*ReshapeParams](op, params)
		s := inputs[1].shape
		if s.Rank() != 1 || !s.DType.IsInt() {
			exceptions.Panicf("Reshape: shape must be an integer vector, got %s", s)
		}
		if p.Rank < 0 {
			exceptions.Panicf("Reshape: invalid rank %d", p.Rank)
		}
		return shapes.Make(inputs[0].shape.DType, make([]bool, p.Rank)...)
	}
	exceptions.Panicf("shape inference for %s not implemented", op)
	return shapes.Invalid()
}

func inferElementwise(op OpType, params Params, inputs []*Value) shapes.Shape {
	patterns := make([][]bool, len(inputs))
	for ii, input := range inputs {
		patterns[ii] = input.shape.Broadcastable
	}
	bc := shapes.MergeBroadcastable(patterns...)
	switch op {
	case OpTypeFill:
		assertNoParams(op, params)
		return shapes.Make(inputs[1].shape.DType, bc...)
	case OpTypeConvertDType:
		p := paramsAs[*ConvertParams](op, params)
		if p.DType == dtypes.InvalidDType {
			exceptions.Panicf("ConvertDType: invalid dtype")
		}
		return shapes.Make(p.DType, bc...)
	}
	assertNoParams(op, params)
	dtype := shapes.AssertSameDType(valuesAsHasShape(inputs)...)
	return shapes.Make(dtype, bc...)
}

func paramsAs[P Params](op OpType, params Params) P {
	p, ok := params.(P)
	if !ok || params == nil {
		exceptions.Panicf("%s: invalid params %T", op, params)
	}
	return p
}

func assertNoParams(op OpType, params Params) {
	if params != nil {
		exceptions.Panicf("%s takes no params, got %s", op, params)
	}
}

func valuesAsHasShape(values []*Value) []shapes.HasShape {
	hs := make([]shapes.HasShape, len(values))
	for ii, v := range values {
		hs[ii] = v
	}
	return hs
}

// Add returns the element-wise sum of the inputs.
func Add(inputs ...*Value) *Value { return Apply(OpTypeAdd, nil, inputs...) }

// Sub returns x - y.
func Sub(x, y *Value) *Value { return Apply(OpTypeSub, nil, x, y) }

// Mul returns the element-wise product of the inputs.
func Mul(inputs ...*Value) *Value { return Apply(OpTypeMul, nil, inputs...) }

// Div returns x / y.
func Div(x, y *Value) *Value { return Apply(OpTypeDiv, nil, x, y) }

// Neg returns -x.
func Neg(x *Value) *Value { return Apply(OpTypeNeg, nil, x) }

// Inv returns 1/x.
func Inv(x *Value) *Value { return Apply(OpTypeInv, nil, x) }

// Pow returns x^y.
func Pow(x, y *Value) *Value { return Apply(OpTypePow, nil, x, y) }

// Sqr returns x*x.
func Sqr(x *Value) *Value { return Apply(OpTypeSqr, nil, x) }

// Sqrt returns the square root of x.
func Sqrt(x *Value) *Value { return Apply(OpTypeSqrt, nil, x) }

// Exp returns e^x.
func Exp(x *Value) *Value { return Apply(OpTypeExp, nil, x) }

// Log returns the natural logarithm of x.
func Log(x *Value) *Value { return Apply(OpTypeLog, nil, x) }

// Fill returns value broadcast to the shape of model (model's contents are ignored).
func Fill(model, value *Value) *Value { return Apply(OpTypeFill, nil, model, value) }

// ConvertDType converts x to the given dtype.
func ConvertDType(x *Value, dtype dtypes.DType) *Value {
	return Apply(OpTypeConvertDType, &ConvertParams{DType: dtype}, x)
}

// Copy returns a copy of x.
func Copy(x *Value) *Value { return Apply(OpTypeCopy, nil, x) }

// DimShuffle permutes, drops (broadcastable only) or inserts (NewAxis) axes of x.
func DimShuffle(x *Value, order ...int) *Value {
	return Apply(OpTypeDimShuffle, &DimShuffleParams{Order: slices.Clone(order)}, x)
}

// Transpose swaps the axes of a matrix.
func Transpose(x *Value) *Value { return DimShuffle(x, 1, 0) }

// PadLeft prepends broadcastable axes to x until it reaches the given rank.
func PadLeft(x *Value, rank int) *Value {
	order := make([]int, rank)
	pad := rank - x.Rank()
	for ii := range order {
		order[ii] = ii - pad
		if ii < pad {
			order[ii] = NewAxis
		}
	}
	return DimShuffle(x, order...)
}

// ReduceSum sums x over the given axes, or over all axes if none is given.
func ReduceSum(x *Value, axes ...int) *Value {
	var normalized []int
	if len(axes) > 0 {
		normalized = slices.Compact(slices.Sorted(slices.Values(axes)))
	}
	return Apply(OpTypeReduceSum, &ReduceParams{Axes: normalized}, x)
}

// Dot returns the matrix (or vector) product of a and b.
func Dot(a, b *Value) *Value { return Apply(OpTypeDot, nil, a, b) }

// ShapeOf returns the runtime dimensions of x as an Int64 vector.
func ShapeOf(x *Value) *Value { return Apply(OpTypeShape, nil, x) }

// MakeVector returns a vector with the given scalars.
func MakeVector(scalars ...*Value) *Value { return Apply(OpTypeMakeVector, nil, scalars...) }

// Subtensor returns x[index], removing the first axis.
func Subtensor(x *Value, index int) *Value {
	return Apply(OpTypeSubtensor, &SubtensorParams{Index: index}, x)
}

// Slice returns x[start:stop] over the first axis.
func Slice(x *Value, start, stop int) *Value {
	return Apply(OpTypeSlice, &SliceParams{Start: start, Stop: stop}, x)
}

// Reshape returns x with the dimensions given by the integer vector shape, of length rank.
// One of the dimensions may be -1, in which case it is inferred.
func Reshape(x, shape *Value, rank int) *Value {
	return Apply(OpTypeReshape, &ReshapeParams{Rank: rank}, x, shape)
}
