// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package tensors implements a `Tensor`, a dense multi-dimensional array used as the literal
// payload of constants in a computation graph, and as the input and output values of the
// reference evaluator.
//
// Values are stored flat, in row-major order, as float64. Every value is rounded to the
// precision of the Tensor's DType when it is stored: Float16 uses github.com/x448/float16,
// BFloat16 uses github.com/gomlx/gopjrt/dtypes/bfloat16, integer types are truncated and
// wrapped as Go conversions do. This makes computations over literals (e.g.: constant folding)
// deterministic and faithful to the declared DType.
//
// There are various ways to construct a Tensor:
//
//   - FromScalar(dtype, value): a rank-0 tensor.
//   - Full(dtype, value, dimensions...): a tensor filled with the same value.
//   - FromFlat(dtype, flat, dimensions...): a tensor with the given flat (row-major) values.
package tensors

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/graphopt/types/shapes"
)

// Tensor is a dense multi-dimensional array of a given DType.
//
// Tensors are treated as immutable values, except by the evaluator when executing nodes
// declared inplace, see MutableFlat.
//
// Values are stored as float64 whatever the DType, so integers are only exact up to 2^53:
// larger Int64/Uint64 literals lose precision when created, folded or combined.
type Tensor struct {
	dtype      dtypes.DType
	dimensions []int
	flat       []float64
}

// FromScalar returns a rank-0 tensor holding value, rounded to dtype.
func FromScalar(dtype dtypes.DType, value float64) *Tensor {
	return FromFlat(dtype, []float64{value})
}

// Full returns a tensor with the given dimensions with every element set to value.
func Full(dtype dtypes.DType, value float64, dimensions ...int) *Tensor {
	flat := make([]float64, SizeOf(dimensions))
	for ii := range flat {
		flat[ii] = value
	}
	return FromFlat(dtype, flat, dimensions...)
}

// FromFlat returns a tensor with the given dimensions and flat (row-major) values, rounded to dtype.
// The flat slice is copied.
//
// It panics if the number of values doesn't match the dimensions, or if a dimension is negative.
func FromFlat(dtype dtypes.DType, flat []float64, dimensions ...int) *Tensor {
	if dtype == dtypes.InvalidDType {
		exceptions.Panicf("tensors.FromFlat(): invalid dtype")
	}
	for _, dim := range dimensions {
		if dim < 0 {
			exceptions.Panicf("tensors.FromFlat(%s, dims=%v): negative dimension", dtype, dimensions)
		}
	}
	if len(flat) != SizeOf(dimensions) {
		exceptions.Panicf("tensors.FromFlat(%s, dims=%v): got %d values, wanted %d",
			dtype, dimensions, len(flat), SizeOf(dimensions))
	}
	t := &Tensor{dtype: dtype, dimensions: slices.Clone(dimensions), flat: make([]float64, len(flat))}
	for ii, v := range flat {
		t.flat[ii] = Round(dtype, v)
	}
	return t
}

// SizeOf returns the number of elements of an array with the given dimensions.
func SizeOf(dimensions []int) int {
	size := 1
	for _, dim := range dimensions {
		size *= dim
	}
	return size
}

// Strides returns the row-major strides for the given dimensions.
func Strides(dimensions []int) []int {
	strides := make([]int, len(dimensions))
	stride := 1
	for axis := len(dimensions) - 1; axis >= 0; axis-- {
		strides[axis] = stride
		stride *= dimensions[axis]
	}
	return strides
}

// DType of the tensor's elements.
func (t *Tensor) DType() dtypes.DType { return t.dtype }

// Dimensions returns a copy of the tensor's dimensions.
func (t *Tensor) Dimensions() []int { return slices.Clone(t.dimensions) }

// Rank returns the number of axes of the tensor.
func (t *Tensor) Rank() int { return len(t.dimensions) }

// Size returns the number of elements in the tensor.
func (t *Tensor) Size() int { return len(t.flat) }

// IsScalar returns whether the tensor has rank 0.
func (t *Tensor) IsScalar() bool { return len(t.dimensions) == 0 }

// Shape returns the graph shape of a constant holding this tensor: axes of dimension 1 are broadcastable.
func (t *Tensor) Shape() shapes.Shape {
	broadcastable := make([]bool, len(t.dimensions))
	for axis, dim := range t.dimensions {
		broadcastable[axis] = dim == 1
	}
	return shapes.Make(t.dtype, broadcastable...)
}

// Flat returns a copy of the flat (row-major) values of the tensor.
func (t *Tensor) Flat() []float64 { return slices.Clone(t.flat) }

// MutableFlat calls accessFn with the tensor's underlying storage. Values written are rounded to the
// tensor's dtype after accessFn returns.
//
// This is used by the evaluator to honor destructive (inplace) operations, and should not be used otherwise.
func (t *Tensor) MutableFlat(accessFn func(flat []float64)) {
	accessFn(t.flat)
	for ii, v := range t.flat {
		t.flat[ii] = Round(t.dtype, v)
	}
}

// Value returns the single value of a tensor of size 1 (e.g. a scalar). It panics for other sizes.
func (t *Tensor) Value() float64 {
	if len(t.flat) != 1 {
		exceptions.Panicf("Tensor.Value() requires a tensor with exactly one element, got dims=%v", t.dimensions)
	}
	return t.flat[0]
}

// At returns the element at the given indices.
func (t *Tensor) At(indices ...int) float64 {
	if len(indices) != t.Rank() {
		exceptions.Panicf("Tensor.At(%v): tensor has rank %d", indices, t.Rank())
	}
	pos := 0
	strides := Strides(t.dimensions)
	for axis, idx := range indices {
		if idx < 0 || idx >= t.dimensions[axis] {
			exceptions.Panicf("Tensor.At(%v): index out of bounds for dims %v", indices, t.dimensions)
		}
		pos += idx * strides[axis]
	}
	return t.flat[pos]
}

// Clone returns a deep copy of the tensor.
func (t *Tensor) Clone() *Tensor {
	return &Tensor{dtype: t.dtype, dimensions: slices.Clone(t.dimensions), flat: slices.Clone(t.flat)}
}

// ConvertDType returns a copy of the tensor with the values converted to the given dtype.
func (t *Tensor) ConvertDType(dtype dtypes.DType) *Tensor {
	return FromFlat(dtype, t.flat, t.dimensions...)
}

// Reshape returns a copy of the tensor with new dimensions holding the same number of elements.
func (t *Tensor) Reshape(dimensions ...int) *Tensor {
	if SizeOf(dimensions) != len(t.flat) {
		exceptions.Panicf("Tensor.Reshape(%v): tensor with dims %v has %d elements", dimensions, t.dimensions, len(t.flat))
	}
	return &Tensor{dtype: t.dtype, dimensions: slices.Clone(dimensions), flat: slices.Clone(t.flat)}
}

// Equal checks whether t and otherTensor have the same dtype, dimensions and bit-identical values.
// NaNs with the same bit pattern are considered equal.
func (t *Tensor) Equal(otherTensor *Tensor) bool {
	if t == otherTensor {
		return true
	}
	if t == nil || otherTensor == nil {
		return false
	}
	if t.dtype != otherTensor.dtype || !slices.Equal(t.dimensions, otherTensor.dimensions) {
		return false
	}
	for ii, v := range t.flat {
		if math.Float64bits(v) != math.Float64bits(otherTensor.flat[ii]) {
			return false
		}
	}
	return true
}

// AllEqual returns whether every element of the tensor is equal to value.
// It returns false for an empty tensor.
func (t *Tensor) AllEqual(value float64) bool {
	if len(t.flat) == 0 {
		return false
	}
	for _, v := range t.flat {
		if v != value {
			return false
		}
	}
	return true
}

// InDelta checks whether Abs(t - otherTensor) <= delta for every element.
// The dtypes must match, and the dimensions must be the same. NaNs are only considered equal to NaNs,
// and infinities only to infinities of the same sign.
func (t *Tensor) InDelta(otherTensor *Tensor, delta float64) bool {
	if t == otherTensor {
		return true
	}
	if t.dtype != otherTensor.dtype || !slices.Equal(t.dimensions, otherTensor.dimensions) {
		return false
	}
	for ii, v0 := range t.flat {
		v1 := otherTensor.flat[ii]
		switch {
		case math.IsNaN(v0) || math.IsNaN(v1):
			if math.IsNaN(v0) != math.IsNaN(v1) {
				return false
			}
		case math.IsInf(v0, 0) || math.IsInf(v1, 0):
			if v0 != v1 {
				return false
			}
		case math.Abs(v0-v1) > delta:
			return false
		}
	}
	return true
}

// String implements fmt.Stringer.
func (t *Tensor) String() string {
	if t == nil {
		return "<nil tensor>"
	}
	if t.IsScalar() {
		return fmt.Sprintf("%s(%s)", t.dtype, formatValue(t.dtype, t.flat[0]))
	}
	const maxValues = 8
	parts := make([]string, 0, min(len(t.flat), maxValues)+1)
	for ii, v := range t.flat {
		if ii >= maxValues {
			parts = append(parts, "...")
			break
		}
		parts = append(parts, formatValue(t.dtype, v))
	}
	return fmt.Sprintf("%s%v{%s}", t.dtype, t.dimensions, strings.Join(parts, ", "))
}

func formatValue(dtype dtypes.DType, v float64) string {
	if dtype.IsFloat() {
		return fmt.Sprintf("%g", v)
	}
	return fmt.Sprintf("%d", int64(v))
}
