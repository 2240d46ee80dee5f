// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package shapes defines Shape, the static type of a value in a computation graph.
//
// Differently from the shape of a concrete tensor, a graph Shape doesn't fix the dimensions
// of the value: it only records its DType and, for each axis, whether the axis is
// "broadcastable", that is, whether it is guaranteed to have dimension 1 and hence can be
// implicitly expanded to match a peer's dimension in element-wise operations.
//
// Two values are type-compatible (one can be substituted for the other in a graph) only if
// their DType and broadcast pattern match exactly, see Shape.Equal.
//
// ## Glossary
//
//   - Rank: number of axes of a value.
//   - Broadcastable axis: an axis guaranteed to have dimension 1.
//   - Broadcast pattern: the list of per-axis broadcastable flags.
//   - DType: the data type of the unit element. Enumeration defined in github.com/gomlx/gopjrt/dtypes.
//
// Example: a row vector of float32 that can be added to any matrix has shape
// `shapes.Make(dtypes.Float32, true, false)`, printed as `(Float32)[1 N]`.
package shapes

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
)

// Shape is the static type of a value in the computation graph: its DType and its
// broadcast pattern.
//
// Use Make to create a new shape.
type Shape struct {
	DType dtypes.DType

	// Broadcastable has one entry per axis: true if the axis is guaranteed to have dimension 1.
	Broadcastable []bool
}

// Make returns a Shape with the given dtype and broadcast pattern. The rank is the number of
// flags given.
func Make(dtype dtypes.DType, broadcastable ...bool) Shape {
	if dtype == dtypes.InvalidDType {
		exceptions.Panicf("shapes.Make(%v): cannot create a shape with an invalid dtype", broadcastable)
	}
	return Shape{DType: dtype, Broadcastable: slices.Clone(broadcastable)}
}

// Scalar returns a rank-0 Shape for the given dtype.
func Scalar(dtype dtypes.DType) Shape {
	return Make(dtype)
}

// Vector returns a rank-1 Shape whose axis is not broadcastable.
func Vector(dtype dtypes.DType) Shape {
	return Make(dtype, false)
}

// Matrix returns a rank-2 Shape whose axes are not broadcastable.
func Matrix(dtype dtypes.DType) Shape {
	return Make(dtype, false, false)
}

// Invalid returns an invalid shape.
//
// Invalid().Ok() == false.
func Invalid() Shape {
	return Shape{DType: dtypes.InvalidDType}
}

// Ok returns whether this is a valid Shape. A "zero" shape, that is just instantiating it with Shape{} will be invalid.
func (s Shape) Ok() bool { return s.DType != dtypes.InvalidDType }

// Rank of the shape, that is, the number of axes.
func (s Shape) Rank() int { return len(s.Broadcastable) }

// IsScalar returns whether the shape represents a scalar, that is there are no axes (rank==0).
func (s Shape) IsScalar() bool { return s.Ok() && s.Rank() == 0 }

// IsBroadcastable returns whether the given axis is broadcastable. axis can take negative numbers, in which
// case it counts as starting from the end -- so axis=-1 refers to the last axis.
func (s Shape) IsBroadcastable(axis int) bool {
	adjustedAxis := axis
	if adjustedAxis < 0 {
		adjustedAxis += s.Rank()
	}
	if adjustedAxis < 0 || adjustedAxis >= s.Rank() {
		exceptions.Panicf("Shape.IsBroadcastable(%d) out-of-bounds for rank %d (shape=%s)", axis, s.Rank(), s)
	}
	return s.Broadcastable[adjustedAxis]
}

// AllBroadcastable returns whether every axis of the shape is broadcastable. True for scalars.
func (s Shape) AllBroadcastable() bool {
	for _, b := range s.Broadcastable {
		if !b {
			return false
		}
	}
	return true
}

// Shape returns a shallow copy of itself. It implements the HasShape interface.
func (s Shape) Shape() Shape { return s }

// String implements stringer, pretty-prints the shape. Broadcastable axes are printed as "1",
// the others as "N".
func (s Shape) String() string {
	if s.Rank() == 0 {
		return fmt.Sprintf("(%s)", s.DType)
	}
	parts := make([]string, 0, s.Rank())
	for _, b := range s.Broadcastable {
		if b {
			parts = append(parts, "1")
		} else {
			parts = append(parts, "N")
		}
	}
	return fmt.Sprintf("(%s)[%s]", s.DType, strings.Join(parts, " "))
}

// Equal compares two shapes for equality: dtype and broadcast pattern are compared.
// This is the type-compatibility criterion for substituting one value by another.
func (s Shape) Equal(s2 Shape) bool {
	if s.DType != s2.DType {
		return false
	}
	return slices.Equal(s.Broadcastable, s2.Broadcastable)
}

// EqualPattern compares only the broadcast patterns of the shapes. DTypes can be different.
func (s Shape) EqualPattern(s2 Shape) bool {
	return slices.Equal(s.Broadcastable, s2.Broadcastable)
}

// Clone returns a new deep copy of the shape.
func (s Shape) Clone() (s2 Shape) {
	s2.DType = s.DType
	s2.Broadcastable = slices.Clone(s.Broadcastable)
	return
}

// WithDType returns a copy of the shape with the DType changed.
func (s Shape) WithDType(dtype dtypes.DType) Shape {
	s2 := s.Clone()
	s2.DType = dtype
	return s2
}
