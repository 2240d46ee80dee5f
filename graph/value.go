// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"fmt"
	"sync/atomic"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/graphopt/types/shapes"
	"github.com/gomlx/graphopt/types/tensors"
)

// ValueId uniquely identifies a Value within the process.
type ValueId int64

// NodeId uniquely identifies a Node within the process.
type NodeId int64

var (
	valueIdCounter atomic.Int64
	nodeIdCounter  atomic.Int64
)

// Value is a typed placeholder for an array value in a computation graph.
//
// It is either a parameter (an input of the graph), a constant (it holds a literal), or the
// output of a Node (its Owner).
type Value struct {
	id      ValueId
	shape   shapes.Shape
	owner   *Node
	index   int
	literal *tensors.Tensor
	name    string
}

// Parameter returns a new parameter value with the given name and shape.
func Parameter(name string, shape shapes.Shape) *Value {
	if !shape.Ok() {
		exceptions.Panicf("Parameter(%q): invalid shape %s", name, shape)
	}
	return &Value{id: ValueId(valueIdCounter.Add(1)), shape: shape.Clone(), name: name}
}

// Const returns a new constant value holding the tensor t. Axes of dimension 1 are broadcastable.
func Const(t *tensors.Tensor) *Value {
	return &Value{id: ValueId(valueIdCounter.Add(1)), shape: t.Shape(), literal: t}
}

// ConstAs returns a new constant value holding the tensor t, with the given static shape.
//
// It panics if t is not compatible with shape: dtype and rank must match, and broadcastable
// axes must have dimension 1.
func ConstAs(t *tensors.Tensor, shape shapes.Shape) *Value {
	if t.DType() != shape.DType || t.Rank() != shape.Rank() {
		exceptions.Panicf("ConstAs(%s): literal is incompatible with shape %s", t, shape)
	}
	dims := t.Dimensions()
	for axis, bc := range shape.Broadcastable {
		if bc && dims[axis] != 1 {
			exceptions.Panicf("ConstAs(%s): axis %d of shape %s is broadcastable, but literal has dimension %d",
				t, axis, shape, dims[axis])
		}
	}
	return &Value{id: ValueId(valueIdCounter.Add(1)), shape: shape.Clone(), literal: t}
}

// Scalar returns a new scalar constant.
func Scalar(dtype dtypes.DType, value float64) *Value {
	return Const(tensors.FromScalar(dtype, value))
}

// Id of the value, unique within the process.
func (v *Value) Id() ValueId { return v.id }

// Shape returns the static type of the value.
func (v *Value) Shape() shapes.Shape { return v.shape }

// DType of the value.
func (v *Value) DType() dtypes.DType { return v.shape.DType }

// Rank of the value.
func (v *Value) Rank() int { return v.shape.Rank() }

// Owner returns the node that produces the value, or nil for parameters and constants.
func (v *Value) Owner() *Node { return v.owner }

// Index returns the index of the value in the outputs of its owner.
func (v *Value) Index() int { return v.index }

// OpType of the owner, or OpTypeInvalid if the value has no owner.
func (v *Value) OpType() OpType {
	if v.owner == nil {
		return OpTypeInvalid
	}
	return v.owner.opType
}

// IsConstant returns whether the value holds a literal.
func (v *Value) IsConstant() bool { return v.literal != nil }

// IsParameter returns whether the value is a parameter (an input) of the graph.
func (v *Value) IsParameter() bool { return v.owner == nil && v.literal == nil }

// Literal returns the literal held by a constant, or nil.
func (v *Value) Literal() *tensors.Tensor { return v.literal }

// Name of a parameter.
func (v *Value) Name() string { return v.name }

// String implements fmt.Stringer.
func (v *Value) String() string {
	switch {
	case v.literal != nil:
		return v.literal.String()
	case v.owner == nil:
		return v.name
	default:
		return fmt.Sprintf("#%d", v.owner.id)
	}
}

// ScalarValue returns the value of a constant whose elements are all equal.
// It returns false if v is not a constant, or if its elements differ.
func (v *Value) ScalarValue() (float64, bool) {
	if v.literal == nil || v.literal.Size() == 0 {
		return 0, false
	}
	first := v.literal.Flat()[0]
	if !v.literal.AllEqual(first) {
		return 0, false
	}
	return first, true
}
