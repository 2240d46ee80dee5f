// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

// OpType enumerates the operations of the graph vocabulary.
//
// Rules dispatch on OpType with a switch, never on the identity of a node.
type OpType int

//go:generate go tool enumer -type=OpType -trimprefix=OpType -output=gen_optype_enumer.go optype.go

const (
	OpTypeInvalid OpType = iota

	// Element-wise operations: inputs are aligned to the right and broadcast.

	OpTypeAdd
	OpTypeSub
	OpTypeMul
	OpTypeDiv
	OpTypeNeg
	OpTypeInv
	OpTypePow
	OpTypeSqr
	OpTypeSqrt
	OpTypeExp
	OpTypeLog

	// OpTypeFill broadcasts its second input (the value) to the shape of the first (the model).
	OpTypeFill
	OpTypeConvertDType
	OpTypeCopy

	// Structural operations.

	OpTypeDimShuffle
	OpTypeReduceSum
	OpTypeDot
	OpTypeShape
	OpTypeMakeVector
	OpTypeSubtensor
	OpTypeSlice
	OpTypeReshape

	// OpTypeLast should always be kept the last, it is used as a counter/marker for OpType.
	OpTypeLast
)

// IsElementwise returns whether the operation is applied element by element, broadcasting its inputs.
func (op OpType) IsElementwise() bool {
	return op >= OpTypeAdd && op <= OpTypeCopy
}

// IsCommutative returns whether the order of the inputs doesn't matter.
func (op OpType) IsCommutative() bool {
	return op == OpTypeAdd || op == OpTypeMul
}

// arity returns the number of inputs the operation takes, or -1 for variadic operations.
func (op OpType) arity() int {
	switch op {
	case OpTypeAdd, OpTypeMul, OpTypeMakeVector:
		return -1
	case OpTypeSub, OpTypeDiv, OpTypePow, OpTypeFill, OpTypeDot, OpTypeReshape:
		return 2
	default:
		return 1
	}
}
