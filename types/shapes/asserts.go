// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shapes

import (
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

// HasShape is an interface for objects that have an associated Shape.
// `graph.Value`, `tensors.Tensor` and Shape itself implement the interface.
type HasShape interface {
	Shape() Shape
}

// CheckRank checks that the shape has the given rank.
func (s Shape) CheckRank(rank int) error {
	if s.Rank() != rank {
		return errors.Errorf("shape %s has incompatible rank %d (wanted %d)", s, s.Rank(), rank)
	}
	return nil
}

// Check that the shape has the given dtype and broadcast pattern.
//
// It returns an error if the dtype, rank or any of the broadcastable flags don't match.
func (s Shape) Check(dtype dtypes.DType, broadcastable ...bool) error {
	if dtype != s.DType {
		return errors.Errorf("shape %s has incompatible dtype %s (wanted %s)", s, s.DType, dtype)
	}
	if !slices.Equal(s.Broadcastable, broadcastable) {
		return errors.Errorf("shape %s has incompatible broadcast pattern (wanted %v)", s, broadcastable)
	}
	return nil
}

// AssertRank checks that the shape of each of the given objects has the given rank. It panics otherwise.
func AssertRank(rank int, values ...HasShape) {
	for ii, v := range values {
		if err := v.Shape().CheckRank(rank); err != nil {
			exceptions.Panicf("shapes.AssertRank(%d): value #%d: %v", rank, ii, err)
		}
	}
}

// AssertSameDType checks that all given objects share the same DType, and returns it.
// It panics if they don't, or if no values are given.
func AssertSameDType(values ...HasShape) dtypes.DType {
	if len(values) == 0 {
		exceptions.Panicf("shapes.AssertSameDType(): no values given")
	}
	dtype := values[0].Shape().DType
	for ii, v := range values[1:] {
		if v.Shape().DType != dtype {
			exceptions.Panicf("shapes.AssertSameDType(): value #%d has dtype %s, but value #0 has dtype %s",
				ii+1, v.Shape().DType, dtype)
		}
	}
	return dtype
}
