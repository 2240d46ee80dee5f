// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensors

import (
	"github.com/pkg/errors"
)

// BroadcastTo returns a tensor with the given dimensions, with t's values expanded to it.
//
// t's axes are aligned to the right of dimensions: missing leading axes and axes of dimension 1 are
// expanded, all others must match exactly. If t already has the given dimensions it is returned itself.
func (t *Tensor) BroadcastTo(dimensions []int) (*Tensor, error) {
	if t.Rank() > len(dimensions) {
		return nil, errors.Errorf("cannot broadcast tensor with dims %v to lower rank dims %v", t.dimensions, dimensions)
	}
	offset := len(dimensions) - t.Rank()
	same := offset == 0
	for axis, dim := range t.dimensions {
		target := dimensions[offset+axis]
		if dim != target {
			if dim != 1 {
				return nil, errors.Errorf("cannot broadcast tensor with dims %v to dims %v: axis %d has dimension %d",
					t.dimensions, dimensions, axis, dim)
			}
			same = false
		}
	}
	if same {
		return t, nil
	}

	// Strides of t's data, with 0 stride for broadcast axes.
	srcStrides := make([]int, len(dimensions))
	tStrides := Strides(t.dimensions)
	for axis, dim := range t.dimensions {
		if dim != 1 || dimensions[offset+axis] == 1 {
			srcStrides[offset+axis] = tStrides[axis]
		}
	}
	size := SizeOf(dimensions)
	flat := make([]float64, size)
	indices := make([]int, len(dimensions))
	srcPos := 0
	for ii := range size {
		flat[ii] = t.flat[srcPos]
		// Increment indices, row-major.
		for axis := len(dimensions) - 1; axis >= 0; axis-- {
			indices[axis]++
			srcPos += srcStrides[axis]
			if indices[axis] < dimensions[axis] {
				break
			}
			srcPos -= srcStrides[axis] * indices[axis]
			indices[axis] = 0
		}
	}
	return &Tensor{dtype: t.dtype, dimensions: append([]int(nil), dimensions...), flat: flat}, nil
}

// BroadcastDimensions returns the dimensions resulting from broadcasting arrays of the given dimensions
// together (aligned to the right, axes of dimension 1 are expanded).
func BroadcastDimensions(allDims ...[]int) ([]int, error) {
	rank := 0
	for _, dims := range allDims {
		rank = max(rank, len(dims))
	}
	result := make([]int, rank)
	for ii := range result {
		result[ii] = 1
	}
	for _, dims := range allDims {
		offset := rank - len(dims)
		for axis, dim := range dims {
			current := result[offset+axis]
			switch {
			case dim == current || dim == 1:
			case current == 1:
				result[offset+axis] = dim
			default:
				return nil, errors.Errorf("incompatible dimensions for broadcasting: %v", allDims)
			}
		}
	}
	return result, nil
}
