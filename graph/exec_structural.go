// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"slices"

	"github.com/gomlx/graphopt/types/tensors"
	"github.com/pkg/errors"
)

// performStructural evaluates the operations that are not element-wise.
func performStructural(node *Node, inputs []*tensors.Tensor) (*tensors.Tensor, error) {
	dtype := node.outputs[0].shape.DType
	switch node.opType {
	case OpTypeDimShuffle:
		return execDimShuffle(node.params.(*DimShuffleParams), inputs[0])
	case OpTypeReduceSum:
		return execReduceSum(node.params.(*ReduceParams), inputs[0]), nil
	case OpTypeDot:
		return execDot(inputs[0], inputs[1])
	case OpTypeShape:
		dims := inputs[0].Dimensions()
		flat := make([]float64, len(dims))
		for ii, dim := range dims {
			flat[ii] = float64(dim)
		}
		return tensors.FromFlat(dtype, flat, len(flat)), nil
	case OpTypeMakeVector:
		flat := make([]float64, len(inputs))
		for ii, input := range inputs {
			flat[ii] = input.Value()
		}
		return tensors.FromFlat(dtype, flat, len(flat)), nil
	case OpTypeSubtensor:
		return execSubtensor(node.params.(*SubtensorParams), inputs[0])
	case OpTypeSlice:
		return execSlice(node.params.(*SliceParams), inputs[0]), nil
	case OpTypeReshape:
		return execReshape(node.params.(*ReshapeParams), inputs[0], inputs[1])
	}
	return nil, errors.Errorf("no evaluator for %s", node.opType)
}

func execDimShuffle(p *DimShuffleParams, x *tensors.Tensor) (*tensors.Tensor, error) {
	inDims := x.Dimensions()
	inStrides := tensors.Strides(inDims)
	kept := make([]bool, len(inDims))
	outDims := make([]int, len(p.Order))
	srcStrides := make([]int, len(p.Order))
	for ii, axis := range p.Order {
		if axis == NewAxis {
			outDims[ii] = 1
			continue
		}
		kept[axis] = true
		outDims[ii] = inDims[axis]
		srcStrides[ii] = inStrides[axis]
	}
	for axis, dim := range inDims {
		if !kept[axis] && dim != 1 {
			return nil, errors.Errorf("DimShuffle%s drops axis %d of dimension %d", p, axis, dim)
		}
	}
	src := x.Flat()
	flat := make([]float64, tensors.SizeOf(outDims))
	indices := make([]int, len(outDims))
	srcPos := 0
	for pos := range flat {
		flat[pos] = src[srcPos]
		for axis := len(outDims) - 1; axis >= 0; axis-- {
			indices[axis]++
			srcPos += srcStrides[axis]
			if indices[axis] < outDims[axis] {
				break
			}
			srcPos -= srcStrides[axis] * indices[axis]
			indices[axis] = 0
		}
	}
	return tensors.FromFlat(x.DType(), flat, outDims...), nil
}

func execReduceSum(p *ReduceParams, x *tensors.Tensor) *tensors.Tensor {
	inDims := x.Dimensions()
	reduced := make([]bool, len(inDims))
	var outDims []int
	for axis, dim := range inDims {
		reduced[axis] = p.Axes == nil || slices.Contains(p.Axes, axis)
		if !reduced[axis] {
			outDims = append(outDims, dim)
		}
	}
	outStrides := tensors.Strides(outDims)
	dstStrides := make([]int, len(inDims))
	outAxis := 0
	for axis := range inDims {
		if !reduced[axis] {
			dstStrides[axis] = outStrides[outAxis]
			outAxis++
		}
	}
	src := x.Flat()
	flat := make([]float64, tensors.SizeOf(outDims))
	indices := make([]int, len(inDims))
	dstPos := 0
	for _, v := range src {
		flat[dstPos] += v
		for axis := len(inDims) - 1; axis >= 0; axis-- {
			indices[axis]++
			dstPos += dstStrides[axis]
			if indices[axis] < inDims[axis] {
				break
			}
			dstPos -= dstStrides[axis] * indices[axis]
			indices[axis] = 0
		}
	}
	return tensors.FromFlat(x.DType(), flat, outDims...)
}

// execDot multiplies matrices, vectors are treated as a row (left operand) or a column (right operand)
// and their axis is removed from the result.
func execDot(a, b *tensors.Tensor) (*tensors.Tensor, error) {
	aDims, bDims := a.Dimensions(), b.Dimensions()
	rows, inner := 1, aDims[0]
	if len(aDims) == 2 {
		rows, inner = aDims[0], aDims[1]
	}
	cols := 1
	if len(bDims) == 2 {
		cols = bDims[1]
	}
	if bDims[0] != inner {
		return nil, errors.Errorf("Dot: contracting dimensions don't match: %v and %v", aDims, bDims)
	}
	af, bf := a.Flat(), b.Flat()
	flat := make([]float64, rows*cols)
	for r := range rows {
		for c := range cols {
			sum := 0.0
			for k := range inner {
				sum += af[r*inner+k] * bf[k*cols+c]
			}
			flat[r*cols+c] = sum
		}
	}
	var outDims []int
	if len(aDims) == 2 {
		outDims = append(outDims, rows)
	}
	if len(bDims) == 2 {
		outDims = append(outDims, cols)
	}
	return tensors.FromFlat(a.DType(), flat, outDims...), nil
}

func execSubtensor(p *SubtensorParams, x *tensors.Tensor) (*tensors.Tensor, error) {
	dims := x.Dimensions()
	index := p.Index
	if index < 0 {
		index += dims[0]
	}
	if index < 0 || index >= dims[0] {
		return nil, errors.Errorf("Subtensor%s: index out of bounds for dimension %d", p, dims[0])
	}
	slabSize := tensors.SizeOf(dims[1:])
	return tensors.FromFlat(x.DType(), x.Flat()[index*slabSize:(index+1)*slabSize], dims[1:]...), nil
}

// SliceBounds returns the effective [start, stop) range of a slice over an axis of the given dimension,
// with negative values counted from the end and clamped to [0, dim].
func SliceBounds(start, stop, dim int) (int, int) {
	normalize := func(idx int) int {
		if idx < 0 {
			idx += dim
		}
		return min(max(idx, 0), dim)
	}
	start, stop = normalize(start), normalize(stop)
	if stop < start {
		stop = start
	}
	return start, stop
}

func execSlice(p *SliceParams, x *tensors.Tensor) *tensors.Tensor {
	dims := x.Dimensions()
	start, stop := SliceBounds(p.Start, p.Stop, dims[0])
	slabSize := tensors.SizeOf(dims[1:])
	dims[0] = stop - start
	return tensors.FromFlat(x.DType(), x.Flat()[start*slabSize:stop*slabSize], dims...)
}

func execReshape(p *ReshapeParams, x, shape *tensors.Tensor) (*tensors.Tensor, error) {
	if shape.Size() != p.Rank {
		return nil, errors.Errorf("Reshape(%s): shape %s has the wrong length", p, shape)
	}
	dims := make([]int, p.Rank)
	inferred := -1
	known := 1
	for ii, v := range shape.Flat() {
		dims[ii] = int(v)
		switch {
		case dims[ii] == -1 && inferred == -1:
			inferred = ii
		case dims[ii] < 0:
			return nil, errors.Errorf("Reshape(%s): invalid shape %s", p, shape)
		default:
			known *= dims[ii]
		}
	}
	if inferred >= 0 {
		if known == 0 || x.Size()%known != 0 {
			return nil, errors.Errorf("Reshape(%s): cannot reshape dims %v to %s", p, x.Dimensions(), shape)
		}
		dims[inferred] = x.Size() / known
	}
	if tensors.SizeOf(dims) != x.Size() {
		return nil, errors.Errorf("Reshape(%s): cannot reshape dims %v to %v", p, x.Dimensions(), dims)
	}
	return x.Reshape(dims...), nil
}
