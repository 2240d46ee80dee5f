// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/graphopt/types/shapes"
	"github.com/gomlx/graphopt/types/tensors"
	"github.com/pkg/errors"
)

// Evaluate executes the graph on the given inputs, one tensor per graph input in order, and returns
// one tensor per graph output.
//
// It is a reference (slow) evaluator: it is used to fold constants and to check that optimizations
// preserve the semantics of a graph. Inplace nodes overwrite the storage of the input they destroy,
// as a backend would.
func (g *Graph) Evaluate(inputs ...*tensors.Tensor) ([]*tensors.Tensor, error) {
	if len(inputs) != len(g.inputs) {
		return nil, errors.Errorf("graph %q takes %d inputs, %d given", g.name, len(g.inputs), len(inputs))
	}
	values := make(map[*Value]*tensors.Tensor, len(g.nodes)+len(inputs))
	for ii, param := range g.inputs {
		if err := checkCompatible(param.shape, inputs[ii]); err != nil {
			return nil, errors.WithMessagef(err, "graph %q input #%d (%s)", g.name, ii, param.name)
		}
		values[param] = inputs[ii]
	}
	get := func(v *Value) *tensors.Tensor {
		if v.literal != nil {
			return v.literal
		}
		return values[v]
	}

	nodes, err := g.TopoSort()
	if err != nil {
		return nil, err
	}
	for _, node := range nodes {
		nodeInputs := make([]*tensors.Tensor, len(node.inputs))
		for ii, input := range node.inputs {
			nodeInputs[ii] = get(input)
			if nodeInputs[ii] == nil {
				return nil, errors.Errorf("graph %q: value %s used by %s has not been computed", g.name, input, node)
			}
		}
		outputs, err := Perform(node, nodeInputs)
		if err != nil {
			return nil, errors.WithMessagef(err, "graph %q", g.name)
		}
		for ii, output := range node.outputs {
			values[output] = outputs[ii]
		}
	}

	results := make([]*tensors.Tensor, len(g.outputs))
	for ii, output := range g.outputs {
		results[ii] = get(output)
	}
	return results, nil
}

// checkCompatible returns an error if t cannot be a runtime value for shape: dtype and rank must match,
// and broadcastable axes must have dimension 1.
func checkCompatible(shape shapes.Shape, t *tensors.Tensor) error {
	if t == nil {
		return errors.Errorf("missing value for shape %s", shape)
	}
	if t.DType() != shape.DType || t.Rank() != shape.Rank() {
		return errors.Errorf("tensor %s is not compatible with shape %s", t, shape)
	}
	for axis, dim := range t.Dimensions() {
		if shape.Broadcastable[axis] && dim != 1 {
			return errors.Errorf("tensor with dims %v is not compatible with shape %s: axis %d is broadcastable",
				t.Dimensions(), shape, axis)
		}
	}
	return nil
}

// Perform computes the outputs of node for the given input tensors.
//
// If the node is inplace, the destroyed inputs are overwritten and returned as the corresponding outputs.
// Errors in the runtime dimensions of the inputs are returned, never panicked.
func Perform(node *Node, inputs []*tensors.Tensor) (outputs []*tensors.Tensor, err error) {
	if len(inputs) != len(node.inputs) {
		return nil, errors.Errorf("%s takes %d inputs, %d given", node, len(node.inputs), len(inputs))
	}
	for ii, input := range inputs {
		if err := checkCompatible(node.inputs[ii].shape, input); err != nil {
			return nil, errors.WithMessagef(err, "%s input #%d", node, ii)
		}
	}
	var output *tensors.Tensor
	var performErr error
	err = exceptions.TryCatch[error](func() {
		if node.opType.IsElementwise() {
			output, performErr = performElementwise(node, inputs)
		} else {
			output, performErr = performStructural(node, inputs)
		}
	})
	if err == nil {
		err = performErr
	}
	if err != nil {
		return nil, errors.WithMessagef(err, "performing %s", node)
	}
	if err := checkCompatible(node.outputs[0].shape, output); err != nil {
		return nil, errors.WithMessagef(err, "output of %s", node)
	}
	return []*tensors.Tensor{output}, nil
}
