// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package graph defines the intermediate representation optimized by the optimizer packages: a
// directed acyclic graph of operations over array values.
//
// The main elements in the package are:
//
//   - Value: a typed placeholder for an array. It is either a parameter (an input of the Graph),
//     a constant holding a literal (a tensors.Tensor), or the output of a Node. Its static type
//     is a shapes.Shape: a DType and a broadcast pattern.
//   - Node: the application of an operation (OpType plus optional Params) to its input Values,
//     producing its output Values. Nodes are created with the op constructors (Add, Mul,
//     DimShuffle, Fill, ...), which infer the output shape and panic with an error if the inputs
//     are invalid.
//   - Graph: a set of Nodes connecting a list of input parameters to a list of outputs. It keeps
//     track of the "clients" (consumers) of each Value, and it is only mutated through
//     ReplaceAllValidate, which substitutes values and validates (and if needed rolls back) the
//     result.
//
// It also includes a reference evaluator (Graph.Evaluate and Perform) that executes a graph on
// concrete tensors, honoring the inplace (destructive) bindings of nodes.
//
// ## Broadcasting
//
// Element-wise operations align their inputs to the right: missing leading axes are broadcastable.
// At runtime only axes marked statically broadcastable (guaranteed to have dimension 1) are expanded,
// all other axes of the inputs must match exactly.
package graph

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gomlx/graphopt/pkg/support/sets"
	"github.com/google/uuid"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
)

// Client is a consumer of a Value: either the input #Input of Node, or, if Node is nil, the
// output #Input of the Graph.
type Client struct {
	Node  *Node
	Input int
}

// IsOutput returns whether the client is the graph output itself.
func (c Client) IsOutput() bool { return c.Node == nil }

// Graph is a computation graph: the nodes connecting its inputs (parameters) to its outputs.
//
// A Graph is not safe for concurrent use.
type Graph struct {
	id   uuid.UUID
	name string

	inputs   []*Value
	inputSet sets.Set[*Value]
	outputs  []*Value

	nodes   sets.Set[*Node]
	clients map[*Value][]Client

	// changes is the undo log of the substitution in progress, nil when none is.
	changes []change
}

// New creates a Graph with the given inputs (parameters) and outputs, adopting every node
// needed to compute the outputs.
//
// It returns an error if an output depends on a parameter not listed in inputs, if a node
// already belongs to another graph, or if the graph is invalid (see Validate).
func New(name string, inputs, outputs []*Value) (*Graph, error) {
	g := &Graph{
		id:       uuid.New(),
		name:     name,
		inputs:   slices.Clone(inputs),
		inputSet: sets.Make[*Value](len(inputs)),
		outputs:  slices.Clone(outputs),
		nodes:    sets.Make[*Node](),
		clients:  make(map[*Value][]Client),
	}
	for ii, input := range inputs {
		if input == nil || !input.IsParameter() {
			return nil, errors.Errorf("graph %q: input #%d (%v) is not a parameter", name, ii, input)
		}
		if g.inputSet.Has(input) {
			return nil, errors.Errorf("graph %q: input #%d (%s) given more than once", name, ii, input)
		}
		g.inputSet.Insert(input)
	}
	for ii, output := range outputs {
		if output == nil {
			return nil, errors.Errorf("graph %q: output #%d is nil", name, ii)
		}
	}
	if err := g.importValues(outputs); err != nil {
		return nil, err
	}
	for ii, output := range g.outputs {
		g.clients[output] = append(g.clients[output], Client{Input: ii})
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// MustNew is like New, but panics on error.
func MustNew(name string, inputs, outputs []*Value) *Graph {
	return must.M1(New(name, inputs, outputs))
}

// Id returns the unique id of the graph, used to identify it in logs.
func (g *Graph) Id() uuid.UUID { return g.id }

// Name of the graph.
func (g *Graph) Name() string { return g.name }

// Inputs returns the parameters of the graph. The returned slice must not be modified.
func (g *Graph) Inputs() []*Value { return g.inputs }

// Outputs returns the outputs of the graph. The returned slice must not be modified.
func (g *Graph) Outputs() []*Value { return g.outputs }

// NumNodes returns the number of nodes in the graph.
func (g *Graph) NumNodes() int { return len(g.nodes) }

// Has returns whether node belongs to the graph.
func (g *Graph) Has(node *Node) bool { return node != nil && node.graph == g }

// Clients returns the consumers of the value v in the graph.
func (g *Graph) Clients(v *Value) []Client { return slices.Clone(g.clients[v]) }

// NumClients returns the number of consumers of the value v in the graph.
func (g *Graph) NumClients(v *Value) int { return len(g.clients[v]) }

// IsOutput returns whether v is one of the outputs of the graph.
func (g *Graph) IsOutput(v *Value) bool {
	for _, c := range g.clients[v] {
		if c.IsOutput() {
			return true
		}
	}
	return false
}

// Nodes returns the nodes of the graph in topological order. See TopoSort.
//
// It panics if the graph has a cycle, which can't happen for graphs only changed with ReplaceAllValidate.
func (g *Graph) Nodes() []*Node {
	return must.M1(g.TopoSort())
}

// TopoSort returns the nodes of the graph ordered such that every node comes after the nodes
// producing its inputs. The order is deterministic: a depth-first traversal from the outputs,
// visiting the inputs of each node in order.
//
// It returns an error if the graph has a cycle.
func (g *Graph) TopoSort() ([]*Node, error) {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[*Node]int, len(g.nodes))
	sorted := make([]*Node, 0, len(g.nodes))
	var visit func(node *Node) error
	visit = func(node *Node) error {
		switch state[node] {
		case done:
			return nil
		case visiting:
			return errors.Errorf("graph %q has a cycle through node %s", g.name, node)
		}
		state[node] = visiting
		for _, input := range node.inputs {
			if input.owner != nil && input.owner.graph == g {
				if err := visit(input.owner); err != nil {
					return err
				}
			}
		}
		state[node] = done
		sorted = append(sorted, node)
		return nil
	}
	for _, output := range g.outputs {
		if output.owner != nil && output.owner.graph == g {
			if err := visit(output.owner); err != nil {
				return nil, err
			}
		}
	}
	if len(sorted) != len(g.nodes) {
		return nil, errors.Errorf("graph %q has %d nodes not reachable from its outputs", g.name, len(g.nodes)-len(sorted))
	}
	return sorted, nil
}

// importValues adopts every node needed to compute values that doesn't yet belong to the graph.
// Nothing is changed if it returns an error.
func (g *Graph) importValues(values []*Value) error {
	var toAdopt []*Node
	visited := sets.Make[*Node]()
	stack := slices.Clone(values)
	for len(stack) > 0 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		node := v.owner
		if node == nil {
			if v.IsParameter() && !g.inputSet.Has(v) {
				return errors.Errorf("graph %q: value depends on parameter %q which is not an input of the graph", g.name, v.name)
			}
			continue
		}
		if node.graph == g || visited.Has(node) {
			continue
		}
		if node.graph != nil {
			return errors.Errorf("graph %q: node %s belongs to another graph (%q)", g.name, node, node.graph.name)
		}
		visited.Insert(node)
		toAdopt = append(toAdopt, node)
		stack = append(stack, node.inputs...)
	}
	for _, node := range toAdopt {
		g.adopt(node)
	}
	return nil
}

func (g *Graph) adopt(node *Node) {
	node.graph = g
	g.nodes.Insert(node)
	for ii, input := range node.inputs {
		g.clients[input] = append(g.clients[input], Client{Node: node, Input: ii})
	}
	g.record(change{kind: changeAdopt, node: node})
}

// String returns a multi-line listing of the graph, in topological order.
func (g *Graph) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Graph %q (%d nodes):\n", g.name, len(g.nodes))
	for _, input := range g.inputs {
		fmt.Fprintf(&sb, "\tinput %s %s\n", input.name, input.shape)
	}
	nodes, err := g.TopoSort()
	if err != nil {
		fmt.Fprintf(&sb, "\t<invalid: %v>\n", err)
	}
	for _, node := range nodes {
		fmt.Fprintf(&sb, "\t%s\n", node)
	}
	for ii, output := range g.outputs {
		fmt.Fprintf(&sb, "\toutput #%d: %s\n", ii, output)
	}
	return sb.String()
}

// Clone returns a new graph with the same inputs and a copy of every node. Parameters and
// constants are shared.
func (g *Graph) Clone() *Graph {
	mapping := make(map[*Value]*Value)
	get := func(v *Value) *Value {
		if mapped, found := mapping[v]; found {
			return mapped
		}
		return v
	}
	for _, node := range g.Nodes() {
		inputs := make([]*Value, len(node.inputs))
		for ii, input := range node.inputs {
			inputs[ii] = get(input)
		}
		cloned := newNode(node.opType, node.params, node.destroyMap, inputs)
		for ii, output := range node.outputs {
			mapping[output] = cloned.outputs[ii]
		}
	}
	outputs := make([]*Value, len(g.outputs))
	for ii, output := range g.outputs {
		outputs[ii] = get(output)
	}
	return MustNew(g.name, g.inputs, outputs)
}
