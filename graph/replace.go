// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"fmt"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// ReplaceErrorKind classifies why a substitution was rejected.
type ReplaceErrorKind int

const (
	// TypeMismatch means a new value doesn't have exactly the shape (dtype and broadcast pattern)
	// of the value it replaces.
	TypeMismatch ReplaceErrorKind = iota + 1

	// Inconsistency means the substitution would make the graph structurally invalid, e.g. by
	// introducing a cycle or depending on an unknown parameter.
	Inconsistency

	// DestroyConflict means an inplace node would overwrite a value that is still read elsewhere.
	DestroyConflict
)

func (k ReplaceErrorKind) String() string {
	switch k {
	case TypeMismatch:
		return "TypeMismatch"
	case Inconsistency:
		return "Inconsistency"
	case DestroyConflict:
		return "DestroyConflict"
	}
	return fmt.Sprintf("ReplaceErrorKind(%d)", int(k))
}

// ReplaceError is returned by Graph.ReplaceAllValidate and Graph.Validate.
type ReplaceError struct {
	Kind   ReplaceErrorKind
	Reason string
	Err    error
}

func (e *ReplaceError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("replacement by %q rejected (%s): %v", e.Reason, e.Kind, e.Err)
}

func (e *ReplaceError) Unwrap() error { return e.Err }

// IsReplaceError returns whether err is a *ReplaceError of the given kind.
func IsReplaceError(err error, kind ReplaceErrorKind) bool {
	var replaceErr *ReplaceError
	return errors.As(err, &replaceErr) && replaceErr.Kind == kind
}

type changeKind int

const (
	changeInput changeKind = iota
	changeOutput
	changeAdopt
	changePrune
)

// change is one entry of the undo log kept during a substitution.
type change struct {
	kind  changeKind
	node  *Node
	index int
	old   *Value
}

func (g *Graph) record(c change) {
	if g.changes != nil {
		g.changes = append(g.changes, c)
	}
}

// Replace is a shortcut to ReplaceAllValidate with a single value.
func (g *Graph) Replace(old, replacement *Value, reason string) error {
	return g.ReplaceAllValidate([]*Value{old}, []*Value{replacement}, reason)
}

// ReplaceAllValidate substitutes each of the olds values by the corresponding news value, for all
// their clients, and validates the resulting graph. Nodes no longer needed are removed from the graph,
// new nodes needed by the news values are adopted.
//
// If any of the replacements fails, the graph is left unchanged and a *ReplaceError is returned:
//
//   - TypeMismatch: a new value's shape is not exactly the same as the old one. Nothing is tried.
//   - Inconsistency: the result would have a cycle, or new values depend on unknown parameters or nodes
//     of another graph.
//   - DestroyConflict: an inplace node would overwrite a value that is still needed.
//
// The reason is only used for logging and errors, it usually is the name of the rule proposing the change.
func (g *Graph) ReplaceAllValidate(olds, news []*Value, reason string) error {
	if len(olds) != len(news) {
		return &ReplaceError{Kind: Inconsistency, Reason: reason,
			Err: errors.Errorf("%d values to replace, but %d replacements given", len(olds), len(news))}
	}
	for ii, old := range olds {
		if news[ii] == nil {
			return &ReplaceError{Kind: Inconsistency, Reason: reason, Err: errors.Errorf("replacement #%d is nil", ii)}
		}
		if !old.shape.Equal(news[ii].shape) {
			return &ReplaceError{Kind: TypeMismatch, Reason: reason,
				Err: errors.Errorf("cannot replace %s %s by %s %s", old, old.shape, news[ii], news[ii].shape)}
		}
	}

	g.changes = make([]change, 0, 16)
	defer func() { g.changes = nil }()
	for ii, old := range olds {
		newValue := news[ii]
		if old == newValue {
			continue
		}
		if len(g.clients[old]) == 0 {
			g.rollback()
			return &ReplaceError{Kind: Inconsistency, Reason: reason,
				Err: errors.Errorf("value %s is not used in graph %q", old, g.name)}
		}
		if err := g.importValues([]*Value{newValue}); err != nil {
			g.rollback()
			return &ReplaceError{Kind: Inconsistency, Reason: reason, Err: err}
		}
		g.redirect(old, newValue)
		if old.owner != nil {
			g.pruneIfUnused(old.owner)
		}
	}
	if err := g.validate(reason); err != nil {
		g.rollback()
		return err
	}
	if klog.V(2).Enabled() {
		for ii, old := range olds {
			klog.Infof("graph %q: %s replaced %s by %s", g.name, reason, old, news[ii])
		}
	}
	return nil
}

// redirect makes every client of old use newValue instead.
func (g *Graph) redirect(old, newValue *Value) {
	clients := g.clients[old]
	delete(g.clients, old)
	for _, c := range clients {
		if c.IsOutput() {
			g.record(change{kind: changeOutput, index: c.Input, old: old})
			g.outputs[c.Input] = newValue
		} else {
			g.record(change{kind: changeInput, node: c.Node, index: c.Input, old: old})
			c.Node.inputs[c.Input] = newValue
		}
		g.clients[newValue] = append(g.clients[newValue], c)
	}
}

// pruneIfUnused removes node from the graph if none of its outputs is used, and then recursively
// the nodes producing its inputs.
func (g *Graph) pruneIfUnused(node *Node) {
	if node.graph != g {
		return
	}
	for _, output := range node.outputs {
		if len(g.clients[output]) > 0 {
			return
		}
	}
	g.nodes.Delete(node)
	node.graph = nil
	g.record(change{kind: changePrune, node: node})
	for _, output := range node.outputs {
		delete(g.clients, output)
	}
	for ii, input := range node.inputs {
		clients := g.clients[input]
		for jj, c := range clients {
			if c.Node == node && c.Input == ii {
				clients = append(clients[:jj:jj], clients[jj+1:]...)
				break
			}
		}
		if len(clients) == 0 {
			delete(g.clients, input)
		} else {
			g.clients[input] = clients
		}
	}
	for _, input := range node.inputs {
		if input.owner != nil {
			g.pruneIfUnused(input.owner)
		}
	}
}

// rollback undoes every change recorded since the start of the current substitution.
func (g *Graph) rollback() {
	for ii := len(g.changes) - 1; ii >= 0; ii-- {
		c := g.changes[ii]
		switch c.kind {
		case changeInput:
			c.node.inputs[c.index] = c.old
		case changeOutput:
			g.outputs[c.index] = c.old
		case changeAdopt:
			c.node.graph = nil
			g.nodes.Delete(c.node)
		case changePrune:
			c.node.graph = g
			g.nodes.Insert(c.node)
		}
	}
	g.changes = g.changes[:0]
	g.rebuildClients()
}

// rebuildClients recomputes the clients index from scratch, in topological order.
func (g *Graph) rebuildClients() {
	g.clients = make(map[*Value][]Client, len(g.clients))
	for _, node := range g.Nodes() {
		for ii, input := range node.inputs {
			g.clients[input] = append(g.clients[input], Client{Node: node, Input: ii})
		}
	}
	for ii, output := range g.outputs {
		g.clients[output] = append(g.clients[output], Client{Input: ii})
	}
}
