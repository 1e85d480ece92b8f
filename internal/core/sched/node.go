package sched

import (
	"sort"
	"sync/atomic"
	"time"
)

// EdgeKind distinguishes how a dependency edge came to exist.
type EdgeKind int8

const (
	// EdgeExplicit was declared by the system author via Before/After.
	EdgeExplicit EdgeKind = iota
	// EdgeImplicit was inferred from overlapping read/write masks.
	EdgeImplicit
)

// Node is one registered system in the scheduler's DAG. Nodes live for the
// lifetime of the scheduler; ids are dense and assigned in insertion order.
type Node struct {
	id     int
	meta   Metadata
	system System

	// out[n] means self must complete before n starts.
	out map[*Node]EdgeKind
	in  map[*Node]EdgeKind

	lastRuntimeUS atomic.Int64
}

func newNode(id int, meta Metadata, system System) *Node {
	return &Node{
		id:     id,
		meta:   meta,
		system: system,
		out:    make(map[*Node]EdgeKind, 4),
		in:     make(map[*Node]EdgeKind, 4),
	}
}

func (n *Node) ID() int        { return n.id }
func (n *Node) Meta() Metadata { return n.meta }
func (n *Node) System() System { return n.system }
func (n *Node) Name() string   { return n.meta.Name }

// RecordRuntime stores the latest measured execution time. Written by the
// worker that ran the system, read by stats collection at frame end.
func (n *Node) RecordRuntime(d time.Duration) {
	n.lastRuntimeUS.Store(d.Microseconds())
}

// LastRuntime returns the most recent execution time.
func (n *Node) LastRuntime() time.Duration {
	return time.Duration(n.lastRuntimeUS.Load()) * time.Microsecond
}

// Predecessors returns the nodes that must complete before this one, in
// ascending id order for determinism.
func (n *Node) Predecessors() []*Node {
	preds := make([]*Node, 0, len(n.in))
	for p := range n.in {
		preds = append(preds, p)
	}
	sort.Slice(preds, func(i, j int) bool { return preds[i].id < preds[j].id })
	return preds
}

// addEdge records self -> other. Explicit edges are never downgraded to
// implicit when both apply.
func (n *Node) addEdge(other *Node, kind EdgeKind) {
	if existing, ok := n.out[other]; ok && existing == EdgeExplicit {
		return
	}
	n.out[other] = kind
	other.in[n] = kind
}

// relatedTo reports whether a direct edge exists between the two nodes in
// either direction.
func (n *Node) relatedTo(other *Node) bool {
	if _, ok := n.out[other]; ok {
		return true
	}
	_, ok := n.in[other]
	return ok
}
