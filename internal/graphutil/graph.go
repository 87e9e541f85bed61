// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package graphutil

import (
	"github.com/Yanhaoxi/lotus-zju-sub001/internal/funcutil"
	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/graph"
)

// FuncGraph is a directed graph over the nodes [0, N) whose edges are given by a function. It implements the
// graph.Iterator interface of github.com/yourbasic/graph without materializing the edges.
type FuncGraph struct {
	N int
	// Succ calls do on every successor of v, and stops as soon as do returns true. Returns true if it stopped.
	Succ func(v int, do func(w int) bool) bool
}

// Order returns the number of nodes of the graph
func (g FuncGraph) Order() int {
	return g.N
}

// Visit calls do on every successor of v
func (g FuncGraph) Visit(v int, do func(w int, c int64) (skip bool)) (aborted bool) {
	if g.Succ == nil {
		return false
	}
	return g.Succ(v, func(w int) bool { return do(w, 1) })
}

// Digraph is a materialized directed graph with int64 node identifiers. It implements the graph.Iterator interface
// of github.com/yourbasic/graph, where the order is one more than the largest identifier, and the graph.Directed
// interface of Gonum.
type Digraph struct {
	// order is the order of the graph as an iterator
	order int

	// Labels maps node identifiers to a printable label
	Labels map[int64]string

	// Keys are all the node ids, sorted
	Keys []int64

	// Edges is an adjacency matrix: Edges[x][y] means there is a directed edge from x to y
	Edges map[int64]map[int64]bool

	// reverse is the transposed adjacency matrix
	reverse map[int64]map[int64]bool
}

// NewDigraph returns an empty graph
func NewDigraph() *Digraph {
	return &Digraph{
		Labels:  map[int64]string{},
		Edges:   map[int64]map[int64]bool{},
		reverse: map[int64]map[int64]bool{},
	}
}

// AddNode adds the node id with its label. Adding a node twice changes its label.
func (d *Digraph) AddNode(id int64, label string) {
	if _, ok := d.Edges[id]; !ok {
		d.Edges[id] = map[int64]bool{}
		d.reverse[id] = map[int64]bool{}
		idx, _ := slices.BinarySearch(d.Keys, id)
		d.Keys = slices.Insert(d.Keys, idx, id)
		if int(id) >= d.order {
			d.order = int(id) + 1
		}
	}
	d.Labels[id] = label
}

// AddEdge adds the edge from x to y, adding the nodes if necessary
func (d *Digraph) AddEdge(x, y int64) {
	if _, ok := d.Edges[x]; !ok {
		d.AddNode(x, "")
	}
	if _, ok := d.Edges[y]; !ok {
		d.AddNode(y, "")
	}
	d.Edges[x][y] = true
	d.reverse[y][x] = true
}

// Subgraph returns a new graph that is the original graph with only the nodes in include. Only the edges that have
// both the origin and destination nodes in the include nodes are kept in the resulting graph.
// The subgraph's order and labels are the same as in the original, meaning that node indices stay consistent
// across subgraphs.
func Subgraph(original *Digraph, include []int64) *Digraph {
	sub := NewDigraph()
	sub.order = original.order
	sub.Labels = original.Labels
	for _, i := range include {
		if _, ok := original.Edges[i]; ok {
			sub.Edges[i] = map[int64]bool{}
			sub.reverse[i] = map[int64]bool{}
			sub.Keys = append(sub.Keys, i)
		}
	}
	slices.Sort(sub.Keys)
	for _, i := range sub.Keys {
		for e := range original.Edges[i] {
			if _, ok := sub.Edges[e]; ok {
				sub.Edges[i][e] = true
				sub.reverse[e][i] = true
			}
		}
	}
	return sub
}

// Order implements the order of the graph.Iterator interface
func (d *Digraph) Order() int {
	return d.order
}

// Visit implements the graph.Iterator interface. Successors are visited in increasing order.
func (d *Digraph) Visit(v int, do func(w int, c int64) (skip bool)) (aborted bool) {
	for _, w := range funcutil.SortedKeys(d.Edges[int64(v)]) {
		if do(int(w), 1) {
			return true
		}
	}
	return false
}

// *************** Gonum graph interface implementation **********************

// Node returns the node with the id, or nil
func (d *Digraph) Node(id int64) graph.Node {
	if _, ok := d.Edges[id]; !ok {
		return nil
	}
	return DNode{id: id, label: d.Labels[id]}
}

// Nodes returns the set of nodes in the graph
func (d *Digraph) Nodes() graph.Nodes {
	return d.nodeSet(d.Keys)
}

// From returns the set of successors of the id
func (d *Digraph) From(id int64) graph.Nodes {
	return d.nodeSet(funcutil.SortedKeys(d.Edges[id]))
}

// To returns the set of predecessors of the id
func (d *Digraph) To(id int64) graph.Nodes {
	return d.nodeSet(funcutil.SortedKeys(d.reverse[id]))
}

// HasEdgeBetween returns a boolean indicating whether an edge exists between the two node identifiers
func (d *Digraph) HasEdgeBetween(xid, yid int64) bool {
	return d.Edges[xid][yid] || d.Edges[yid][xid]
}

// HasEdgeFromTo returns whether there is an edge from uid to vid
func (d *Digraph) HasEdgeFromTo(uid, vid int64) bool {
	return d.Edges[uid][vid]
}

// Edge returns the edge between the two identifiers (nil if none exists)
func (d *Digraph) Edge(uid, vid int64) graph.Edge {
	if d.Edges[uid][vid] {
		return DEdge{from: DNode{uid, d.Labels[uid]}, to: DNode{vid, d.Labels[vid]}}
	}
	return nil
}

func (d *Digraph) nodeSet(ids []int64) *NodeSet {
	nodes := make([]graph.Node, len(ids))
	for i, id := range ids {
		nodes[i] = DNode{id: id, label: d.Labels[id]}
	}
	return &NodeSet{nodes: nodes, cur: -1}
}

// *************** Nodes implementation **********************

// DNode is a node of a Digraph
type DNode struct {
	id    int64
	label string
}

// ID returns the id of the node
func (n DNode) ID() int64 {
	return n.id
}

func (n DNode) String() string {
	return n.label
}

// NodeSet implements the graph.Nodes interface, an iterator over a set of nodes
type NodeSet struct {
	nodes []graph.Node
	// cur is the index of the current node, -1 before the first call to Next
	cur int
}

// Next moves the current node to the next, and returns true if such a node exists. Otherwise, returns false
// and the current node has not changed.
func (ns *NodeSet) Next() bool {
	if ns.cur < len(ns.nodes)-1 {
		ns.cur++
		return true
	}
	return false
}

// Len returns the number of nodes remaining in the iterator
func (ns *NodeSet) Len() int {
	return len(ns.nodes) - ns.cur - 1
}

// Reset resets the iterator before the first node
func (ns *NodeSet) Reset() {
	ns.cur = -1
}

// Node return the current node in the set
func (ns *NodeSet) Node() graph.Node {
	if ns.cur < 0 || ns.cur >= len(ns.nodes) {
		return nil
	}
	return ns.nodes[ns.cur]
}

// *************** Edge implementation **********************

// DEdge implements the graph.Edge interface
type DEdge struct {
	from DNode
	to   DNode
}

// From returns the origin of the edge
func (e DEdge) From() graph.Node {
	return e.from
}

// To returns the destination of the edge
func (e DEdge) To() graph.Node {
	return e.to
}

// ReversedEdge returns a new value representing the reversed edge
func (e DEdge) ReversedEdge() graph.Edge {
	return DEdge{from: e.to, to: e.from}
}
